package reactor

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks reactor and SRR engine operational statistics.
type Metrics struct {
	// Reactor counters
	Posts            atomic.Uint64 // post calls that installed a job
	PostsRejected    atomic.Uint64 // post calls refused (allow_new=false, nil job, slot occupied)
	Removes          atomic.Uint64 // remove calls that cleared a job
	Dispatches       atomic.Uint64 // job invocations
	OneshotFires     atomic.Uint64 // oneshot jobs consumed
	SpuriousWakeups  atomic.Uint64 // negative wait-set returns
	NotifierRebuilds atomic.Uint64 // notification-channel drains processed

	// SRR counters
	SendOps        atomic.Uint64
	RecvOps        atomic.Uint64
	SendBytes      atomic.Uint64
	RecvBytes      atomic.Uint64
	SendErrors     atomic.Uint64
	RecvErrors     atomic.Uint64
	BufferTooSmall atomic.Uint64

	// Performance tracking
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// Latency histogram buckets (cumulative counts)
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordPost records a successful or rejected post call.
func (m *Metrics) RecordPost(accepted bool) {
	if accepted {
		m.Posts.Add(1)
	} else {
		m.PostsRejected.Add(1)
	}
}

// RecordRemove records a successful remove call.
func (m *Metrics) RecordRemove() {
	m.Removes.Add(1)
}

// RecordDispatch records a job invocation, optionally an oneshot fire.
func (m *Metrics) RecordDispatch(oneshot bool) {
	m.Dispatches.Add(1)
	if oneshot {
		m.OneshotFires.Add(1)
	}
}

// RecordSpuriousWakeup records a negative wait-set return.
func (m *Metrics) RecordSpuriousWakeup() {
	m.SpuriousWakeups.Add(1)
}

// RecordNotifierRebuild records one notification-channel drain/rebuild pass.
func (m *Metrics) RecordNotifierRebuild() {
	m.NotifierRebuilds.Add(1)
}

// RecordSend records a completed SRR send operation.
func (m *Metrics) RecordSend(bytes uint64, latencyNs uint64, success bool) {
	m.SendOps.Add(1)
	if success {
		m.SendBytes.Add(bytes)
	} else {
		m.SendErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordRecv records a completed SRR receive operation.
func (m *Metrics) RecordRecv(bytes uint64, latencyNs uint64, success bool) {
	m.RecvOps.Add(1)
	if success {
		m.RecvBytes.Add(bytes)
	} else {
		m.RecvErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordBufferTooSmall records a UDP truncation-peek outcome.
func (m *Metrics) RecordBufferTooSmall() {
	m.BufferTooSmall.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the reactor as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	Posts            uint64
	PostsRejected    uint64
	Removes          uint64
	Dispatches       uint64
	OneshotFires     uint64
	SpuriousWakeups  uint64
	NotifierRebuilds uint64

	SendOps        uint64
	RecvOps        uint64
	SendBytes      uint64
	RecvBytes      uint64
	SendErrors     uint64
	RecvErrors     uint64
	BufferTooSmall uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	TotalBytes uint64
	ErrorRate  float64
}

// Snapshot creates a point-in-time snapshot of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Posts:            m.Posts.Load(),
		PostsRejected:    m.PostsRejected.Load(),
		Removes:          m.Removes.Load(),
		Dispatches:       m.Dispatches.Load(),
		OneshotFires:     m.OneshotFires.Load(),
		SpuriousWakeups:  m.SpuriousWakeups.Load(),
		NotifierRebuilds: m.NotifierRebuilds.Load(),
		SendOps:          m.SendOps.Load(),
		RecvOps:          m.RecvOps.Load(),
		SendBytes:        m.SendBytes.Load(),
		RecvBytes:        m.RecvBytes.Load(),
		SendErrors:       m.SendErrors.Load(),
		RecvErrors:       m.RecvErrors.Load(),
		BufferTooSmall:   m.BufferTooSmall.Load(),
	}

	snap.TotalOps = snap.SendOps + snap.RecvOps
	snap.TotalBytes = snap.SendBytes + snap.RecvBytes

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	totalErrors := snap.SendErrors + snap.RecvErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.Posts.Store(0)
	m.PostsRejected.Store(0)
	m.Removes.Store(0)
	m.Dispatches.Store(0)
	m.OneshotFires.Store(0)
	m.SpuriousWakeups.Store(0)
	m.NotifierRebuilds.Store(0)
	m.SendOps.Store(0)
	m.RecvOps.Store(0)
	m.SendBytes.Store(0)
	m.RecvBytes.Store(0)
	m.SendErrors.Store(0)
	m.RecvErrors.Store(0)
	m.BufferTooSmall.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection for the reactor and SRR engine.
// Implementations must be thread-safe: ObserveDispatch/ObserveSRRComplete are
// called from the Run goroutine and from SRR callbacks respectively.
type Observer interface {
	ObservePost(accepted bool)
	ObserveRemove()
	ObserveDispatch(dir Direction, oneshot bool)
	ObserveSpuriousWakeup()
	ObserveNotifierRebuild()
	ObserveSRRComplete(op SRROp, bytes uint64, latencyNs uint64, success bool)
	ObserveBufferTooSmall()
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObservePost(bool)                              {}
func (NoOpObserver) ObserveRemove()                                 {}
func (NoOpObserver) ObserveDispatch(Direction, bool)                {}
func (NoOpObserver) ObserveSpuriousWakeup()                         {}
func (NoOpObserver) ObserveNotifierRebuild()                        {}
func (NoOpObserver) ObserveSRRComplete(SRROp, uint64, uint64, bool) {}
func (NoOpObserver) ObserveBufferTooSmall()                         {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObservePost(accepted bool) { o.metrics.RecordPost(accepted) }
func (o *MetricsObserver) ObserveRemove()            { o.metrics.RecordRemove() }

func (o *MetricsObserver) ObserveDispatch(_ Direction, oneshot bool) {
	o.metrics.RecordDispatch(oneshot)
}

func (o *MetricsObserver) ObserveSpuriousWakeup()  { o.metrics.RecordSpuriousWakeup() }
func (o *MetricsObserver) ObserveNotifierRebuild() { o.metrics.RecordNotifierRebuild() }

func (o *MetricsObserver) ObserveSRRComplete(op SRROp, bytes uint64, latencyNs uint64, success bool) {
	if op == SRROpSend {
		o.metrics.RecordSend(bytes, latencyNs, success)
	} else {
		o.metrics.RecordRecv(bytes, latencyNs, success)
	}
}

func (o *MetricsObserver) ObserveBufferTooSmall() { o.metrics.RecordBufferTooSmall() }

// Compile-time interface checks
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
