package reactor

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 initial ops, got %d", snap.TotalOps)
	}

	m.RecordSend(1024, 1_000_000, true) // 1KB send, 1ms latency, success
	m.RecordRecv(2048, 2_000_000, true) // 2KB recv, 2ms latency, success
	m.RecordSend(512, 500_000, false)   // 512B send, 0.5ms latency, error

	snap = m.Snapshot()

	if snap.SendOps != 2 {
		t.Errorf("Expected 2 send ops, got %d", snap.SendOps)
	}
	if snap.RecvOps != 1 {
		t.Errorf("Expected 1 recv op, got %d", snap.RecvOps)
	}

	if snap.SendBytes != 1024 {
		t.Errorf("Expected 1024 send bytes, got %d", snap.SendBytes)
	}
	if snap.RecvBytes != 2048 {
		t.Errorf("Expected 2048 recv bytes, got %d", snap.RecvBytes)
	}

	if snap.SendErrors != 1 {
		t.Errorf("Expected 1 send error, got %d", snap.SendErrors)
	}
	if snap.RecvErrors != 0 {
		t.Errorf("Expected 0 recv errors, got %d", snap.RecvErrors)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsReactorCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordPost(true)
	m.RecordPost(true)
	m.RecordPost(false)
	m.RecordRemove()
	m.RecordDispatch(true)
	m.RecordDispatch(false)
	m.RecordSpuriousWakeup()
	m.RecordNotifierRebuild()
	m.RecordBufferTooSmall()

	snap := m.Snapshot()

	if snap.Posts != 2 {
		t.Errorf("Expected 2 posts, got %d", snap.Posts)
	}
	if snap.PostsRejected != 1 {
		t.Errorf("Expected 1 rejected post, got %d", snap.PostsRejected)
	}
	if snap.Removes != 1 {
		t.Errorf("Expected 1 remove, got %d", snap.Removes)
	}
	if snap.Dispatches != 2 {
		t.Errorf("Expected 2 dispatches, got %d", snap.Dispatches)
	}
	if snap.OneshotFires != 1 {
		t.Errorf("Expected 1 oneshot fire, got %d", snap.OneshotFires)
	}
	if snap.SpuriousWakeups != 1 {
		t.Errorf("Expected 1 spurious wakeup, got %d", snap.SpuriousWakeups)
	}
	if snap.NotifierRebuilds != 1 {
		t.Errorf("Expected 1 notifier rebuild, got %d", snap.NotifierRebuilds)
	}
	if snap.BufferTooSmall != 1 {
		t.Errorf("Expected 1 buffer-too-small, got %d", snap.BufferTooSmall)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordSend(1024, 1_000_000, true) // 1ms
	m.RecordRecv(1024, 2_000_000, true) // 2ms

	snap := m.Snapshot()

	expectedAvgNs := uint64(1_500_000) // 1.5ms in nanoseconds
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("Expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1_000_000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1_000_000 { // Allow 2ms tolerance
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordSend(1024, 1_000_000, true)
	m.RecordRecv(2048, 2_000_000, true)
	m.RecordPost(true)

	snap := m.Snapshot()
	if snap.TotalOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 ops after reset, got %d", snap.TotalOps)
	}
	if snap.TotalBytes != 0 {
		t.Errorf("Expected 0 bytes after reset, got %d", snap.TotalBytes)
	}
	if snap.Posts != 0 {
		t.Errorf("Expected 0 posts after reset, got %d", snap.Posts)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObservePost(true)
	observer.ObserveRemove()
	observer.ObserveDispatch(DirRead, true)
	observer.ObserveSRRComplete(SRROpSend, 1024, 1_000_000, true)
	observer.ObserveBufferTooSmall()

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveSRRComplete(SRROpSend, 1024, 1_000_000, true)
	metricsObserver.ObserveSRRComplete(SRROpRecv, 2048, 2_000_000, true)
	metricsObserver.ObservePost(true)
	metricsObserver.ObserveDispatch(DirWrite, false)

	snap := m.Snapshot()
	if snap.SendOps != 1 {
		t.Errorf("Expected 1 send op from observer, got %d", snap.SendOps)
	}
	if snap.RecvOps != 1 {
		t.Errorf("Expected 1 recv op from observer, got %d", snap.RecvOps)
	}
	if snap.SendBytes != 1024 {
		t.Errorf("Expected 1024 send bytes from observer, got %d", snap.SendBytes)
	}
	if snap.RecvBytes != 2048 {
		t.Errorf("Expected 2048 recv bytes from observer, got %d", snap.RecvBytes)
	}
	if snap.Posts != 1 {
		t.Errorf("Expected 1 post from observer, got %d", snap.Posts)
	}
	if snap.Dispatches != 1 {
		t.Errorf("Expected 1 dispatch from observer, got %d", snap.Dispatches)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	// 50 ops at 500us, 49 ops at 5ms, 1 op at 50ms (P99)
	for i := 0; i < 50; i++ {
		m.RecordSend(1024, 500_000, true)
	}
	for i := 0; i < 49; i++ {
		m.RecordRecv(1024, 5_000_000, true)
	}
	m.RecordRecv(1024, 50_000_000, true)

	snap := m.Snapshot()

	if snap.TotalOps != 100 {
		t.Errorf("Expected 100 total ops, got %d", snap.TotalOps)
	}

	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}

	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}
