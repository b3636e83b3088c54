// Package waitset provides the readiness-multiplexing primitive the reactor
// waits on: an epoll instance plus an eventfd-based notification channel
// used to interrupt a blocked Wait from another goroutine.
package waitset

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/go-reactor/internal/logging"
)

// Event flags, expressed independently of unix.EPOLLIN/EPOLLOUT so that
// callers (the reactor package) don't need to import golang.org/x/sys/unix
// just to build an interest mask.
const (
	Readable uint32 = 1 << iota
	Writable
)

func toEpollMask(flags uint32) uint32 {
	var m uint32
	if flags&Readable != 0 {
		m |= unix.EPOLLIN
	}
	if flags&Writable != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func fromEpollMask(m uint32) uint32 {
	var flags uint32
	if m&unix.EPOLLIN != 0 {
		flags |= Readable
	}
	if m&unix.EPOLLOUT != 0 {
		flags |= Writable
	}
	return flags
}

// Event is one readiness notification returned by Wait.
type Event struct {
	FD     int
	Events uint32 // Readable | Writable
}

// Config configures a WaitSet.
type Config struct {
	// MaxEvents bounds the epoll_wait result buffer. Each Wait call still
	// returns one event (batch size 1); the other events reported by the
	// same epoll_wait call are buffered and returned by the following Wait
	// calls.
	MaxEvents int
}

// DefaultConfig returns sane defaults for Config.
func DefaultConfig() Config {
	return Config{MaxEvents: 64}
}

// WaitSet is the readiness-multiplexing collaborator the reactor drives.
// It is not safe for concurrent use with itself; the reactor serializes
// Add/Modify/Delete/Notify calls with its own lock and calls Wait with that
// lock released. Notify is safe to call concurrently with Wait (its entire
// purpose is waking a Wait call blocked on another goroutine).
type WaitSet interface {
	// Add registers fd for the given interest mask.
	Add(fd int, events uint32) error
	// Modify changes fd's interest mask. Returns unix.ENOENT if fd is not
	// currently registered (the caller, mirroring the original
	// io_service_run, falls back to Add in that case).
	Modify(fd int, events uint32) error
	// Delete deregisters fd. Errors are conventionally ignored by callers:
	// a fd already closed or already removed is not exceptional here.
	Delete(fd int) error
	// Wait blocks until one event is ready, or returns a single event from
	// a prior kernel-reported batch if one is buffered locally. It returns
	// at most one Event per call, mirroring epoll_wait(fd, &ev, 1, -1).
	Wait() (Event, error)
	// NotifyFD returns the fd used for the internal notification channel,
	// so the reactor can recognize wakeups that are not socket readiness.
	NotifyFD() int
	// Notify wakes a blocked Wait call. Safe to call concurrently with Wait.
	Notify() error
	// DrainNotifications consumes one unit from the notification channel.
	// EFD_SEMAPHORE semantics mean each Notify call queues exactly one unit
	// and each DrainNotifications call consumes exactly one, regardless of
	// how many are queued; callers that coalesce multiple Notify calls into
	// one rebuild pass (as the reactor does) only need to drain once per
	// wakeup, not once per outstanding unit.
	DrainNotifications() (uint64, error)
	// Close releases the underlying epoll and eventfd descriptors.
	Close() error
}

type epollWaitSet struct {
	epollFD    int
	notifyFD   int
	maxEvents  int
	buf        []unix.EpollEvent
	pending    []unix.EpollEvent
}

// New creates a WaitSet backed by Linux epoll and an EFD_SEMAPHORE eventfd.
func New(cfg Config) (WaitSet, error) {
	logger := logging.Default()

	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultConfig().MaxEvents
	}

	epollFD, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		logger.Error("epoll_create1 failed", "error", err)
		return nil, err
	}

	notifyFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_SEMAPHORE|unix.EFD_NONBLOCK)
	if err != nil {
		logger.Error("eventfd failed", "error", err)
		unix.Close(epollFD)
		return nil, err
	}

	ws := &epollWaitSet{
		epollFD:   epollFD,
		notifyFD:  notifyFD,
		maxEvents: cfg.MaxEvents,
		buf:       make([]unix.EpollEvent, cfg.MaxEvents),
	}

	if err := unix.EpollCtl(epollFD, unix.EPOLL_CTL_ADD, notifyFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(notifyFD),
	}); err != nil {
		logger.Error("epoll_ctl add notify fd failed", "error", err)
		unix.Close(epollFD)
		unix.Close(notifyFD)
		return nil, err
	}

	logger.Debug("wait set created", "epoll_fd", epollFD, "notify_fd", notifyFD, "max_events", cfg.MaxEvents)
	return ws, nil
}

func (w *epollWaitSet) Add(fd int, events uint32) error {
	return unix.EpollCtl(w.epollFD, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: toEpollMask(events),
		Fd:     int32(fd),
	})
}

func (w *epollWaitSet) Modify(fd int, events uint32) error {
	return unix.EpollCtl(w.epollFD, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: toEpollMask(events),
		Fd:     int32(fd),
	})
}

func (w *epollWaitSet) Delete(fd int) error {
	return unix.EpollCtl(w.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks in epoll_wait for exactly one event, buffering any additional
// events the kernel reported in the same call for the next Wait invocation.
// This keeps the reactor's "batch size of 1" dispatch discipline while still
// letting a single syscall pick up several ready fds when the kernel offers
// them.
func (w *epollWaitSet) Wait() (Event, error) {
	if len(w.pending) == 0 {
		n, err := unix.EpollWait(w.epollFD, w.buf, -1)
		if err != nil {
			return Event{}, err
		}
		w.pending = append(w.pending, w.buf[:n]...)
	}

	if len(w.pending) == 0 {
		return Event{}, nil
	}

	ev := w.pending[0]
	w.pending = w.pending[1:]

	return Event{FD: int(ev.Fd), Events: fromEpollMask(ev.Events)}, nil
}

func (w *epollWaitSet) NotifyFD() int {
	return w.notifyFD
}

func (w *epollWaitSet) Notify() error {
	return unix.Write(w.notifyFD, []byte{1, 0, 0, 0, 0, 0, 0, 0})
}

func (w *epollWaitSet) DrainNotifications() (uint64, error) {
	var buf [8]byte
	_, err := unix.Read(w.notifyFD, buf[:])
	if err != nil {
		return 0, err
	}
	v := uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24 |
		uint64(buf[4])<<32 | uint64(buf[5])<<40 | uint64(buf[6])<<48 | uint64(buf[7])<<56
	return v, nil
}

func (w *epollWaitSet) Close() error {
	err1 := unix.Close(w.notifyFD)
	err2 := unix.Close(w.epollFD)
	if err1 != nil {
		return err1
	}
	return err2
}
