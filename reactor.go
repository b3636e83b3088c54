// Package reactor implements a single-threaded, readiness-based
// asynchronous I/O runtime: post read/write intents for file descriptors,
// block in Run until they become ready, and dispatch the registered
// callbacks. It is the Go counterpart of a small epoll/eventfd reactor
// (io_service in the original C), generalized into a public API with
// structured errors, metrics, and pluggable observation.
package reactor

import (
	"sync"

	"github.com/behrlich/go-reactor/internal/logging"
	"github.com/behrlich/go-reactor/internal/table"
	"github.com/behrlich/go-reactor/internal/waitset"
)

// Config configures a Reactor.
type Config struct {
	// MaxEvents bounds the wait-set's internal epoll_wait batch buffer.
	MaxEvents int
	// Observer receives metrics callbacks for reactor events (posts,
	// removes, dispatches, wakeups). SRR completions are reported to the
	// Observer given to the SRR engine. Defaults to NoOpObserver.
	Observer Observer
	// Logger overrides the package default logger.
	Logger *logging.Logger
}

// DefaultConfig returns sane defaults for Config.
func DefaultConfig() Config {
	return Config{MaxEvents: DefaultMaxEvents, Observer: NoOpObserver{}}
}

// Reactor is a single-threaded readiness multiplexer. Every exported method
// except Run and Close is safe to call from any goroutine; Run must be
// called from exactly one goroutine at a time and callbacks it invokes may
// freely call Post, Remove, or Stop (the reactor's internal lock is never
// held during a callback).
type Reactor struct {
	mu       sync.Mutex
	allowNew bool
	running  bool
	aborting bool

	table *table.Table
	ws    waitset.WaitSet

	observer Observer
	logger   *logging.Logger
}

// New creates a Reactor: an empty intent table, an epoll wait-set, and an
// eventfd notification channel registered for read-readiness. Equivalent to
// the original's io_service_init.
func New(cfg Config) (*Reactor, error) {
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if cfg.Observer == nil {
		cfg.Observer = NoOpObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	ws, err := waitset.New(waitset.Config{MaxEvents: cfg.MaxEvents})
	if err != nil {
		return nil, WrapError("init", err)
	}

	r := &Reactor{
		allowNew: true,
		running:  false,
		table:    table.New(),
		ws:       ws,
		observer: cfg.Observer,
		logger:   logger,
	}

	logger.Debug("reactor created", "max_events", cfg.MaxEvents)
	return r, nil
}

// Post adds an intent for fd/dir. A no-op (not an error) if allow_new is
// false, fn is nil, or a job is already installed for this exact (fd, dir)
// slot — an existing intent is never silently overwritten. If the reactor
// is currently running, the notification channel is nudged so Run picks up
// the new subscription on its next iteration.
func (r *Reactor) Post(fd int, dir Direction, oneshot bool, fn JobFunc, ctx any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.allowNew || fn == nil {
		r.observer.ObservePost(false)
		return
	}

	installed := r.table.Install(fd, table.Dir(dir), oneshot, fn, ctx)
	r.observer.ObservePost(installed)
	if !installed {
		return
	}

	if r.running {
		if err := r.ws.Notify(); err != nil {
			r.logger.Error("notify failed", "error", err)
		}
	}
}

// Remove clears the intent at fd/dir only if it currently holds exactly the
// pair (fn, ctx); a missing or mismatched entry is a silent no-op. Nudges
// the notification channel if the reactor is running and something was
// actually removed.
func (r *Reactor) Remove(fd int, dir Direction, fn JobFunc, ctx any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.table.Remove(fd, table.Dir(dir), fn, ctx)
	if !removed {
		return
	}
	r.observer.ObserveRemove()

	if r.table.Get(fd) == nil {
		// The entry emptied and was dropped from the table, so the rebuild
		// pass will not see it; unsubscribe the fd here.
		if err := r.ws.Delete(fd); err != nil {
			r.logger.Debug("delete on removed entry failed", "fd", fd, "error", err)
		}
	}

	if r.running {
		if err := r.ws.Notify(); err != nil {
			r.logger.Error("notify failed", "error", err)
		}
	}
}

// Stop requests the reactor loop to exit. If waitPending is true, Run
// continues in drain mode until the intent table is empty (new Posts are
// refused but outstanding oneshots are still allowed to fire); if false,
// Run exits at the next loop iteration regardless of outstanding intents.
// Stop may be called before Run — the abort request is recorded independently
// of the loop's running flag, so it is never clobbered by Run's startup.
func (r *Reactor) Stop(waitPending bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.allowNew = false
	if !waitPending {
		r.aborting = true
	}

	if err := r.ws.Notify(); err != nil {
		r.logger.Error("notify failed", "error", err)
	}
}

// Close releases the wait-set and notification channel. Undefined if called
// while Run is executing.
func (r *Reactor) Close() error {
	return r.ws.Close()
}

// directions enumerates directions in the fixed order the spec requires
// when more than one bit is set on a single event: READ then WRITE.
var directions = [2]Direction{DirRead, DirWrite}

func entryMask(e *table.Entry) uint32 {
	var mask uint32
	if e.Jobs[table.DirRead].Fn != nil {
		mask |= waitset.Readable
	}
	if e.Jobs[table.DirWrite].Fn != nil {
		mask |= waitset.Writable
	}
	return mask
}

func dirFlag(dir Direction) uint32 {
	if dir == DirRead {
		return waitset.Readable
	}
	return waitset.Writable
}

// Run enters the reactor loop: subscribes every currently registered fd,
// then blocks in the wait-set and dispatches at most one event per wake
// until Stop causes the loop to exit (immediately for stop(false), once the
// intent table drains for stop(true)). Must be called from exactly one
// goroutine at a time.
func (r *Reactor) Run() error {
	r.mu.Lock()

	r.table.Each(func(e *table.Entry) {
		if err := r.ws.Add(e.FD, entryMask(e)); err != nil {
			r.logger.Error("initial subscribe failed", "fd", e.FD, "error", err)
		}
	})

	r.running = true

	for r.running {
		r.mu.Unlock()
		ev, err := r.ws.Wait()
		r.mu.Lock()

		if err != nil {
			r.observer.ObserveSpuriousWakeup()
			continue
		}

		if ev.FD == r.ws.NotifyFD() {
			if _, err := r.ws.DrainNotifications(); err != nil {
				r.logger.Error("drain notification failed", "error", err)
			}
			r.observer.ObserveNotifierRebuild()

			if r.aborting || (!r.allowNew && r.table.Len() == 0) {
				r.running = false
			}

			r.table.Each(func(e *table.Entry) {
				mask := entryMask(e)
				if mask == 0 {
					if err := r.ws.Delete(e.FD); err != nil {
						r.logger.Debug("delete on empty entry failed", "fd", e.FD, "error", err)
					}
					r.table.Delete(e.FD)
					return
				}
				if err := r.ws.Modify(e.FD, mask); err != nil {
					if err := r.ws.Add(e.FD, mask); err != nil {
						r.logger.Error("resubscribe failed", "fd", e.FD, "error", err)
					}
				}
			})

			continue
		}

		for _, dir := range directions {
			if ev.Events&dirFlag(dir) == 0 {
				continue
			}

			job, ok, dropped := r.table.Fire(ev.FD, table.Dir(dir))
			if !ok {
				continue
			}

			if dropped {
				if err := r.ws.Delete(ev.FD); err != nil {
					r.logger.Debug("delete on oneshot-emptied entry failed", "fd", ev.FD, "error", err)
				}
			}

			fn, _ := job.Fn.(JobFunc)
			r.observer.ObserveDispatch(dir, job.Oneshot)

			r.mu.Unlock()
			if fn != nil {
				fn(ev.FD, dir, job.Ctx)
			}
			r.mu.Lock()
		}

		// In drain mode the loop ends as soon as the last intent has been
		// consumed, without waiting for another notification.
		if !r.allowNew && r.table.Len() == 0 {
			r.running = false
		}
	}

	r.mu.Unlock()
	return nil
}
