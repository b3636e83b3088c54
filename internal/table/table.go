// Package table implements the reactor's per-fd intent table: for each
// registered file descriptor it tracks which directions (read/write) have an
// outstanding job and whether that job is oneshot or persistent.
//
// Table is not safe for concurrent use; callers (the reactor) serialize
// access with their own lock, matching the original io_service's single
// object_mutex guarding its lookup_table.
package table

import "reflect"

// Dir is a readiness direction. Kept as a plain int (rather than importing
// the root reactor package, which would create an import cycle) and mapped
// 1:1 onto reactor.Direction by the caller.
type Dir int

const (
	DirRead Dir = iota
	DirWrite
	dirCount
)

// Job is one registered callback slot. Fn is stored as the caller's actual
// function value (any, not a wrapping closure) so that identity comparisons
// in Remove see the real code pointer: a fresh closure built from the same
// literal on every call would make reflect.Value.Pointer() return the same
// address for unrelated calls and defeat the identity check entirely.
type Job struct {
	Fn      any
	Ctx     any
	Oneshot bool
}

// Entry is one fd's row in the table: its job slots, one per direction. The
// fd's interest mask is not stored; it is derived from which slots hold a
// job.
type Entry struct {
	FD   int
	Jobs [dirCount]Job
}

// interested reports whether the entry has any job installed for dir.
func (e *Entry) interested(dir Dir) bool {
	return e.Jobs[dir].Fn != nil
}

// Empty reports whether the entry has no jobs in either direction, meaning
// it should be dropped from the table and deregistered from the wait set.
func (e *Entry) Empty() bool {
	return !e.interested(DirRead) && !e.interested(DirWrite)
}

// Table is the fd -> Entry lookup table. The original C implementation used
// an intrusive linked list scanned linearly on every post/remove/dispatch;
// a map is the idiomatic Go replacement and preserves the same semantics
// (stable entries, O(1) membership) without the pointer-stability trick.
type Table struct {
	entries map[int]*Entry
}

// New creates an empty Table.
func New() *Table {
	return &Table{entries: make(map[int]*Entry)}
}

// Get returns the entry for fd, or nil if none exists.
func (t *Table) Get(fd int) *Entry {
	return t.entries[fd]
}

// GetOrCreate returns the entry for fd, creating an empty one if necessary.
// The bool return reports whether a new entry was created.
func (t *Table) GetOrCreate(fd int) (*Entry, bool) {
	if e, ok := t.entries[fd]; ok {
		return e, false
	}
	e := &Entry{FD: fd}
	t.entries[fd] = e
	return e, true
}

// Delete removes fd's entry entirely.
func (t *Table) Delete(fd int) {
	delete(t.entries, fd)
}

// Len returns the number of fds currently tracked.
func (t *Table) Len() int {
	return len(t.entries)
}

// Install places a job into entry fd/dir if that slot is empty. It reports
// whether the job was installed (false if the slot was already occupied).
func (t *Table) Install(fd int, dir Dir, oneshot bool, fn any, ctx any) bool {
	e, _ := t.GetOrCreate(fd)
	if e.Jobs[dir].Fn != nil {
		return false
	}
	e.Jobs[dir] = Job{Fn: fn, Ctx: ctx, Oneshot: oneshot}
	return true
}

// Remove clears the job at fd/dir only if it matches fn/ctx identity,
// reporting whether anything was removed. This mirrors the C
// implementation's pointer-equality check in io_service_remove_job: the
// function is compared by its code pointer (reflect.Value.Pointer) and the
// context by deep equality, since arbitrary ctx values are not guaranteed
// comparable with ==.
func (t *Table) Remove(fd int, dir Dir, fn any, ctx any) bool {
	e := t.Get(fd)
	if e == nil || e.Jobs[dir].Fn == nil {
		return false
	}
	if !sameJob(e.Jobs[dir], fn, ctx) {
		return false
	}
	e.Jobs[dir] = Job{}
	if e.Empty() {
		t.Delete(fd)
	}
	return true
}

func sameJob(job Job, fn any, ctx any) bool {
	if job.Fn == nil || fn == nil {
		return false
	}
	if reflect.ValueOf(job.Fn).Pointer() != reflect.ValueOf(fn).Pointer() {
		return false
	}
	return reflect.DeepEqual(job.Ctx, ctx)
}

// Fire consumes the job at fd/dir for dispatch: it returns the job (zero
// value if none is installed) and, if the job is oneshot, clears the slot
// before returning. dropped reports whether the fd's entire entry became
// empty as a result and was removed from the table — the caller must then
// also deregister fd from the wait-set immediately (matching the original
// io_service_run, which issues the epoll_ctl DEL inline in the dispatch
// branch rather than waiting for the next notification-rebuild pass).
func (t *Table) Fire(fd int, dir Dir) (job Job, ok bool, dropped bool) {
	e := t.Get(fd)
	if e == nil {
		return Job{}, false, false
	}
	job = e.Jobs[dir]
	if job.Fn == nil {
		return Job{}, false, false
	}
	if job.Oneshot {
		e.Jobs[dir] = Job{}
		if e.Empty() {
			t.Delete(fd)
			dropped = true
		}
	}
	return job, true, dropped
}

// Each calls fn for every entry in the table. Order is unspecified (map
// iteration), matching the fact that the spec only orders directions within
// a single fd's event, not fds relative to each other.
func (t *Table) Each(fn func(*Entry)) {
	for _, e := range t.entries {
		fn(e)
	}
}
