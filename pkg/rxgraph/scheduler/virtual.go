package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
)

// VirtualScheduler is a deterministic scheduler whose clock only advances
// as queued work is drained. Draining happens synchronously on the goroutine
// that calls Start, AdvanceTo or AdvanceBy.
//
// Scheduling is safe from any goroutine; draining is single-threaded.
type VirtualScheduler struct {
	mu    sync.Mutex
	clock Time
	seq   uint64
	queue taskQueue

	draining atomic.Bool
	drainer  atomic.Int64
	stopped  atomic.Bool

	opts options
}

// Compile-time interface check.
var _ Scheduler = (*VirtualScheduler)(nil)

// NewVirtualScheduler creates a virtual scheduler with its clock at zero.
func NewVirtualScheduler(opts ...Option) *VirtualScheduler {
	o := defaultOptions("virtual")
	for _, opt := range opts {
		opt(&o)
	}
	return &VirtualScheduler{opts: o}
}

// Now returns the virtual clock.
func (v *VirtualScheduler) Now() Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clock
}

// Schedule implements Scheduler.
func (v *VirtualScheduler) Schedule(action func()) *Task {
	checkAction(action)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enqueueLocked(v.clock, action)
}

// ScheduleAbsolute implements Scheduler.
func (v *VirtualScheduler) ScheduleAbsolute(due Time, action func()) *Task {
	checkAction(action)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enqueueLocked(due, action)
}

// ScheduleRelative implements Scheduler.
func (v *VirtualScheduler) ScheduleRelative(delay time.Duration, action func()) *Task {
	checkAction(action)
	if delay < 0 {
		delay = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enqueueLocked(v.clock.Add(delay), action)
}

func (v *VirtualScheduler) enqueueLocked(due Time, action func()) *Task {
	if due < v.clock {
		due = v.clock
	}
	v.seq++
	t := &Task{due: due, seq: v.seq, action: action, owner: v}
	v.queue.push(t)
	return t
}

func (v *VirtualScheduler) remove(t *Task) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queue.delete(t)
}

// InContext reports true when nothing is draining, or when called from the
// draining goroutine.
func (v *VirtualScheduler) InContext() bool {
	if !v.draining.Load() {
		return true
	}
	return v.drainer.Load() == goid.Get()
}

// Pending returns the number of queued tasks.
func (v *VirtualScheduler) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}

// Start drains the queue until it is empty or Stop is called.
func (v *VirtualScheduler) Start() {
	v.drain(0, false)
}

// Stop makes the current drain return after the running task completes.
func (v *VirtualScheduler) Stop() {
	v.stopped.Store(true)
}

// AdvanceTo runs every task due at or before t, then sets the clock to t.
// Panics with ErrTimeBackwards if t is before the current clock.
func (v *VirtualScheduler) AdvanceTo(t Time) {
	if t < v.Now() {
		panic(ErrTimeBackwards)
	}
	v.drain(t, true)
}

// AdvanceBy advances the clock by d, running due work on the way.
func (v *VirtualScheduler) AdvanceBy(d time.Duration) {
	v.AdvanceTo(v.Now().Add(d))
}

// Sleep moves the clock forward by d without running any work.
func (v *VirtualScheduler) Sleep(d time.Duration) {
	if d < 0 {
		panic(ErrTimeBackwards)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clock = v.clock.Add(d)
}

func (v *VirtualScheduler) drain(limit Time, bounded bool) {
	if !v.draining.CompareAndSwap(false, true) {
		panic(ErrReentrant)
	}
	v.drainer.Store(goid.Get())
	v.stopped.Store(false)
	defer func() {
		v.drainer.Store(0)
		v.draining.Store(false)
	}()

	for !v.stopped.Load() {
		v.mu.Lock()
		t := v.queue.peek()
		if t == nil || (bounded && t.due > limit) {
			v.mu.Unlock()
			break
		}
		v.queue.pop()
		if t.due > v.clock {
			v.clock = t.due
		}
		v.mu.Unlock()

		t.execute(&v.opts)
	}

	if bounded && !v.stopped.Load() {
		v.mu.Lock()
		if v.clock < limit {
			v.clock = limit
		}
		v.mu.Unlock()
	}
}
