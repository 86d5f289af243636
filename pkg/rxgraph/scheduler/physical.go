package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
)

// defaultBatchSize bounds how many due tasks a worker drains from one logical
// scheduler before yielding to others.
const defaultBatchSize = 256

// PhysicalScheduler owns a pool of worker goroutines and a monotonic epoch.
// Work is never submitted to it directly; create a LogicalScheduler per
// graph with NewLogical.
type PhysicalScheduler struct {
	epoch time.Time

	mu     sync.Mutex
	cond   *sync.Cond
	ready  []*LogicalScheduler
	closed bool

	wg   sync.WaitGroup
	opts options
}

// NewPhysicalScheduler starts a worker pool. workers <= 0 uses GOMAXPROCS.
func NewPhysicalScheduler(workers int, opts ...Option) *PhysicalScheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	o := defaultOptions("physical")
	for _, opt := range opts {
		opt(&o)
	}

	p := &PhysicalScheduler{
		epoch: time.Now(),
		opts:  o,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Now returns the ticks elapsed since the scheduler was created.
func (p *PhysicalScheduler) Now() Time {
	return Time(time.Since(p.epoch))
}

// NewLogical creates a logical scheduler bound to this pool.
func (p *PhysicalScheduler) NewLogical(opts ...Option) *LogicalScheduler {
	o := p.opts
	o.name = "logical"
	for _, opt := range opts {
		opt(&o)
	}
	return &LogicalScheduler{parent: p, opts: o}
}

// Close stops the workers and waits for in-flight drains to finish.
// Work still queued on logical schedulers is abandoned.
func (p *PhysicalScheduler) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.ready = nil
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()
	return nil
}

func (p *PhysicalScheduler) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.ready) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		l := p.ready[0]
		p.ready[0] = nil
		p.ready = p.ready[1:]
		p.mu.Unlock()

		l.drain()
	}
}

func (p *PhysicalScheduler) submit(l *LogicalScheduler) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.ready = append(p.ready, l)
	p.mu.Unlock()
	p.cond.Signal()
}

// LogicalScheduler serializes all work for one graph. At most one worker
// drains it at a time, so operators bound to it never see two concurrent
// deliveries.
type LogicalScheduler struct {
	parent *PhysicalScheduler
	opts   options

	mu       sync.Mutex
	queue    taskQueue
	seq      uint64
	timer    *time.Timer
	timerDue Time
	queued   bool // submitted to the pool or currently draining
	disposed bool

	owner atomic.Int64 // goroutine id of the current drainer
}

// Compile-time interface check.
var _ Scheduler = (*LogicalScheduler)(nil)

// Now returns the parent pool's clock.
func (l *LogicalScheduler) Now() Time {
	return l.parent.Now()
}

// Schedule implements Scheduler.
func (l *LogicalScheduler) Schedule(action func()) *Task {
	return l.ScheduleAbsolute(l.Now(), action)
}

// ScheduleRelative implements Scheduler.
func (l *LogicalScheduler) ScheduleRelative(delay time.Duration, action func()) *Task {
	if delay < 0 {
		delay = 0
	}
	return l.ScheduleAbsolute(l.Now().Add(delay), action)
}

// ScheduleAbsolute implements Scheduler.
func (l *LogicalScheduler) ScheduleAbsolute(due Time, action func()) *Task {
	checkAction(action)

	l.mu.Lock()
	l.seq++
	t := &Task{due: due, seq: l.seq, action: action, owner: l}
	if l.disposed {
		t.state.Store(taskCancelled)
		l.mu.Unlock()
		return t
	}
	l.queue.push(t)
	wake := l.wakeLocked()
	l.mu.Unlock()

	if wake {
		l.parent.submit(l)
	}
	return t
}

// InContext reports whether the caller is the goroutine currently draining
// this scheduler.
func (l *LogicalScheduler) InContext() bool {
	return l.owner.Load() == goid.Get()
}

// Pending returns the number of queued tasks.
func (l *LogicalScheduler) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Dispose drops all pending work and stops the wake-up timer.
func (l *LogicalScheduler) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed {
		return
	}
	l.disposed = true
	l.queue.clear()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *LogicalScheduler) remove(t *Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue.delete(t)
}

// wakeLocked decides whether the scheduler must be handed to a worker now,
// arming a timer for the earliest future task otherwise.
func (l *LogicalScheduler) wakeLocked() bool {
	if l.queued || l.disposed {
		return false
	}
	next := l.queue.peek()
	if next == nil {
		return false
	}
	now := l.Now()
	if next.due <= now {
		l.queued = true
		if l.timer != nil {
			l.timer.Stop()
			l.timer = nil
		}
		return true
	}
	if l.timer != nil && l.timerDue <= next.due {
		return false
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timerDue = next.due
	l.timer = time.AfterFunc(next.due.Sub(now), l.onTimer)
	return false
}

func (l *LogicalScheduler) onTimer() {
	l.mu.Lock()
	l.timer = nil
	wake := l.wakeLocked()
	l.mu.Unlock()

	if wake {
		l.parent.submit(l)
	}
}

func (l *LogicalScheduler) drain() {
	l.owner.Store(goid.Get())

	for i := 0; i < defaultBatchSize; i++ {
		l.mu.Lock()
		t := l.queue.peek()
		if t == nil || t.due > l.Now() || l.disposed {
			l.mu.Unlock()
			break
		}
		l.queue.pop()
		l.mu.Unlock()

		t.execute(&l.opts)
	}

	l.owner.Store(0)

	l.mu.Lock()
	l.queued = false
	wake := l.wakeLocked()
	l.mu.Unlock()

	if wake {
		l.parent.submit(l)
	}
}
