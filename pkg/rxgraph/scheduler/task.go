package scheduler

import (
	"container/heap"
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/observability"
)

const (
	taskPending int32 = iota
	taskRunning
	taskDone
	taskCancelled
)

// taskOwner removes a cancelled task from its queue.
type taskOwner interface {
	remove(t *Task)
}

// Task is a unit of scheduled work. Callers only hold it as a cancellation
// handle; the scheduler's queue owns it.
type Task struct {
	due    Time
	seq    uint64
	action func()
	state  atomic.Int32
	index  int // heap position, guarded by the owner's lock
	owner  taskOwner
}

// Due returns the time the task is scheduled for.
func (t *Task) Due() Time {
	return t.due
}

// Dispose cancels the task. Cancelling before execution removes it from the
// queue; cancelling after execution began is a no-op.
func (t *Task) Dispose() {
	if t.state.CompareAndSwap(taskPending, taskCancelled) && t.owner != nil {
		t.owner.remove(t)
	}
}

// Cancelled reports whether the task was disposed before it ran.
func (t *Task) Cancelled() bool {
	return t.state.Load() == taskCancelled
}

// Done reports whether the task has finished running.
func (t *Task) Done() bool {
	return t.state.Load() == taskDone
}

// execute runs the task, recovering and reporting a panic so the scheduler
// can continue with unrelated work.
func (t *Task) execute(o *options) {
	if !t.state.CompareAndSwap(taskPending, taskRunning) {
		return
	}
	start := time.Now()
	panicked := false
	defer func() {
		t.state.Store(taskDone)
		if r := recover(); r != nil {
			panicked = true
			pe := &PanicError{Due: t.due, Value: r, Stack: string(debug.Stack())}
			observability.LogSchedulerPanic(o.logger, o.name, int64(t.due), pe)
			if o.onPanic != nil {
				o.onPanic(pe)
			}
		}
		o.metrics.RecordTask(context.Background(), o.name, time.Since(start), panicked)
	}()
	t.action()
}

// taskQueue is a min-heap ordered by due time, then enqueue sequence.
type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

func (q taskQueue) peek() *Task {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (q *taskQueue) pop() *Task {
	return heap.Pop(q).(*Task)
}

func (q *taskQueue) push(t *Task) {
	heap.Push(q, t)
}

func (q *taskQueue) delete(t *Task) {
	if t.index >= 0 && t.index < len(*q) && (*q)[t.index] == t {
		heap.Remove(q, t.index)
	}
}

// clear cancels and drops every queued task.
func (q *taskQueue) clear() {
	for _, t := range *q {
		t.state.CompareAndSwap(taskPending, taskCancelled)
		t.index = -1
	}
	*q = nil
}
