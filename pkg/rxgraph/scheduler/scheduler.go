// Package scheduler provides the clocks and work queues that drive every
// operator graph.
//
// Two families of schedulers implement the same Scheduler interface:
//
//   - VirtualScheduler keeps a discrete clock that only moves when work is
//     drained. It gives deterministic, repeatable ordering and is the
//     substrate for the rxtest harness.
//   - PhysicalScheduler owns a pool of worker goroutines. Each graph binds to
//     one LogicalScheduler created from it, which serializes all work for
//     that graph onto a single logical thread at a time.
//
// Both order work strictly by due time and break ties by enqueue order.
// Operators must never read wall-clock time; the scheduler is the only
// source of ordering truth.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/observability"
)

// Time is a point on a scheduler clock measured in ticks.
// One tick is one nanosecond, so time.Duration values convert directly.
type Time int64

// Add returns t shifted by d.
func (t Time) Add(d time.Duration) Time {
	return t + Time(d)
}

// Sub returns the duration t-u.
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(t - u)
}

// Scheduler schedules actions on a logical clock.
// Implementations must be safe for concurrent scheduling.
type Scheduler interface {
	// Now returns the current time of the scheduler clock.
	Now() Time

	// Schedule runs action as soon as possible, after everything already
	// queued for the current instant.
	Schedule(action func()) *Task

	// ScheduleAbsolute runs action at due. A due time in the past runs at Now.
	ScheduleAbsolute(due Time, action func()) *Task

	// ScheduleRelative runs action after delay. Negative delays are treated as zero.
	ScheduleRelative(delay time.Duration, action func()) *Task

	// InContext reports whether the caller may touch graph state without
	// racing work drained by this scheduler.
	InContext() bool
}

// Sentinel errors for scheduler misuse.
var (
	// ErrReentrant indicates a drain was started while the scheduler was already draining.
	ErrReentrant = errors.New("scheduler: already draining")

	// ErrTimeBackwards indicates an attempt to move a virtual clock backwards.
	ErrTimeBackwards = errors.New("scheduler: cannot move clock backwards")

	// ErrNilAction indicates a nil action was scheduled.
	ErrNilAction = errors.New("scheduler: nil action")
)

// PanicError captures a panic raised by a scheduled action.
type PanicError struct {
	// Due is the scheduled time of the action that panicked.
	Due Time
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("scheduled action at %d panicked: %v", e.Due, e.Value)
}

// Option configures a scheduler.
type Option func(*options)

type options struct {
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	onPanic func(*PanicError)
}

func defaultOptions(name string) options {
	return options{
		name:    name,
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
}

// WithName sets the name reported in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger used to report panicking actions.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder for task executions.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithPanicHandler sets a callback invoked when a scheduled action panics.
// The scheduler keeps processing other work regardless.
func WithPanicHandler(fn func(*PanicError)) Option {
	return func(o *options) {
		o.onPanic = fn
	}
}

func checkAction(action func()) {
	if action == nil {
		panic(ErrNilAction)
	}
}
