package rxtest

import (
	"fmt"
	"sync"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// Recorded is a notification stamped with the virtual time it was observed
// (or, for test observables, is to be produced) at.
type Recorded[T any] struct {
	Time  scheduler.Time
	Value rxgraph.Notification[T]
}

// String formats r as "OnNext(v)@t".
func (r Recorded[T]) String() string {
	return fmt.Sprintf("%v@%d", r.Value, r.Time)
}

// OnNext records v at t.
func OnNext[T any](t scheduler.Time, v T) Recorded[T] {
	return Recorded[T]{Time: t, Value: rxgraph.NextNotification(v)}
}

// OnError records err at t.
func OnError[T any](t scheduler.Time, err error) Recorded[T] {
	return Recorded[T]{Time: t, Value: rxgraph.ErrorNotification[T](err)}
}

// OnCompleted records completion at t.
func OnCompleted[T any](t scheduler.Time) Recorded[T] {
	return Recorded[T]{Time: t, Value: rxgraph.CompletedNotification[T]()}
}

// Observer records every notification with the scheduler clock.
type Observer[T any] struct {
	s *TestScheduler

	mu       sync.Mutex
	messages []Recorded[T]
}

// NewObserver creates an observer recording on s's clock.
func NewObserver[T any](s *TestScheduler) *Observer[T] {
	return &Observer[T]{s: s}
}

func (o *Observer[T]) record(n rxgraph.Notification[T]) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, Recorded[T]{Time: o.s.Now(), Value: n})
}

// OnNext implements rxgraph.Observer.
func (o *Observer[T]) OnNext(v T) { o.record(rxgraph.NextNotification(v)) }

// OnError implements rxgraph.Observer.
func (o *Observer[T]) OnError(err error) { o.record(rxgraph.ErrorNotification[T](err)) }

// OnCompleted implements rxgraph.Observer.
func (o *Observer[T]) OnCompleted() { o.record(rxgraph.CompletedNotification[T]()) }

// Messages returns a copy of everything recorded so far.
func (o *Observer[T]) Messages() []Recorded[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Recorded[T], len(o.messages))
	copy(out, o.messages)
	return out
}

// Values returns the values of the recorded Next notifications.
func (o *Observer[T]) Values() []T {
	var out []T
	for _, m := range o.Messages() {
		if m.Value.Kind == rxgraph.KindNext {
			out = append(out, m.Value.Value)
		}
	}
	return out
}
