// Package rxtest provides a virtual-time harness for testing rxgraph
// operators: a deterministic scheduler, hot and cold test observables with
// subscription logs, and a recording observer.
//
// Example:
//
//	s := rxtest.NewTestScheduler()
//	xs := rxtest.Hot(s,
//	    rxtest.OnNext(210, 1),
//	    rxtest.OnNext(220, 2),
//	    rxtest.OnCompleted[int](230))
//	res := rxtest.Start(s, func() rxgraph.Observable[int] {
//	    return rxgraph.Sum[int](xs)
//	})
//	// res.Messages() == [OnNext(3)@230, OnCompleted()@230]
package rxtest

import (
	"context"
	"fmt"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// Default instants of Start.
const (
	// Created is when the observable under test is built.
	Created scheduler.Time = 100
	// Subscribed is when it is subscribed and initialized.
	Subscribed scheduler.Time = 200
	// Disposed is when the subscription is disposed.
	Disposed scheduler.Time = 1000
)

// TestScheduler is a VirtualScheduler with helpers for running operator
// graphs at fixed instants.
type TestScheduler struct {
	*scheduler.VirtualScheduler
}

// NewTestScheduler creates a test scheduler with its clock at zero.
func NewTestScheduler(opts ...scheduler.Option) *TestScheduler {
	return &TestScheduler{VirtualScheduler: scheduler.NewVirtualScheduler(opts...)}
}

// Context returns a root context for graphs running on s.
func (s *TestScheduler) Context(opts ...rxgraph.Option) rxgraph.Context {
	return rxgraph.NewContext(context.Background(), s, opts...)
}

// Initialize subscribes o to source and initializes the resulting graph on
// s. It panics if initialization fails, which only happens on a bad
// checkpoint.
func Initialize[T any](s *TestScheduler, source rxgraph.Observable[T], o rxgraph.Observer[T], opts ...rxgraph.InitOption) rxgraph.Subscription {
	sub := source.Subscribe(o)
	if _, err := rxgraph.Initialize(s.Context(), sub, opts...); err != nil {
		panic(fmt.Sprintf("rxtest: initialize: %v", err))
	}
	return sub
}

// Start runs create at Created, subscribes at Subscribed and disposes at
// Disposed, draining s, and returns what was observed.
func Start[T any](s *TestScheduler, create func() rxgraph.Observable[T]) *Observer[T] {
	return StartAt(s, create, Created, Subscribed, Disposed)
}

// StartAt is Start with explicit instants.
func StartAt[T any](s *TestScheduler, create func() rxgraph.Observable[T], created, subscribed, disposed scheduler.Time) *Observer[T] {
	obs := NewObserver[T](s)
	var (
		source rxgraph.Observable[T]
		sub    rxgraph.Subscription
	)
	s.ScheduleAbsolute(created, func() { source = create() })
	s.ScheduleAbsolute(subscribed, func() { sub = Initialize(s, source, obs) })
	s.ScheduleAbsolute(disposed, func() { sub.Dispose() })
	s.Start()
	return obs
}

// Checkpoint reports what StartWithCheckpoint saved.
type Checkpoint struct {
	// Container holds the saved state; nil if the first graph had already
	// terminated at the save instant.
	Container *checkpoint.Container
	// Nodes is the number of stateful nodes saved.
	Nodes int
}

// StartWithCheckpoint subscribes a graph built by create at Subscribed,
// saves it at saveAt and disposes it, then builds a second graph with create
// and initializes it from the saved state at loadAt. The second graph is
// disposed at Disposed. Both graphs report to the same observer, so the
// result reads as one stream with the events between saveAt and loadAt
// missing.
//
// If the first graph terminated before saveAt there is nothing to resume and
// no second graph is built.
func StartWithCheckpoint[T any](
	s *TestScheduler,
	create func() rxgraph.Observable[T],
	saveAt, loadAt scheduler.Time,
	opts ...checkpoint.ContainerOption,
) (*Observer[T], *Checkpoint) {
	if loadAt < saveAt {
		panic("rxtest: loadAt before saveAt")
	}
	obs := NewObserver[T](s)
	cp := &Checkpoint{}
	var first, second rxgraph.Subscription

	s.ScheduleAbsolute(Subscribed, func() { first = Initialize(s, create(), obs) })
	s.ScheduleAbsolute(saveAt, func() {
		if first.Disposed() {
			return
		}
		c := checkpoint.NewContainer(opts...)
		n, err := rxgraph.Save(first, c)
		if err != nil {
			panic(fmt.Sprintf("rxtest: save: %v", err))
		}
		cp.Container, cp.Nodes = c, n
		first.Dispose()
	})
	s.ScheduleAbsolute(loadAt, func() {
		if cp.Container == nil {
			return
		}
		second = Initialize(s, create(), obs, rxgraph.WithState(cp.Container))
	})
	s.ScheduleAbsolute(Disposed, func() {
		if first != nil {
			first.Dispose()
		}
		if second != nil {
			second.Dispose()
		}
	})
	s.Start()
	return obs, cp
}
