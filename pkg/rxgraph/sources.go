package rxgraph

import (
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// source is a leaf node that produces on the graph scheduler.
type source[T any] struct {
	Sink[T]
	start func(s *source[T])
}

func (s *source[T]) Start() {
	s.start(s)
}

func newSource[T any](start func(s *source[T])) Observable[T] {
	return ObservableFunc[T](func(o Observer[T]) Subscription {
		s := &source[T]{start: start}
		s.SetObserver(o)
		return s
	})
}

// Return emits v and completes.
func Return[T any](v T) Observable[T] {
	return newSource(func(s *source[T]) {
		s.Schedule(0, func() {
			s.ForwardNext(v)
			s.ForwardCompleted()
		})
	})
}

// Empty completes without emitting.
func Empty[T any]() Observable[T] {
	return newSource(func(s *source[T]) {
		s.Schedule(0, s.ForwardCompleted)
	})
}

// Never emits nothing and never terminates.
func Never[T any]() Observable[T] {
	return newSource(func(*source[T]) {})
}

// Throw terminates with err.
func Throw[T any](err error) Observable[T] {
	requireArg(err != nil, "Throw", "err", "must not be nil")
	return newSource(func(s *source[T]) {
		s.Schedule(0, func() { s.ForwardError(err) })
	})
}

type sliceState struct {
	Index int `json:"index"`
}

type sliceSource[T any] struct {
	Sink[T]
	values []T
	index  int
}

// FromSlice emits each element of values as its own scheduled step, then
// completes. The position is checkpointed.
func FromSlice[T any](values []T) Observable[T] {
	return ObservableFunc[T](func(o Observer[T]) Subscription {
		s := &sliceSource[T]{values: values}
		s.SetObserver(o)
		return s
	})
}

func (s *sliceSource[T]) Start() {
	s.Schedule(0, s.step)
}

func (s *sliceSource[T]) step() {
	if s.index >= len(s.values) {
		s.ForwardCompleted()
		return
	}
	v := s.values[s.index]
	s.index++
	s.ForwardNext(v)
	s.Schedule(0, s.step)
}

func (s *sliceSource[T]) SaveState(w checkpoint.StateWriter) error {
	return w.Write(sliceState{Index: s.index})
}

func (s *sliceSource[T]) LoadState(r checkpoint.StateReader) error {
	var st sliceState
	if _, err := r.Read(&st); err != nil {
		return err
	}
	s.index = st.Index
	return nil
}

type timerState struct {
	Remaining int64 `json:"remaining"`
	Count     int64 `json:"count"`
}

// timerSource emits after an initial delay and then, if period > 0, every
// period. Pending time is saved relative to the clock and re-anchored on load.
type timerSource struct {
	Sink[int64]
	due    time.Duration
	period time.Duration

	next   scheduler.Time
	count  int64
	loaded *timerState
}

// Timer emits 0 after d and completes.
func Timer(d time.Duration) Observable[int64] {
	requireArg(d >= 0, "Timer", "d", "must not be negative")
	return newTimer(d, 0)
}

// Interval emits 0, 1, 2, ... every period.
func Interval(period time.Duration) Observable[int64] {
	requireArg(period > 0, "Interval", "period", "must be positive")
	return newTimer(period, period)
}

func newTimer(due, period time.Duration) Observable[int64] {
	return ObservableFunc[int64](func(o Observer[int64]) Subscription {
		s := &timerSource{due: due, period: period}
		s.SetObserver(o)
		return s
	})
}

func (s *timerSource) Start() {
	delay := s.due
	if s.loaded != nil {
		delay = time.Duration(s.loaded.Remaining)
		s.count = s.loaded.Count
	}
	s.next = s.Now().Add(delay)
	s.ScheduleAt(s.next, s.tick)
}

func (s *timerSource) tick() {
	s.ForwardNext(s.count)
	s.count++
	if s.period <= 0 {
		s.ForwardCompleted()
		return
	}
	s.next = s.next.Add(s.period)
	s.ScheduleAt(s.next, s.tick)
}

func (s *timerSource) SaveState(w checkpoint.StateWriter) error {
	remaining := s.next.Sub(s.Now())
	if remaining < 0 {
		remaining = 0
	}
	return w.Write(timerState{Remaining: int64(remaining), Count: s.count})
}

func (s *timerSource) LoadState(r checkpoint.StateReader) error {
	var st timerState
	found, err := r.Read(&st)
	if err != nil || !found {
		return err
	}
	s.loaded = &st
	return nil
}
