package rxgraph

import (
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

type delayed[T any] struct {
	due   scheduler.Time
	value T
	done  bool
}

type delayItem[T any] struct {
	Remaining int64 `json:"remaining"`
	Value     T     `json:"value,omitempty"`
	Done      bool  `json:"done,omitempty"`
}

type delaySink[T any] struct {
	Sink[T]
	d       time.Duration
	pending []delayed[T]
	timer   *scheduler.Task
	loaded  []delayItem[T]
}

// Delay shifts every value and the completion of src by d. Errors are
// forwarded immediately and drop whatever is still pending.
func Delay[T any](src Observable[T], d time.Duration) Observable[T] {
	requireArg(src != nil, "Delay", "src", "must not be nil")
	requireArg(d >= 0, "Delay", "d", "must not be negative")
	return unary[T, T](src, func() *delaySink[T] {
		return &delaySink[T]{d: d}
	})
}

func (s *delaySink[T]) Start() {
	if s.loaded == nil {
		return
	}
	// src had already completed; its rebuilt subscription must not replay.
	if n := len(s.loaded); n > 0 && s.loaded[n-1].Done {
		for _, in := range s.Inputs() {
			in.Dispose()
		}
	}
	now := s.Now()
	for _, it := range s.loaded {
		s.pending = append(s.pending, delayed[T]{
			due:   now.Add(time.Duration(it.Remaining)),
			value: it.Value,
			done:  it.Done,
		})
	}
	s.loaded = nil
	s.arm()
}

func (s *delaySink[T]) push(it delayed[T]) {
	s.pending = append(s.pending, it)
	if s.timer == nil {
		s.arm()
	}
}

func (s *delaySink[T]) arm() {
	if len(s.pending) == 0 {
		return
	}
	s.timer = s.ScheduleAt(s.pending[0].due, s.drain)
}

// drain emits every item that is due, in arrival order.
func (s *delaySink[T]) drain() {
	s.timer = nil
	now := s.Now()
	for len(s.pending) > 0 && s.pending[0].due <= now {
		it := s.pending[0]
		s.pending = s.pending[1:]
		if it.done {
			s.ForwardCompleted()
			return
		}
		s.ForwardNext(it.value)
	}
	s.arm()
}

func (s *delaySink[T]) OnNext(v T) {
	if s.Accepting() {
		s.push(delayed[T]{due: s.Now().Add(s.d), value: v})
	}
}

func (s *delaySink[T]) OnError(err error) {
	if s.Accepting() {
		s.pending = nil
		s.ForwardError(err)
	}
}

func (s *delaySink[T]) OnCompleted() {
	if s.Accepting() {
		s.push(delayed[T]{due: s.Now().Add(s.d), done: true})
	}
}

func (s *delaySink[T]) SaveState(w checkpoint.StateWriter) error {
	if s.loaded != nil {
		return w.Write(s.loaded)
	}
	now := s.Now()
	items := make([]delayItem[T], 0, len(s.pending))
	for _, it := range s.pending {
		items = append(items, delayItem[T]{
			Remaining: int64(relative(it.due, now)),
			Value:     it.value,
			Done:      it.done,
		})
	}
	return w.Write(items)
}

func (s *delaySink[T]) LoadState(r checkpoint.StateReader) error {
	var items []delayItem[T]
	found, err := r.Read(&items)
	if err != nil || !found {
		return err
	}
	if items == nil {
		items = []delayItem[T]{}
	}
	s.loaded = items
	return nil
}
