package rxgraph

import "github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"

type counterState struct {
	Remaining int `json:"remaining"`
}

type skipSink[T any] struct {
	Sink[T]
	remaining int
}

// Skip drops the first n values. The number still to skip is checkpointed.
func Skip[T any](src Observable[T], n int) Observable[T] {
	requireArg(src != nil, "Skip", "src", "must not be nil")
	requireArg(n >= 0, "Skip", "n", "must not be negative")
	return unary[T, T](src, func() *skipSink[T] {
		return &skipSink[T]{remaining: n}
	})
}

func (s *skipSink[T]) OnNext(v T) {
	if !s.Accepting() {
		return
	}
	if s.remaining > 0 {
		s.remaining--
		return
	}
	s.ForwardNext(v)
}

func (s *skipSink[T]) OnError(err error) {
	if s.Accepting() {
		s.ForwardError(err)
	}
}

func (s *skipSink[T]) OnCompleted() {
	if s.Accepting() {
		s.ForwardCompleted()
	}
}

func (s *skipSink[T]) SaveState(w checkpoint.StateWriter) error {
	return w.Write(counterState{Remaining: s.remaining})
}

func (s *skipSink[T]) LoadState(r checkpoint.StateReader) error {
	st := counterState{Remaining: s.remaining}
	if _, err := r.Read(&st); err != nil {
		return err
	}
	s.remaining = st.Remaining
	return nil
}

type takeSink[T any] struct {
	Sink[T]
	remaining int
}

// Take forwards the first n values and completes. Take(0) completes as soon
// as it starts. The number still to take is checkpointed.
func Take[T any](src Observable[T], n int) Observable[T] {
	requireArg(src != nil, "Take", "src", "must not be nil")
	requireArg(n >= 0, "Take", "n", "must not be negative")
	return unary[T, T](src, func() *takeSink[T] {
		return &takeSink[T]{remaining: n}
	})
}

func (s *takeSink[T]) Start() {
	if s.remaining == 0 {
		s.Schedule(0, s.ForwardCompleted)
	}
}

func (s *takeSink[T]) OnNext(v T) {
	if !s.Accepting() || s.remaining == 0 {
		return
	}
	s.remaining--
	s.ForwardNext(v)
	if s.remaining == 0 {
		s.ForwardCompleted()
	}
}

func (s *takeSink[T]) OnError(err error) {
	if s.Accepting() {
		s.ForwardError(err)
	}
}

func (s *takeSink[T]) OnCompleted() {
	if s.Accepting() {
		s.ForwardCompleted()
	}
}

func (s *takeSink[T]) SaveState(w checkpoint.StateWriter) error {
	return w.Write(counterState{Remaining: s.remaining})
}

func (s *takeSink[T]) LoadState(r checkpoint.StateReader) error {
	st := counterState{Remaining: s.remaining}
	if _, err := r.Read(&st); err != nil {
		return err
	}
	s.remaining = st.Remaining
	return nil
}
