package rxgraph

import (
	"errors"

	"golang.org/x/exp/constraints"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
)

// ErrEmptySequence indicates Average completed without any values.
var ErrEmptySequence = errors.New("sequence contains no elements")

// Number is the constraint for the numeric aggregates.
type Number interface {
	constraints.Integer | constraints.Float
}

type aggregateState[A any] struct {
	Acc   A   `json:"acc"`
	Count int `json:"count"`
}

// aggregateSink folds values into an accumulator and emits the result on
// completion. The accumulator and count are checkpointed.
type aggregateSink[T, A, R any] struct {
	Sink[R]
	name   string
	acc    A
	count  int
	fold   func(A, T) (A, error)
	result func(A, int) (R, error)
}

func newAggregate[T, A, R any](
	name string,
	src Observable[T],
	seed A,
	fold func(A, T) (A, error),
	result func(A, int) (R, error),
) Observable[R] {
	requireArg(src != nil, name, "src", "must not be nil")
	return unary[T, R](src, func() *aggregateSink[T, A, R] {
		return &aggregateSink[T, A, R]{name: name, acc: seed, fold: fold, result: result}
	})
}

// Aggregate folds every value with fn starting from seed and emits the final
// accumulator when src completes.
func Aggregate[T, A any](src Observable[T], seed A, fn func(A, T) (A, error)) Observable[A] {
	requireArg(fn != nil, "Aggregate", "fn", "must not be nil")
	return newAggregate("aggregate", src, seed, fn, func(acc A, _ int) (A, error) { return acc, nil })
}

// Sum emits the sum of all values when src completes.
func Sum[T Number](src Observable[T]) Observable[T] {
	return newAggregate("sum", src, T(0),
		func(acc T, v T) (T, error) { return acc + v, nil },
		func(acc T, _ int) (T, error) { return acc, nil })
}

// Count emits the number of values when src completes.
func Count[T any](src Observable[T]) Observable[int] {
	return newAggregate("count", src, 0,
		func(acc int, _ T) (int, error) { return acc + 1, nil },
		func(acc int, _ int) (int, error) { return acc, nil })
}

// Average emits the mean of all values when src completes. An empty source
// terminates with ErrEmptySequence.
func Average[T Number](src Observable[T]) Observable[float64] {
	return newAggregate("average", src, float64(0),
		func(acc float64, v T) (float64, error) { return acc + float64(v), nil },
		func(acc float64, n int) (float64, error) {
			if n == 0 {
				return 0, ErrEmptySequence
			}
			return acc / float64(n), nil
		})
}

func (s *aggregateSink[T, A, R]) OnNext(v T) {
	if !s.Accepting() {
		return
	}
	acc, err := invoke(func() (A, error) { return s.fold(s.acc, v) })
	if err != nil {
		s.Fail(s.name, err)
		return
	}
	s.acc = acc
	s.count++
}

func (s *aggregateSink[T, A, R]) OnError(err error) {
	if s.Accepting() {
		s.ForwardError(err)
	}
}

func (s *aggregateSink[T, A, R]) OnCompleted() {
	if !s.Accepting() {
		return
	}
	r, err := invoke(func() (R, error) { return s.result(s.acc, s.count) })
	if err != nil {
		s.ForwardError(err)
		return
	}
	s.ForwardNext(r)
	s.ForwardCompleted()
}

func (s *aggregateSink[T, A, R]) SaveState(w checkpoint.StateWriter) error {
	return w.Write(aggregateState[A]{Acc: s.acc, Count: s.count})
}

func (s *aggregateSink[T, A, R]) LoadState(r checkpoint.StateReader) error {
	var st aggregateState[A]
	found, err := r.Read(&st)
	if err != nil || !found {
		return err
	}
	s.acc, s.count = st.Acc, st.Count
	return nil
}
