package rxgraph

import (
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
)

type throttleState[T any] struct {
	HasValue bool `json:"has_value"`
	Value    T    `json:"value,omitempty"`
}

type throttleSink[T, U any] struct {
	Sink[T]
	selector func(T) (Observable[U], error)

	hasValue bool
	value    T
	gen      int
	duration Subscription
}

// Throttle holds each value until the stream returned for it by
// durationSelector produces or completes, then emits it. A newer value
// replaces the pending one and cancels its duration. Source completion
// emits the pending value, if any, before completing.
func Throttle[T, U any](src Observable[T], durationSelector func(T) (Observable[U], error)) Observable[T] {
	requireArg(src != nil, "Throttle", "src", "must not be nil")
	requireArg(durationSelector != nil, "Throttle", "durationSelector", "must not be nil")
	return unary[T, T](src, func() *throttleSink[T, U] {
		return &throttleSink[T, U]{selector: durationSelector}
	})
}

// ThrottleTime emits a value once span passes without a newer one.
func ThrottleTime[T any](src Observable[T], span time.Duration) Observable[T] {
	requireArg(span >= 0, "ThrottleTime", "span", "must not be negative")
	return Throttle(src, func(T) (Observable[int64], error) {
		return Timer(span), nil
	})
}

// Start resumes the duration of a value restored as pending. The duration
// stream is selected again and loads its own saved state, so a timer
// continues with the ticks it had left.
func (s *throttleSink[T, U]) Start() {
	if s.hasValue {
		s.arm(s.value, true)
	}
}

func (s *throttleSink[T, U]) OnNext(v T) {
	if !s.Accepting() {
		return
	}
	s.hasValue, s.value = true, v
	s.arm(v, false)
}

// arm replaces the current duration with the one selected for v.
func (s *throttleSink[T, U]) arm(v T, restore bool) {
	s.cancel()
	s.gen++
	obs, err := invoke(func() (Observable[U], error) { return s.selector(v) })
	if err == nil && obs == nil {
		err = &ArgumentError{Operator: "Throttle", Arg: "durationSelector", Reason: "returned a nil observable"}
	}
	if err != nil {
		s.Fail("throttle", err)
		return
	}
	s.duration = obs.Subscribe(&throttleDuration[T, U]{parent: s, gen: s.gen})
	if !restore {
		s.InitializeChild(s.duration, 1)
		return
	}
	if err := s.RestoreChild(s.duration, 1); err != nil {
		s.ForwardError(err)
	}
}

func (s *throttleSink[T, U]) cancel() {
	if s.duration == nil {
		return
	}
	s.RemoveInput(s.duration)
	s.duration.Dispose()
	s.duration = nil
}

func (s *throttleSink[T, U]) flush() {
	s.cancel()
	if !s.hasValue {
		return
	}
	v := s.value
	var zero T
	s.hasValue, s.value = false, zero
	s.ForwardNext(v)
}

func (s *throttleSink[T, U]) OnError(err error) {
	if s.Accepting() {
		s.ForwardError(err)
	}
}

func (s *throttleSink[T, U]) OnCompleted() {
	if !s.Accepting() {
		return
	}
	s.flush()
	s.ForwardCompleted()
}

type throttleDuration[T, U any] struct {
	parent *throttleSink[T, U]
	gen    int
}

func (d *throttleDuration[T, U]) live() bool {
	return d.parent.Accepting() && d.gen == d.parent.gen
}

func (d *throttleDuration[T, U]) OnNext(U) {
	if d.live() {
		d.parent.flush()
	}
}

func (d *throttleDuration[T, U]) OnError(err error) {
	if d.live() {
		d.parent.ForwardError(err)
	}
}

func (d *throttleDuration[T, U]) OnCompleted() {
	if d.live() {
		d.parent.flush()
	}
}

func (s *throttleSink[T, U]) SaveState(w checkpoint.StateWriter) error {
	return w.Write(throttleState[T]{HasValue: s.hasValue, Value: s.value})
}

func (s *throttleSink[T, U]) LoadState(r checkpoint.StateReader) error {
	var st throttleState[T]
	found, err := r.Read(&st)
	if err != nil || !found {
		return err
	}
	s.hasValue, s.value = st.HasValue, st.Value
	return nil
}
