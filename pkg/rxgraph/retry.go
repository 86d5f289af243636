package rxgraph

import (
	"context"
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/observability"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// RetryPolicy configures RetryWithBackoff.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of subscriptions (including the
	// first). Zero retries forever.
	MaxAttempts int

	// InitialBackoff is the delay before the first resubscription.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay. Zero means no cap.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the delay after each retry. Values below 1
	// keep the delay constant.
	BackoffFactor float64

	// Retryable optionally decides whether an error is retried.
	// Nil retries every error.
	Retryable func(error) bool
}

// DefaultRetryPolicy is the standard backoff configuration.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
}

// Backoff returns the delay before the given retry (1 for the first).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < retry; i++ {
		if p.BackoffFactor > 1 {
			d = time.Duration(float64(d) * p.BackoffFactor)
		}
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func (p RetryPolicy) retryable(err error) bool {
	return p.Retryable == nil || p.Retryable(err)
}

type retryState struct {
	Attempts  int   `json:"attempts"`
	Waiting   bool  `json:"waiting,omitempty"`
	Remaining int64 `json:"remaining,omitempty"`
}

type retrySink[T any] struct {
	Sink[T]
	src    Observable[T]
	policy RetryPolicy

	attempts int
	gen      int
	current  Subscription

	backoff *scheduler.Task
	due     scheduler.Time
	loaded  *retryState
}

// Retry resubscribes to src after an error until it has been subscribed n
// times in total; the error of the last attempt is forwarded unchanged.
func Retry[T any](src Observable[T], n int) Observable[T] {
	requireArg(n >= 1, "Retry", "n", "must be at least 1")
	return newRetry(src, RetryPolicy{MaxAttempts: n}, "Retry")
}

// RetryForever resubscribes to src after every error.
func RetryForever[T any](src Observable[T]) Observable[T] {
	return newRetry(src, RetryPolicy{}, "RetryForever")
}

// RetryWithBackoff resubscribes to src after retryable errors, waiting an
// exponentially growing delay on the graph scheduler between attempts.
func RetryWithBackoff[T any](src Observable[T], policy RetryPolicy) Observable[T] {
	requireArg(policy.MaxAttempts >= 0, "RetryWithBackoff", "policy.MaxAttempts", "must not be negative")
	requireArg(policy.InitialBackoff >= 0, "RetryWithBackoff", "policy.InitialBackoff", "must not be negative")
	return newRetry(src, policy, "RetryWithBackoff")
}

func newRetry[T any](src Observable[T], policy RetryPolicy, op string) Observable[T] {
	requireArg(src != nil, op, "src", "must not be nil")
	return ObservableFunc[T](func(o Observer[T]) Subscription {
		s := &retrySink[T]{src: src, policy: policy, attempts: 1}
		s.SetObserver(o)
		s.current = src.Subscribe(&retryInput[T]{parent: s})
		s.AddInput(s.current)
		return s
	})
}

// Start discards the rebuilt attempt when the saved graph was between
// attempts, and re-arms the remaining backoff.
func (s *retrySink[T]) Start() {
	st := s.loaded
	s.loaded = nil
	if st == nil || !st.Waiting {
		return
	}
	s.drop()
	s.wait(time.Duration(st.Remaining))
}

func (s *retrySink[T]) drop() {
	if s.current == nil {
		return
	}
	s.RemoveInput(s.current)
	s.current.Dispose()
	s.current = nil
}

func (s *retrySink[T]) wait(d time.Duration) {
	s.due = s.Now().Add(d)
	s.backoff = s.ScheduleAt(s.due, func() {
		s.backoff = nil
		s.resubscribe()
	})
}

func (s *retrySink[T]) resubscribe() {
	s.gen++
	s.current = s.src.Subscribe(&retryInput[T]{parent: s, gen: s.gen})
	s.InitializeChild(s.current, 0)
}

func (s *retrySink[T]) exhausted() bool {
	return s.policy.MaxAttempts > 0 && s.attempts >= s.policy.MaxAttempts
}

func (s *retrySink[T]) fail(err error) {
	if s.exhausted() {
		s.ForwardError(err)
		return
	}
	retryable, perr := invoke(func() (bool, error) { return s.policy.retryable(err), nil })
	if perr != nil {
		s.Fail("retry", perr)
		return
	}
	if !retryable {
		s.ForwardError(err)
		return
	}

	retry := s.attempts
	s.attempts++
	delay := s.policy.Backoff(retry)
	if ctx := s.Context(); ctx != nil {
		observability.LogRetry(ctx.Logger(), s.attempts, delay, err)
		ctx.Metrics().RecordRetry(context.Background(), s.NodeID(), s.attempts)
	}

	s.drop()
	if delay > 0 {
		s.wait(delay)
		return
	}
	s.resubscribe()
}

type retryInput[T any] struct {
	parent *retrySink[T]
	gen    int
}

func (in *retryInput[T]) live() bool {
	return in.parent.Accepting() && in.gen == in.parent.gen && in.parent.current != nil
}

func (in *retryInput[T]) OnNext(v T) {
	if in.live() {
		in.parent.ForwardNext(v)
	}
}

func (in *retryInput[T]) OnError(err error) {
	if in.live() {
		in.parent.fail(err)
	}
}

func (in *retryInput[T]) OnCompleted() {
	if in.live() {
		in.parent.ForwardCompleted()
	}
}

func (s *retrySink[T]) SaveState(w checkpoint.StateWriter) error {
	if s.loaded != nil {
		return w.Write(*s.loaded)
	}
	st := retryState{Attempts: s.attempts}
	if s.backoff != nil {
		st.Waiting = true
		st.Remaining = int64(relative(s.due, s.Now()))
	}
	return w.Write(st)
}

func (s *retrySink[T]) LoadState(r checkpoint.StateReader) error {
	var st retryState
	found, err := r.Read(&st)
	if err != nil || !found {
		return err
	}
	if st.Attempts > 0 {
		s.attempts = st.Attempts
	}
	s.loaded = &st
	return nil
}
