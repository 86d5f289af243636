package rxtest

import (
	"math"
	"sync"
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// Infinite marks a subscription that was never disposed.
const Infinite = scheduler.Time(math.MaxInt64)

// SubscriptionLog is the lifetime of one subscription to a test observable.
type SubscriptionLog struct {
	Subscribe   scheduler.Time
	Unsubscribe scheduler.Time
}

// Sub returns the log of a subscription active over [from, to).
func Sub(from, to scheduler.Time) SubscriptionLog {
	return SubscriptionLog{Subscribe: from, Unsubscribe: to}
}

// subscriptions records subscribe and unsubscribe times.
type subscriptions struct {
	mu   sync.Mutex
	logs []SubscriptionLog
}

func (l *subscriptions) open(at scheduler.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, SubscriptionLog{Subscribe: at, Unsubscribe: Infinite})
	return len(l.logs) - 1
}

func (l *subscriptions) close(i int, at scheduler.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs[i].Unsubscribe = at
}

func (l *subscriptions) snapshot() []SubscriptionLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SubscriptionLog, len(l.logs))
	copy(out, l.logs)
	return out
}

// testSub is the node behind every subscription to a test observable.
type testSub[T any] struct {
	rxgraph.Sink[T]
}

func (t *testSub[T]) OnNext(v T) {
	if t.Accepting() {
		t.ForwardNext(v)
	}
}

func (t *testSub[T]) OnError(err error) {
	if t.Accepting() {
		t.ForwardError(err)
	}
}

func (t *testSub[T]) OnCompleted() {
	if t.Accepting() {
		t.ForwardCompleted()
	}
}

// HotObservable produces its messages at absolute times whether or not
// anyone is subscribed. Subscribers see only what is produced while they
// are active.
type HotObservable[T any] struct {
	s        *TestScheduler
	messages []Recorded[T]
	log      subscriptions

	mu        sync.Mutex
	observers []*hotSub[T]
}

// Hot creates a hot observable and schedules its messages on s.
func Hot[T any](s *TestScheduler, messages ...Recorded[T]) *HotObservable[T] {
	h := &HotObservable[T]{s: s, messages: messages}
	for _, m := range messages {
		s.ScheduleAbsolute(m.Time, func() {
			for _, o := range h.snapshot() {
				m.Value.Accept(o)
			}
		})
	}
	return h
}

// Subscribe implements rxgraph.Observable.
func (h *HotObservable[T]) Subscribe(o rxgraph.Observer[T]) rxgraph.Subscription {
	sub := &hotSub[T]{hot: h}
	sub.SetObserver(o)
	return sub
}

// Subscriptions returns the lifetime of every subscription so far.
func (h *HotObservable[T]) Subscriptions() []SubscriptionLog {
	return h.log.snapshot()
}

// Messages returns the messages the observable was created with.
func (h *HotObservable[T]) Messages() []Recorded[T] {
	return h.messages
}

func (h *HotObservable[T]) snapshot() []*hotSub[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*hotSub[T], len(h.observers))
	copy(out, h.observers)
	return out
}

func (h *HotObservable[T]) remove(sub *hotSub[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, o := range h.observers {
		if o == sub {
			h.observers = append(h.observers[:i], h.observers[i+1:]...)
			return
		}
	}
}

type hotSub[T any] struct {
	testSub[T]
	hot *HotObservable[T]
}

func (sub *hotSub[T]) Start() {
	h := sub.hot
	i := h.log.open(h.s.Now())
	h.mu.Lock()
	h.observers = append(h.observers, sub)
	h.mu.Unlock()
	sub.OnDispose(func() {
		h.remove(sub)
		h.log.close(i, h.s.Now())
	})
}

// ColdObservable replays its messages to every subscriber, with each
// message time taken relative to the moment the subscription started.
type ColdObservable[T any] struct {
	s        *TestScheduler
	messages []Recorded[T]
	log      subscriptions
}

// Cold creates a cold observable on s.
func Cold[T any](s *TestScheduler, messages ...Recorded[T]) *ColdObservable[T] {
	return &ColdObservable[T]{s: s, messages: messages}
}

// Subscribe implements rxgraph.Observable.
func (c *ColdObservable[T]) Subscribe(o rxgraph.Observer[T]) rxgraph.Subscription {
	sub := &coldSub[T]{cold: c}
	sub.SetObserver(o)
	return sub
}

// Subscriptions returns the lifetime of every subscription so far.
func (c *ColdObservable[T]) Subscriptions() []SubscriptionLog {
	return c.log.snapshot()
}

// Messages returns the messages the observable was created with.
func (c *ColdObservable[T]) Messages() []Recorded[T] {
	return c.messages
}

type coldSub[T any] struct {
	testSub[T]
	cold *ColdObservable[T]
}

func (sub *coldSub[T]) Start() {
	c := sub.cold
	i := c.log.open(c.s.Now())
	sub.OnDispose(func() { c.log.close(i, c.s.Now()) })
	for _, m := range c.messages {
		sub.Schedule(time.Duration(m.Time), func() { m.Value.Accept(sub) })
	}
}
