package rxgraph

import "sync"

// Subject is a hot source fed from outside the graph. OnNext, OnError and
// OnCompleted may be called from any goroutine; each notification is posted
// to every subscriber's scheduler and delivered on its logical thread.
//
// Subscribers that start after a terminal notification receive only that
// notification. Subjects keep no state across checkpoints: events pushed
// between a save and the matching load are not replayed.
type Subject[T any] struct {
	mu   sync.Mutex
	subs map[*subjectSub[T]]struct{}
	done bool
	err  error
}

// NewSubject creates a subject with no subscribers.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{subs: make(map[*subjectSub[T]]struct{})}
}

// Subscribe implements Observable.
func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	sub := &subjectSub[T]{subject: s}
	sub.SetObserver(o)
	return sub
}

// OnNext posts v to every current subscriber. Ignored after a terminal
// notification.
func (s *Subject[T]) OnNext(v T) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	subs := make([]*subjectSub[T], 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.post(func() { sub.ForwardNext(v) })
	}
}

// OnError posts err to every subscriber and terminates the subject.
func (s *Subject[T]) OnError(err error) {
	for _, sub := range s.terminate(err) {
		sub.post(func() { sub.ForwardError(err) })
	}
}

// OnCompleted posts completion to every subscriber and terminates the subject.
func (s *Subject[T]) OnCompleted() {
	for _, sub := range s.terminate(nil) {
		sub.post(sub.ForwardCompleted)
	}
}

// HasObservers reports whether any subscriber is currently attached.
func (s *Subject[T]) HasObservers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) > 0
}

func (s *Subject[T]) terminate(err error) []*subjectSub[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done, s.err = true, err
	subs := make([]*subjectSub[T], 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	clear(s.subs)
	return subs
}

// attach registers sub, or reports the terminal state if already done.
func (s *Subject[T]) attach(sub *subjectSub[T]) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false, s.err
	}
	s.subs[sub] = struct{}{}
	return true, nil
}

func (s *Subject[T]) detach(sub *subjectSub[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}

type subjectSub[T any] struct {
	Sink[T]
	subject *Subject[T]
}

func (s *subjectSub[T]) Start() {
	ok, err := s.subject.attach(s)
	if !ok {
		s.post(func() {
			if err != nil {
				s.ForwardError(err)
				return
			}
			s.ForwardCompleted()
		})
		return
	}
	s.OnDispose(func() { s.subject.detach(s) })
}

// post schedules fn on the subscriber's logical thread. Node.Schedule drops
// the task if the subscriber is disposed before or while it is queued.
func (s *subjectSub[T]) post(fn func()) {
	if s.Disposed() {
		return
	}
	s.Schedule(0, fn)
}
