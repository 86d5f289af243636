package rxgraph

import (
	"sync"
	"time"
)

// WindowCount is BufferCount producing sub-streams instead of slices. A new
// window is emitted as soon as it opens; it completes when it has seen count
// values. Every open window, empty or not, completes with the source.
func WindowCount[T any](src Observable[T], count, skip int) Observable[Observable[T]] {
	requireArg(src != nil, "WindowCount", "src", "must not be nil")
	requireArg(count > 0, "WindowCount", "count", "must be positive")
	requireArg(skip > 0, "WindowCount", "skip", "must be positive")
	return newWindow(src, func(s *chunker[T, Observable[T]]) {
		s.policy, s.count, s.skip = byCount, count, skip
	})
}

// WindowTime opens a window every shift; each completes span after opening.
func WindowTime[T any](src Observable[T], span, shift time.Duration) Observable[Observable[T]] {
	requireArg(src != nil, "WindowTime", "src", "must not be nil")
	requireArg(span > 0, "WindowTime", "span", "must be positive")
	requireArg(shift > 0, "WindowTime", "shift", "must be positive")
	return newWindow(src, func(s *chunker[T, Observable[T]]) {
		s.policy, s.span, s.shift = byTime, span, shift
	})
}

// WindowTimeOrCount completes the current window after count values or span,
// whichever comes first, and opens the next.
func WindowTimeOrCount[T any](src Observable[T], span time.Duration, count int) Observable[Observable[T]] {
	requireArg(src != nil, "WindowTimeOrCount", "src", "must not be nil")
	requireArg(span > 0, "WindowTimeOrCount", "span", "must be positive")
	requireArg(count > 0, "WindowTimeOrCount", "count", "must be positive")
	return newWindow(src, func(s *chunker[T, Observable[T]]) {
		s.policy, s.span, s.count = byTimeOrCount, span, count
	})
}

func newWindow[T any](src Observable[T], configure func(*chunker[T, Observable[T]])) Observable[Observable[T]] {
	return unary[T, Observable[T]](src, func() *chunker[T, Observable[T]] {
		s := &chunker[T, Observable[T]]{}
		configure(s)
		s.onOpen = func(c *chunk[T]) {
			c.win = &windowSubject[T]{key: c.key}
			s.ForwardNext(c.win)
		}
		s.onClose = func(c *chunk[T], _ bool) {
			c.win.complete()
		}
		return s
	})
}

// windowSubject is the sub-stream of one window. Values are pushed on the
// graph's logical thread, so delivery is synchronous. A late subscriber
// receives the terminal notification if the window already closed.
//
// key numbers the window within its operator. A window open at a checkpoint
// is emitted again on load with the same key, which lets MergeAll and
// SelectMany hand it to the restored consumer of the original.
type windowSubject[T any] struct {
	key  int
	mu   sync.Mutex
	subs []*windowSub[T]
	done bool
	err  error
}

func (w *windowSubject[T]) replayKey() int { return w.key }

func (w *windowSubject[T]) Subscribe(o Observer[T]) Subscription {
	s := &windowSub[T]{window: w}
	s.SetObserver(o)
	return s
}

func (w *windowSubject[T]) next(v T) {
	for _, s := range w.snapshot() {
		if s.Accepting() {
			s.ForwardNext(v)
		}
	}
}

func (w *windowSubject[T]) complete() {
	for _, s := range w.terminate(nil) {
		s.ForwardCompleted()
	}
}

func (w *windowSubject[T]) fail(err error) {
	for _, s := range w.terminate(err) {
		s.ForwardError(err)
	}
}

// terminate marks the window done and hands back its subscribers.
func (w *windowSubject[T]) terminate(err error) []*windowSub[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return nil
	}
	w.done, w.err = true, err
	subs := w.subs
	w.subs = nil
	return subs
}

func (w *windowSubject[T]) snapshot() []*windowSub[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*windowSub[T], len(w.subs))
	copy(out, w.subs)
	return out
}

// attach registers s, or returns false with the terminal error if the
// window already closed.
func (w *windowSubject[T]) attach(s *windowSub[T]) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return false, w.err
	}
	w.subs = append(w.subs, s)
	return true, nil
}

func (w *windowSubject[T]) remove(s *windowSub[T]) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, x := range w.subs {
		if x == s {
			w.subs = append(w.subs[:i], w.subs[i+1:]...)
			return
		}
	}
}

type windowSub[T any] struct {
	Sink[T]
	window *windowSubject[T]
}

func (s *windowSub[T]) Start() {
	w := s.window
	ok, err := w.attach(s)
	if !ok {
		s.Schedule(0, func() {
			if err != nil {
				s.ForwardError(err)
				return
			}
			s.ForwardCompleted()
		})
		return
	}
	s.OnDispose(func() { w.remove(s) })
}
