package rxgraph

type selectSink[T, R any] struct {
	Sink[R]
	fn func(T) (R, error)
}

// Select projects each value through fn. An error from fn terminates the
// stream with that error.
func Select[T, R any](src Observable[T], fn func(T) (R, error)) Observable[R] {
	requireArg(src != nil, "Select", "src", "must not be nil")
	requireArg(fn != nil, "Select", "fn", "must not be nil")
	return unary[T, R](src, func() *selectSink[T, R] {
		return &selectSink[T, R]{fn: fn}
	})
}

// Map is Select for projections that cannot fail.
func Map[T, R any](src Observable[T], fn func(T) R) Observable[R] {
	requireArg(fn != nil, "Map", "fn", "must not be nil")
	return Select(src, func(v T) (R, error) { return fn(v), nil })
}

func (s *selectSink[T, R]) OnNext(v T) {
	if !s.Accepting() {
		return
	}
	r, err := invoke(func() (R, error) { return s.fn(v) })
	if err != nil {
		s.Fail("select", err)
		return
	}
	s.ForwardNext(r)
}

func (s *selectSink[T, R]) OnError(err error) {
	if s.Accepting() {
		s.ForwardError(err)
	}
}

func (s *selectSink[T, R]) OnCompleted() {
	if s.Accepting() {
		s.ForwardCompleted()
	}
}

type whereSink[T any] struct {
	Sink[T]
	pred func(T) (bool, error)
}

// Where forwards the values for which pred returns true.
func Where[T any](src Observable[T], pred func(T) (bool, error)) Observable[T] {
	requireArg(src != nil, "Where", "src", "must not be nil")
	requireArg(pred != nil, "Where", "pred", "must not be nil")
	return unary[T, T](src, func() *whereSink[T] {
		return &whereSink[T]{pred: pred}
	})
}

// Filter is Where for predicates that cannot fail.
func Filter[T any](src Observable[T], pred func(T) bool) Observable[T] {
	requireArg(pred != nil, "Filter", "pred", "must not be nil")
	return Where(src, func(v T) (bool, error) { return pred(v), nil })
}

func (s *whereSink[T]) OnNext(v T) {
	if !s.Accepting() {
		return
	}
	ok, err := invoke(func() (bool, error) { return s.pred(v) })
	if err != nil {
		s.Fail("where", err)
		return
	}
	if ok {
		s.ForwardNext(v)
	}
}

func (s *whereSink[T]) OnError(err error) {
	if s.Accepting() {
		s.ForwardError(err)
	}
}

func (s *whereSink[T]) OnCompleted() {
	if s.Accepting() {
		s.ForwardCompleted()
	}
}
