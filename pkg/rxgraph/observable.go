package rxgraph

// Observable builds subscription nodes.
//
// Subscribe wires a new node (and, recursively, its upstream nodes) to o and
// returns it. Subscribe itself has no side effects: nothing is scheduled or
// delivered until the returned subscription is initialized.
type Observable[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// ObservableFunc adapts a function to Observable.
type ObservableFunc[T any] func(o Observer[T]) Subscription

// Subscribe implements Observable.
func (f ObservableFunc[T]) Subscribe(o Observer[T]) Subscription {
	return f(o)
}

// unary builds the common single-input operator shape: a sink created by
// newSink subscribes to src and owns that subscription as input 0.
func unary[T, R any, S interface {
	Subscription
	Observer[T]
	SetObserver(Observer[R])
	AddInput(Subscription)
}](src Observable[T], newSink func() S) Observable[R] {
	return ObservableFunc[R](func(o Observer[R]) Subscription {
		s := newSink()
		s.SetObserver(o)
		s.AddInput(src.Subscribe(s))
		return s
	})
}
