package rxgraph

// Observer receives notifications from exactly one subscription.
// At most one of OnError and OnCompleted is called, and nothing follows it.
type Observer[T any] interface {
	OnNext(value T)
	OnError(err error)
	OnCompleted()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs[T any] struct {
	Next      func(T)
	Error     func(error)
	Completed func()
}

// OnNext implements Observer.
func (f ObserverFuncs[T]) OnNext(v T) {
	if f.Next != nil {
		f.Next(v)
	}
}

// OnError implements Observer.
func (f ObserverFuncs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// OnCompleted implements Observer.
func (f ObserverFuncs[T]) OnCompleted() {
	if f.Completed != nil {
		f.Completed()
	}
}

// NotificationObserver forwards every notification to fn.
func NotificationObserver[T any](fn func(Notification[T])) Observer[T] {
	return ObserverFuncs[T]{
		Next:      func(v T) { fn(NextNotification(v)) },
		Error:     func(err error) { fn(ErrorNotification[T](err)) },
		Completed: func() { fn(CompletedNotification[T]()) },
	}
}
