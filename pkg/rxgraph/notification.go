package rxgraph

import "fmt"

// Kind tags a Notification.
type Kind int

// Notification kinds.
const (
	KindNext Kind = iota
	KindError
	KindCompleted
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNext:
		return "Next"
	case KindError:
		return "Error"
	case KindCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Notification is one unit of the push protocol: a value, an error, or
// completion. Error and Completed are terminal.
type Notification[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// NextNotification returns a Next notification carrying v.
func NextNotification[T any](v T) Notification[T] {
	return Notification[T]{Kind: KindNext, Value: v}
}

// ErrorNotification returns a terminal Error notification.
func ErrorNotification[T any](err error) Notification[T] {
	return Notification[T]{Kind: KindError, Err: err}
}

// CompletedNotification returns a terminal Completed notification.
func CompletedNotification[T any]() Notification[T] {
	return Notification[T]{Kind: KindCompleted}
}

// Terminal reports whether n ends the stream.
func (n Notification[T]) Terminal() bool {
	return n.Kind == KindError || n.Kind == KindCompleted
}

// Accept delivers n to o.
func (n Notification[T]) Accept(o Observer[T]) {
	switch n.Kind {
	case KindNext:
		o.OnNext(n.Value)
	case KindError:
		o.OnError(n.Err)
	case KindCompleted:
		o.OnCompleted()
	}
}

// String formats n for test failure output.
func (n Notification[T]) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("OnNext(%v)", n.Value)
	case KindError:
		return fmt.Sprintf("OnError(%v)", n.Err)
	default:
		return "OnCompleted()"
	}
}
