package rxgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for lifecycle misuse. These are programming errors in the
// code that manages a graph, never stream content.
var (
	// ErrNotInitialized indicates a node was used before Initialize visited it.
	ErrNotInitialized = errors.New("node not initialized")

	// ErrAlreadyInitialized indicates Initialize visited a node twice.
	ErrAlreadyInitialized = errors.New("node already initialized")

	// ErrDisposed indicates state was saved or loaded on a disposed node.
	ErrDisposed = errors.New("node disposed")
)

// Sentinel errors for operator construction and graph management.
var (
	// ErrInvalidArgument indicates an operator was constructed with a bad argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrGraphNotStarted indicates a Graph method was called before Start.
	ErrGraphNotStarted = errors.New("graph not started")

	// ErrGraphStarted indicates Start or Resume was called twice.
	ErrGraphStarted = errors.New("graph already started")

	// ErrNotRestorable indicates live state a checkpoint cannot capture, such
	// as a MergeAll inner stream that nothing would re-create on load.
	ErrNotRestorable = errors.New("state cannot be restored")
)

// LifecycleError reports a node used outside its valid lifecycle window.
// It is raised with panic, not returned.
type LifecycleError struct {
	// NodeID is the node's path identity, empty if never initialized.
	NodeID string
	// Op is the attempted operation ("deliver", "save", "load", "initialize").
	Op string
	// Err is one of ErrNotInitialized, ErrAlreadyInitialized, ErrDisposed.
	Err error
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// ArgumentError reports an invalid operator argument.
// Operator constructors panic with it before any subscription exists.
type ArgumentError struct {
	// Operator is the constructor that rejected the argument.
	Operator string
	// Arg is the parameter name.
	Arg string
	// Reason describes the constraint that was violated.
	Reason string
}

// Error implements the error interface.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Operator, e.Arg, e.Reason)
}

// Unwrap returns ErrInvalidArgument for errors.Is support.
func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// NodeID is the node where checkpointing failed.
	NodeID string
	// Op is the operation that failed ("save", "load", "persist", "restore").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

func invalidArg(operator, arg, reason string) {
	panic(&ArgumentError{Operator: operator, Arg: arg, Reason: reason})
}

func requireArg(ok bool, operator, arg, reason string) {
	if !ok {
		invalidArg(operator, arg, reason)
	}
}
