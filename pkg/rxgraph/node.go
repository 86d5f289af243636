package rxgraph

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/observability"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// Subscription is a live node of an operator graph.
//
// Subscribe builds nodes without side effects. Initialize then assigns each
// node its context and starts it; Dispose tears it down. Every type that
// embeds Node satisfies Subscription.
type Subscription interface {
	// Dispose releases the node and every input it owns. Idempotent and safe
	// from any goroutine; never waits for in-flight deliveries.
	Dispose()

	// Disposed reports whether Dispose has run.
	Disposed() bool

	// Inputs returns the upstream subscriptions this node owns.
	Inputs() []Subscription

	// SetContext initializes the node. Called exactly once by Initialize.
	SetContext(ctx Context)

	// NodeID returns the path identity assigned by SetContext.
	NodeID() string

	// Start begins producing. Called after every node of the graph has its
	// context, leaves first.
	Start()
}

// Stateful is implemented by nodes that carry state across a checkpoint.
type Stateful interface {
	// SaveState writes the node's own state (not its inputs').
	SaveState(w checkpoint.StateWriter) error

	// LoadState replaces the node's default state. Called after SetContext
	// and before Start. A reader with nothing stored leaves defaults.
	LoadState(r checkpoint.StateReader) error
}

const (
	stateCreated int32 = iota
	stateActive
	stateDisposed
)

// Node implements the subscription lifecycle. Operators embed it (usually
// through Sink) and add their own Start, Observer methods and state.
type Node struct {
	ctx   Context
	state atomic.Int32

	mu        sync.Mutex
	inputs    []Subscription
	tasks     map[*scheduler.Task]struct{}
	onDispose []func()

	// restore is the container the node was loaded from, if any.
	restore *checkpoint.Container
	// failure terminates the node's stream; set by Sink.
	failure func(error)
}

// SetContext implements Subscription.
func (n *Node) SetContext(ctx Context) {
	if !n.state.CompareAndSwap(stateCreated, stateActive) {
		if n.state.Load() == stateDisposed {
			return
		}
		panic(&LifecycleError{NodeID: n.NodeID(), Op: "initialize", Err: ErrAlreadyInitialized})
	}
	n.ctx = ctx
}

// Start implements Subscription. Nodes that only react to upstream
// notifications need nothing here.
func (n *Node) Start() {}

// Context returns the node's context, or nil before initialization.
func (n *Node) Context() Context {
	return n.ctx
}

// NodeID implements Subscription.
func (n *Node) NodeID() string {
	if n.ctx == nil {
		return ""
	}
	return n.ctx.NodeID()
}

// Now returns the graph scheduler's clock.
func (n *Node) Now() scheduler.Time {
	return n.ctx.Scheduler().Now()
}

// Disposed implements Subscription.
func (n *Node) Disposed() bool {
	return n.state.Load() == stateDisposed
}

// Accepting reports whether a notification may be processed. It returns
// false once the node is disposed and panics with a *LifecycleError if the
// node was never initialized.
func (n *Node) Accepting() bool {
	switch n.state.Load() {
	case stateActive:
		return true
	case stateDisposed:
		return false
	default:
		panic(&LifecycleError{Op: "deliver", Err: ErrNotInitialized})
	}
}

func (n *Node) requireActive(op string) {
	switch n.state.Load() {
	case stateCreated:
		panic(&LifecycleError{Op: op, Err: ErrNotInitialized})
	case stateDisposed:
		panic(&LifecycleError{NodeID: n.NodeID(), Op: op, Err: ErrDisposed})
	}
}

func (n *Node) lifecycleState() int32 {
	return n.state.Load()
}

// Inputs implements Subscription.
func (n *Node) Inputs() []Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Subscription, len(n.inputs))
	copy(out, n.inputs)
	return out
}

// AddInput takes ownership of sub. If the node is already disposed, sub is
// disposed immediately.
func (n *Node) AddInput(sub Subscription) {
	n.mu.Lock()
	if n.Disposed() {
		n.mu.Unlock()
		sub.Dispose()
		return
	}
	n.inputs = append(n.inputs, sub)
	n.mu.Unlock()
}

// RemoveInput releases ownership of sub without disposing it.
func (n *Node) RemoveInput(sub Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, in := range n.inputs {
		if in == sub {
			n.inputs = append(n.inputs[:i], n.inputs[i+1:]...)
			return
		}
	}
}

// InitializeChild attaches a subscription created while the graph is running
// (a merged inner, a retry attempt, a throttle duration) and initializes it
// as input slot of this node, so its ID is NodeID()+"/"+slot.
func (n *Node) InitializeChild(child Subscription, slot int) {
	n.AddInput(child)
	if n.Disposed() {
		return
	}
	initializeTree(n.ctx, child, n.NodeID()+"/"+strconv.Itoa(slot))
}

// RestoreChild is InitializeChild for a subscription that replaces one that
// was live when the graph was saved. Its subtree loads the state stored
// under NodeID()+"/"+slot before it starts. If the node was not loaded from
// a checkpoint it behaves like InitializeChild.
func (n *Node) RestoreChild(child Subscription, slot int) error {
	n.AddInput(child)
	if n.Disposed() {
		return nil
	}
	assignContexts(n.ctx, child, n.NodeID()+"/"+strconv.Itoa(slot))
	if c := n.restoring(); c != nil {
		if _, err := Load(child, c); err != nil {
			return err
		}
	}
	startTree(child)
	return nil
}

func (n *Node) setRestore(c *checkpoint.Container) {
	n.mu.Lock()
	n.restore = c
	n.mu.Unlock()
}

func (n *Node) restoring() *checkpoint.Container {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.restore
}

// OnDispose registers fn to run once when the node is disposed.
// Hooks run in reverse registration order, before inputs are disposed.
func (n *Node) OnDispose(fn func()) {
	n.mu.Lock()
	if n.Disposed() {
		n.mu.Unlock()
		fn()
		return
	}
	n.onDispose = append(n.onDispose, fn)
	n.mu.Unlock()
}

// Schedule runs action after delay unless the node is disposed first.
func (n *Node) Schedule(delay time.Duration, action func()) *scheduler.Task {
	if delay < 0 {
		delay = 0
	}
	return n.ScheduleAt(n.Now().Add(delay), action)
}

// ScheduleAt runs action at due unless the node is disposed first.
// Pending tasks are cancelled by Dispose. A panic raised by action
// terminates the node's stream with a *CallbackPanicError.
func (n *Node) ScheduleAt(due scheduler.Time, action func()) *scheduler.Task {
	n.mu.Lock()
	defer n.mu.Unlock()

	var task *scheduler.Task
	task = n.ctx.Scheduler().ScheduleAbsolute(due, func() {
		n.mu.Lock()
		delete(n.tasks, task)
		n.mu.Unlock()
		if n.Disposed() {
			return
		}
		n.run(action)
	})
	if n.Disposed() {
		task.Dispose()
		return task
	}
	if n.tasks == nil {
		n.tasks = make(map[*scheduler.Task]struct{})
	}
	n.tasks[task] = struct{}{}
	return task
}

func (n *Node) run(action func()) {
	if n.failure == nil {
		action()
		return
	}
	defer func() {
		if p := recover(); p != nil {
			n.failure(&CallbackPanicError{Value: p})
		}
	}()
	action()
}

// Dispose implements Subscription.
func (n *Node) Dispose() {
	if n.state.Swap(stateDisposed) == stateDisposed {
		return
	}

	n.mu.Lock()
	hooks := n.onDispose
	inputs := n.inputs
	tasks := n.tasks
	n.onDispose, n.inputs, n.tasks = nil, nil, nil
	n.restore = nil
	n.mu.Unlock()

	for t := range tasks {
		t.Dispose()
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	for _, in := range inputs {
		in.Dispose()
	}
}

// Sink is a Node that delivers to one downstream observer. It guarantees
// nothing is delivered after a terminal notification or after disposal.
type Sink[R any] struct {
	Node

	observer Observer[R]
	stopped  atomic.Bool
}

// SetObserver sets the downstream observer. Call once while building.
func (s *Sink[R]) SetObserver(o Observer[R]) {
	s.observer = o
	s.failure = func(err error) { s.Fail("schedule", err) }
}

// ForwardNext delivers v downstream.
func (s *Sink[R]) ForwardNext(v R) {
	if s.Disposed() || s.stopped.Load() {
		return
	}
	s.observer.OnNext(v)
}

// ForwardError delivers a terminal error downstream and disposes the node.
func (s *Sink[R]) ForwardError(err error) {
	if s.Disposed() || !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.observer.OnError(err)
	s.Dispose()
}

// ForwardCompleted delivers completion downstream and disposes the node.
func (s *Sink[R]) ForwardCompleted() {
	if s.Disposed() || !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.observer.OnCompleted()
	s.Dispose()
}

// Fail terminates the stream with an error raised by a user callback of
// operator. It is logged and counted before being forwarded.
func (s *Sink[R]) Fail(operator string, err error) {
	if s.ctx != nil {
		observability.LogOperatorError(s.ctx.Logger(), operator, err)
		s.ctx.Metrics().RecordOperatorError(context.Background(), operator)
	}
	s.ForwardError(err)
}

// CallbackPanicError wraps a panic raised by a user callback.
type CallbackPanicError struct {
	Value any
}

// Error implements the error interface.
func (e *CallbackPanicError) Error() string {
	return fmt.Sprintf("callback panicked: %v", e.Value)
}

// invoke calls fn, converting a panic into an error.
func invoke[R any](fn func() (R, error)) (r R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &CallbackPanicError{Value: p}
		}
	}()
	return fn()
}
