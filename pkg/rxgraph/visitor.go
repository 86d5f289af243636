package rxgraph

import (
	"strconv"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
)

// InitOption configures Initialize.
type InitOption func(*initOptions)

type initOptions struct {
	state *checkpoint.Container
}

// WithState loads every stateful node from c between assigning contexts and
// starting, so the graph resumes where the saved graph left off.
func WithState(c *checkpoint.Container) InitOption {
	return func(o *initOptions) {
		o.state = c
	}
}

// Initialize prepares a freshly built graph and starts it.
//
// It runs three passes over the tree rooted at root:
//  1. pre-order, SetContext with the node's path identity (root "0", the
//     i-th input of node p is p+"/"+i);
//  2. with WithState, LoadState on every stateful node;
//  3. post-order (leaves first), Start.
//
// Call it on the goroutine that owns the graph's scheduler (inside a
// scheduled action for a LogicalScheduler) so no delivery interleaves with
// the passes. Graph.Start does this for you.
func Initialize(ctx Context, root Subscription, opts ...InitOption) (int, error) {
	if root == nil {
		invalidArg("Initialize", "root", "must not be nil")
	}
	var o initOptions
	for _, opt := range opts {
		opt(&o)
	}

	nodes := assignContexts(ctx, root, "0")
	if o.state != nil {
		if _, err := Load(root, o.state); err != nil {
			return nodes, err
		}
	}
	startTree(root)
	return nodes, nil
}

// initializeTree initializes and starts a subtree attached at runtime.
func initializeTree(ctx Context, sub Subscription, id string) {
	assignContexts(ctx, sub, id)
	startTree(sub)
}

func assignContexts(ctx Context, sub Subscription, id string) int {
	sub.SetContext(ctx.WithNodeID(id))
	n := 1
	for i, in := range sub.Inputs() {
		n += assignContexts(ctx, in, id+"/"+strconv.Itoa(i))
	}
	return n
}

func startTree(sub Subscription) {
	for _, in := range sub.Inputs() {
		startTree(in)
	}
	if !sub.Disposed() {
		sub.Start()
	}
}

// restoreTarget keeps the container a node was loaded from, so subtrees the
// node re-creates at runtime can load from it too.
type restoreTarget interface {
	setRestore(c *checkpoint.Container)
}

type lifecycleGuard interface {
	requireActive(op string)
	lifecycleState() int32
}

// Save writes the state of every live stateful node under root into c.
// Disposed subtrees have finished and are skipped. It returns the number of
// stateful nodes saved.
//
// Save must run on the graph's logical thread. It panics with a
// *LifecycleError if root is not active.
func Save(root Subscription, c *checkpoint.Container) (int, error) {
	if g, ok := root.(lifecycleGuard); ok {
		g.requireActive("save")
	}
	return visit(root, func(sub Subscription, st Stateful) error {
		if err := st.SaveState(c.Writer(sub.NodeID())); err != nil {
			return &CheckpointError{NodeID: sub.NodeID(), Op: "save", Err: err}
		}
		return nil
	})
}

// Load replaces the state of every stateful node under root from c. Nodes
// with no entry keep their defaults. Every node keeps c so children it
// re-creates later (see Node.RestoreChild) load from it as well. It returns
// the number of stateful nodes visited.
//
// Load belongs between SetContext and Start; use Initialize with WithState.
// It panics with a *LifecycleError if root is not active.
func Load(root Subscription, c *checkpoint.Container) (int, error) {
	if g, ok := root.(lifecycleGuard); ok {
		g.requireActive("load")
	}
	Walk(root, func(sub Subscription) {
		if r, ok := sub.(restoreTarget); ok && !sub.Disposed() {
			r.setRestore(c)
		}
	})
	return visit(root, func(sub Subscription, st Stateful) error {
		if err := st.LoadState(c.Reader(sub.NodeID())); err != nil {
			return &CheckpointError{NodeID: sub.NodeID(), Op: "load", Err: err}
		}
		return nil
	})
}

func visit(sub Subscription, fn func(Subscription, Stateful) error) (int, error) {
	if sub.Disposed() {
		return 0, nil
	}
	if g, ok := sub.(lifecycleGuard); ok && g.lifecycleState() == stateCreated {
		g.requireActive("checkpoint")
	}

	n := 0
	if st, ok := sub.(Stateful); ok {
		if err := fn(sub, st); err != nil {
			return n, err
		}
		n++
	}
	for _, in := range sub.Inputs() {
		k, err := visit(in, fn)
		n += k
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Walk calls fn for every node under root in pre-order.
func Walk(root Subscription, fn func(Subscription)) {
	fn(root)
	for _, in := range root.Inputs() {
		Walk(in, fn)
	}
}
