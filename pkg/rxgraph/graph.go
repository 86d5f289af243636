package rxgraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/observability"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// Graph manages one running operator graph: it initializes the root on the
// graph's logical thread, takes checkpoints, and tears everything down.
//
// A Graph is safe for concurrent use. It runs one root; build a new Graph to
// resume a saved one.
type Graph struct {
	sched scheduler.Scheduler
	opts  options
	ctx   *nodeContext

	mu    sync.Mutex
	root  Subscription
	nodes int
}

// NewGraph creates a graph bound to sched. A LogicalScheduler from a
// PhysicalScheduler is the production choice; tests pass a VirtualScheduler.
//
// Example:
//
//	pool := scheduler.NewPhysicalScheduler(4)
//	g := rxgraph.NewGraph(pool.NewLogical(),
//	    rxgraph.WithLogger(logger),
//	    rxgraph.WithCodec(checkpoint.Msgpack))
func NewGraph(sched scheduler.Scheduler, opts ...Option) *Graph {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.graphID == "" {
		o.graphID = uuid.NewString()
	}
	return &Graph{
		sched: sched,
		opts:  o,
		ctx:   newContext(context.Background(), sched, o),
	}
}

// ID returns the graph identifier.
func (g *Graph) ID() string {
	return g.opts.graphID
}

// Context returns the root context nodes of this graph derive from.
func (g *Graph) Context() Context {
	return g.ctx
}

// Root returns the subscription passed to Start or Resume, or nil.
func (g *Graph) Root() Subscription {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.root
}

// Start initializes root and lets it produce.
//
// ctx bounds only the wait for the logical thread; it is not propagated into
// the graph.
func (g *Graph) Start(ctx context.Context, root Subscription) error {
	return g.start(ctx, root, nil)
}

// Resume initializes root with the state in c, so it continues where the
// graph that produced c stopped. root must be built the same way as the
// saved graph.
func (g *Graph) Resume(ctx context.Context, root Subscription, c *checkpoint.Container) error {
	if c == nil {
		invalidArg("Resume", "c", "must not be nil")
	}
	return g.start(ctx, root, c)
}

// ResumeFrom restores checkpoint checkpointID from store and resumes root
// with it.
func (g *Graph) ResumeFrom(ctx context.Context, root Subscription, store checkpoint.Store, checkpointID string) error {
	c, err := checkpoint.Restore(store, checkpointID)
	if err != nil {
		err = &CheckpointError{Op: "restore", Err: err}
		observability.LogCheckpointError(g.ctx.Logger(), "", "restore", err)
		return err
	}
	return g.Resume(ctx, root, c)
}

func (g *Graph) start(ctx context.Context, root Subscription, c *checkpoint.Container) error {
	if root == nil {
		invalidArg("Start", "root", "must not be nil")
	}
	g.mu.Lock()
	if g.root != nil {
		g.mu.Unlock()
		return ErrGraphStarted
	}
	g.root = root
	g.mu.Unlock()

	var opts []InitOption
	if c != nil {
		opts = append(opts, WithState(c))
	}

	var (
		nodes int
		err   error
	)
	elapsed := observability.TimedOperation()
	began := time.Now()
	if werr := g.onLogical(ctx, func() {
		nodes, err = Initialize(g.ctx, root, opts...)
	}); werr != nil {
		// Initialize never ran; root is untouched and may be passed again.
		g.reset()
		return werr
	}

	g.mu.Lock()
	g.nodes = nodes
	g.mu.Unlock()

	if c != nil {
		g.opts.metrics.RecordCheckpoint(ctx, "load", nodes, c.Size(), time.Since(began), err)
		if err != nil {
			observability.LogCheckpointError(g.ctx.Logger(), nodeOf(err), "load", err)
			root.Dispose()
			g.reset()
			return err
		}
		observability.LogCheckpointLoaded(g.ctx.Logger(), g.ID(), nodes, elapsed())
	}
	observability.LogGraphStart(g.ctx.Logger(), g.ID(), nodes, c != nil)
	return nil
}

// reset forgets a root that failed to start so Start or Resume can be
// called again.
func (g *Graph) reset() {
	g.mu.Lock()
	g.root, g.nodes = nil, 0
	g.mu.Unlock()
}

// Checkpoint saves the state of every live stateful node into a new
// container encoded with the graph's codec. It runs as a task on the
// logical thread, or inline when called from it, so the snapshot is taken
// between two deliveries.
func (g *Graph) Checkpoint(ctx context.Context) (*checkpoint.Container, error) {
	root := g.Root()
	if root == nil {
		return nil, ErrGraphNotStarted
	}

	ctx, span := g.opts.spans.StartCheckpointSpan(ctx, "save", g.ID())
	c := checkpoint.NewContainer(checkpoint.WithCodec(g.opts.codec))

	var (
		nodes int
		err   error
	)
	elapsed := observability.TimedOperation()
	began := time.Now()
	werr := g.onLogical(ctx, func() {
		if root.Disposed() {
			err = &CheckpointError{Op: "save", Err: ErrDisposed}
			return
		}
		nodes, err = Save(root, c)
	})
	if werr != nil {
		err = werr
	}

	g.opts.metrics.RecordCheckpoint(ctx, "save", nodes, c.Size(), time.Since(began), err)
	g.opts.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogCheckpointError(g.ctx.Logger(), nodeOf(err), "save", err)
		return nil, err
	}
	observability.LogCheckpointSaved(g.ctx.Logger(), g.ID(), nodes, c.Size(), elapsed())
	return c, nil
}

// Persist takes a checkpoint and writes it to store under a new checkpoint
// ID, which it returns.
func (g *Graph) Persist(ctx context.Context, store checkpoint.Store) (string, error) {
	c, err := g.Checkpoint(ctx)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := c.Persist(store, id); err != nil {
		err = &CheckpointError{Op: "persist", Err: err}
		observability.LogCheckpointError(g.ctx.Logger(), "", "persist", err)
		return "", err
	}
	return id, nil
}

// Dispose tears the graph down. Deliveries already running may finish;
// nothing else is delivered afterwards. Safe to call more than once.
func (g *Graph) Dispose() {
	root := g.Root()
	if root == nil || root.Disposed() {
		return
	}
	root.Dispose()
	observability.LogGraphDisposed(g.ctx.Logger(), g.ID())
}

// Nodes returns the number of nodes initialized by Start or Resume.
func (g *Graph) Nodes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes
}

// onLogical runs fn on the graph's logical thread and waits for it. A panic
// raised by fn is re-raised on the caller. If ctx ends first, fn is
// cancelled and ctx's error returned; once fn has begun it is always waited
// for, and its completion wins over ctx.
func (g *Graph) onLogical(ctx context.Context, fn func()) error {
	if g.sched.InContext() {
		fn()
		return nil
	}

	done := make(chan struct{})
	var panicked any
	task := g.sched.Schedule(func() {
		defer close(done)
		defer func() {
			panicked = recover()
		}()
		fn()
	})

	select {
	case <-done:
	case <-ctx.Done():
		task.Dispose()
		if task.Cancelled() {
			return fmt.Errorf("waiting for logical thread: %w", ctx.Err())
		}
		<-done
	}
	if panicked != nil {
		panic(panicked)
	}
	return nil
}

func nodeOf(err error) string {
	var ce *CheckpointError
	if errors.As(err, &ce) {
		return ce.NodeID
	}
	return ""
}
