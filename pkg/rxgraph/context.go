package rxgraph

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/observability"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// Context provides runtime services to operator nodes.
// It extends context.Context with the graph's scheduler, logger and metrics.
//
// Context is immutable after creation. Initialize derives one context per
// node with its path identity and an enriched logger.
type Context interface {
	context.Context

	// Scheduler returns the scheduler every delivery of the graph runs on.
	Scheduler() scheduler.Scheduler

	// Logger returns the configured logger, enriched with graph and node IDs.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// Metrics returns the metrics recorder. Never nil.
	Metrics() observability.MetricsRecorder

	// GraphID returns the identifier of the graph the node belongs to.
	GraphID() string

	// NodeID returns the node's path identity. Empty for the root context.
	NodeID() string

	// WithNodeID derives a context for the node at id.
	WithNodeID(id string) Context
}

type nodeContext struct {
	context.Context

	sched   scheduler.Scheduler
	base    *slog.Logger
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	graphID string
	nodeID  string
}

// options holds settings shared by NewContext and NewGraph.
type options struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	codec   checkpoint.Codec
	graphID string
}

func defaultOptions() options {
	return options{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		codec:   checkpoint.JSON,
	}
}

func (c *nodeContext) Scheduler() scheduler.Scheduler         { return c.sched }
func (c *nodeContext) Logger() *slog.Logger                   { return c.logger }
func (c *nodeContext) Metrics() observability.MetricsRecorder { return c.metrics }
func (c *nodeContext) GraphID() string                        { return c.graphID }
func (c *nodeContext) NodeID() string                         { return c.nodeID }

func (c *nodeContext) WithNodeID(id string) Context {
	derived := *c
	derived.nodeID = id
	derived.logger = observability.EnrichLogger(c.base, c.graphID, id)
	return &derived
}

// Option configures a Context or a Graph.
type Option func(*options)

// WithLogger sets the logger. It is enriched with graph_id and node_id per node.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSpans sets the span manager used around graph checkpoints.
// Only Graph uses it.
func WithSpans(s observability.SpanManager) Option {
	return func(o *options) {
		if s != nil {
			o.spans = s
		}
	}
}

// WithCodec sets the codec Graph.Checkpoint encodes state with. Default: JSON.
func WithCodec(c checkpoint.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithGraphID sets the graph identifier used in logs.
// NewGraph generates one when unset.
func WithGraphID(id string) Option {
	return func(o *options) {
		o.graphID = id
	}
}

// NewContext creates the root context for a graph running on sched.
//
// Example:
//
//	ctx := rxgraph.NewContext(context.Background(), logical,
//	    rxgraph.WithLogger(logger),
//	    rxgraph.WithMetrics(observability.NewMetricsRecorder()))
func NewContext(ctx context.Context, sched scheduler.Scheduler, opts ...Option) Context {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newContext(ctx, sched, o)
}

func newContext(ctx context.Context, sched scheduler.Scheduler, o options) *nodeContext {
	if sched == nil {
		invalidArg("NewContext", "sched", "must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c := &nodeContext{
		Context: ctx,
		sched:   sched,
		base:    o.logger,
		logger:  o.logger,
		metrics: o.metrics,
		graphID: o.graphID,
	}
	if c.graphID != "" {
		c.logger = c.base.With("graph_id", c.graphID)
	}
	return c
}
