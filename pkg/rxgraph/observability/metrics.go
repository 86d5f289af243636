package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records rxgraph metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordTask records one scheduled action execution.
	RecordTask(ctx context.Context, scheduler string, duration time.Duration, panicked bool)

	// RecordCheckpoint records a save or load of a whole graph.
	RecordCheckpoint(ctx context.Context, op string, nodes int, sizeBytes int64, duration time.Duration, err error)

	// RecordOperatorError records a subscription terminated by a failing user callback.
	RecordOperatorError(ctx context.Context, operator string)

	// RecordRetry records a resubscription after an error.
	RecordRetry(ctx context.Context, nodeID string, attempt int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	tasks           metric.Int64Counter
	taskLatency     metric.Float64Histogram
	taskPanics      metric.Int64Counter
	checkpoints     metric.Int64Counter
	checkpointSize  metric.Int64Histogram
	checkpointTime  metric.Float64Histogram
	checkpointNodes metric.Int64Histogram
	operatorErrors  metric.Int64Counter
	retries         metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance on the global provider.
func newOtelMetrics() (*otelMetrics, error) {
	return newOtelMetricsFrom(otel.GetMeterProvider())
}

func newOtelMetricsFrom(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter("rxgraph")
	m := &otelMetrics{}
	var err error

	if m.tasks, err = meter.Int64Counter("rxgraph.scheduler.tasks",
		metric.WithDescription("Number of scheduled actions executed"),
	); err != nil {
		return nil, err
	}
	if m.taskLatency, err = meter.Float64Histogram("rxgraph.scheduler.task_latency_ms",
		metric.WithDescription("Scheduled action execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.taskPanics, err = meter.Int64Counter("rxgraph.scheduler.panics",
		metric.WithDescription("Number of scheduled actions that panicked"),
	); err != nil {
		return nil, err
	}
	if m.checkpoints, err = meter.Int64Counter("rxgraph.checkpoint.operations",
		metric.WithDescription("Number of graph checkpoint saves and loads"),
	); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("rxgraph.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.checkpointTime, err = meter.Float64Histogram("rxgraph.checkpoint.latency_ms",
		metric.WithDescription("Checkpoint save/load latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.checkpointNodes, err = meter.Int64Histogram("rxgraph.checkpoint.nodes",
		metric.WithDescription("Stateful nodes visited per checkpoint operation"),
	); err != nil {
		return nil, err
	}
	if m.operatorErrors, err = meter.Int64Counter("rxgraph.operator.errors",
		metric.WithDescription("Subscriptions terminated by a failing user callback"),
	); err != nil {
		return nil, err
	}
	if m.retries, err = meter.Int64Counter("rxgraph.operator.retries",
		metric.WithDescription("Resubscriptions after upstream errors"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderWithProvider returns a MetricsRecorder bound to provider
// instead of the global one.
func NewMetricsRecorderWithProvider(provider metric.MeterProvider) (MetricsRecorder, error) {
	m, err := newOtelMetricsFrom(provider)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordTask records a scheduled action execution.
func (m *otelMetrics) RecordTask(ctx context.Context, scheduler string, duration time.Duration, panicked bool) {
	attrs := metric.WithAttributes(attribute.String("scheduler", scheduler))
	m.tasks.Add(ctx, 1, attrs)
	m.taskLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if panicked {
		m.taskPanics.Add(ctx, 1, attrs)
	}
}

// RecordCheckpoint records a checkpoint save or load.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, op string, nodes int, sizeBytes int64, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", err == nil),
	)
	m.checkpoints.Add(ctx, 1, attrs)
	m.checkpointTime.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.checkpointNodes.Record(ctx, int64(nodes), attrs)
	if sizeBytes > 0 {
		m.checkpointSize.Record(ctx, sizeBytes, attrs)
	}
}

// RecordOperatorError records an operator failure.
func (m *otelMetrics) RecordOperatorError(ctx context.Context, operator string) {
	m.operatorErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operator", operator)))
}

// RecordRetry records a resubscription.
func (m *otelMetrics) RecordRetry(ctx context.Context, nodeID string, attempt int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Int("attempt", attempt),
	))
}
