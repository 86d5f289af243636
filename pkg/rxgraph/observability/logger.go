// Package observability provides structured logging, metrics and tracing
// for rxgraph graphs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds graph context to a logger.
// Returns a new logger with graph_id and node_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "graph-123", "0/1")
//	enriched.Info("flushing buffer") // includes graph_id, node_id
func EnrichLogger(logger *slog.Logger, graphID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("graph_id", graphID),
		slog.String("node_id", nodeID),
	)
}

// LogGraphStart logs that a graph finished initializing and is producing.
func LogGraphStart(logger *slog.Logger, graphID string, nodes int, resumed bool) {
	if logger == nil {
		return
	}
	logger.Info("graph started",
		slog.String("graph_id", graphID),
		slog.Int("nodes", nodes),
		slog.Bool("resumed", resumed),
	)
}

// LogGraphDisposed logs graph disposal.
func LogGraphDisposed(logger *slog.Logger, graphID string) {
	if logger == nil {
		return
	}
	logger.Info("graph disposed",
		slog.String("graph_id", graphID),
	)
}

// LogCheckpointSaved logs a completed save.
func LogCheckpointSaved(logger *slog.Logger, graphID string, nodes int, sizeBytes int64, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint saved",
		slog.String("graph_id", graphID),
		slog.Int("nodes", nodes),
		slog.Int64("size_bytes", sizeBytes),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCheckpointLoaded logs a completed load.
func LogCheckpointLoaded(logger *slog.Logger, graphID string, nodes int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint loaded",
		slog.String("graph_id", graphID),
		slog.Int("nodes", nodes),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCheckpointError logs a checkpoint failure.
func LogCheckpointError(logger *slog.Logger, nodeID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("node_id", nodeID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogOperatorError logs a user callback failure that terminated a subscription.
func LogOperatorError(logger *slog.Logger, operator string, err error) {
	if logger == nil {
		return
	}
	logger.Debug("operator terminated with error",
		slog.String("operator", operator),
		slog.String("error", err.Error()),
	)
}

// LogRetry logs a resubscription after an upstream error.
func LogRetry(logger *slog.Logger, attempt int, backoff time.Duration, err error) {
	if logger == nil {
		return
	}
	logger.Info("resubscribing after error",
		slog.Int("attempt", attempt),
		slog.Duration("backoff", backoff),
		slog.String("error", err.Error()),
	)
}

// LogSchedulerPanic logs a panic recovered from a scheduled action.
func LogSchedulerPanic(logger *slog.Logger, scheduler string, due int64, err error) {
	if logger == nil {
		return
	}
	logger.Error("scheduled action panicked",
		slog.String("scheduler", scheduler),
		slog.Int64("due", due),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
