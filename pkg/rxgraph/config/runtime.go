package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/observability"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// EnvPrefix prefixes every environment variable read by LoadRuntime.
const EnvPrefix = "RXGRAPH_"

// ErrInvalidRuntime indicates a runtime configuration that fails validation.
var ErrInvalidRuntime = errors.New("invalid runtime configuration")

// Store selects where checkpoints are persisted.
type Store struct {
	// Backend is a registered store backend: memory, sqlite or badger.
	Backend string `env:"BACKEND"`
	// Path is the database file (sqlite) or directory (badger).
	Path string `env:"PATH"`
	// Codec encodes node state: json or msgpack.
	Codec string `env:"CODEC"`
}

// Runtime is the process-level configuration of a graph host.
type Runtime struct {
	// Workers is the size of the physical scheduler's pool.
	Workers int `env:"WORKERS"`
	// LogLevel is a slog level name: debug, info, warn or error.
	LogLevel string `env:"LOG_LEVEL"`
	// MetricsEnabled records OpenTelemetry metrics on the global provider.
	MetricsEnabled bool `env:"METRICS_ENABLED"`
	// TracingEnabled wraps graph checkpoints in OpenTelemetry spans.
	TracingEnabled bool `env:"TRACING_ENABLED"`
	// WaitTimeout bounds how long graph operations wait for the logical
	// thread.
	WaitTimeout time.Duration `env:"WAIT_TIMEOUT"`

	Store Store `envPrefix:"STORE_"`
}

// DefaultRuntime returns the configuration used when nothing overrides it.
func DefaultRuntime() Runtime {
	return Runtime{
		Workers:     4,
		LogLevel:    "info",
		WaitTimeout: 10 * time.Second,
		Store: Store{
			Backend: "memory",
			Codec:   checkpoint.JSON.Name(),
		},
	}
}

// LoadRuntime builds a Runtime from the defaults, then the file at path (if
// path is not empty), then RXGRAPH_* environment variables, and validates
// the result.
//
// File layout:
//
//	workers: 8
//	log_level: debug
//	metrics_enabled: true
//	wait_timeout: 30s
//	store:
//	  backend: sqlite
//	  path: /var/lib/rxgraph/checkpoints.db
//	  codec: msgpack
func LoadRuntime(path string) (Runtime, error) {
	rt := DefaultRuntime()
	if path != "" {
		cfg, err := FromFile(path)
		if err != nil {
			return Runtime{}, err
		}
		rt = rt.Merge(cfg)
	}
	if err := env.ParseWithOptions(&rt, env.Options{Prefix: EnvPrefix}); err != nil {
		return Runtime{}, fmt.Errorf("parse env: %w", err)
	}
	if err := rt.Validate(); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}

// Merge returns rt with every value present in cfg applied on top.
func (rt Runtime) Merge(cfg Config) Runtime {
	rt.Workers = cfg.Int("workers", rt.Workers)
	rt.LogLevel = cfg.String("log_level", rt.LogLevel)
	rt.MetricsEnabled = cfg.Bool("metrics_enabled", rt.MetricsEnabled)
	rt.TracingEnabled = cfg.Bool("tracing_enabled", rt.TracingEnabled)
	rt.WaitTimeout = cfg.Duration("wait_timeout", rt.WaitTimeout)

	store := cfg.Sub("store")
	rt.Store.Backend = store.String("backend", rt.Store.Backend)
	rt.Store.Path = store.String("path", rt.Store.Path)
	rt.Store.Codec = store.String("codec", rt.Store.Codec)
	return rt
}

// Validate reports the first invalid setting, wrapped in ErrInvalidRuntime.
func (rt Runtime) Validate() error {
	if rt.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidRuntime, rt.Workers)
	}
	if rt.WaitTimeout <= 0 {
		return fmt.Errorf("%w: wait_timeout must be positive, got %s", ErrInvalidRuntime, rt.WaitTimeout)
	}
	if _, err := rt.Level(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRuntime, err)
	}
	if _, err := checkpoint.CodecByName(rt.Store.Codec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRuntime, err)
	}
	if rt.Store.Backend != "memory" && rt.Store.Path == "" {
		return fmt.Errorf("%w: store %q needs a path", ErrInvalidRuntime, rt.Store.Backend)
	}
	return nil
}

// Level parses LogLevel.
func (rt Runtime) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(rt.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", rt.LogLevel, err)
	}
	return lvl, nil
}

// Logger returns a JSON logger on stderr at LogLevel.
func (rt Runtime) Logger() *slog.Logger {
	lvl, err := rt.Level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// WaitContext derives a context that expires after WaitTimeout, for passing
// to Graph.Start, Checkpoint and Resume.
func (rt Runtime) WaitContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, rt.WaitTimeout)
}

// Metrics returns the OpenTelemetry recorder when metrics are enabled and a
// no-op recorder otherwise.
func (rt Runtime) Metrics() observability.MetricsRecorder {
	if rt.MetricsEnabled {
		return observability.NewMetricsRecorder()
	}
	return observability.NoopMetrics{}
}

// OpenStore opens the configured checkpoint store.
func (rt Runtime) OpenStore() (checkpoint.Store, error) {
	return checkpoint.OpenStore(rt.Store.Backend, rt.Store.Path)
}

// NewScheduler starts a physical scheduler with Workers workers, reporting
// panics to logger.
func (rt Runtime) NewScheduler(logger *slog.Logger) *scheduler.PhysicalScheduler {
	return scheduler.NewPhysicalScheduler(rt.Workers,
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(rt.Metrics()))
}

// GraphOptions returns the rxgraph options matching rt: logger, metrics,
// spans and checkpoint codec.
func (rt Runtime) GraphOptions(logger *slog.Logger) ([]rxgraph.Option, error) {
	codec, err := checkpoint.CodecByName(rt.Store.Codec)
	if err != nil {
		return nil, err
	}
	opts := []rxgraph.Option{
		rxgraph.WithLogger(logger),
		rxgraph.WithMetrics(rt.Metrics()),
		rxgraph.WithCodec(codec),
	}
	if rt.TracingEnabled {
		opts = append(opts, rxgraph.WithSpans(observability.NewSpanManager()))
	}
	return opts, nil
}
