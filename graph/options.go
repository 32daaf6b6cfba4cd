package graph

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dshills/draftloop/graph/emit"
)

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	engine, err := graph.New[Doc](
//	    graph.WithMaxSteps(12),
//	    graph.WithEmitter(emit.NewLogEmitter(os.Stderr, true)),
//	    graph.WithLogger(slog.Default()),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	opts    Options
	emitter emit.Emitter
	metrics *PrometheusMetrics
	logger  *slog.Logger
	clock   func() time.Time
}

// Options configures Engine execution behavior.
//
// Zero values are valid.
type Options struct {
	// MaxSteps bounds the number of stage invocations in one run.
	// If 0, no limit is enforced; declared loop ceilings still apply.
	MaxSteps int
}

// WithMaxSteps limits a run to n stage invocations. Exceeding the budget
// fails the run with ErrMaxStepsExceeded.
//
// For a graph with k stages and one loop of ceiling c that re-runs two
// stages per pass, k + 2c is the tightest safe budget.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		if n < 0 {
			return errors.New("max steps must be >= 0")
		}
		cfg.opts.MaxSteps = n
		return nil
	}
}

// WithEmitter sets the sink that receives one event per transition plus
// run_start and run_end events. A nil emitter disables emission.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		cfg.emitter = emitter
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	engine, _ := graph.New[Doc](graph.WithMetrics(graph.NewPrometheusMetrics(registry)))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = metrics
		return nil
	}
}

// WithLogger sets the structured logger used for stage and routing
// diagnostics. Defaults to a logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *engineConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithClock overrides the time source used for transition timestamps and
// durations. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(cfg *engineConfig) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = now
		return nil
	}
}
