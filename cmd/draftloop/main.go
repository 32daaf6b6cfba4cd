// Command draftloop runs the content pipeline for one or more topics.
//
// Usage:
//
//	draftloop [-config draftloop.yaml] [-env config.env] [-json] [-metrics :9090] topic [topic...]
//
// Exit status is 1 for configuration errors, 2 when any run did not
// complete, and 0 otherwise.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/draftloop/graph"
	"github.com/dshills/draftloop/graph/model"
	"github.com/dshills/draftloop/internal/config"
	"github.com/dshills/draftloop/pipeline"
)

const (
	exitOK         = 0
	exitConfig     = 1
	exitIncomplete = 2
)

// Args represents parsed command-line arguments.
type Args struct {
	ConfigFile  string
	EnvFile     string
	JSON        bool
	MetricsAddr string
	Topics      []string

	// Err is set when parsing fails.
	Err error
}

// parseArgs parses flags followed by one or more topics.
func parseArgs(osArgs []string) Args {
	fs := flag.NewFlagSet("draftloop", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configFile := fs.String("config", "", "path to config YAML file (default "+config.DefaultConfigFile+")")
	envFile := fs.String("env", "", "path to credential env file (default "+config.DefaultEnvFile+")")
	jsonOut := fs.Bool("json", false, "print outcomes as JSON")
	metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on this address")

	if err := fs.Parse(osArgs); err != nil {
		return Args{Err: fmt.Errorf("flag parsing error: %w", err)}
	}
	if fs.NArg() == 0 {
		return Args{Err: errors.New("required argument missing: topic")}
	}

	return Args{
		ConfigFile:  *configFile,
		EnvFile:     *envFile,
		JSON:        *jsonOut,
		MetricsAddr: *metricsAddr,
		Topics:      fs.Args(),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run wires the pipeline from configuration and executes every topic.
func run(ctx context.Context, osArgs []string, stdout, stderr io.Writer) int {
	args := parseArgs(osArgs)
	if args.Err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", args.Err)
		return exitConfig
	}

	cfg, err := config.Load(args.ConfigFile, args.EnvFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	if args.MetricsAddr != "" {
		cfg.Metrics.Addr = args.MetricsAddr
	}

	logger := newLogger(cfg.Log, stderr)

	chat, modelName, err := newChatModel(cfg.Provider, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	costs := model.NewCostTracker("USD")

	sinks, err := newSinks(ctx, cfg, stderr, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	defer sinks.Close(context.WithoutCancel(ctx))

	registry := prometheus.NewRegistry()
	opts := []graph.Option{
		graph.WithMetrics(graph.NewPrometheusMetrics(registry)),
		graph.WithEmitter(sinks.Emitter),
	}
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, registry, logger)
		defer shutdownMetrics(context.WithoutCancel(ctx), srv, logger)
	}

	p, err := pipeline.New(cfg.PipelineConfig(), pipeline.Collaborators{
		Generator: &pipeline.ChatGenerator{Model: chat, Costs: costs, ModelName: modelName},
		Costs:     costs,
		Logger:    logger,
	}, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	logger.Info("starting runs",
		"topics", len(args.Topics),
		"parallel", cfg.Pipeline.Parallel,
		"provider", cfg.Provider.Name,
		"model", modelName,
		"revision_ceiling", p.Config().RevisionCeiling,
		"finalize", p.Config().Finalize,
	)
	outcomes := pipeline.RunBatch(ctx, p, args.Topics, cfg.Pipeline.Parallel)

	if args.JSON {
		err = writeJSON(stdout, outcomes)
	} else {
		err = writeText(stdout, outcomes, costs)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}

	for _, o := range outcomes {
		if !o.Completed() {
			return exitIncomplete
		}
	}
	return exitOK
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
