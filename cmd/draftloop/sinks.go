package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/draftloop/graph/emit"
	"github.com/dshills/draftloop/graph/store"
	"github.com/dshills/draftloop/internal/config"
)

// sinks owns every event consumer of the process.
type sinks struct {
	// Emitter fans out to the enabled sinks.
	Emitter emit.Emitter

	audit    store.Store
	provider *sdktrace.TracerProvider
	logger   *slog.Logger
}

func newSinks(ctx context.Context, cfg *config.Config, stderr io.Writer, logger *slog.Logger) (*sinks, error) {
	s := &sinks{logger: logger}
	var emitters []emit.Emitter

	if cfg.Trace.Enabled {
		emitters = append(emitters, emit.NewLogEmitter(stderr, cfg.Trace.JSON))
	}

	if cfg.Trace.OTel {
		s.provider = sdktrace.NewTracerProvider(sdktrace.WithSyncer(&logExporter{logger: logger}))
		otel.SetTracerProvider(s.provider)
		emitters = append(emitters, emit.NewOTelEmitter(s.provider.Tracer("draftloop")))
	}

	audit, err := openAudit(cfg.Audit)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	if audit != nil {
		s.audit = audit
		emitters = append(emitters, store.NewEmitter(audit, logger))
	}

	switch len(emitters) {
	case 0:
		s.Emitter = emit.NewNullEmitter()
	case 1:
		s.Emitter = emitters[0]
	default:
		s.Emitter = emit.NewMultiEmitter(emitters...)
	}
	return s, nil
}

func openAudit(cfg config.AuditConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.AuditNone:
		return nil, nil
	case config.AuditMemory:
		return store.NewMemStore(), nil
	case config.AuditSQLite:
		s, err := store.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite audit store: %w", err)
		}
		return s, nil
	case config.AuditMySQL:
		s, err := store.NewMySQLStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql audit store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
}

// Close flushes spans, logs the audit summary and releases the store.
func (s *sinks) Close(ctx context.Context) {
	if s.provider != nil {
		if err := s.provider.Shutdown(ctx); err != nil {
			s.logger.Warn("tracer shutdown failed", "error", err)
		}
	}
	if s.audit == nil {
		return
	}
	runs, err := s.audit.Runs(ctx)
	if err != nil {
		s.logger.Warn("audit summary failed", "error", err)
	}
	for _, r := range runs {
		s.logger.Info("audit trail", "run_id", r.RunID, "events", r.Events, "status", r.Status, "elapsed", r.Last.Sub(r.First))
	}
	if err := s.audit.Close(); err != nil {
		s.logger.Warn("audit close failed", "error", err)
	}
}

// logExporter writes finished spans to the debug log.
type logExporter struct {
	logger *slog.Logger
}

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []any{
			"span", span.Name(),
			"trace_id", span.SpanContext().TraceID().String(),
			"duration", span.EndTime().Sub(span.StartTime()),
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.Emit())
		}
		if status := span.Status(); status.Code == codes.Error {
			attrs = append(attrs, "error", status.Description)
		}
		e.logger.DebugContext(ctx, "span exported", attrs...)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

func shutdownMetrics(ctx context.Context, srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics shutdown failed", "error", err)
	}
}
