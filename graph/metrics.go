package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus metrics for graph execution.
//
// Metrics exposed (all namespaced with "draftloop_"):
//
// 1. inflight_runs (gauge): Runs currently executing on any engine sharing
// this collector.
//
// 2. stage_latency_ms (histogram): Stage execution duration in milliseconds.
// Labels: stage, status (ok/degraded/fatal).
//
// 3. route_decisions_total (counter): Conditional routing decisions.
// Labels: from, to, reason.
//
// 4. runs_total (counter): Finished runs.
// Labels: status (completed/aborted/failed).
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine, _ := graph.New[Doc](graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe: Prometheus collectors are safe for concurrent use and the
// enabled flag is guarded by a mutex.
type PrometheusMetrics struct {
	inflightRuns prometheus.Gauge

	stageLatency *prometheus.HistogramVec

	routes *prometheus.CounterVec
	runs   *prometheus.CounterVec

	registry prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all graph execution metrics with
// the provided registry. A nil registry means prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.inflightRuns = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "draftloop",
		Name:      "inflight_runs",
		Help:      "Number of pipeline runs currently executing",
	})

	pm.stageLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "draftloop",
		Name:      "stage_latency_ms",
		Help:      "Stage execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
	}, []string{"stage", "status"})

	pm.routes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "draftloop",
		Name:      "route_decisions_total",
		Help:      "Conditional routing decisions taken, by target and reason",
	}, []string{"from", "to", "reason"})

	pm.runs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "draftloop",
		Name:      "runs_total",
		Help:      "Finished pipeline runs by terminal status",
	}, []string{"status"})

	return pm
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

func (pm *PrometheusMetrics) recordStage(stage string, latency time.Duration, status string) {
	if !pm.isEnabled() {
		return
	}
	pm.stageLatency.WithLabelValues(stage, status).Observe(float64(latency.Milliseconds()))
}

func (pm *PrometheusMetrics) recordRoute(from, to, reason string) {
	if !pm.isEnabled() {
		return
	}
	pm.routes.WithLabelValues(from, to, reason).Inc()
}

func (pm *PrometheusMetrics) runStarted() {
	if !pm.isEnabled() {
		return
	}
	pm.inflightRuns.Inc()
}

func (pm *PrometheusMetrics) runFinished(status string) {
	if !pm.isEnabled() {
		return
	}
	pm.inflightRuns.Dec()
	pm.runs.WithLabelValues(status).Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset zeroes the inflight gauge. Counters and histograms are cumulative and
// are left alone.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.inflightRuns.Set(0)
}
