// Package metrics exposes Prometheus instrumentation for analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"walker/internal/depgraph"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	FilesAnalyzedTotal  *prometheus.CounterVec
	FilesSkippedTotal   *prometheus.CounterVec
	UnresolvedTotal     *prometheus.CounterVec
	AnalyzeDuration     *prometheus.HistogramVec
	InvalidationsTotal  prometheus.Counter
	DependentReadErrors prometheus.Counter
	GraphFiles          prometheus.Gauge
	GraphEdges          prometheus.Gauge
	GraphDependencies   prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		FilesAnalyzedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walker_files_analyzed_total",
				Help: "Total number of files run through the analyzer",
			},
			[]string{"ext", "first_run"},
		),
		FilesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walker_files_skipped_total",
				Help: "Files whose extension has no finder",
			},
			[]string{"ext"},
		),
		UnresolvedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walker_unresolved_specifiers_total",
				Help: "Specifiers no resolver could place on disk",
			},
			[]string{"ext"},
		),
		AnalyzeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walker_analyze_duration_seconds",
				Help:    "Time spent analyzing one file",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"ext"},
		),
		InvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "walker_invalidations_total",
				Help: "Dependent files re-emitted because something they include changed",
			},
		),
		DependentReadErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "walker_dependent_read_errors_total",
				Help: "Dependents that could not be re-read from disk",
			},
		),
		GraphFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walker_graph_files",
			Help: "Files with at least one dependency",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walker_graph_edges",
			Help: "Include edges in the session graph",
		}),
		GraphDependencies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "walker_graph_dependencies",
			Help: "Distinct files included by at least one file",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.FilesAnalyzedTotal,
		m.FilesSkippedTotal,
		m.UnresolvedTotal,
		m.AnalyzeDuration,
		m.InvalidationsTotal,
		m.DependentReadErrors,
		m.GraphFiles,
		m.GraphEdges,
		m.GraphDependencies,
	)
	return m
}

// ObserveAnalysis records one analyzer call. A nil receiver is a no-op.
func (m *Metrics) ObserveAnalysis(ext string, firstRun, skipped bool, unresolved int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if ext == "" {
		ext = "none"
	}
	if skipped {
		m.FilesSkippedTotal.WithLabelValues(ext).Inc()
		return
	}
	first := "false"
	if firstRun {
		first = "true"
	}
	m.FilesAnalyzedTotal.WithLabelValues(ext, first).Inc()
	m.UnresolvedTotal.WithLabelValues(ext).Add(float64(unresolved))
	m.AnalyzeDuration.WithLabelValues(ext).Observe(elapsed.Seconds())
}

// ObserveGraph sets the graph size gauges.
func (m *Metrics) ObserveGraph(s depgraph.Stats) {
	if m == nil {
		return
	}
	m.GraphFiles.Set(float64(s.Files))
	m.GraphEdges.Set(float64(s.Edges))
	m.GraphDependencies.Set(float64(s.Dependencies))
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterMetricsEndpoint mounts Handler at /metrics.
func (m *Metrics) RegisterMetricsEndpoint(mux *http.ServeMux) {
	mux.Handle("/metrics", m.Handler())
}
