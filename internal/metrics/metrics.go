// Package metrics exposes Prometheus instrumentation for grid sessions,
// commits, data loads and the reference cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commit and load outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeFailed     = "failed"
	OutcomePartial    = "partial"
	OutcomeSuperseded = "superseded"
	OutcomeNoop       = "noop"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	commits        *prometheus.CounterVec
	commitChanges  *prometheus.CounterVec
	commitLatency  *prometheus.HistogramVec
	loads          *prometheus.CounterVec
	loadLatency    *prometheus.HistogramVec
	loadedRows     *prometheus.CounterVec
	views          *prometheus.CounterVec
	sessions       prometheus.Gauge
	sessionsClosed *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casegrid",
			Name:      "commits_total",
			Help:      "Commit attempts by screen and outcome",
		}, []string{"screen", "outcome"}),
		commitChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casegrid",
			Name:      "commit_changes_total",
			Help:      "Cell changes persisted by commits",
		}, []string{"screen"}),
		commitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "casegrid",
			Name:      "commit_duration_seconds",
			Help:      "Commit round-trip latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"screen"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casegrid",
			Name:      "loads_total",
			Help:      "Dataset loads by screen and outcome",
		}, []string{"screen", "outcome"}),
		loadLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "casegrid",
			Name:      "load_duration_seconds",
			Help:      "Full dataset load latency",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"screen"}),
		loadedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casegrid",
			Name:      "loaded_rows_total",
			Help:      "Rows fetched from the data source",
		}, []string{"screen"}),
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casegrid",
			Name:      "views_total",
			Help:      "Views derived per screen",
		}, []string{"screen"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "casegrid",
			Name:      "sessions_open",
			Help:      "Open grid sessions",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casegrid",
			Name:      "sessions_closed_total",
			Help:      "Closed sessions by reason",
		}, []string{"reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "casegrid",
			Name:      "reference_cache_lookups_total",
			Help:      "Reference cache lookups by list and result",
		}, []string{"list", "result"}),
	}

	m.registry.MustRegister(
		m.commits, m.commitChanges, m.commitLatency,
		m.loads, m.loadLatency, m.loadedRows,
		m.views, m.sessions, m.sessionsClosed, m.cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveCommit records one commit attempt. A nil receiver is a no-op so
// callers need not guard optional metrics.
func (m *Metrics) ObserveCommit(screen, outcome string, applied int, d time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(screen, outcome).Inc()
	if applied > 0 {
		m.commitChanges.WithLabelValues(screen).Add(float64(applied))
	}
	if outcome != OutcomeNoop {
		m.commitLatency.WithLabelValues(screen).Observe(d.Seconds())
	}
}

// ObserveLoad records one dataset load.
func (m *Metrics) ObserveLoad(screen, outcome string, rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(screen, outcome).Inc()
	if outcome == OutcomeOK {
		m.loadedRows.WithLabelValues(screen).Add(float64(rows))
		m.loadLatency.WithLabelValues(screen).Observe(d.Seconds())
	}
}

// ObserveView counts a derived view.
func (m *Metrics) ObserveView(screen string) {
	if m == nil {
		return
	}
	m.views.WithLabelValues(screen).Inc()
}

// SessionOpened increments the open session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the open session gauge.
func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessions.Dec()
	m.sessionsClosed.WithLabelValues(reason).Inc()
}

// CacheLookup records a reference cache hit or miss.
func (m *Metrics) CacheLookup(list string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(list, result).Inc()
}
