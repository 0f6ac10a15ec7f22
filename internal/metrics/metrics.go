// Package metrics exposes Prometheus counters for imports and reconciliation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

type Option func(*Manager)

func WithNamespace(ns string) Option {
	return func(m *Manager) { m.namespace = ns }
}

func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

type Manager struct {
	namespace string
	registry  *prometheus.Registry

	reportsFetched    *prometheus.CounterVec
	fetchDuration     prometheus.Histogram
	rowsAppended      *prometheus.CounterVec
	duplicatesRemoved *prometheus.CounterVec
	canonicalRows     *prometheus.GaugeVec
	urlsByStatus      *prometheus.CounterVec
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{namespace: "trackman"}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)
	m.reportsFetched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reports_fetched_total",
		Help:      "Reports requested from the report API, by outcome",
	}, []string{"outcome"})
	m.fetchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "report_fetch_duration_seconds",
		Help:      "Time spent resolving and downloading one report",
		Buckets:   prometheus.DefBuckets,
	})
	m.rowsAppended = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "rows_appended_total",
		Help:      "Flat records appended to the accumulation store",
	}, []string{"collection"})
	m.duplicatesRemoved = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "duplicates_removed_total",
		Help:      "Records dropped by reconciliation",
	}, []string{"collection"})
	m.canonicalRows = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "canonical_rows",
		Help:      "Rows in the last written canonical table",
	}, []string{"collection"})
	m.urlsByStatus = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "urls_processed_total",
		Help:      "Ledger status transitions, by resulting status",
	}, []string{"status"})
	return m
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) RecordFetch(outcome string, d time.Duration) {
	m.reportsFetched.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

func (m *Manager) RecordAppend(collection string, rows int) {
	m.rowsAppended.WithLabelValues(collection).Add(float64(rows))
}

func (m *Manager) RecordReconcile(collection string, removed, rows int) {
	m.duplicatesRemoved.WithLabelValues(collection).Add(float64(removed))
	m.canonicalRows.WithLabelValues(collection).Set(float64(rows))
}

func (m *Manager) RecordStatus(status string) {
	m.urlsByStatus.WithLabelValues(status).Inc()
}
