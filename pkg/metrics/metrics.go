// Package metrics exposes the Prometheus instrumentation of the
// cross-reference index. All methods are nil-receiver safe so services can
// run uninstrumented in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors of the write and read paths.
type Metrics struct {
	rebuildTotal    *prometheus.CounterVec
	cascadeEntries  *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	fetchErrors     *prometheus.CounterVec
	overflowSize    *prometheus.HistogramVec
	traversalDepth  prometheus.Histogram
	refMaintFailure prometheus.Counter
}

// New registers the index collectors on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rebuildTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gameday",
			Name:      "rebuild_total",
			Help:      "Aggregation record rebuilds by resource type and outcome.",
		}, []string{"resource_type", "outcome"}),
		cascadeEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gameday",
			Name:      "cascade_entries_total",
			Help:      "Cascade worklist entries by resource type and classification.",
		}, []string{"resource_type", "classification"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gameday",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of cross-collection fetch requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gameday",
			Name:      "fetch_errors_total",
			Help:      "Fetch failures by error code.",
		}, []string{"code"}),
		overflowSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gameday",
			Name:      "fetch_overflow_ids",
			Help:      "Ids pushed to overflow per include type after budgeting.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"resource_type"}),
		traversalDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gameday",
			Name:      "traversal_plan_depth",
			Help:      "Maximum depth of executed traversal plans.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		refMaintFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gameday",
			Name:      "reference_maintenance_failures_total",
			Help:      "Best-effort back-pointer updates that failed.",
		}),
	}
	reg.MustRegister(
		m.rebuildTotal, m.cascadeEntries, m.fetchDuration, m.fetchErrors,
		m.overflowSize, m.traversalDepth, m.refMaintFailure,
	)
	return m
}

// ObserveRebuild records one rebuild outcome ("completed", "failed",
// "skipped").
func (m *Metrics) ObserveRebuild(resourceType, outcome string) {
	if m == nil {
		return
	}
	m.rebuildTotal.WithLabelValues(resourceType, outcome).Inc()
}

// ObserveCascadeEntry records one cascade classification.
func (m *Metrics) ObserveCascadeEntry(resourceType, classification string) {
	if m == nil {
		return
	}
	m.cascadeEntries.WithLabelValues(resourceType, classification).Inc()
}

// ObserveFetch records latency and outcome of one fetch request.
func (m *Metrics) ObserveFetch(d time.Duration, code string) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
	if code != "" {
		m.fetchErrors.WithLabelValues(code).Inc()
	}
}

// ObserveOverflow records how many ids one include type pushed to overflow.
func (m *Metrics) ObserveOverflow(resourceType string, n int) {
	if m == nil {
		return
	}
	m.overflowSize.WithLabelValues(resourceType).Observe(float64(n))
}

// ObservePlanDepth records the maximum depth of an executed plan.
func (m *Metrics) ObservePlanDepth(depth int) {
	if m == nil {
		return
	}
	m.traversalDepth.Observe(float64(depth))
}

// ObserveRefMaintFailure counts one failed best-effort back-pointer write.
func (m *Metrics) ObserveRefMaintFailure() {
	if m == nil {
		return
	}
	m.refMaintFailure.Inc()
}
