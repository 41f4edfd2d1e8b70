package workermgr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	stateTransitions *prometheus.CounterVec
	restarts         *prometheus.CounterVec
	exits            *prometheus.CounterVec
	backoffDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics
// collector. Metrics register on reg, so hosts can serve them from an
// existing /metrics endpoint; a nil reg gets a private registry.
func NewPrometheusMetricsCollector(namespace string, reg *prometheus.Registry) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "workermgr"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	pmc := &PrometheusMetricsCollector{
		registry: reg,
	}

	pmc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_state_transitions_total",
			Help:      "Total number of worker state transitions",
		},
		[]string{"worker_id", "from_state", "to_state"},
	)

	pmc.restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Total number of worker restarts",
		},
		[]string{"worker_id"},
	)

	pmc.exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_exits_total",
			Help:      "Total number of worker exits",
		},
		[]string{"worker_id", "status"},
	)

	pmc.backoffDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_backoff_duration_seconds",
			Help:      "Duration of backoff delays before worker restarts",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker_id"},
	)

	pmc.registry.MustRegister(
		pmc.stateTransitions,
		pmc.restarts,
		pmc.exits,
		pmc.backoffDuration,
	)

	return pmc
}

// WorkerStateTransition records a state transition
func (pmc *PrometheusMetricsCollector) WorkerStateTransition(id WorkerID, from, to WorkerState) {
	pmc.stateTransitions.WithLabelValues(
		string(id),
		from.String(),
		to.String(),
	).Inc()
}

// WorkerRestart records a worker restart
func (pmc *PrometheusMetricsCollector) WorkerRestart(id WorkerID) {
	pmc.restarts.WithLabelValues(string(id)).Inc()
}

// WorkerExit records a worker exit
func (pmc *PrometheusMetricsCollector) WorkerExit(id WorkerID, err error) {
	status := "clean"
	if err != nil {
		status = "error"
	}
	pmc.exits.WithLabelValues(string(id), status).Inc()
}

// WorkerBackoffDuration records the delay before a restart
func (pmc *PrometheusMetricsCollector) WorkerBackoffDuration(id WorkerID, duration time.Duration) {
	pmc.backoffDuration.WithLabelValues(string(id)).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// Compile-time interface compliance check
var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
