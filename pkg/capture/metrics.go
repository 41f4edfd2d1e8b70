package capture

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts capture outcomes with Prometheus counters. All Sink
// metric calls are nil-safe, so a sink without metrics costs nothing.
type Metrics struct {
	capturedTotal  prometheus.Counter
	droppedTotal   *prometheus.CounterVec
	truncatedTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a collector with its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "shmlog"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.capturedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_events_total",
			Help:      "Total number of events written to the ring buffer",
		},
	)

	m.droppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_dropped_total",
			Help:      "Total number of events dropped by the capture sink",
		},
		[]string{"reason"},
	)

	m.truncatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_truncated_total",
			Help:      "Total number of oversized fields truncated on capture",
		},
		[]string{"field"},
	)

	m.registry.MustRegister(
		m.capturedTotal,
		m.droppedTotal,
		m.truncatedTotal,
	)

	return m
}

// Registry returns the Prometheus registry for HTTP handler setup.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) captured() {
	if m != nil {
		m.capturedTotal.Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.droppedTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) truncated(field string) {
	if m != nil {
		m.truncatedTotal.WithLabelValues(field).Inc()
	}
}
