package workermgr

import (
	"time"
)

// Option configures the Manager
type Option func(*Manager)

// WithBackoff sets the restart backoff schedule
func WithBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(m *Manager) {
		m.baseDelay = baseDelay
		m.maxDelay = maxDelay
	}
}

// WithGracePeriod sets how long Shutdown waits after SIGTERM before
// escalating to SIGKILL
func WithGracePeriod(d time.Duration) Option {
	return func(m *Manager) {
		m.grace = d
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(m *Manager) {
		m.metrics = mc
	}
}
