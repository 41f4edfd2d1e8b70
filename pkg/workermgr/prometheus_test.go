package workermgr

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRegistersOnProvidedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusMetricsCollector("test", reg)

	assert.Same(t, reg, c.Registry())

	c.WorkerStateTransition("w", WorkerStarting, WorkerRunning)
	c.WorkerRestart("w")
	c.WorkerExit("w", assert.AnError)
	c.WorkerExit("w", nil)
	c.WorkerBackoffDuration("w", time.Second)

	// The host scrapes these from the registry it was handed, so
	// every family must land there.
	count, err := testutil.GatherAndCount(reg,
		"test_worker_state_transitions_total",
		"test_worker_restarts_total",
		"test_worker_exits_total",
		"test_worker_backoff_duration_seconds",
	)
	require.NoError(t, err)
	assert.Equal(t, 5, count, "one series per event, two exit statuses")
}

func TestCollectorDefaultsToPrivateRegistry(t *testing.T) {
	c := NewPrometheusMetricsCollector("", nil)
	require.NotNil(t, c.Registry())

	c.WorkerRestart("w")
	count, err := testutil.GatherAndCount(c.Registry(), "workermgr_worker_restarts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
