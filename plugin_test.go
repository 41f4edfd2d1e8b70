package shmlog

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrepp/shmlog/pkg/capture"
	"github.com/jrepp/shmlog/pkg/host"
	"github.com/jrepp/shmlog/pkg/workermgr"
)

func newTestPlugin(t *testing.T, workers int) *Plugin {
	t.Helper()

	config := host.DefaultConfig("shmlog-host", "test")
	config.Store.Path = filepath.Join(t.TempDir(), "ring")
	if workers > 0 {
		config.Workers.Count = workers
		// The appended -segment flag lands in the script's positional
		// parameters, which it ignores.
		config.Workers.Command = "sh"
		config.Workers.Args = []string{"-c", "sleep 60"}
	}

	p := NewPlugin("test")
	require.NoError(t, p.Initialize(context.Background(), config))
	return p
}

func waitForWorker(t *testing.T, p *Plugin, id workermgr.WorkerID) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, ok := p.workers.Status(id)
		return ok && status.State == workermgr.WorkerRunning
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStopWaitsForWorkersDespiteCanceledContext(t *testing.T) {
	p := newTestPlugin(t, 1)
	require.NoError(t, p.Start(context.Background()))
	waitForWorker(t, p, "worker-0")

	// The bootstrap path cancels the lifecycle context before calling
	// Stop; shutdown must still run to completion.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Stop(ctx))

	status, ok := p.workers.Status("worker-0")
	require.True(t, ok)
	assert.Equal(t, workermgr.WorkerStopped, status.State)
}

func TestWorkerMetricsServedFromPluginRegistry(t *testing.T) {
	p := newTestPlugin(t, 1)
	require.NoError(t, p.Start(context.Background()))
	waitForWorker(t, p, "worker-0")

	families, err := p.MetricsRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["shmlog_worker_state_transitions_total"],
		"worker supervision metrics must be scrapeable from /metrics")

	require.NoError(t, p.Stop(context.Background()))
}

func TestHealthReportsRingOccupancy(t *testing.T) {
	p := newTestPlugin(t, 0)
	defer p.Stop(context.Background())

	p.log.Record(capture.Event{Level: slog.LevelError, Message: "boom"})

	status, err := p.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, host.HealthHealthy, status.Status)
	assert.Equal(t, "1", status.Details["used_slots"])
	assert.Equal(t, "1", status.Details["total_written"])
	assert.Equal(t, "1", status.Details["cursor"])
}
