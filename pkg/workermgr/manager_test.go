package workermgr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartValidation(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(context.Background())

	assert.Error(t, m.Start(Spec{Command: "sleep"}), "empty ID")
	assert.Error(t, m.Start(Spec{ID: "w"}), "empty command")
}

func TestStartRejectsDuplicateID(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(context.Background())

	require.NoError(t, m.Start(Spec{ID: "w", Command: "sleep", Args: []string{"60"}}))
	assert.Error(t, m.Start(Spec{ID: "w", Command: "sleep", Args: []string{"60"}}))
}

func TestWorkerRunsAndShutsDown(t *testing.T) {
	m := NewManager(WithGracePeriod(2 * time.Second))

	require.NoError(t, m.Start(Spec{ID: "w", Command: "sleep", Args: []string{"60"}}))

	require.Eventually(t, func() bool {
		status, ok := m.Status("w")
		return ok && status.State == WorkerRunning && status.PID > 0
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	status, ok := m.Status("w")
	require.True(t, ok)
	assert.Equal(t, WorkerStopped, status.State)
}

func TestWorkerRestartsAfterExit(t *testing.T) {
	m := NewManager(WithBackoff(10*time.Millisecond, 50*time.Millisecond))

	// "true" exits immediately, so the supervisor keeps restarting it.
	require.NoError(t, m.Start(Spec{ID: "w", Command: "true"}))

	require.Eventually(t, func() bool {
		status, ok := m.Status("w")
		return ok && status.Restarts >= 2
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
}

func TestStartAfterShutdownFails(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Shutdown(context.Background()))

	assert.Error(t, m.Start(Spec{ID: "w", Command: "sleep", Args: []string{"60"}}))
}

func TestStatusUnknownWorker(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(context.Background())

	_, ok := m.Status("nope")
	assert.False(t, ok)
}

func TestStatusesSnapshot(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Start(Spec{ID: "a", Command: "sleep", Args: []string{"60"}}))
	require.NoError(t, m.Start(Spec{ID: "b", Command: "sleep", Args: []string{"60"}}))

	require.Eventually(t, func() bool {
		return len(m.Statuses()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
}

func TestWorkerStateString(t *testing.T) {
	assert.Equal(t, "Starting", WorkerStarting.String())
	assert.Equal(t, "Running", WorkerRunning.String())
	assert.Equal(t, "Backoff", WorkerBackoff.String())
	assert.Equal(t, "Terminating", WorkerTerminating.String())
	assert.Equal(t, "Stopped", WorkerStopped.String())
	assert.Equal(t, "Unknown", WorkerState(99).String())
}
