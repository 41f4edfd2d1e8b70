package workermgr

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Manager supervises worker processes. Each Start spawns a supervision
// goroutine that restarts the worker on exit until Shutdown.
type Manager struct {
	mu      sync.Mutex
	workers map[WorkerID]*worker

	baseDelay time.Duration
	maxDelay  time.Duration
	grace     time.Duration
	metrics   MetricsCollector

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	wg             sync.WaitGroup
}

type worker struct {
	spec Spec

	mu     sync.Mutex
	state  WorkerState
	cmd    *exec.Cmd
	status Status
}

// NewManager creates a worker manager.
func NewManager(opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		workers:        make(map[WorkerID]*worker),
		baseDelay:      time.Second,
		maxDelay:       60 * time.Second,
		grace:          10 * time.Second,
		metrics:        noopMetrics{},
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins supervising a worker. It returns an error if a worker
// with the same ID is already supervised or the manager is shut down.
func (m *Manager) Start(spec Spec) error {
	if spec.ID == "" {
		return fmt.Errorf("worker spec has empty ID")
	}
	if spec.Command == "" {
		return fmt.Errorf("worker %s has empty command", spec.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdownCtx.Err() != nil {
		return fmt.Errorf("manager is shut down")
	}
	if _, exists := m.workers[spec.ID]; exists {
		return fmt.Errorf("worker %s already supervised", spec.ID)
	}

	w := &worker{spec: spec, state: WorkerStarting}
	m.workers[spec.ID] = w

	m.wg.Add(1)
	go m.supervise(w)

	return nil
}

// Status returns the status of one worker.
func (m *Manager) Status(id WorkerID) (Status, bool) {
	m.mu.Lock()
	w, ok := m.workers[id]
	m.mu.Unlock()
	if !ok {
		return Status{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	status := w.status
	status.State = w.state
	return status, true
}

// Statuses returns a snapshot of every supervised worker.
func (m *Manager) Statuses() map[WorkerID]Status {
	m.mu.Lock()
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	out := make(map[WorkerID]Status, len(workers))
	for _, w := range workers {
		w.mu.Lock()
		status := w.status
		status.State = w.state
		out[w.spec.ID] = status
		w.mu.Unlock()
	}
	return out
}

// Shutdown stops every worker: SIGTERM, then SIGKILL after the grace
// period. It blocks until all supervision goroutines finish or ctx is
// done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownCancel()

	m.mu.Lock()
	for _, w := range m.workers {
		w.signal(syscall.SIGTERM)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}

// supervise runs one worker's restart loop until shutdown.
func (m *Manager) supervise(w *worker) {
	defer m.wg.Done()

	attempt := 0
	for {
		if m.shutdownCtx.Err() != nil {
			m.transition(w, WorkerStopped)
			return
		}

		err := m.runOnce(w)
		m.metrics.WorkerExit(w.spec.ID, err)

		if m.shutdownCtx.Err() != nil {
			m.transition(w, WorkerStopped)
			return
		}

		if err != nil {
			slog.Warn("worker exited with error",
				"worker", w.spec.ID,
				"error", err,
				"restarts", attempt)
		} else {
			slog.Info("worker exited cleanly, restarting",
				"worker", w.spec.ID,
				"restarts", attempt)
			// Clean exits reset the backoff schedule.
			attempt = 0
		}

		delay := ExponentialBackoff(attempt, m.baseDelay, m.maxDelay)
		attempt++

		m.transition(w, WorkerBackoff)
		m.metrics.WorkerBackoffDuration(w.spec.ID, delay)

		select {
		case <-m.shutdownCtx.Done():
			m.transition(w, WorkerStopped)
			return
		case <-time.After(delay):
		}

		m.metrics.WorkerRestart(w.spec.ID)
		w.mu.Lock()
		w.status.Restarts++
		w.mu.Unlock()
	}
}

// runOnce starts the worker process and waits for it to exit.
func (m *Manager) runOnce(w *worker) error {
	m.transition(w, WorkerStarting)

	cmd := exec.Command(w.spec.Command, w.spec.Args...)
	cmd.Env = w.spec.Env
	// Own process group, so host signals do not bypass the grace period.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start worker %s: %w", w.spec.ID, err)
	}

	w.mu.Lock()
	w.cmd = cmd
	w.status.PID = cmd.Process.Pid
	w.status.StartedAt = time.Now()
	w.mu.Unlock()

	m.transition(w, WorkerRunning)
	slog.Info("worker started",
		"worker", w.spec.ID,
		"pid", cmd.Process.Pid,
		"command", w.spec.Command)

	// Escalate to SIGKILL if the worker ignores SIGTERM on shutdown.
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-waitDone:
		case <-m.shutdownCtx.Done():
			m.transition(w, WorkerTerminating)
			select {
			case <-waitDone:
			case <-time.After(m.grace):
				slog.Warn("worker ignored SIGTERM, killing",
					"worker", w.spec.ID,
					"grace", m.grace)
				w.signal(syscall.SIGKILL)
			}
		}
	}()

	err := cmd.Wait()
	close(waitDone)

	w.mu.Lock()
	w.cmd = nil
	w.status.LastExit = err
	w.mu.Unlock()

	return err
}

func (m *Manager) transition(w *worker, to WorkerState) {
	w.mu.Lock()
	from := w.state
	w.state = to
	w.mu.Unlock()

	if from != to {
		m.metrics.WorkerStateTransition(w.spec.ID, from, to)
	}
}

// signal delivers sig to the worker process if it is running.
func (w *worker) signal(sig syscall.Signal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd != nil && w.cmd.Process != nil {
		w.cmd.Process.Signal(sig)
	}
}
