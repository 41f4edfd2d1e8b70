package shmlog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jrepp/shmlog/pkg/capture"
	"github.com/jrepp/shmlog/pkg/host"
	"github.com/jrepp/shmlog/pkg/ring"
	"github.com/jrepp/shmlog/pkg/workermgr"
)

// Plugin hosts the shared error ring as a managed service: it creates
// the segment, spawns configured workers, and reports ring occupancy
// through the control plane health check.
type Plugin struct {
	version string

	log     *Log
	metrics *capture.Metrics
	workers *workermgr.Manager
	config  *host.Config
}

// NewPlugin creates the host plugin. The metrics registry exists from
// construction so the host can serve it before Initialize runs.
func NewPlugin(version string) *Plugin {
	return &Plugin{
		version: version,
		metrics: capture.NewMetrics("shmlog"),
	}
}

// Name returns the component name
func (p *Plugin) Name() string { return "shmlog-host" }

// Version returns the component version
func (p *Plugin) Version() string { return p.version }

// MetricsRegistry exposes capture metrics for the /metrics endpoint.
func (p *Plugin) MetricsRegistry() *prometheus.Registry {
	return p.metrics.Registry()
}

// Initialize creates or attaches the shared segment.
func (p *Plugin) Initialize(ctx context.Context, config *host.Config) error {
	p.config = config

	threshold, err := config.Store.ThresholdLevel()
	if err != nil {
		return err
	}

	log, err := Open(config.Store.Path, WithSinkOptions(
		capture.WithThreshold(threshold),
		capture.WithMetrics(p.metrics),
	))
	if err != nil {
		return fmt.Errorf("failed to open shared segment: %w", err)
	}
	p.log = log

	slog.Info("shared segment ready",
		"path", log.Path(),
		"created", log.Created(),
		"threshold", threshold.String())

	return nil
}

// Start spawns the configured worker processes. With no workers
// configured it returns immediately; the control plane keeps the host
// alive.
func (p *Plugin) Start(ctx context.Context) error {
	if p.config.Workers.Count <= 0 || p.config.Workers.Command == "" {
		slog.Info("no workers configured")
		return nil
	}

	// Worker metrics register on the plugin's registry so they are
	// scraped from the same /metrics endpoint as capture metrics.
	p.workers = workermgr.NewManager(
		workermgr.WithMetricsCollector(
			workermgr.NewPrometheusMetricsCollector("shmlog", p.metrics.Registry())),
	)

	args := append([]string{}, p.config.Workers.Args...)
	args = append(args, "-segment", p.config.Store.Path)

	for i := 0; i < p.config.Workers.Count; i++ {
		spec := workermgr.Spec{
			ID:      workermgr.WorkerID(fmt.Sprintf("worker-%d", i)),
			Command: p.config.Workers.Command,
			Args:    args,
		}
		if err := p.workers.Start(spec); err != nil {
			return fmt.Errorf("failed to start worker %s: %w", spec.ID, err)
		}
	}

	slog.Info("workers started",
		"count", p.config.Workers.Count,
		"command", p.config.Workers.Command)

	return nil
}

// workerStopTimeout caps how long Stop waits for workers to exit after
// SIGTERM.
const workerStopTimeout = 30 * time.Second

// Stop shuts down workers and detaches from the segment.
func (p *Plugin) Stop(ctx context.Context) error {
	if p.workers != nil {
		// The bootstrap context is already canceled when Stop runs;
		// workers still get their full grace period.
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), workerStopTimeout)
		defer cancel()
		if err := p.workers.Shutdown(stopCtx); err != nil {
			slog.Error("worker shutdown failed", "error", err)
		}
	}

	if p.log == nil {
		return nil
	}
	if p.config.Store.UnlinkOnShutdown {
		slog.Info("removing shared segment", "path", p.log.Path())
		return p.log.Unlink()
	}
	return p.log.Close()
}

// Health reports ring occupancy and worker states.
func (p *Plugin) Health(ctx context.Context) (*host.HealthStatus, error) {
	if p.log == nil {
		return &host.HealthStatus{
			Status:  host.HealthUnhealthy,
			Message: "shared segment not initialized",
		}, nil
	}

	if err := p.log.guard.RLock(); err != nil {
		return &host.HealthStatus{
			Status:  host.HealthDegraded,
			Message: fmt.Sprintf("segment lock unavailable: %v", err),
		}, nil
	}
	used := p.log.store.Len()
	total := p.log.store.TotalWritten()
	cursor := p.log.store.Cursor()
	if err := p.log.guard.RUnlock(); err != nil {
		return &host.HealthStatus{
			Status:  host.HealthDegraded,
			Message: fmt.Sprintf("segment lock release failed: %v", err),
		}, nil
	}

	details := map[string]string{
		"segment":       p.log.Path(),
		"used_slots":    strconv.Itoa(used),
		"total_written": strconv.FormatUint(total, 10),
		"cursor":        strconv.FormatUint(uint64(cursor), 10),
	}

	if p.workers != nil {
		for id, status := range p.workers.Statuses() {
			details["worker_"+string(id)] = status.State.String()
		}
	}

	return &host.HealthStatus{
		Status:  host.HealthHealthy,
		Message: fmt.Sprintf("%d of %d slots used", used, ring.Capacity),
		Details: details,
	}, nil
}

// Compile-time interface compliance checks
var (
	_ host.Plugin          = (*Plugin)(nil)
	_ host.MetricsProvider = (*Plugin)(nil)
)
