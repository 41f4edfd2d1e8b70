// Package host runs the shmlog store inside a server process: lifecycle
// management, configuration, a gRPC control plane for health checks,
// and observability wiring.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Plugin is the lifecycle a hosted component implements.
type Plugin interface {
	// Name returns the component name (e.g., "shmlog-host")
	Name() string

	// Version returns the component version
	Version() string

	// Initialize prepares the component with configuration
	Initialize(ctx context.Context, config *Config) error

	// Start begins serving requests
	Start(ctx context.Context) error

	// Stop gracefully shuts down the component
	Stop(ctx context.Context) error

	// Health returns the component health status
	Health(ctx context.Context) (*HealthStatus, error)
}

// HealthStatus represents component health.
type HealthStatus struct {
	Status  HealthState
	Message string
	Details map[string]string
}

// HealthState represents health state.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthDegraded
	HealthUnhealthy
)

func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "HEALTHY"
	case HealthDegraded:
		return "DEGRADED"
	case HealthUnhealthy:
		return "UNHEALTHY"
	default:
		return "UNKNOWN"
	}
}

// Bootstrap initializes and runs a plugin with lifecycle management.
func Bootstrap(plugin Plugin, configPath string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("host starting",
		"name", plugin.Name(),
		"version", plugin.Version(),
		"config", configPath)

	config, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return BootstrapWithConfig(plugin, config)
}

// BootstrapWithConfig initializes and runs a plugin with a pre-loaded
// configuration, blocking until a shutdown signal or a fatal error.
func BootstrapWithConfig(plugin Plugin, config *Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("initializing host",
		"name", plugin.Name(),
		"version", plugin.Version(),
		"segment", config.Store.Path,
		"control_plane_port", config.ControlPlane.Port)

	if err := plugin.Initialize(ctx, config); err != nil {
		slog.Error("failed to initialize host", "error", err)
		return fmt.Errorf("failed to initialize host: %w", err)
	}
	slog.Info("host initialized", "name", plugin.Name())

	controlPlane := NewControlPlaneServer(plugin, config.ControlPlane.Port)
	if err := controlPlane.Start(ctx); err != nil {
		slog.Error("failed to start control plane", "error", err)
		return fmt.Errorf("failed to start control plane: %w", err)
	}
	defer controlPlane.Stop(ctx)
	slog.Info("control plane started", "port", controlPlane.Port())

	errChan := make(chan error, 1)
	go func() {
		if err := plugin.Start(ctx); err != nil {
			slog.Error("host start error", "name", plugin.Name(), "error", err)
			errChan <- fmt.Errorf("host error: %w", err)
		}
	}()

	slog.Info("host ready",
		"name", plugin.Name(),
		"control_plane_port", controlPlane.Port())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("host failed", "error", err)
		return err
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
	}

	slog.Info("shutting down host", "name", plugin.Name())
	cancel()

	if err := plugin.Stop(ctx); err != nil {
		slog.Error("error stopping host", "name", plugin.Name(), "error", err)
		return err
	}

	slog.Info("host stopped", "name", plugin.Name())
	return nil
}
