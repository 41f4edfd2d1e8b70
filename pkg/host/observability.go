package host

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// ObservabilityConfig holds observability configuration.
type ObservabilityConfig struct {
	// MetricsPort is the port for the Prometheus metrics endpoint.
	// Set to 0 to disable the metrics HTTP server.
	MetricsPort int `yaml:"metrics_port"`

	// EnableTracing enables OpenTelemetry tracing with a stdout
	// exporter. Spans are pretty-printed to the host's stdout.
	EnableTracing bool `yaml:"enable_tracing"`
}

// ObservabilityManager manages tracing and the metrics endpoint.
type ObservabilityManager struct {
	config         *ObservabilityConfig
	service        ServiceConfig
	registry       *prometheus.Registry
	tracerProvider *sdktrace.TracerProvider
	metricsServer  *http.Server
	shutdownOnce   sync.Once
}

// NewObservabilityManager creates an observability manager. The
// registry backs the /metrics endpoint; nil is allowed and serves an
// empty registry.
func NewObservabilityManager(config *ObservabilityConfig, service ServiceConfig, registry *prometheus.Registry) *ObservabilityManager {
	if config == nil {
		config = &ObservabilityConfig{}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	return &ObservabilityManager{
		config:   config,
		service:  service,
		registry: registry,
	}
}

// Initialize sets up observability components
func (o *ObservabilityManager) Initialize(ctx context.Context) error {
	slog.Info("initializing observability",
		"service_name", o.service.Name,
		"service_version", o.service.Version,
		"metrics_port", o.config.MetricsPort,
		"enable_tracing", o.config.EnableTracing)

	if o.config.EnableTracing {
		if err := o.initializeTracing(ctx); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		slog.Info("OpenTelemetry tracing initialized",
			"service_name", o.service.Name)
	}

	if o.config.MetricsPort > 0 {
		o.startMetricsServer()
		slog.Info("metrics server started",
			"port", o.config.MetricsPort,
			"endpoint", fmt.Sprintf("http://localhost:%d/metrics", o.config.MetricsPort))
	}

	return nil
}

// initializeTracing sets up OpenTelemetry tracing
func (o *ObservabilityManager) initializeTracing(ctx context.Context) error {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(o.service.Name),
			semconv.ServiceVersion(o.service.Version),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	o.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	// Register as global tracer provider
	otel.SetTracerProvider(o.tracerProvider)

	return nil
}

// GetTracer returns a tracer for the given name
func (o *ObservabilityManager) GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// startMetricsServer starts the HTTP server for Prometheus metrics
func (o *ObservabilityManager) startMetricsServer() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{}))

	o.metricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", o.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("metrics server listening", "port", o.config.MetricsPort)
		if err := o.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown gracefully shuts down observability components
func (o *ObservabilityManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	o.shutdownOnce.Do(func() {
		slog.Info("shutting down observability components")

		if o.metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := o.metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("failed to shutdown metrics server", "error", err)
				shutdownErr = fmt.Errorf("metrics server shutdown: %w", err)
			}
		}

		if o.tracerProvider != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := o.tracerProvider.Shutdown(shutdownCtx); err != nil {
				slog.Error("failed to shutdown tracer provider", "error", err)
				if shutdownErr == nil {
					shutdownErr = fmt.Errorf("tracer provider shutdown: %w", err)
				}
			}
		}
	})

	return shutdownErr
}
