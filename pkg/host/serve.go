package host

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsProvider is implemented by plugins that expose a Prometheus
// registry. The host serves it at /metrics when the metrics server is
// enabled.
type MetricsProvider interface {
	MetricsRegistry() *prometheus.Registry
}

// ServeOptions configures host executable startup.
type ServeOptions struct {
	// DefaultName is the host name if not specified in config
	DefaultName string

	// DefaultVersion is the host version
	DefaultVersion string

	// DefaultPort is the default control plane port if not specified.
	// Use 0 for dynamic port allocation
	DefaultPort int

	// ConfigPath is the path to the configuration file.
	// Can be overridden by -config flag
	ConfigPath string

	// MetricsPort is the port for the Prometheus metrics endpoint.
	// Set to 0 to disable metrics HTTP server
	MetricsPort int

	// EnableTracing enables OpenTelemetry tracing
	EnableTracing bool
}

// Serve is the main entrypoint for host executables. It handles all
// boilerplate:
// - Flag parsing
// - Config loading (with defaults)
// - Dynamic port allocation
// - Logging setup
// - Lifecycle management (Initialize → Start → Stop)
//
// This should be called from main():
//
//	func main() {
//	    host.Serve(func() host.Plugin { return shmlog.NewPlugin() }, host.ServeOptions{
//	        DefaultName:    "shmlog-host",
//	        DefaultVersion: "0.1.0",
//	        DefaultPort:    9090,
//	        ConfigPath:     "config.yaml",
//	    })
//	}
//
// The factory should not open the shared segment itself; attachment
// happens in the Initialize lifecycle method.
func Serve(factory func() Plugin, opts ServeOptions) {
	configPath := flag.String("config", opts.ConfigPath, "Path to configuration file")
	grpcPort := flag.Int("grpc-port", opts.DefaultPort, "gRPC control plane port (0 for dynamic allocation)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	metricsPort := flag.Int("metrics-port", opts.MetricsPort, "Prometheus metrics port (0 to disable)")
	enableTracing := flag.Bool("enable-tracing", opts.EnableTracing, "Enable OpenTelemetry tracing")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("host starting",
		"name", opts.DefaultName,
		"version", opts.DefaultVersion,
		"config_path", *configPath,
		"grpc_port", *grpcPort)

	// Load configuration (use defaults if file doesn't exist)
	config, err := LoadConfig(*configPath)
	if err != nil {
		slog.Warn("failed to load config, using defaults",
			"error", err,
			"config_path", *configPath)
		config = DefaultConfig(opts.DefaultName, opts.DefaultVersion)
	}

	if *grpcPort == 0 {
		port, err := allocateDynamicPort()
		if err != nil {
			slog.Error("failed to allocate dynamic port", "error", err)
			os.Exit(1)
		}
		slog.Info("allocated dynamic port", "port", port)
		config.ControlPlane.Port = port
	} else if *grpcPort != opts.DefaultPort {
		slog.Info("overriding control plane port from flag",
			"config_port", config.ControlPlane.Port,
			"flag_port", *grpcPort)
		config.ControlPlane.Port = *grpcPort
	}

	if *metricsPort != opts.MetricsPort || config.Observability.MetricsPort == 0 {
		config.Observability.MetricsPort = *metricsPort
	}
	if *enableTracing {
		config.Observability.EnableTracing = true
	}

	slog.Info("creating host instance",
		"name", opts.DefaultName,
		"version", opts.DefaultVersion)
	plugin := factory()

	if plugin.Name() != opts.DefaultName {
		slog.Warn("host name mismatch",
			"expected", opts.DefaultName,
			"actual", plugin.Name())
	}

	// The plugin's registry backs /metrics when it exposes one.
	var registry *prometheus.Registry
	if provider, ok := plugin.(MetricsProvider); ok {
		registry = provider.MetricsRegistry()
	}

	observability := NewObservabilityManager(&config.Observability, config.Service, registry)

	ctx := context.Background()
	if err := observability.Initialize(ctx); err != nil {
		slog.Error("failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown observability", "error", err)
		}
	}()

	slog.Info("bootstrapping host",
		"name", plugin.Name(),
		"version", plugin.Version(),
		"control_plane_port", config.ControlPlane.Port,
		"metrics_port", config.Observability.MetricsPort,
		"tracing_enabled", config.Observability.EnableTracing)

	if err := BootstrapWithConfig(plugin, config); err != nil {
		log.Printf("Fatal error: %v\n", err)
		os.Exit(1)
	}

	slog.Info("host shut down successfully",
		"name", plugin.Name(),
		"version", plugin.Version())
}

// allocateDynamicPort finds an available port by binding to :0 and returning the allocated port
func allocateDynamicPort() (int, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate dynamic port: %w", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	return addr.Port, nil
}
