package host

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ControlPlaneServer exposes the host over gRPC: the standard health
// service fed by the plugin's Health, plus reflection for debugging.
type ControlPlaneServer struct {
	plugin     Plugin
	port       int
	grpcServer *grpc.Server
	listener   net.Listener
}

// NewControlPlaneServer creates a control plane server
func NewControlPlaneServer(plugin Plugin, port int) *ControlPlaneServer {
	return &ControlPlaneServer{
		plugin: plugin,
		port:   port,
	}
}

// Start begins serving control plane requests
func (s *ControlPlaneServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.grpcServer = grpc.NewServer()

	// Register health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, healthServer)

	// Register reflection for debugging
	reflection.Register(s.grpcServer)

	// Start health checker
	go s.healthChecker(ctx, healthServer)

	go func() {
		slog.Info("control plane listening",
			"port", s.Port(),
			"host", s.plugin.Name())

		if err := s.grpcServer.Serve(listener); err != nil {
			slog.Error("control plane serve error", "error", err)
		}
	}()

	return nil
}

// Port returns the actual port the control plane is listening on.
// This is useful when using dynamic port allocation (port 0)
func (s *ControlPlaneServer) Port() int {
	if s.listener != nil {
		addr := s.listener.Addr().(*net.TCPAddr)
		return addr.Port
	}
	return s.port
}

// Stop gracefully stops the control plane server
func (s *ControlPlaneServer) Stop(ctx context.Context) error {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	return nil
}

// healthChecker periodically polls the plugin and updates the gRPC
// health service, for both the named service and the empty default.
func (s *ControlPlaneServer) healthChecker(ctx context.Context, healthServer *health.Server) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	setStatus := func(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
		healthServer.SetServingStatus(s.plugin.Name(), status)
		healthServer.SetServingStatus("", status)
	}

	for {
		select {
		case <-ctx.Done():
			setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			return
		case <-ticker.C:
			health, err := s.plugin.Health(ctx)
			if err != nil {
				slog.Error("health check failed", "error", err)
				setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				continue
			}

			switch health.Status {
			case HealthHealthy, HealthDegraded:
				setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
			default:
				setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			}

			slog.Debug("health check",
				"host", s.plugin.Name(),
				"status", health.Status.String(),
				"message", health.Message)
		}
	}
}
