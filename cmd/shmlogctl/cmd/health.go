package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check shmlog host health",
	Long:  `Check the health status of the shmlog host via its gRPC control plane.`,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	conn, err := grpc.NewClient(cfg.Host.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connect to host: %w", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Host.Timeout)*time.Second)
	defer cancel()

	client := grpc_health_v1.NewHealthClient(conn)
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("host %s: %s\n", cfg.Host.Address, resp.Status.String())
	return nil
}
