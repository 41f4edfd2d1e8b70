// Package cmd provides the CLI commands for shmlogctl
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jrepp/shmlog/cmd/shmlogctl/internal/config"
)

var cfg *config.Config

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "shmlogctl",
	Short: "shmlogctl - Inspect the shared error ring",
	Long: `shmlogctl is the command-line interface for the shmlog shared error ring.

It attaches to the memory-mapped segment directly for queries (last-error,
history, clear) and talks to the host's control plane for health checks.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		if segmentPath != "" {
			cfg.Segment.Path = segmentPath
		}
		return nil
	},
	SilenceUsage: true,
}

var segmentPath string

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = "0.1.0"
	rootCmd.PersistentFlags().StringVar(&segmentPath, "segment", "", "Path to the shared segment (overrides config)")
}
