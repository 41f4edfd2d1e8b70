package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every recorded error from the shared ring",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	log, err := attach()
	if err != nil {
		return err
	}
	defer log.Close()

	if err := log.Clear(context.Background()); err != nil {
		return err
	}
	fmt.Println("ring cleared")
	return nil
}
