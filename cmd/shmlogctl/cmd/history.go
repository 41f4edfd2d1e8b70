package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded errors in slot order",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum records to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	log, err := attach()
	if err != nil {
		return err
	}
	defer log.Close()

	records, err := log.History(context.Background(), historyLimit)
	if err != nil {
		return err
	}

	n := 0
	for rec := range records {
		printRecord(rec)
		n++
	}
	fmt.Printf("%d record(s)\n", n)
	return nil
}
