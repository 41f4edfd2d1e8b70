package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jrepp/shmlog"
	"github.com/jrepp/shmlog/pkg/query"
	"github.com/jrepp/shmlog/pkg/ring"
)

var lastErrorCmd = &cobra.Command{
	Use:   "last-error <pid>",
	Short: "Show the most recent error recorded by a process",
	Args:  cobra.ExactArgs(1),
	RunE:  runLastError,
}

func init() {
	rootCmd.AddCommand(lastErrorCmd)
}

func runLastError(cmd *cobra.Command, args []string) error {
	pid, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid pid %q: %w", args[0], err)
	}

	log, err := attach()
	if err != nil {
		return err
	}
	defer log.Close()

	rec, found, err := log.LastError(context.Background(), int32(pid))
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("no errors recorded for pid %d\n", pid)
		return nil
	}

	printRecord(rec)
	return nil
}

// attach opens the segment read-write; queries share it with live
// writers. A missing segment is reported as not initialized.
func attach() (*shmlog.Log, error) {
	log, err := shmlog.Attach(cfg.Segment.Path)
	if err != nil {
		if errors.Is(err, query.ErrNotInitialized) {
			return nil, fmt.Errorf("segment %s does not exist; is the host running?", cfg.Segment.Path)
		}
		return nil, err
	}
	return log, nil
}

func printRecord(rec ring.Record) {
	fmt.Printf("pid=%d level=%s time=%s code=%s\n",
		rec.PID,
		rec.Level.String(),
		rec.Time().Format("2006-01-02T15:04:05.000000Z07:00"),
		rec.Code)
	fmt.Printf("  message: %s\n", rec.Message)
	if rec.QueryText != "" {
		fmt.Printf("  query:   %s\n", rec.QueryText)
	}
}
