// shmlog-worker attaches to an existing shared segment and records
// error events read as JSON lines from stdin. It is the reference
// worker for host-supervised deployments and doubles as a manual tool:
//
//	echo '{"level":"ERROR","message":"boom","code":"XX000"}' | shmlog-worker -segment /dev/shm/shmlog.ring
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrepp/shmlog"
	"github.com/jrepp/shmlog/pkg/capture"
	"github.com/jrepp/shmlog/pkg/ring"
)

type inputEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Query   string `json:"query"`
}

func main() {
	segment := flag.String("segment", "/dev/shm/shmlog.ring", "Path to the shared segment")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	log, err := shmlog.Attach(*segment)
	if err != nil {
		slog.Error("failed to attach to segment", "segment", *segment, "error", err)
		os.Exit(1)
	}
	defer log.Close()

	slog.Info("worker attached", "segment", *segment, "pid", os.Getpid())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		// Query text alone can approach the slot limit.
		scanner.Buffer(make([]byte, 0, 64*1024), ring.MaxQueryLen+ring.MaxMessageLen+1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			slog.Error("stdin read error", "error", err)
		}
	}()

	recorded := 0
	for {
		select {
		case sig := <-sigChan:
			slog.Info("worker shutting down", "signal", sig.String(), "recorded", recorded)
			return
		case line, ok := <-lines:
			if !ok {
				slog.Info("stdin closed, worker exiting", "recorded", recorded)
				return
			}
			if line == "" {
				continue
			}

			var in inputEvent
			if err := json.Unmarshal([]byte(line), &in); err != nil {
				slog.Warn("skipping malformed event", "error", err)
				continue
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(in.Level)); err != nil {
				level = slog.LevelError
			}

			log.Record(capture.Event{
				Level:     level,
				Message:   in.Message,
				Code:      in.Code,
				QueryText: in.Query,
			})
			recorded++
		}
	}
}
