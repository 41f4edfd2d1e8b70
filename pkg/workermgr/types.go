// Package workermgr supervises worker processes that attach to the
// shared error segment. Workers that exit are restarted with
// exponential backoff; shutdown delivers SIGTERM and escalates to
// SIGKILL after a grace period.
package workermgr

import (
	"time"
)

// WorkerID uniquely identifies a supervised worker
type WorkerID string

// WorkerState represents the lifecycle state of a supervised worker
type WorkerState int

const (
	// WorkerStarting - worker process is being launched
	WorkerStarting WorkerState = iota
	// WorkerRunning - worker process is alive
	WorkerRunning
	// WorkerBackoff - worker exited and is waiting to be restarted
	WorkerBackoff
	// WorkerTerminating - shutdown signal sent, awaiting exit
	WorkerTerminating
	// WorkerStopped - worker is stopped and will not be restarted
	WorkerStopped
)

// String returns the string representation of a WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStarting:
		return "Starting"
	case WorkerRunning:
		return "Running"
	case WorkerBackoff:
		return "Backoff"
	case WorkerTerminating:
		return "Terminating"
	case WorkerStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Spec describes one worker process to supervise.
type Spec struct {
	ID      WorkerID
	Command string
	Args    []string
	Env     []string
}

// Status tracks the runtime state of a supervised worker.
type Status struct {
	State     WorkerState
	PID       int
	Restarts  int
	LastExit  error
	StartedAt time.Time
}
