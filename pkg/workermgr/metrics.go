package workermgr

import (
	"time"
)

// MetricsCollector receives supervision events. Implementations must
// be safe for concurrent use; every Manager hook may fire from a
// supervision goroutine.
type MetricsCollector interface {
	// WorkerStateTransition records a state transition
	WorkerStateTransition(id WorkerID, from, to WorkerState)

	// WorkerRestart records a worker restart
	WorkerRestart(id WorkerID)

	// WorkerExit records a worker exit, clean or not
	WorkerExit(id WorkerID, err error)

	// WorkerBackoffDuration records the delay before a restart
	WorkerBackoffDuration(id WorkerID, duration time.Duration)
}

// noopMetrics discards all events.
type noopMetrics struct{}

func (noopMetrics) WorkerStateTransition(WorkerID, WorkerState, WorkerState) {}
func (noopMetrics) WorkerRestart(WorkerID)                                   {}
func (noopMetrics) WorkerExit(WorkerID, error)                               {}
func (noopMetrics) WorkerBackoffDuration(WorkerID, time.Duration)            {}
