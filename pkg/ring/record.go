// Package ring implements the fixed-capacity error-record buffer that
// lives inside a shared-memory segment. The buffer never grows and
// never allocates after initialization: once all slots are in use, each
// append overwrites the slot under the rolling write cursor.
package ring

import (
	"log/slog"
	"time"
)

const (
	// Capacity is the fixed slot count, set at initialization and
	// immutable for the segment's lifetime.
	Capacity = 100

	// MaxQueryLen and MaxMessageLen bound the variable text fields.
	// Longer inputs are truncated, never rejected.
	MaxQueryLen   = 8191
	MaxMessageLen = 1023

	// CodeLen is the fixed width of the classification code.
	CodeLen = 5
)

// Record is one captured error event.
//
// A zero Timestamp marks an empty slot; cleared and never-written slots
// carry it and are excluded from every read result.
type Record struct {
	PID       int32
	Level     slog.Level
	Timestamp int64 // microseconds since the Unix epoch, 0 = empty
	Code      string
	Message   string
	QueryText string
}

// Empty reports whether the record is the empty-slot sentinel.
func (r Record) Empty() bool { return r.Timestamp == 0 }

// Time converts the microsecond timestamp to a time.Time.
func (r Record) Time() time.Time { return time.UnixMicro(r.Timestamp) }

// Clamp returns a copy with every text field truncated to its bound.
func (r Record) Clamp() Record {
	r.Code = truncate(r.Code, CodeLen)
	r.Message = truncate(r.Message, MaxMessageLen)
	r.QueryText = truncate(r.QueryText, MaxQueryLen)
	return r
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
