// Package query implements the read side of the shared error ring:
// most-recent-per-process lookup, bounded history, and reset.
package query

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jrepp/shmlog/pkg/ring"
	"github.com/jrepp/shmlog/pkg/shm"
)

// ErrNotInitialized is returned by every query operation invoked before
// the shared store exists. The only recovery is retrying after the host
// finishes shared-memory startup.
var ErrNotInitialized = errors.New("shared error buffer not initialized")

// Engine answers queries against an attached ring store.
type Engine struct {
	store  *ring.Store
	guard  *shm.Guard
	tracer trace.Tracer
}

// New creates an engine over an attachment. A nil store models the
// not-yet-initialized state: every operation reports ErrNotInitialized.
func New(store *ring.Store, guard *shm.Guard) *Engine {
	return &Engine{
		store:  store,
		guard:  guard,
		tracer: otel.Tracer("shmlog/query"),
	}
}

// LastError returns the most recent record for pid. It scans every
// slot under a shared hold; the capacity is small and fixed, so the
// linear scan needs no per-pid index. The second return value is false
// when no slot matches.
func (e *Engine) LastError(ctx context.Context, pid int32) (ring.Record, bool, error) {
	if e == nil || e.store == nil {
		return ring.Record{}, false, fmt.Errorf("last error: %w", ErrNotInitialized)
	}

	_, span := e.tracer.Start(ctx, "shmlog.LastError",
		trace.WithAttributes(attribute.Int("pid", int(pid))))
	defer span.End()

	if err := e.guard.RLock(); err != nil {
		return ring.Record{}, false, fmt.Errorf("last error: acquire shared lock: %w", err)
	}
	defer e.guard.RUnlock()

	var best ring.Record
	found := false
	for i := 0; i < ring.Capacity; i++ {
		rec := e.store.At(i)
		if rec.Empty() || rec.PID != pid {
			continue
		}
		if !found || rec.Timestamp > best.Timestamp {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

// History returns up to limit records as a lazy, finite, single-use
// sequence. Limits outside [1, Capacity], including non-positive ones,
// fall back to Capacity.
//
// The walk is in physical slot order, index 0 upward, over a snapshot
// taken under a shared hold. Slot order matches insertion order only
// until the buffer first wraps; after that the scan still visits slot 0
// first even when it holds the newest record.
func (e *Engine) History(ctx context.Context, limit int) (iter.Seq[ring.Record], error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("history: %w", ErrNotInitialized)
	}
	if limit <= 0 || limit > ring.Capacity {
		limit = ring.Capacity
	}

	_, span := e.tracer.Start(ctx, "shmlog.History",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	if err := e.guard.RLock(); err != nil {
		return nil, fmt.Errorf("history: acquire shared lock: %w", err)
	}
	snap := e.store.Snapshot()
	if err := e.guard.RUnlock(); err != nil {
		return nil, fmt.Errorf("history: release shared lock: %w", err)
	}

	return func(yield func(ring.Record) bool) {
		n := 0
		for _, rec := range snap {
			if rec.Empty() {
				continue
			}
			if n == limit {
				return
			}
			if !yield(rec) {
				return
			}
			n++
		}
	}, nil
}

// Clear empties the store under an exclusive hold.
func (e *Engine) Clear(ctx context.Context) error {
	if e == nil || e.store == nil {
		return fmt.Errorf("clear: %w", ErrNotInitialized)
	}

	_, span := e.tracer.Start(ctx, "shmlog.Clear")
	defer span.End()

	if err := e.guard.Lock(); err != nil {
		return fmt.Errorf("clear: acquire exclusive lock: %w", err)
	}
	e.store.Reset()
	if err := e.guard.Unlock(); err != nil {
		return fmt.Errorf("clear: release exclusive lock: %w", err)
	}
	return nil
}
