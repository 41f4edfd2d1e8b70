package capture

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrepp/shmlog/pkg/ring"
	"github.com/jrepp/shmlog/pkg/shm"
)

func newTestAttachment(t *testing.T) (*ring.Store, *shm.Guard) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "seg")
	seg, err := shm.Open(path, ring.Size, func(data []byte) error {
		store, err := ring.New(data)
		if err != nil {
			return err
		}
		store.Initialize()
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(func() { seg.Close() })

	store, err := ring.New(seg.Data())
	require.NoError(t, err)
	return store, seg.Guard()
}

func fixedClock(micros int64) func() time.Time {
	return func() time.Time { return time.UnixMicro(micros) }
}

func TestRecordWritesToRing(t *testing.T) {
	store, guard := newTestAttachment(t)

	sink := New(WithPID(42), WithClock(fixedClock(1234567)))
	sink.Attach(store, guard)

	sink.Record(Event{
		Level:     slog.LevelError,
		Message:   "connection reset",
		Code:      "08006",
		QueryText: "SELECT 1",
	})

	require.Equal(t, 1, store.Len())
	rec := store.At(0)
	assert.Equal(t, int32(42), rec.PID)
	assert.Equal(t, slog.LevelError, rec.Level)
	assert.Equal(t, int64(1234567), rec.Timestamp)
	assert.Equal(t, "08006", rec.Code)
	assert.Equal(t, "connection reset", rec.Message)
	assert.Equal(t, "SELECT 1", rec.QueryText)
}

func TestBelowThresholdIsFiltered(t *testing.T) {
	store, guard := newTestAttachment(t)

	sink := New()
	sink.Attach(store, guard)

	sink.Record(Event{Level: slog.LevelWarn, Message: "not captured"})
	assert.Equal(t, 0, store.Len())

	sink.Record(Event{Level: slog.LevelError, Message: "captured"})
	assert.Equal(t, 1, store.Len())
}

func TestThresholdOverride(t *testing.T) {
	store, guard := newTestAttachment(t)

	sink := New(WithThreshold(slog.LevelWarn))
	sink.Attach(store, guard)

	sink.Record(Event{Level: slog.LevelWarn, Message: "captured now"})
	assert.Equal(t, 1, store.Len())

	sink.Record(Event{Level: slog.LevelInfo, Message: "still filtered"})
	assert.Equal(t, 1, store.Len())
}

func TestDetachedSinkDropsSilently(t *testing.T) {
	sink := New()

	var seen []Event
	sink.Register(func(ev Event) { seen = append(seen, ev) })

	// Must not panic and must still delegate.
	sink.Record(Event{Level: slog.LevelError, Message: "early"})
	require.Len(t, seen, 1)
	assert.Equal(t, "early", seen[0].Message)
}

func TestObserversRunInRegistrationOrder(t *testing.T) {
	store, guard := newTestAttachment(t)

	sink := New()
	sink.Attach(store, guard)

	var order []string
	sink.Register(func(Event) { order = append(order, "first") })
	sink.Register(func(Event) { order = append(order, "second") })

	sink.Record(Event{Level: slog.LevelError, Message: "boom"})
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestObserversSeeFilteredEvents(t *testing.T) {
	store, guard := newTestAttachment(t)

	sink := New()
	sink.Attach(store, guard)

	var seen []Event
	sink.Register(func(ev Event) { seen = append(seen, ev) })

	sink.Record(Event{Level: slog.LevelInfo, Message: "filtered"})
	sink.Record(Event{Level: slog.LevelError, Message: "captured"})

	require.Len(t, seen, 2, "observers receive every event, captured or not")
	assert.Equal(t, 1, store.Len())
}

func TestMetricsCountOutcomes(t *testing.T) {
	store, guard := newTestAttachment(t)
	metrics := NewMetrics("test")

	sink := New(WithMetrics(metrics))
	sink.Attach(store, guard)

	sink.Record(Event{Level: slog.LevelInfo, Message: "filtered"})
	sink.Record(Event{
		Level:     slog.LevelError,
		Message:   strings.Repeat("m", ring.MaxMessageLen+1),
		QueryText: strings.Repeat("q", ring.MaxQueryLen+1),
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.capturedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.droppedTotal.WithLabelValues("below_threshold")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.truncatedTotal.WithLabelValues("message")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.truncatedTotal.WithLabelValues("query_text")))
}

func TestDetachedDropCounted(t *testing.T) {
	metrics := NewMetrics("test")
	sink := New(WithMetrics(metrics))

	sink.Record(Event{Level: slog.LevelError, Message: "early"})
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.droppedTotal.WithLabelValues("uninitialized")))
}
