package query_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrepp/shmlog/pkg/query"
	"github.com/jrepp/shmlog/pkg/ring"
	"github.com/jrepp/shmlog/pkg/shm"
)

func newTestEngine(t *testing.T) (*query.Engine, *ring.Store) {
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
	return query.New(store, seg.Guard()), store
}

func collect(t *testing.T, seq func(func(ring.Record) bool)) []ring.Record {
	t.Helper()
	var out []ring.Record
	for rec := range seq {
		out = append(out, rec)
	}
	return out
}

func TestOperationsBeforeInitialization(t *testing.T) {
	engine := query.New(nil, nil)
	ctx := context.Background()

	_, _, err := engine.LastError(ctx, 1)
	assert.ErrorIs(t, err, query.ErrNotInitialized)

	_, err = engine.History(ctx, 10)
	assert.ErrorIs(t, err, query.ErrNotInitialized)

	err = engine.Clear(ctx)
	assert.ErrorIs(t, err, query.ErrNotInitialized)
}

func TestRecordThenQueryThenClear(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	for i, msg := range []string{"first", "second", "third"} {
		store.Append(ring.Record{
			PID:       42,
			Level:     slog.LevelError,
			Timestamp: int64(i + 1),
			Message:   msg,
		})
	}

	seq, err := engine.History(ctx, 10)
	require.NoError(t, err)
	records := collect(t, seq)
	require.Len(t, records, 3)
	assert.Equal(t, "first", records[0].Message)
	assert.Equal(t, "third", records[2].Message)

	rec, found, err := engine.LastError(ctx, 42)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "third", rec.Message)

	require.NoError(t, engine.Clear(ctx))

	seq, err = engine.History(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, collect(t, seq))

	_, found, err = engine.LastError(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLastErrorPicksNewestForPID(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.Append(ring.Record{PID: 1, Timestamp: 10, Message: "pid1-old"})
	store.Append(ring.Record{PID: 2, Timestamp: 20, Message: "pid2"})
	store.Append(ring.Record{PID: 1, Timestamp: 30, Message: "pid1-new"})

	rec, found, err := engine.LastError(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "pid1-new", rec.Message)

	rec, found, err = engine.LastError(ctx, 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "pid2", rec.Message)
}

func TestLastErrorUnknownPID(t *testing.T) {
	engine, store := newTestEngine(t)

	store.Append(ring.Record{PID: 1, Timestamp: 1})

	_, found, err := engine.LastError(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHistoryLimits(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		store.Append(ring.Record{PID: 1, Timestamp: int64(i + 1)})
	}

	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"exact", 10, 10},
		{"smaller", 3, 3},
		{"zero falls back to capacity", 0, 10},
		{"negative falls back to capacity", -5, 10},
		{"over capacity falls back to capacity", ring.Capacity + 50, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seq, err := engine.History(ctx, tc.limit)
			require.NoError(t, err)
			assert.Len(t, collect(t, seq), tc.want)
		})
	}
}

func TestHistoryWalksSlotOrderAfterWrap(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < ring.Capacity+2; i++ {
		store.Append(ring.Record{PID: 1, Timestamp: int64(i + 1)})
	}

	seq, err := engine.History(ctx, 0)
	require.NoError(t, err)
	records := collect(t, seq)
	require.Len(t, records, ring.Capacity)

	// Physical slot order: slot 0 holds the record that wrapped.
	assert.Equal(t, int64(ring.Capacity+1), records[0].Timestamp)
	assert.Equal(t, int64(ring.Capacity+2), records[1].Timestamp)
	assert.Equal(t, int64(3), records[2].Timestamp)
}

func TestHistorySnapshotIgnoresLaterWrites(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	store.Append(ring.Record{PID: 1, Timestamp: 1})

	seq, err := engine.History(ctx, 0)
	require.NoError(t, err)

	// Written after the snapshot, invisible to the sequence.
	store.Append(ring.Record{PID: 1, Timestamp: 2})

	assert.Len(t, collect(t, seq), 1)
}
