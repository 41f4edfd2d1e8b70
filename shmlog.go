// Package shmlog is a bounded error-event log shared between processes
// through a memory-mapped segment. A fixed ring of 100 slots holds the
// most recent error records; writers from any attached process append
// under an exclusive cross-process lock, readers scan under a shared
// one, and the oldest record is silently overwritten when the ring is
// full.
//
// The usual shape is one host process that creates the segment and any
// number of worker processes that attach to it:
//
//	log, err := shmlog.Open("/dev/shm/shmlog.ring")
//	if err != nil { ... }
//	defer log.Close()
//
//	log.Record(capture.Event{
//	    Level:   slog.LevelError,
//	    Message: "connection reset",
//	    Code:    "08006",
//	})
//
//	rec, ok, err := log.LastError(ctx, int32(os.Getpid()))
package shmlog

import (
	"context"
	"fmt"
	"iter"

	"github.com/jrepp/shmlog/pkg/capture"
	"github.com/jrepp/shmlog/pkg/query"
	"github.com/jrepp/shmlog/pkg/ring"
	"github.com/jrepp/shmlog/pkg/shm"
)

// Log is one process's attachment to the shared error ring.
type Log struct {
	seg    *shm.Segment
	store  *ring.Store
	guard  *shm.Guard
	sink   *capture.Sink
	engine *query.Engine
}

// Option configures an attachment.
type Option func(*options)

type options struct {
	sinkOpts []capture.Option
}

// WithSinkOptions forwards options to the capture sink.
func WithSinkOptions(opts ...capture.Option) Option {
	return func(o *options) { o.sinkOpts = append(o.sinkOpts, opts...) }
}

// Open creates the segment at path if it does not exist, or attaches
// to it if it does. Whichever process arrives first initializes the
// ring; everyone else validates the header and maps the same memory.
func Open(path string, opts ...Option) (*Log, error) {
	return open(path, false, opts...)
}

// Attach attaches to an existing segment without creating one. A
// missing segment reports query.ErrNotInitialized, so workers started
// before the host can distinguish "not yet" from real failures.
func Attach(path string, opts ...Option) (*Log, error) {
	return open(path, true, opts...)
}

func open(path string, attachOnly bool, opts ...Option) (*Log, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if attachOnly && !shm.Exists(path) {
		return nil, fmt.Errorf("attach %s: %w", path, query.ErrNotInitialized)
	}

	seg, err := shm.Open(path, ring.Size, func(data []byte) error {
		store, err := ring.New(data)
		if err != nil {
			return err
		}
		store.Initialize()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}

	store, err := ring.New(seg.Data())
	if err != nil {
		seg.Close()
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}
	if err := store.Validate(); err != nil {
		seg.Close()
		return nil, fmt.Errorf("open segment %s: %w", path, err)
	}

	sink := capture.New(o.sinkOpts...)
	sink.Attach(store, seg.Guard())

	return &Log{
		seg:    seg,
		store:  store,
		guard:  seg.Guard(),
		sink:   sink,
		engine: query.New(store, seg.Guard()),
	}, nil
}

// Created reports whether this attachment initialized the segment.
func (l *Log) Created() bool { return l.seg.Created() }

// Path returns the segment file path.
func (l *Log) Path() string { return l.seg.Path() }

// Sink returns the capture sink, for observer registration.
func (l *Log) Sink() *capture.Sink { return l.sink }

// Record captures one event into the ring. See capture.Sink.Record.
func (l *Log) Record(ev capture.Event) { l.sink.Record(ev) }

// LastError returns the most recent record for pid.
func (l *Log) LastError(ctx context.Context, pid int32) (ring.Record, bool, error) {
	return l.engine.LastError(ctx, pid)
}

// History returns up to limit records in slot order.
func (l *Log) History(ctx context.Context, limit int) (iter.Seq[ring.Record], error) {
	return l.engine.History(ctx, limit)
}

// Clear empties the ring for every attached process.
func (l *Log) Clear(ctx context.Context) error {
	return l.engine.Clear(ctx)
}

// Close unmaps the segment. Other attachments are unaffected; the
// segment file stays until Unlink.
func (l *Log) Close() error {
	return l.seg.Close()
}

// Unlink closes the attachment and removes the segment files. Records
// are lost for every process.
func (l *Log) Unlink() error {
	if err := l.seg.Close(); err != nil {
		return err
	}
	return l.seg.Unlink()
}
