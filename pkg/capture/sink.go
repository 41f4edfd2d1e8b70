// Package capture bridges the host's error-reporting pipeline into the
// shared ring buffer. The sink runs inside the host's own error path,
// so it never returns an error, never raises, and never recurses into
// the pipeline that feeds it.
package capture

import (
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrepp/shmlog/pkg/ring"
	"github.com/jrepp/shmlog/pkg/shm"
)

// Event is one item delivered by the host's error-reporting pipeline.
// The sink supplies the process id and timestamp itself; callers only
// describe what happened.
type Event struct {
	Level     slog.Level
	Message   string
	Code      string
	QueryText string
}

// Observer receives every event the sink sees, after the sink's own
// processing, in registration order. The sink always passes events
// through, including the ones it filtered or dropped, so it composes
// with other consumers of the same stream instead of replacing them.
type Observer func(Event)

type attachment struct {
	store *ring.Store
	guard *shm.Guard
}

// Sink converts pipeline events into ring records.
type Sink struct {
	threshold slog.Level
	pid       int32
	now       func() time.Time
	metrics   *Metrics

	attached atomic.Pointer[attachment]

	// observers holds a []Observer replaced copy-on-write under mu, so
	// Record never takes a lock on the hot path.
	mu        sync.Mutex
	observers atomic.Value
}

// Option configures a Sink.
type Option func(*Sink)

// WithThreshold overrides the minimum severity that is captured.
// Events below it are ignored entirely.
func WithThreshold(level slog.Level) Option {
	return func(s *Sink) { s.threshold = level }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Sink) { s.metrics = m }
}

// WithPID overrides the recorded process id, for tests.
func WithPID(pid int32) Option {
	return func(s *Sink) { s.pid = pid }
}

// New creates a detached sink. Events recorded before Attach are
// dropped silently and still passed through to observers.
func New(opts ...Option) *Sink {
	s := &Sink{
		threshold: slog.LevelError,
		pid:       int32(os.Getpid()),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach binds the sink to an initialized store. Concurrent Record
// calls observe the attachment atomically.
func (s *Sink) Attach(store *ring.Store, guard *shm.Guard) {
	s.attached.Store(&attachment{store: store, guard: guard})
}

// Register appends an observer to the chain. Observers run on the
// recording goroutine, in registration order.
func (s *Sink) Register(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chain []Observer
	if v := s.observers.Load(); v != nil {
		chain = v.([]Observer)
	}
	next := make([]Observer, len(chain), len(chain)+1)
	copy(next, chain)
	s.observers.Store(append(next, obs))
}

// Record ingests one event. Below-threshold events and events arriving
// before Attach are dropped without error; both outcomes are expected,
// not failures. Whatever happens, the event is delegated to the
// observer chain before Record returns.
func (s *Sink) Record(ev Event) {
	defer s.delegate(ev)

	if ev.Level < s.threshold {
		s.metrics.dropped("below_threshold")
		return
	}

	att := s.attached.Load()
	if att == nil {
		s.metrics.dropped("uninitialized")
		return
	}

	if len(ev.Message) > ring.MaxMessageLen {
		s.metrics.truncated("message")
	}
	if len(ev.QueryText) > ring.MaxQueryLen {
		s.metrics.truncated("query_text")
	}

	rec := ring.Record{
		PID:       s.pid,
		Level:     ev.Level,
		Timestamp: s.now().UnixMicro(),
		Code:      ev.Code,
		Message:   ev.Message,
		QueryText: ev.QueryText,
	}

	if err := att.guard.Lock(); err != nil {
		// Inside the host's error path: drop rather than report.
		slog.Debug("capture sink: lock failed, dropping event", "error", err)
		s.metrics.dropped("lock_failed")
		return
	}
	att.store.Append(rec)
	if err := att.guard.Unlock(); err != nil {
		slog.Debug("capture sink: unlock failed", "error", err)
	}
	s.metrics.captured()
}

func (s *Sink) delegate(ev Event) {
	v := s.observers.Load()
	if v == nil {
		return
	}
	for _, obs := range v.([]Observer) {
		obs(ev)
	}
}
