package telemetry

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
)

// Sink receives telemetry events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error {
	return nil
}

// Safe wraps a sink so failures never reach the caller. The first failure is logged
// as a warning, later ones are dropped silently.
type Safe struct {
	inner  Sink
	log    *logger.Logger
	once   sync.Once
	mu     sync.Mutex
	failed int
}

// NewSafe wraps inner; a nil inner behaves like Nop.
func NewSafe(inner Sink, log *logger.Logger) *Safe {
	if inner == nil {
		inner = Nop{}
	}

	//nolint:exhaustruct // zero once and counters
	return &Safe{inner: inner, log: log}
}

// Emit forwards event and always returns nil.
func (s *Safe) Emit(ctx context.Context, event Event) error {
	err := s.inner.Emit(ctx, event)
	if err == nil {
		return nil
	}

	s.mu.Lock()
	s.failed++
	s.mu.Unlock()

	s.once.Do(func() {
		s.log.Warn("Telemetry sink failed, further failures are suppressed",
			zap.String("event", string(event.Kind)),
			zap.Error(err),
		)
	})

	return nil
}

// Failures returns how many emits have failed.
func (s *Safe) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.failed
}

// Multi fans an event out to every sink and returns the first failure.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, event Event) error {
	var firstErr error

	for _, sink := range m {
		if err := sink.Emit(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Recorder keeps events in memory. Tests and the metrics endpoint read it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{mu: sync.Mutex{}, events: nil}
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return nil
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)

	return out
}

// OfKind returns the recorded events of one kind.
func (r *Recorder) OfKind(kind EventKind) []Event {
	var out []Event

	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}

	return out
}

var (
	_ Sink = Nop{}
	_ Sink = (*Safe)(nil)
	_ Sink = Multi(nil)
	_ Sink = (*Recorder)(nil)
)
