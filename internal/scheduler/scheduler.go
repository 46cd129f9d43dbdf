// Package scheduler drives one engine instance through its fixed-interval trading cycle:
// daily gates, stop/fill housekeeping, the trade window and the strategy tick.
package scheduler

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/lifecycle"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/strategy"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Clock is the time source of the loop.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Monitor is the per-cycle stop/fill housekeeping.
type Monitor interface {
	Check(ctx context.Context) error
}

// Quoter acquires the price passed to the strategy.
type Quoter interface {
	GetPrice(ctx context.Context) optional.Option[types.PriceQuote]
}

// Broker is the account-level side of the instance.
type Broker interface {
	CancelAllOrders(ctx context.Context) error
	CloseAllPositions(ctx context.Context) error
	Reconnect(ctx context.Context) error
	IsConnected() bool
}

// Outcome is what one cycle did.
type Outcome string

const (
	OutcomeTicked        Outcome = "ticked"
	OutcomePaused        Outcome = "paused"
	OutcomeOutsideWindow Outcome = "outside_window"
	OutcomeFailed        Outcome = "failed"
	OutcomeShutdown      Outcome = "shutdown"
)

// Config holds the cycle timing and the daily gates, all in Location.
type Config struct {
	Interval time.Duration
	Location *time.Location
	// AlignToMinute delays the first cycle to the next whole minute.
	AlignToMinute bool
	// SessionStart pauses the loop before this time of day.
	SessionStart optional.Option[types.TimeOfDay]
	// Cutoff disables new orders from this time of day.
	Cutoff optional.Option[types.TimeOfDay]
	// Shutdown cancels, flattens and stops the loop at this time of day.
	Shutdown optional.Option[types.TimeOfDay]
	// ForceClose flattens any open position once a day at this time.
	ForceClose optional.Option[types.TimeOfDay]
	// ReconnectEvery is how many disconnected cycles pass between reconnect attempts.
	ReconnectEvery int
}

// DefaultReconnectEvery is the reconnect throttle of DefaultConfig, in cycles.
const DefaultReconnectEvery = 5

// DefaultConfig runs every minute in Asia/Jerusalem, from 07:00 with a 22:30 order
// cutoff and a 22:50 shutdown.
func DefaultConfig(loc *time.Location) Config {
	return Config{
		Interval:       time.Minute,
		Location:       loc,
		AlignToMinute:  true,
		SessionStart:   optional.Some(types.TimeOfDay{Hour: 7, Minute: 0}),
		Cutoff:         optional.Some(types.TimeOfDay{Hour: 22, Minute: 30}),
		Shutdown:       optional.Some(types.TimeOfDay{Hour: 22, Minute: 50}),
		ForceClose:     optional.None[types.TimeOfDay](),
		ReconnectEvery: DefaultReconnectEvery,
	}
}

// Deps are the collaborators of one instance.
type Deps struct {
	Strategy strategy.Strategy
	Monitor  Monitor
	Machine  *lifecycle.StateMachine
	Quoter   Quoter
	Broker   Broker
	Log      *logger.Logger
}

// Scheduler is the main loop of one engine instance.
type Scheduler struct {
	cfg      Config
	deps     Deps
	clock    Clock
	observer func(Outcome)

	paused       bool
	shutdownDone bool
	nextFlatten  optional.Option[time.Time]
	offline      int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithOutcomeObserver is called after every cycle.
func WithOutcomeObserver(fn func(Outcome)) Option {
	return func(s *Scheduler) { s.observer = fn }
}

func New(cfg Config, deps Deps, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	if cfg.ReconnectEvery <= 0 {
		cfg.ReconnectEvery = 1
	}

	//nolint:exhaustruct // gate state starts zero
	s := &Scheduler{
		cfg:         cfg,
		deps:        deps,
		clock:       SystemClock{},
		nextFlatten: optional.None[time.Time](),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run aligns to the minute, runs the strategy's pre-run hook and then cycles until the
// daily shutdown fires or ctx is done. It returns nil after a daily shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	log := s.deps.Log

	if s.cfg.AlignToMinute {
		now := s.clock.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)

		log.Info("Waiting for the next minute", zap.Time("start", next))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(next.Sub(now)):
		}
	}

	if err := s.guard("pre-run", func() error { return s.deps.Strategy.PreRun(ctx) }); err != nil {
		log.Warn("Strategy pre-run failed, continuing", zap.String("strategy", s.deps.Strategy.Name()), zap.Error(err))
	}

	for {
		if s.Cycle(ctx) == OutcomeShutdown {
			return nil
		}

		select {
		case <-ctx.Done():
			log.Info("Scheduler stopped", zap.Error(ctx.Err()))

			return ctx.Err()
		case <-s.clock.After(s.cfg.Interval):
		}
	}
}

// Cycle runs one iteration: the daily gates in order, then monitor housekeeping, the
// trade window and the strategy tick.
func (s *Scheduler) Cycle(ctx context.Context) Outcome {
	outcome := s.cycle(ctx)
	if s.observer != nil {
		s.observer(outcome)
	}

	return outcome
}

func (s *Scheduler) cycle(ctx context.Context) Outcome {
	log := s.deps.Log
	machine := s.deps.Machine
	now := s.clock.Now().In(s.cfg.Location)

	if s.nextFlatten.IsNone() {
		s.scheduleFlatten(now)
	}

	if at, err := s.nextFlatten.Take(); err == nil && !now.Before(at) {
		log.Info("Daily force-close", zap.Time("at", at))
		s.flatten(ctx)
		s.scheduleFlatten(now)
	}

	if start, err := s.cfg.SessionStart.Take(); err == nil && secondsOfDay(now) < start.Seconds() {
		if !s.paused {
			s.paused = true
			log.Info("Pre-open pause", zap.String("session_start", start.String()))
		}

		return OutcomePaused
	}

	if s.paused {
		s.paused = false
		log.Info("Session open, resuming")
	}

	if cutoff, err := s.cfg.Cutoff.Take(); err == nil {
		past := secondsOfDay(now) >= cutoff.Seconds()
		if past != machine.NoNewOrders() {
			machine.SetNoNewOrders(past)
			log.Info("New orders toggled", zap.Bool("no_new_orders", past), zap.String("cutoff", cutoff.String()))
		}
	}

	if shutdown, err := s.cfg.Shutdown.Take(); err == nil && !s.shutdownDone && secondsOfDay(now) >= shutdown.Seconds() {
		s.shutdownDone = true
		log.Info("Daily shutdown", zap.String("at", shutdown.String()))
		s.flatten(ctx)

		return OutcomeShutdown
	}

	s.ensureConnected(ctx)

	if err := s.guard("monitor", func() error { return s.deps.Monitor.Check(ctx) }); err != nil {
		s.handleFailure(ctx, "monitor", err)

		return OutcomeFailed
	}

	if !s.deps.Strategy.ShouldTradeNow(now) {
		log.Debug("Outside trade window", zap.Time("now", now))

		return OutcomeOutsideWindow
	}

	err := s.guard("tick", func() error {
		pc := strategy.PriceContext{
			Quote:       s.deps.Quoter.GetPrice(ctx),
			Phase:       machine.Phase(),
			NoNewOrders: machine.NoNewOrders(),
		}

		return s.deps.Strategy.OnTick(ctx, now, pc)
	})
	if err != nil {
		s.handleFailure(ctx, "tick", err)

		return OutcomeFailed
	}

	return OutcomeTicked
}

// guard runs fn and turns a panic into an error.
func (s *Scheduler) guard(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeCycleFailed, "panic in %s: %v", step, r)
		}
	}()

	return fn()
}

// handleFailure logs a failed step. Unless a trade is in flight it reconnects and resets the
// strategy and the lifecycle.
func (s *Scheduler) handleFailure(ctx context.Context, step string, cause error) {
	log := s.deps.Log
	phase := s.deps.Machine.Phase()

	log.Error("Cycle step failed", zap.String("step", step), zap.String("phase", string(phase)), zap.Error(cause))

	if phase.InFlight() {
		log.Warn("Trade in flight, keeping state", zap.String("phase", string(phase)))

		return
	}

	if err := s.deps.Broker.Reconnect(ctx); err != nil {
		log.Warn("Reconnect after failure did not succeed", zap.Error(err))
	}

	s.deps.Strategy.ResetState()
	s.deps.Machine.Reset("cycle failure")
}

// ensureConnected retries a lost or never established connection on the first
// disconnected cycle and then every ReconnectEvery cycles. A trade in flight is left alone.
func (s *Scheduler) ensureConnected(ctx context.Context) {
	if s.deps.Broker.IsConnected() {
		s.offline = 0

		return
	}

	log := s.deps.Log

	if phase := s.deps.Machine.Phase(); phase.InFlight() {
		log.Warn("Disconnected with a trade in flight, not reconnecting", zap.String("phase", string(phase)))

		return
	}

	s.offline++
	if (s.offline-1)%s.cfg.ReconnectEvery != 0 {
		return
	}

	log.Info("Gateway disconnected, reconnecting", zap.Int("offline_cycles", s.offline))

	if err := s.deps.Broker.Reconnect(ctx); err != nil {
		log.Warn("Reconnect did not succeed", zap.Int("offline_cycles", s.offline), zap.Error(err))

		return
	}

	log.Info("Reconnected", zap.Int("offline_cycles", s.offline))
	s.offline = 0
}

func (s *Scheduler) flatten(ctx context.Context) {
	if err := s.deps.Broker.CancelAllOrders(ctx); err != nil {
		s.deps.Log.Warn("Cancel all orders failed", zap.Error(err))
	}

	if err := s.deps.Broker.CloseAllPositions(ctx); err != nil {
		s.deps.Log.Warn("Close all positions failed", zap.Error(err))
	}
}

// scheduleFlatten sets the next force-close strictly after now.
func (s *Scheduler) scheduleFlatten(now time.Time) {
	at, err := s.cfg.ForceClose.Take()
	if err != nil {
		return
	}

	next := at.On(now)
	for !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	s.nextFlatten = optional.Some(next)
}

// NextForceClose returns the pending force-close time, if configured.
func (s *Scheduler) NextForceClose() optional.Option[time.Time] {
	return s.nextFlatten
}

func secondsOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
