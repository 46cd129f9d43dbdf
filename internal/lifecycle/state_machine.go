// Package lifecycle holds the authoritative trade phase of an engine instance together
// with the bookkeeping of its single open trade. The bracket executor, the stop/fill
// monitor and the scheduler all read and write it through one lock.
package lifecycle

import (
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

// TransitionObserver is notified of every effective phase change, outside the lock.
type TransitionObserver func(from, to types.TradePhase, elapsed time.Duration)

// Trade is the bookkeeping of the instance's current trade.
type Trade struct {
	// PendingStop is the active stop-loss price, set once the bracket is ACTIVE.
	PendingStop optional.Option[float64]
	// Bracket carries the tracked entry, stop and target orders with their broker ids.
	Bracket types.Bracket
	// Direction is the entry side, empty when flat.
	Direction types.PurchaseType
	Quantity  int
	// EntryPrice is the reference price the bracket was priced from.
	EntryPrice float64
	OpenedAt   time.Time
}

// Sign is +1 for a long trade, -1 for a short one and 0 when flat.
func (t Trade) Sign() int {
	if t.Direction == "" {
		return 0
	}

	return t.Direction.Sign()
}

// SubmittedStop is the stop leg price of the tracked bracket, before or after confirmation.
func (t Trade) SubmittedStop() optional.Option[float64] {
	if t.PendingStop.IsSome() {
		return t.PendingStop
	}

	return t.Bracket.Stop.Price
}

// StateMachine is the Trade Lifecycle State Machine.
type StateMachine struct {
	mu       sync.Mutex
	log      *logger.Logger
	now      func() time.Time
	observer TransitionObserver

	phase       types.TradePhase
	since       time.Time
	trade       Trade
	fills       map[string]struct{}
	noNewOrders bool
	placing     bool
}

// Option configures a StateMachine.
type Option func(*StateMachine)

// WithObserver registers a transition observer (metrics).
func WithObserver(fn TransitionObserver) Option {
	return func(m *StateMachine) { m.observer = fn }
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *StateMachine) { m.now = now }
}

// New creates a state machine in IDLE.
func New(log *logger.Logger, opts ...Option) *StateMachine {
	//nolint:exhaustruct // empty trade, no observer
	m := &StateMachine{
		log:   log,
		now:   time.Now,
		phase: types.PhaseIdle,
		fills: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.since = m.now()

	return m
}

// Phase returns the current phase.
func (m *StateMachine) Phase() types.TradePhase {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.phase
}

// Since returns when the current phase was entered.
func (m *StateMachine) Since() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.since
}

// CanPlaceOrder is false while a placement is underway.
func (m *StateMachine) CanPlaceOrder() bool {
	return m.Phase() != types.PhaseOrderPlacing
}

// Transition moves to phase to. It is a no-op when to is the current phase.
func (m *StateMachine) Transition(to types.TradePhase, reason string) {
	m.Update(func(tx *Tx) { tx.Transition(to, reason) })
}

// TryBegin admits one placement: from IDLE it moves through SIGNAL_PENDING to
// ORDER_PLACING and returns true. It refuses when the instance is not IDLE or new
// orders are disabled.
func (m *StateMachine) TryBegin(reason string) bool {
	admitted := false

	m.Update(func(tx *Tx) {
		if tx.Phase() != types.PhaseIdle || tx.NoNewOrders() {
			return
		}

		tx.Transition(types.PhaseSignalPending, reason)
		tx.Transition(types.PhaseOrderPlacing, reason)
		tx.SetPlacing(true)

		admitted = true
	})

	return admitted
}

// Close performs CLOSED then IDLE and clears the trade.
func (m *StateMachine) Close(reason string) {
	m.Update(func(tx *Tx) { tx.Close(reason) })
}

// Reset clears the trade and returns to IDLE. The caller decides whether resetting is safe.
func (m *StateMachine) Reset(reason string) {
	m.Update(func(tx *Tx) {
		tx.ClearTrade()
		tx.Transition(types.PhaseIdle, reason)
	})
}

// Trade returns a copy of the current trade bookkeeping.
func (m *StateMachine) Trade() Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.trade
}

// PendingStop returns the active stop price.
func (m *StateMachine) PendingStop() optional.Option[float64] {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.trade.PendingStop
}

// SetNoNewOrders toggles the post-cutoff flag.
func (m *StateMachine) SetNoNewOrders(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.noNewOrders = v
}

// NoNewOrders reports the post-cutoff flag.
func (m *StateMachine) NoNewOrders() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.noNewOrders
}

// Placing reports whether a bracket worker currently owns the trade.
func (m *StateMachine) Placing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.placing
}

// Update runs fn under the lock. Observers are notified after the lock is released.
func (m *StateMachine) Update(fn func(tx *Tx)) {
	tx := &Tx{m: m, changes: nil}

	m.mu.Lock()
	fn(tx)
	m.mu.Unlock()

	if m.observer == nil {
		return
	}

	for _, c := range tx.changes {
		m.observer(c.from, c.to, c.elapsed)
	}
}

type change struct {
	from    types.TradePhase
	to      types.TradePhase
	elapsed time.Duration
}

// Tx is the locked view handed to Update callbacks. It must not escape the callback.
type Tx struct {
	m       *StateMachine
	changes []change
}

func (tx *Tx) Phase() types.TradePhase {
	return tx.m.phase
}

// Transition is the single funnel for phase changes.
func (tx *Tx) Transition(to types.TradePhase, reason string) {
	m := tx.m
	if m.phase == to {
		return
	}

	now := m.now()
	from := m.phase
	elapsed := now.Sub(m.since)

	m.phase = to
	m.since = now

	m.log.Info("Trade phase transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Float64("elapsed_seconds", elapsed.Seconds()),
		zap.String("reason", reason),
	)

	tx.changes = append(tx.changes, change{from: from, to: to, elapsed: elapsed})
}

// Close moves to CLOSED and immediately on to IDLE, clearing the trade.
func (tx *Tx) Close(reason string) {
	tx.Transition(types.PhaseClosed, reason)
	tx.ClearTrade()
	tx.Transition(types.PhaseIdle, reason)
}

// Trade returns the mutable bookkeeping.
func (tx *Tx) Trade() *Trade {
	return &tx.m.trade
}

// ClearTrade forgets the stop, the bracket ids, the direction and the entry price.
func (tx *Tx) ClearTrade() {
	//nolint:exhaustruct // zero trade
	tx.m.trade = Trade{PendingStop: optional.None[float64]()}
}

// MarkFillProcessed records fillID and returns false when it was already processed.
func (tx *Tx) MarkFillProcessed(fillID string) bool {
	if _, seen := tx.m.fills[fillID]; seen {
		return false
	}

	tx.m.fills[fillID] = struct{}{}

	return true
}

func (tx *Tx) NoNewOrders() bool {
	return tx.m.noNewOrders
}

func (tx *Tx) Placing() bool {
	return tx.m.placing
}

func (tx *Tx) SetPlacing(v bool) {
	tx.m.placing = v
}

// Now returns the state machine's clock reading.
func (tx *Tx) Now() time.Time {
	return tx.m.now()
}
