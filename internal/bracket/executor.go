// Package bracket submits entry/stop/target brackets on a dedicated worker and drives the
// trade lifecycle through submission, linkage verification and venue confirmation.
package bracket

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/lifecycle"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/price"
	"github.com/eyalcarmi01-ux/trading-bot/internal/retry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Quoter acquires a reference price within a bounded window. The price oracle implements it.
type Quoter interface {
	GetPriceWithin(ctx context.Context, window time.Duration) optional.Option[types.PriceQuote]
}

// Outcome is the final result of one PlaceBracket call.
type Outcome string

const (
	OutcomeActive    Outcome = "active"
	OutcomeExhausted Outcome = "exhausted"
)

// Config holds the executor timings and retry budget.
type Config struct {
	Algo  string
	Retry retry.Policy
	// PriceWindow bounds the reference price acquisition of one attempt.
	PriceWindow time.Duration
	// IDTimeout bounds the wait for a broker-assigned id.
	IDTimeout      time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	// CallTimeout bounds every individual gateway call.
	CallTimeout time.Duration
}

// DefaultRetryPolicy allows three attempts one second apart.
func DefaultRetryPolicy() retry.Policy {
	//nolint:exhaustruct // no escalation for brackets
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Jitter:      500 * time.Millisecond,
	}
}

func DefaultConfig(algo string) Config {
	return Config{
		Algo:           algo,
		Retry:          DefaultRetryPolicy(),
		PriceWindow:    2 * time.Second,
		IDTimeout:      2 * time.Second,
		ConfirmTimeout: 10 * time.Second,
		PollInterval:   250 * time.Millisecond,
		CallTimeout:    5 * time.Second,
	}
}

// Executor is the Bracket Execution Protocol of one engine instance.
type Executor struct {
	src     price.Source
	quoter  Quoter
	machine *lifecycle.StateMachine
	sink    telemetry.Sink
	log     *logger.Logger
	cfg     Config
	sleep   func(ctx context.Context, d time.Duration) error
	onDone  func(Outcome, int)

	jobs     chan Request
	inflight sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	stopped  chan struct{}
}

// Option configures an Executor.
type Option func(*Executor)

// WithConfig replaces the default timings.
func WithConfig(cfg Config) Option {
	return func(e *Executor) { e.cfg = cfg }
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithOutcomeObserver is called with the outcome and the number of attempts used.
func WithOutcomeObserver(fn func(Outcome, int)) Option {
	return func(e *Executor) { e.onDone = fn }
}

// NewExecutor starts the worker goroutine. Close stops it.
func NewExecutor(src price.Source, quoter Quoter, machine *lifecycle.StateMachine, sink telemetry.Sink, log *logger.Logger, opts ...Option) *Executor {
	if sink == nil {
		sink = telemetry.Nop{}
	}

	//nolint:exhaustruct // wait group and mutex start zero
	e := &Executor{
		src:     src,
		quoter:  quoter,
		machine: machine,
		sink:    sink,
		log:     log,
		cfg:     DefaultConfig(""),
		sleep:   retry.SleepContext,
		jobs:    make(chan Request, 1),
		stopped: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(e)
	}

	go e.work()

	return e
}

// PlaceBracket queues a bracket on the worker and returns immediately. It returns false
// when the request is invalid, a placement is already underway, the instance is not idle,
// or new orders are disabled.
func (e *Executor) PlaceBracket(req Request) bool {
	if err := req.Validate(); err != nil {
		e.log.Warn("Bracket request rejected", zap.Error(err))

		return false
	}

	if !e.machine.CanPlaceOrder() {
		e.log.Info("Bracket refused, placement already in progress")

		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}

	if !e.machine.TryBegin("signal " + string(req.Side)) {
		e.log.Info("Bracket refused",
			zap.String("phase", string(e.machine.Phase())),
			zap.Bool("no_new_orders", e.machine.NoNewOrders()),
		)

		return false
	}

	e.inflight.Add(1)
	e.jobs <- req

	return true
}

// Wait blocks until queued and running placements have finished.
func (e *Executor) Wait() {
	e.inflight.Wait()
}

// Close lets in-flight work finish and stops the worker.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()

		return
	}

	e.closed = true
	e.mu.Unlock()

	e.inflight.Wait()
	close(e.jobs)
	<-e.stopped
}

func (e *Executor) work() {
	defer close(e.stopped)

	for req := range e.jobs {
		e.run(req)
		e.inflight.Done()
	}
}

// attemptState carries what one attempt left behind.
type attemptState struct {
	submitted bool
	reference float64
}

func (e *Executor) run(req Request) {
	// Attempts are never cancelled once started.
	ctx := context.Background()
	state := &attemptState{submitted: false, reference: 0}
	used := 0

	runner := retry.Runner{
		Policy: e.cfg.Retry,
		Rand:   nil,
		Sleep:  e.sleep,
		OnFailure: func(a retry.Attempt) {
			e.log.Warn("Bracket attempt failed",
				zap.Int("attempt", a.Number),
				zap.Bool("final", a.Final),
				zap.Duration("next_wait", a.NextWait),
				zap.Error(a.Err),
			)
		},
	}

	err := runner.Do(ctx, func(ctx context.Context, attempt int) error {
		used = attempt

		// A retry after submission stays in BRACKET_SENT with placing held.
		return e.attempt(ctx, req, state)
	})
	if err == nil {
		e.report(OutcomeActive, used)

		return
	}

	e.exhaust(ctx, req, state, used, err)
}

// attempt runs steps price → submit → verify → confirm once.
func (e *Executor) attempt(ctx context.Context, req Request, state *attemptState) error {
	gw := e.src.Gateway()
	if gw == nil || !gw.IsConnected() {
		return errors.New(errors.ErrCodeNotConnected, "gateway is not connected")
	}

	contract := e.src.Contract()

	quote := e.quoter.GetPriceWithin(ctx, e.cfg.PriceWindow)
	if quote.IsNone() {
		return errors.New(errors.ErrCodeQuoteUnavailable, "no reference price for bracket")
	}

	reference := quote.Unwrap().Value
	stop, target := Prices(reference, req)

	bracket, err := e.submit(ctx, gw, contract, req, stop, target)
	if err != nil {
		return err
	}

	state.submitted = true
	state.reference = reference

	e.machine.Update(func(tx *lifecycle.Tx) {
		trade := tx.Trade()
		trade.Bracket = bracket
		trade.Direction = req.Side
		trade.Quantity = req.Quantity
		trade.EntryPrice = reference
		tx.Transition(types.PhaseBracketSent, "bracket submitted")
	})

	confirmed, err := e.confirm(ctx, gw, bracket)
	if err != nil || !confirmed {
		e.cancel(ctx, gw, bracket.OrderIDs()...)

		if err != nil {
			return errors.Wrap(errors.ErrCodeBracketUnconfirmed, "bracket confirmation failed", err)
		}

		return errors.Newf(errors.ErrCodeBracketUnconfirmed, "bracket not confirmed within %s", e.cfg.ConfirmTimeout)
	}

	now := time.Now()

	e.machine.Update(func(tx *lifecycle.Tx) {
		trade := tx.Trade()
		trade.PendingStop = optional.Some(stop)
		trade.OpenedAt = tx.Now()
		tx.SetPlacing(false)
		tx.Transition(types.PhaseActive, "bracket confirmed")
	})

	e.log.Info("Bracket active",
		zap.String("side", string(req.Side)),
		zap.Int("quantity", req.Quantity),
		zap.Float64("reference", reference),
		zap.Float64("stop", stop),
		zap.Float64("target", target),
		zap.Strings("order_ids", bracket.OrderIDs()),
	)

	_ = e.sink.Emit(ctx, telemetry.Enter(e.cfg.Algo, contract.Instrument.Symbol, req.Side, req.Quantity, reference, now))

	return nil
}

// submit places the held entry, the held stop and the transmitting target, then verifies linkage.
// Whatever was submitted is cancelled when a step fails.
func (e *Executor) submit(ctx context.Context, gw gateway.Gateway, contract types.ContractHandle, req Request, stop, target float64) (types.Bracket, error) {
	symbol := contract.Instrument.Symbol
	exitSide := req.Side.Opposite()

	//nolint:exhaustruct // market entry has no price, id or parent
	entry := types.Order{
		Role:     types.OrderRoleEntry,
		Symbol:   symbol,
		Side:     req.Side,
		Type:     types.OrderTypeMarket,
		Quantity: req.Quantity,
		Transmit: false,
	}

	entryTicket, err := e.place(ctx, gw, contract, entry)
	if err != nil {
		return types.Bracket{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to submit entry order", err)
	}

	entryID, ok := entryTicket.WaitForID(ctx, e.cfg.IDTimeout)
	if !ok {
		go e.cancelWhenAssigned(gw, entryTicket)

		return types.Bracket{}, errors.Newf(errors.ErrCodeMissingOrderID, "entry order has no broker id after %s", e.cfg.IDTimeout)
	}

	//nolint:exhaustruct // id assigned by the broker
	stopOrder := types.Order{
		Role:     types.OrderRoleStop,
		Symbol:   symbol,
		Side:     exitSide,
		Type:     types.OrderTypeStop,
		Quantity: req.Quantity,
		Price:    optional.Some(stop),
		Transmit: false,
		ParentID: entryID,
	}

	stopTicket, err := e.place(ctx, gw, contract, stopOrder)
	if err != nil {
		e.cancel(ctx, gw, entryID)

		return types.Bracket{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to submit stop order", err)
	}

	//nolint:exhaustruct // id assigned by the broker
	targetOrder := types.Order{
		Role:     types.OrderRoleTarget,
		Symbol:   symbol,
		Side:     exitSide,
		Type:     types.OrderTypeLimit,
		Quantity: req.Quantity,
		Price:    optional.Some(target),
		Transmit: true,
		ParentID: entryID,
	}

	targetTicket, err := e.place(ctx, gw, contract, targetOrder)
	if err != nil {
		e.cancel(ctx, gw, entryID, stopTicket.Order().OrderID)

		return types.Bracket{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to submit target order", err)
	}

	stopTicket.WaitForID(ctx, e.cfg.IDTimeout)
	targetTicket.WaitForID(ctx, e.cfg.IDTimeout)

	bracket := types.Bracket{
		Entry:  entryTicket.Order(),
		Stop:   stopTicket.Order(),
		Target: targetTicket.Order(),
	}

	if !bracket.Linked() {
		e.cancel(ctx, gw, bracket.OrderIDs()...)

		return types.Bracket{}, errors.Newf(errors.ErrCodeBracketUnlinked,
			"bracket children not linked to entry %s (stop parent %q id %q, target parent %q id %q)",
			entryID, bracket.Stop.ParentID, bracket.Stop.OrderID, bracket.Target.ParentID, bracket.Target.OrderID)
	}

	return bracket, nil
}

func (e *Executor) place(ctx context.Context, gw gateway.Gateway, contract types.ContractHandle, order types.Order) (*gateway.Ticket, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	return gw.PlaceOrder(callCtx, contract, order)
}

// confirm polls the venue until any bracket order is submitted or filled.
func (e *Executor) confirm(ctx context.Context, gw gateway.Gateway, bracket types.Bracket) (bool, error) {
	ids := make(map[string]struct{}, 3)
	for _, id := range bracket.OrderIDs() {
		ids[id] = struct{}{}
	}

	deadline := time.Now().Add(e.cfg.ConfirmTimeout)

	var lastErr error

	for {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		reports, err := gw.OrderReports(callCtx)
		cancel()

		if err != nil {
			lastErr = err
		} else {
			lastErr = nil

			for _, report := range reports {
				if _, tracked := ids[report.Order.OrderID]; tracked && report.Status.IsConfirmed() {
					return true, nil
				}
			}
		}

		if !time.Now().Before(deadline) {
			return false, lastErr
		}

		if err := retry.SleepContext(ctx, e.cfg.PollInterval); err != nil {
			return false, err
		}
	}
}

func (e *Executor) cancel(ctx context.Context, gw gateway.Gateway, ids ...string) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	if err := gateway.CancelOrders(callCtx, gw, ids...); err != nil {
		e.log.Warn("Failed to cancel bracket orders", zap.Strings("order_ids", ids), zap.Error(err))
	}
}

// cancelWhenAssigned cancels an order whose broker id arrives after the attempt gave up on it.
func (e *Executor) cancelWhenAssigned(gw gateway.Gateway, ticket *gateway.Ticket) {
	id, ok := ticket.WaitForID(context.Background(), e.cfg.CallTimeout)
	if !ok {
		e.log.Warn("Entry order never received a broker id", zap.String("symbol", ticket.Order().Symbol))

		return
	}

	e.cancel(context.Background(), gw, id)
}

// exhaust records a spent attempt budget. A bracket that reached the venue leaves the
// instance in BRACKET_SENT for the monitor; one that never did returns it to IDLE.
func (e *Executor) exhaust(ctx context.Context, req Request, state *attemptState, used int, cause error) {
	e.machine.Update(func(tx *lifecycle.Tx) {
		tx.SetPlacing(false)

		if state.submitted {
			tx.Transition(types.PhaseBracketSent, "bracket attempts exhausted")

			return
		}

		tx.ClearTrade()
		tx.Transition(types.PhaseIdle, "bracket never submitted")
	})

	e.log.Error("Bracket placement failed after all attempts",
		zap.String("side", string(req.Side)),
		zap.Int("attempts", used),
		zap.Bool("submitted", state.submitted),
		zap.Error(cause),
	)

	symbol := e.src.Contract().Instrument.Symbol
	_ = e.sink.Emit(ctx, telemetry.Exit(e.cfg.Algo, symbol, req.Side.Opposite(), req.Quantity, state.reference,
		types.ExitReasonBracketFailed, 0, time.Now()))

	e.report(OutcomeExhausted, used)
}

func (e *Executor) report(outcome Outcome, attempts int) {
	if e.onDone != nil {
		e.onDone(outcome, attempts)
	}
}
