// Package monitor watches an open trade: it closes positions whose stop-loss price has been
// crossed and it retires trades whose stop or target order the venue reports as filled.
package monitor

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/lifecycle"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/price"
	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Quoter acquires the current price. The price oracle implements it.
type Quoter interface {
	GetPrice(ctx context.Context) optional.Option[types.PriceQuote]
}

// Monitor is the Stop/Fill Monitor of one engine instance.
type Monitor struct {
	src         price.Source
	quoter      Quoter
	machine     *lifecycle.StateMachine
	sink        telemetry.Sink
	log         *logger.Logger
	algo        string
	callTimeout time.Duration
	onReset     func()
	onClosed    func(types.ClosedTrade)
	now         func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithResetHook is called after every closed trade. The engine passes the strategy's ResetState.
func WithResetHook(fn func()) Option {
	return func(m *Monitor) { m.onReset = fn }
}

// WithClosedTradeObserver receives every closed trade.
func WithClosedTradeObserver(fn func(types.ClosedTrade)) Option {
	return func(m *Monitor) { m.onClosed = fn }
}

// WithCallTimeout bounds each gateway call.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Monitor) { m.callTimeout = d }
}

// WithClock replaces the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func New(algo string, src price.Source, quoter Quoter, machine *lifecycle.StateMachine, sink telemetry.Sink, log *logger.Logger, opts ...Option) *Monitor {
	if sink == nil {
		sink = telemetry.Nop{}
	}

	m := &Monitor{
		src:         src,
		quoter:      quoter,
		machine:     machine,
		sink:        sink,
		log:         log,
		algo:        algo,
		callTimeout: 5 * time.Second,
		onReset:     nil,
		onClosed:    nil,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Check runs the breach check and then the fill scan.
func (m *Monitor) Check(ctx context.Context) error {
	if err := m.CheckStopBreach(ctx); err != nil {
		return err
	}

	return m.ScanFills(ctx)
}

// CheckStopBreach compares a fresh quote with the stop. A breached ACTIVE trade is closed
// at market; a breached unconfirmed bracket is only cancelled. A trade left in EXITING by
// a failed close is retried.
func (m *Monitor) CheckStopBreach(ctx context.Context) error {
	if m.machine.Placing() {
		return nil
	}

	phase := m.machine.Phase()
	trade := m.machine.Trade()

	var stop optional.Option[float64]

	switch phase {
	case types.PhaseActive:
		stop = trade.PendingStop
	case types.PhaseBracketSent:
		stop = trade.SubmittedStop()
	case types.PhaseExiting:
		return m.exit(ctx, trade, optional.None[types.PriceQuote]())
	default:
		return nil
	}

	if stop.IsNone() {
		return nil
	}

	gw := m.src.Gateway()
	if gw == nil || !gw.IsConnected() {
		return nil
	}

	quote := m.quoter.GetPrice(ctx)
	if quote.IsNone() {
		m.log.Debug("No quote for stop check, skipping")

		return nil
	}

	current := quote.Unwrap().Value
	sign := trade.Sign()

	if phase == types.PhaseActive {
		if pos, err := m.position(ctx, gw); err == nil && pos.Quantity != 0 {
			sign = 1
			if pos.IsShort() {
				sign = -1
			}
		}
	}

	if !breached(sign, current, stop.Unwrap()) {
		return nil
	}

	if phase == types.PhaseBracketSent {
		m.abandonUnconfirmed(ctx, gw, trade, current, stop.Unwrap())

		return nil
	}

	claimed := false

	m.machine.Update(func(tx *lifecycle.Tx) {
		if tx.Phase() != types.PhaseActive || tx.Placing() {
			return
		}

		tx.Transition(types.PhaseExiting, "stop breach")

		claimed = true
	})

	if !claimed {
		return nil
	}

	m.log.Warn("Stop-loss breached, closing position",
		zap.Float64("price", current),
		zap.Float64("stop", stop.Unwrap()),
		zap.Int("sign", sign),
	)

	return m.exit(ctx, trade, quote)
}

func breached(sign int, current, stop float64) bool {
	switch {
	case sign > 0:
		return current <= stop
	case sign < 0:
		return current >= stop
	default:
		return false
	}
}

// abandonUnconfirmed cancels a bracket that was never confirmed. No close order is sent.
func (m *Monitor) abandonUnconfirmed(ctx context.Context, gw gateway.Gateway, trade lifecycle.Trade, current, stop float64) {
	m.log.Warn("Stop crossed before the bracket was confirmed, cancelling bracket",
		zap.Float64("price", current),
		zap.Float64("stop", stop),
		zap.Strings("order_ids", trade.Bracket.OrderIDs()),
	)

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	if err := gateway.CancelOrders(callCtx, gw, trade.Bracket.OrderIDs()...); err != nil {
		m.log.Warn("Failed to cancel unconfirmed bracket", zap.Error(err))
	}

	m.machine.Update(func(tx *lifecycle.Tx) {
		if tx.Phase() != types.PhaseBracketSent || tx.Placing() {
			return
		}

		tx.ClearTrade()
		tx.Transition(types.PhaseIdle, "unconfirmed bracket cancelled after stop breach")
	})
}

// exit flattens the position, cancels everything and closes the trade. It runs in EXITING.
func (m *Monitor) exit(ctx context.Context, trade lifecycle.Trade, quote optional.Option[types.PriceQuote]) error {
	gw := m.src.Gateway()
	if gw == nil || !gw.IsConnected() {
		return errors.New(errors.ErrCodeNotConnected, "cannot close position while disconnected")
	}

	contract := m.src.Contract()

	pos, err := m.position(ctx, gw)
	if err != nil {
		return errors.Wrap(errors.ErrCodePositionNotFound, "failed to read position for stop exit", err)
	}

	side := trade.Direction.Opposite()
	quantity := trade.Quantity

	if pos.Quantity != 0 {
		side = pos.CloseSide()
		quantity = pos.Size()
	}

	if pos.Quantity == 0 {
		m.log.Info("Position already flat at stop exit, no close order sent")
	} else {
		callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		_, err := gw.PlaceOrder(callCtx, contract, gateway.MarketClose(contract.Instrument.Symbol, side, quantity))
		cancel()

		if err != nil {
			return errors.Wrap(errors.ErrCodeOrderFailed, "failed to submit stop exit order", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	if err := gateway.CancelAll(callCtx, gw); err != nil {
		m.log.Warn("Failed to cancel open orders after stop exit", zap.Error(err))
	}
	cancel()

	exitPrice := trade.PendingStop.TakeOr(trade.EntryPrice)
	if quote.IsSome() {
		exitPrice = quote.Unwrap().Value
	}

	m.machine.Close("stop breach exit submitted")

	m.finish(ctx, trade, side, quantity, exitPrice, types.ExitReasonStopBreach)

	return nil
}

// ScanFills retires the trade when its stop or target order is filled. Each fill id is processed once.
func (m *Monitor) ScanFills(ctx context.Context) error {
	if m.machine.Placing() || m.machine.Phase() != types.PhaseActive {
		return nil
	}

	trade := m.machine.Trade()
	stopID := trade.Bracket.Stop.OrderID
	targetID := trade.Bracket.Target.OrderID

	if stopID == "" && targetID == "" {
		return nil
	}

	gw := m.src.Gateway()
	if gw == nil || !gw.IsConnected() {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	reports, err := gw.OrderReports(callCtx)
	cancel()

	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderNotFound, "failed to list order reports", err)
	}

	for _, report := range reports {
		id := report.Order.OrderID
		if id == "" || (id != stopID && id != targetID) || report.Status != types.OrderStatusFilled {
			continue
		}

		fillID := report.FillID
		if fillID == "" {
			fillID = id
		}

		reason := types.ExitReasonTargetFill
		if id == stopID {
			reason = types.ExitReasonStopFill
		}

		closed := false

		m.machine.Update(func(tx *lifecycle.Tx) {
			if !tx.MarkFillProcessed(fillID) || tx.Phase() != types.PhaseActive {
				return
			}

			tx.Close(string(reason))

			closed = true
		})

		if !closed {
			continue
		}

		m.log.Info("Bracket exit filled",
			zap.String("reason", string(reason)),
			zap.String("order_id", id),
			zap.Float64("fill_price", report.AvgFillPrice),
		)

		m.finish(ctx, trade, report.Order.Side, trade.Quantity, report.AvgFillPrice, reason)

		return nil
	}

	return nil
}

// Flattened retires the trade after the account was flattened outside the bracket, as the
// daily force-close does. A stop or target fill the venue already reports wins. Nothing
// happens while a placement owns the trade.
func (m *Monitor) Flattened(ctx context.Context, closed []types.Order) {
	if err := m.ScanFills(ctx); err != nil {
		m.log.Warn("Fill scan before flatten failed", zap.Error(err))
	}

	var trade lifecycle.Trade

	held := false
	retired := false

	m.machine.Update(func(tx *lifecycle.Tx) {
		if tx.Placing() {
			return
		}

		switch tx.Phase() {
		case types.PhaseActive, types.PhaseExiting:
			held = true
		case types.PhaseBracketSent:
			held = len(closed) > 0
		default:
			return
		}

		trade = *tx.Trade()
		retired = true

		if held {
			tx.Close("position flattened")

			return
		}

		tx.ClearTrade()
		tx.Transition(types.PhaseIdle, "unconfirmed bracket flattened")
	})

	if !retired || !held {
		return
	}

	side := trade.Direction.Opposite()
	quantity := 0

	for _, o := range closed {
		side = o.Side
		quantity += o.Quantity
	}

	if quantity == 0 {
		quantity = trade.Quantity
	}

	exitPrice := trade.EntryPrice
	if quote := m.quoter.GetPrice(ctx); quote.IsSome() {
		exitPrice = quote.Unwrap().Value
	}

	m.finish(ctx, trade, side, quantity, exitPrice, types.ExitReasonManual)
}

// finish reports a closed trade and resets the strategy.
func (m *Monitor) finish(ctx context.Context, trade lifecycle.Trade, closeSide types.PurchaseType, quantity int, exitPrice float64, reason types.ExitReason) {
	now := m.now()
	pnl := types.RealizedPnL(trade.EntryPrice, exitPrice, trade.Sign())
	symbol := m.src.Contract().Instrument.Symbol

	m.log.Info("Trade closed",
		zap.String("reason", string(reason)),
		zap.Float64("entry", trade.EntryPrice),
		zap.Float64("exit", exitPrice),
		zap.Float64("pnl", pnl),
	)

	_ = m.sink.Emit(ctx, telemetry.Exit(m.algo, symbol, closeSide, quantity, exitPrice, reason, pnl, now))

	if m.onClosed != nil {
		m.onClosed(types.ClosedTrade{
			Symbol:   symbol,
			Side:     trade.Direction,
			Quantity: quantity,
			Entry:    trade.EntryPrice,
			Exit:     exitPrice,
			PnL:      pnl,
			Reason:   reason,
			OpenedAt: trade.OpenedAt,
			ClosedAt: now,
		})
	}

	if m.onReset != nil {
		m.onReset()
	}
}

func (m *Monitor) position(ctx context.Context, gw gateway.Gateway) (types.Position, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	return gateway.FindPosition(callCtx, gw, m.src.Contract().Instrument.Symbol)
}
