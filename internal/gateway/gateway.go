// Package gateway defines the broker gateway boundary consumed by the engine and its implementations.
//
// Every call may fail and every call may be slow; callers bound them with contexts.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Gateway is the remote broker session.
type Gateway interface {
	// Connect opens the session under the requested client identity and returns the
	// identity the gateway actually assigned.
	Connect(ctx context.Context, clientID int) (int, error)
	Disconnect() error
	IsConnected() bool
	// Qualify resolves the descriptor to a tradable contract.
	Qualify(ctx context.Context, instrument types.InstrumentDescriptor) (types.ContractHandle, error)
	// SubscribeQuotes opens a streaming quote subscription.
	SubscribeQuotes(ctx context.Context, contract types.ContractHandle) (QuoteStream, error)
	// Snapshot requests a one-shot quote.
	Snapshot(ctx context.Context, contract types.ContractHandle) (types.Tick, error)
	// HistoricalBars returns up to count most recent bars of the given size, oldest first.
	HistoricalBars(ctx context.Context, contract types.ContractHandle, barSize time.Duration, count int) ([]types.MarketData, error)
	// PlaceOrder submits an order. The returned ticket receives the broker id, possibly later.
	PlaceOrder(ctx context.Context, contract types.ContractHandle, order types.Order) (*Ticket, error)
	CancelOrder(ctx context.Context, orderID string) error
	// OpenOrders lists orders that are still working.
	OpenOrders(ctx context.Context) ([]types.OrderReport, error)
	Positions(ctx context.Context) ([]types.Position, error)
	// OrderReports lists working and recently completed orders with their status and fills.
	OrderReports(ctx context.Context) ([]types.OrderReport, error)
}

// QuoteStream is a live subscription that keeps the most recent tick.
type QuoteStream interface {
	// Latest returns the most recent tick, false if nothing has arrived yet.
	Latest() (types.Tick, bool)
	Close() error
}

// Factory builds a fresh gateway connection object. The session manager calls it
// to replace a connection that is stuck in a stale state at the gateway.
type Factory func() (Gateway, error)

// BarSource provides historical bars from a market data vendor.
type BarSource interface {
	Bars(ctx context.Context, symbol string, barSize time.Duration, count int) ([]types.MarketData, error)
}

// Ticket tracks one submitted order until the broker assigns its id.
type Ticket struct {
	mu    sync.Mutex
	order types.Order
	ready chan struct{}
	once  sync.Once
}

// NewTicket creates a ticket for order. If the order already has an id the ticket is ready.
func NewTicket(order types.Order) *Ticket {
	t := &Ticket{
		mu:    sync.Mutex{},
		order: order,
		ready: make(chan struct{}),
		once:  sync.Once{},
	}

	if order.OrderID != "" {
		t.once.Do(func() { close(t.ready) })
	}

	return t
}

// AssignID records the broker id. Only the first assignment counts.
func (t *Ticket) AssignID(id string) {
	if id == "" {
		return
	}

	t.once.Do(func() {
		t.mu.Lock()
		t.order.OrderID = id
		t.mu.Unlock()
		close(t.ready)
	})
}

// Order returns a copy of the order as the broker currently reflects it.
func (t *Ticket) Order() types.Order {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.order
}

// WaitForID blocks until the id is assigned, timeout elapses or ctx is done.
func (t *Ticket) WaitForID(ctx context.Context, timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.ready:
		return t.Order().OrderID, true
	case <-timer.C:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

// CancelAll cancels every working order and returns the first failure, if any.
func CancelAll(ctx context.Context, gw Gateway) error {
	open, err := gw.OpenOrders(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCancelFailed, "failed to list open orders", err)
	}

	var firstErr error

	for _, report := range open {
		if err := gw.CancelOrder(ctx, report.Order.OrderID); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(errors.ErrCodeCancelFailed, err, "failed to cancel order %s", report.Order.OrderID)
		}
	}

	return firstErr
}

// CancelOrders cancels the given ids, ignoring blanks, and returns the first failure.
func CancelOrders(ctx context.Context, gw Gateway, ids ...string) error {
	var firstErr error

	for _, id := range ids {
		if id == "" {
			continue
		}

		if err := gw.CancelOrder(ctx, id); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(errors.ErrCodeCancelFailed, err, "failed to cancel order %s", id)
		}
	}

	return firstErr
}

// Flatten submits an opposite-side market order for every non-zero position on the contract's symbol.
// It returns the close orders that were submitted.
func Flatten(ctx context.Context, gw Gateway, contract types.ContractHandle) ([]types.Order, error) {
	positions, err := gw.Positions(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePositionNotFound, "failed to list positions", err)
	}

	var closed []types.Order

	for _, pos := range positions {
		if pos.Size() == 0 || pos.Symbol != contract.Instrument.Symbol {
			continue
		}

		ticket, err := gw.PlaceOrder(ctx, contract, MarketClose(pos.Symbol, pos.CloseSide(), pos.Size()))
		if err != nil {
			return closed, errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to flatten %s", pos.Symbol)
		}

		closed = append(closed, ticket.Order())
	}

	return closed, nil
}

// FindPosition returns the position for symbol, a flat position when there is none.
func FindPosition(ctx context.Context, gw Gateway, symbol string) (types.Position, error) {
	positions, err := gw.Positions(ctx)
	if err != nil {
		return types.Position{}, err
	}

	for _, pos := range positions {
		if pos.Symbol == symbol {
			return pos, nil
		}
	}

	return types.Position{Symbol: symbol, Quantity: 0, AvgCost: 0}, nil
}

// MarketClose builds a transmitted market order that flattens quantity units.
func MarketClose(symbol string, side types.PurchaseType, quantity int) types.Order {
	//nolint:exhaustruct // no price, id or parent for a standalone close
	return types.Order{
		Role:     types.OrderRoleClose,
		Symbol:   symbol,
		Side:     side,
		Type:     types.OrderTypeMarket,
		Quantity: quantity,
		Transmit: true,
	}
}
