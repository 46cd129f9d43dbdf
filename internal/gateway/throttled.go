package gateway

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Throttled wraps a Gateway so that remote calls share one request budget.
// Connect and Disconnect are never throttled.
type Throttled struct {
	inner   Gateway
	limiter *rate.Limiter
}

// NewThrottled allows perMinute remote calls per minute with the given burst.
func NewThrottled(inner Gateway, perMinute int, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}

	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

func (t *Throttled) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeConnectionTimeout, "gateway request budget exhausted", err)
	}

	return nil
}

func (t *Throttled) Connect(ctx context.Context, clientID int) (int, error) {
	return t.inner.Connect(ctx, clientID)
}

func (t *Throttled) Disconnect() error {
	return t.inner.Disconnect()
}

func (t *Throttled) IsConnected() bool {
	return t.inner.IsConnected()
}

func (t *Throttled) Qualify(ctx context.Context, instrument types.InstrumentDescriptor) (types.ContractHandle, error) {
	if err := t.wait(ctx); err != nil {
		return types.ContractHandle{}, err
	}

	return t.inner.Qualify(ctx, instrument)
}

func (t *Throttled) SubscribeQuotes(ctx context.Context, contract types.ContractHandle) (QuoteStream, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	return t.inner.SubscribeQuotes(ctx, contract)
}

func (t *Throttled) Snapshot(ctx context.Context, contract types.ContractHandle) (types.Tick, error) {
	if err := t.wait(ctx); err != nil {
		return types.Tick{}, err
	}

	return t.inner.Snapshot(ctx, contract)
}

func (t *Throttled) HistoricalBars(ctx context.Context, contract types.ContractHandle, barSize time.Duration, count int) ([]types.MarketData, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	return t.inner.HistoricalBars(ctx, contract, barSize, count)
}

func (t *Throttled) PlaceOrder(ctx context.Context, contract types.ContractHandle, order types.Order) (*Ticket, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	return t.inner.PlaceOrder(ctx, contract, order)
}

func (t *Throttled) CancelOrder(ctx context.Context, orderID string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}

	return t.inner.CancelOrder(ctx, orderID)
}

func (t *Throttled) OpenOrders(ctx context.Context) ([]types.OrderReport, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	return t.inner.OpenOrders(ctx)
}

func (t *Throttled) Positions(ctx context.Context) ([]types.Position, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	return t.inner.Positions(ctx)
}

func (t *Throttled) OrderReports(ctx context.Context) ([]types.OrderReport, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}

	return t.inner.OrderReports(ctx)
}

var _ Gateway = (*Throttled)(nil)
