package bracket

import (
	"github.com/shopspring/decimal"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Request describes one bracket placement.
type Request struct {
	Side     types.PurchaseType
	Quantity int
	TickSize float64
	// StopTicks is the stop distance from the reference price.
	StopTicks int
	// TargetTicksLong and TargetTicksShort are the target distances for BUY and SELL entries.
	TargetTicksLong  int
	TargetTicksShort int
}

// Validate rejects requests that cannot be priced.
func (r Request) Validate() error {
	if r.Side != types.PurchaseTypeBuy && r.Side != types.PurchaseTypeSell {
		return errors.Newf(errors.ErrCodeInvalidParameter, "invalid side %q", r.Side)
	}

	if r.Quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "quantity must be positive, got %d", r.Quantity)
	}

	if !(r.TickSize > 0) {
		return errors.Newf(errors.ErrCodeInvalidTickSize, "tick size must be positive, got %v", r.TickSize)
	}

	if r.StopTicks <= 0 || r.targetTicks() <= 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "stop and target distances must be positive")
	}

	return nil
}

func (r Request) targetTicks() int {
	if r.Side == types.PurchaseTypeSell {
		return r.TargetTicksShort
	}

	return r.TargetTicksLong
}

// Prices returns the stop and target prices for a reference price. BUY places the
// target above and the stop below, SELL the reverse. Both are rounded to the tick grid.
//
// For example, BUY at 100.00 with a 0.01 tick, 7 stop ticks and 10 target ticks
// yields a stop of 99.93 and a target of 100.10.
func Prices(reference float64, r Request) (stop float64, target float64) {
	ref := decimal.NewFromFloat(reference)
	tick := decimal.NewFromFloat(r.TickSize)
	sign := decimal.NewFromInt(int64(r.Side.Sign()))

	stopPrice := ref.Sub(tick.Mul(decimal.NewFromInt(int64(r.StopTicks))).Mul(sign))
	targetPrice := ref.Add(tick.Mul(decimal.NewFromInt(int64(r.targetTicks()))).Mul(sign))

	return roundToTick(stopPrice, tick), roundToTick(targetPrice, tick)
}

func roundToTick(price, tick decimal.Decimal) float64 {
	return price.Div(tick).Round(0).Mul(tick).InexactFloat64()
}
