package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the broker-reported net holding for one symbol. Quantity is signed: positive long, negative short.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity int     `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

func (p Position) IsLong() bool {
	return p.Quantity > 0
}

func (p Position) IsShort() bool {
	return p.Quantity < 0
}

// Size returns the absolute position quantity.
func (p Position) Size() int {
	if p.Quantity < 0 {
		return -p.Quantity
	}

	return p.Quantity
}

// CloseSide returns the side of the order that flattens the position.
func (p Position) CloseSide() PurchaseType {
	if p.IsShort() {
		return PurchaseTypeBuy
	}

	return PurchaseTypeSell
}

// RealizedPnL returns (exit - entry) * sign per unit, rounded to 8 decimals.
// sign is +1 for a long trade and -1 for a short trade.
//
// For example, entering long at 100.00 and filling the target at 100.10 yields 0.10.
func RealizedPnL(entry, exit float64, sign int) float64 {
	pnl := decimal.NewFromFloat(exit).
		Sub(decimal.NewFromFloat(entry)).
		Mul(decimal.NewFromInt(int64(sign))).
		Round(8)

	return pnl.InexactFloat64()
}

// ClosedTrade summarizes a finished trade for telemetry and metrics.
type ClosedTrade struct {
	Symbol   string       `json:"symbol"`
	Side     PurchaseType `json:"side"`
	Quantity int          `json:"quantity"`
	Entry    float64      `json:"entry"`
	Exit     float64      `json:"exit"`
	PnL      float64      `json:"pnl"`
	Reason   ExitReason   `json:"reason"`
	OpenedAt time.Time    `json:"opened_at"`
	ClosedAt time.Time    `json:"closed_at"`
}
