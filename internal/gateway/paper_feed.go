package gateway

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"
)

// RandomWalk is a geometric Brownian motion price path rounded to the tick size.
type RandomWalk struct {
	rng        *rand.Rand
	price      float64
	volatility float64
	tickSize   decimal.Decimal
}

// NewRandomWalk starts a walk at initial. volatility is the per-step standard deviation (0.0005 = 5bp).
func NewRandomWalk(seed int64, initial float64, volatility float64, tickSize float64) *RandomWalk {
	return &RandomWalk{
		rng:        rand.New(rand.NewSource(seed)), //nolint:gosec // synthetic prices
		price:      initial,
		volatility: volatility,
		tickSize:   decimal.NewFromFloat(tickSize),
	}
}

// Next advances the walk by one step and returns the new price.
func (w *RandomWalk) Next() float64 {
	// Box-Muller transform for a standard normal draw
	u1 := w.rng.Float64()
	u2 := w.rng.Float64()

	if u1 == 0 {
		u1 = math.SmallestNonzeroFloat64
	}

	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	next := w.price * math.Exp(w.volatility*z)

	if w.tickSize.IsPositive() {
		next = decimal.NewFromFloat(next).Div(w.tickSize).Round(0).Mul(w.tickSize).InexactFloat64()
	}

	if next <= 0 {
		next = w.tickSize.InexactFloat64()
	}

	w.price = next

	return next
}

// Price returns the current price without advancing.
func (w *RandomWalk) Price() float64 {
	return w.price
}
