// Package strategy defines the port the scheduler drives once per cycle and the
// signal strategies that implement it.
package strategy

import (
	"context"
	"time"

	"github.com/moznion/go-optional"

	"github.com/eyalcarmi01-ux/trading-bot/internal/bracket"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

// Strategy decides when to request a trade. Implementations never touch the
// gateway directly; they go through the Host.
type Strategy interface {
	// Name returns the strategy tag used for logs and telemetry.
	Name() string
	// PreRun is a one-time warm-up before the first cycle.
	PreRun(ctx context.Context) error
	// OnTick is called once per admitted cycle.
	OnTick(ctx context.Context, ts time.Time, pc PriceContext) error
	// ResetState clears strategy-local counters after a trade closes or a loop error.
	ResetState()
	// ShouldTradeNow is the trading-window predicate.
	ShouldTradeNow(ts time.Time) bool
}

// Host is the engine surface a strategy may call back into.
type Host interface {
	// PlaceBracket hands the request to the bracket worker. It returns false when
	// the request was refused without any order being sent.
	PlaceBracket(req bracket.Request) bool
	// HasActivePosition reports whether a trade is pending or open.
	HasActivePosition(ctx context.Context) bool
	CancelAllOrders(ctx context.Context) error
	CloseAllPositions(ctx context.Context) error
	// GetPrice acquires a fresh quote.
	GetPrice(ctx context.Context) optional.Option[types.PriceQuote]
	// HistoricalBars returns up to count most recent bars, oldest first.
	HistoricalBars(ctx context.Context, barSize time.Duration, count int) ([]types.MarketData, error)
	Telemetry() telemetry.Sink
}

// PriceContext is the per-cycle input to OnTick.
type PriceContext struct {
	Quote       optional.Option[types.PriceQuote]
	Phase       types.TradePhase
	NoNewOrders bool
}

// Price returns the quote value, false if there is none.
func (p PriceContext) Price() (float64, bool) {
	q, err := p.Quote.Take()
	if err != nil || !types.IsUsablePrice(q.Value) {
		return 0, false
	}

	return q.Value, true
}

// Params are the bracket sizing parameters of an instance.
type Params struct {
	Quantity         int
	TickSize         float64
	StopTicks        int
	TargetTicksLong  int
	TargetTicksShort int
}

// WithDefaults fills zero fields from d.
func (p Params) WithDefaults(d Params) Params {
	if p.Quantity == 0 {
		p.Quantity = d.Quantity
	}

	if p.TickSize == 0 {
		p.TickSize = d.TickSize
	}

	if p.StopTicks == 0 {
		p.StopTicks = d.StopTicks
	}

	if p.TargetTicksLong == 0 {
		p.TargetTicksLong = d.TargetTicksLong
	}

	if p.TargetTicksShort == 0 {
		p.TargetTicksShort = d.TargetTicksShort
	}

	return p
}

// Request builds the bracket request for side.
func (p Params) Request(side types.PurchaseType) bracket.Request {
	return bracket.Request{
		Side:             side,
		Quantity:         p.Quantity,
		TickSize:         p.TickSize,
		StopTicks:        p.StopTicks,
		TargetTicksLong:  p.TargetTicksLong,
		TargetTicksShort: p.TargetTicksShort,
	}
}

// Settings are the strategy-specific knobs. Zero values select each strategy's default.
type Settings struct {
	EMAPeriod int `yaml:"ema_period" json:"ema_period,omitempty" jsonschema:"description=EMA period of the EMA strategy" validate:"gte=0"`
	// InitialEMA seeds the slow EMA when history is unavailable.
	InitialEMA float64 `yaml:"initial_ema" json:"initial_ema,omitempty" validate:"gte=0"`
	// SignalOverride forces the first setup: 1 long, -1 short, 0 none.
	SignalOverride int     `yaml:"signal_override" json:"signal_override,omitempty" jsonschema:"enum=-1,enum=0,enum=1" validate:"oneof=-1 0 1"`
	SetupCandles   int     `yaml:"setup_candles" json:"setup_candles,omitempty" validate:"gte=0"`
	CCIPeriod      int     `yaml:"cci_period" json:"cci_period,omitempty" validate:"gte=0"`
	Threshold      float64 `yaml:"threshold" json:"threshold,omitempty" validate:"gte=0"`
	// ClassicCCI uses the mean absolute deviation instead of the sample standard deviation.
	ClassicCCI bool      `yaml:"classic_cci" json:"classic_cci,omitempty"`
	FibRatios  []float64 `yaml:"fib_ratios" json:"fib_ratios,omitempty" validate:"dive,gt=0,lt=1"`
	// SeedBars is how many 1-minute bars PreRun fetches. Negative disables seeding.
	SeedBars int `yaml:"seed_bars" json:"seed_bars,omitempty"`
}

// Deps is everything a strategy constructor needs.
type Deps struct {
	Host     Host
	Log      *logger.Logger
	Symbol   string
	Params   Params
	Window   optional.Option[types.TradeWindow]
	Settings Settings
}
