package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

const (
	// HistoryCap bounds the in-memory close history.
	HistoryCap = 500
	// DefaultSeedBars is how many 1-minute bars PreRun fetches when unset.
	DefaultSeedBars = 250
)

// Base carries the plumbing every strategy shares. Embed it and override what differs.
type Base struct {
	name     string
	symbol   string
	host     Host
	log      *zap.Logger
	params   Params
	window   types.TradeWindow
	windowed bool
	seedBars int
	history  []float64
}

// NewBase builds the shared part of a strategy.
func NewBase(name string, d Deps) Base {
	seed := d.Settings.SeedBars
	if seed == 0 {
		seed = DefaultSeedBars
	}

	log := zap.NewNop()
	if d.Log != nil {
		log = d.Log.Logger
	}

	window, noWindow := d.Window.Take()

	return Base{
		name:     name,
		symbol:   d.Symbol,
		host:     d.Host,
		log:      log,
		params:   d.Params,
		window:   window,
		windowed: noWindow == nil,
		seedBars: seed,
		history:  make([]float64, 0, HistoryCap),
	}
}

func (b *Base) Name() string {
	return b.name
}

// PreRun seeds the close history.
func (b *Base) PreRun(ctx context.Context) error {
	_, err := b.Seed(ctx)

	return err
}

// ResetState is a no-op by default.
func (b *Base) ResetState() {}

// ShouldTradeNow applies the configured trade window, if any.
func (b *Base) ShouldTradeNow(ts time.Time) bool {
	if !b.windowed {
		return true
	}

	return b.window.Contains(ts)
}

// Params returns the bracket sizing of the instance.
func (b *Base) Params() Params {
	return b.params
}

// Push appends a close to the history, dropping the oldest beyond HistoryCap.
func (b *Base) Push(price float64) {
	b.history = append(b.history, price)
	if len(b.history) > HistoryCap {
		b.history = append(b.history[:0], b.history[len(b.history)-HistoryCap:]...)
	}
}

// History returns the close history, oldest first. The slice must not be modified.
func (b *Base) History() []float64 {
	return b.history
}

// ClearHistory drops all closes.
func (b *Base) ClearHistory() {
	b.history = b.history[:0]
}

// Seed fetches recent 1-minute bars, appends their closes to the history and emits a
// seed event. It returns the bars used.
func (b *Base) Seed(ctx context.Context) ([]types.MarketData, error) {
	if b.seedBars < 0 {
		return nil, nil
	}

	bars, err := b.host.HistoricalBars(ctx, time.Minute, b.seedBars)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "seeding %s", b.name)
	}

	used := make([]types.MarketData, 0, len(bars))
	for _, bar := range bars {
		if types.IsUsablePrice(bar.Close) {
			b.Push(bar.Close)
			used = append(used, bar)
		}
	}

	b.log.Info("Seeded price history",
		zap.Int("bars", len(used)),
		zap.Int("history", len(b.history)),
	)

	b.emit(ctx, telemetry.History(telemetry.EventSeed, b.name, b.symbol, used, time.Now()))

	return used, nil
}

// Prime records the bars an indicator was warmed up with.
func (b *Base) Prime(ctx context.Context, bars []types.MarketData) {
	if len(bars) == 0 {
		return
	}

	b.emit(ctx, telemetry.History(telemetry.EventPriming, b.name, b.symbol, bars, time.Now()))
}

// Place requests a bracket on side and reports whether the engine accepted it.
func (b *Base) Place(side types.PurchaseType, price float64) bool {
	ok := b.host.PlaceBracket(b.params.Request(side))
	if ok {
		b.log.Info("Bracket requested", zap.String("side", string(side)), zap.Float64("price", price))
	} else {
		b.log.Info("Bracket refused", zap.String("side", string(side)), zap.Float64("price", price))
	}

	return ok
}

func (b *Base) emit(ctx context.Context, ev telemetry.Event) {
	if sink := b.host.Telemetry(); sink != nil {
		_ = sink.Emit(ctx, ev)
	}
}
