package strategy

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/indicator"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

const (
	dailyLookback = 12
	minDailyBars  = 10
)

// Fibonacci trades crossings of the retracement levels of the previous daily candle.
//
// In a bullish regime a break above a level or a pullback below one buys; in a
// bearish regime a break below or a pullback above sells. The outermost level in the
// direction of the cross is never traded. The regime flips when price leaves the
// whole level band on the opposite side.
type Fibonacci struct {
	Base
	ratios []float64

	bullish   bool
	high      float64
	low       float64
	hasRange  bool
	refreshed time.Time
	prev      optional.Option[float64]
}

var _ Strategy = (*Fibonacci)(nil)

// NewFibonacci builds the retracement strategy.
func NewFibonacci(d Deps) Strategy {
	ratios := d.Settings.FibRatios
	if len(ratios) == 0 {
		ratios = indicator.DefaultFibonacciRatios
	}

	return &Fibonacci{ //nolint:exhaustruct
		Base:   NewBase(NameFibonacci, d),
		ratios: ratios,
		prev:   optional.None[float64](),
	}
}

// Bullish reports the current regime.
func (s *Fibonacci) Bullish() bool {
	return s.bullish
}

func (s *Fibonacci) OnTick(ctx context.Context, ts time.Time, pc PriceContext) error {
	price, ok := pc.Price()
	if !ok {
		s.log.Warn("Invalid price, skipping", zap.Time("ts", ts))

		return nil
	}

	s.Push(price)

	if !s.hasRange || dayAfter(ts, s.refreshed) {
		if err := s.refresh(ctx); err != nil {
			s.log.Warn("Daily range unavailable, skipping", zap.Error(err))

			return nil
		}

		s.refreshed = ts
	}

	levels := indicator.FibonacciLevels(s.high, s.low, s.bullish, s.ratios)
	if len(levels) == 0 {
		s.log.Warn("No Fibonacci levels, skipping", zap.Float64("high", s.high), zap.Float64("low", s.low))

		return nil
	}

	allAbove, allBelow := true, true

	for _, level := range levels {
		allAbove = allAbove && price > level.Price
		allBelow = allBelow && price < level.Price
	}

	s.log.Info("Price",
		zap.Time("ts", ts),
		zap.Float64("price", price),
		zap.Bool("bullish", s.bullish),
		zap.Float64("upper", levels[0].Price),
		zap.Float64("lower", levels[len(levels)-1].Price),
	)

	if s.bullish && allBelow {
		s.bullish = false
		s.log.Info("Regime flipped to bearish, price below all levels")
	} else if !s.bullish && allAbove {
		s.bullish = true
		s.log.Info("Regime flipped to bullish, price above all levels")
	}

	prev, err := s.prev.Take()
	s.prev = optional.Some(price)

	if err != nil || s.host.HasActivePosition(ctx) {
		return nil
	}

	if side, level, hit := s.crossing(levels, prev, price); hit {
		s.log.Info("Fibonacci level crossed",
			zap.String("side", string(side)),
			zap.Float64("level", level.Price),
			zap.Float64("ratio", level.Ratio),
			zap.Float64("prev", prev),
		)
		s.Place(side, price)
	}

	return nil
}

// crossing finds the first level, from the top, that prev→price crosses in a
// direction the current regime trades.
func (s *Fibonacci) crossing(levels []indicator.FibonacciLevel, prev, price float64) (types.PurchaseType, indicator.FibonacciLevel, bool) {
	for i, level := range levels {
		first, last := i == 0, i == len(levels)-1
		up := prev < level.Price && price > level.Price
		down := prev > level.Price && price < level.Price

		if s.bullish && ((up && !last) || (down && !first)) {
			return types.PurchaseTypeBuy, level, true
		}

		if !s.bullish && ((down && !first) || (up && !last)) {
			return types.PurchaseTypeSell, level, true
		}
	}

	return "", indicator.FibonacciLevel{}, false
}

// refresh loads the previous daily candle, which sets the range and the regime.
func (s *Fibonacci) refresh(ctx context.Context) error {
	bars, err := s.host.HistoricalBars(ctx, 24*time.Hour, dailyLookback)
	if err != nil {
		return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "daily bars", err)
	}

	if len(bars) < minDailyBars {
		return errors.NewInsufficientDataError(minDailyBars, len(bars), s.symbol, "not enough daily candles")
	}

	prev := bars[len(bars)-2]
	s.high, s.low = prev.High, prev.Low
	s.bullish = prev.Close > prev.Open
	s.hasRange = true

	s.log.Info("Daily range loaded",
		zap.Time("day", prev.Time),
		zap.Float64("open", prev.Open),
		zap.Float64("high", prev.High),
		zap.Float64("low", prev.Low),
		zap.Float64("close", prev.Close),
		zap.Bool("bullish", s.bullish),
	)

	return nil
}

// ResetState forgets the previous price so a fresh crossing is required.
func (s *Fibonacci) ResetState() {
	s.prev = optional.None[float64]()
}

func dayAfter(ts, since time.Time) bool {
	y1, m1, d1 := ts.Date()
	y2, m2, d2 := since.In(ts.Location()).Date()

	return y1 > y2 || (y1 == y2 && (m1 > m2 || (m1 == m2 && d1 > d2)))
}
