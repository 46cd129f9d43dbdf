package strategy

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/indicator"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

const (
	defaultEMAPeriod    = 200
	defaultSetupCandles = 15
)

// EMACrossover waits for a run of closes on one side of the EMA, then enters on the
// first pullback through it.
//
// A run of SetupCandles closes above the EMA arms a long; the next close below the EMA
// buys. Shorts mirror this. SignalOverride arms one side immediately.
type EMACrossover struct {
	Base

	period   int
	candles  int
	initial  float64
	override int

	live         optional.Option[float64]
	longReady    bool
	shortReady   bool
	longCounter  int
	shortCounter int
}

var _ Strategy = (*EMACrossover)(nil)

// NewEMACrossover builds the EMA strategy.
func NewEMACrossover(d Deps) Strategy {
	period := d.Settings.EMAPeriod
	if period <= 0 {
		period = defaultEMAPeriod
	}

	candles := d.Settings.SetupCandles
	if candles <= 0 {
		candles = defaultSetupCandles
	}

	return &EMACrossover{ //nolint:exhaustruct
		Base:     NewBase(NameEMA, d),
		period:   period,
		candles:  candles,
		initial:  d.Settings.InitialEMA,
		override: d.Settings.SignalOverride,
		live:     optional.None[float64](),
	}
}

// PreRun seeds history and warms the EMA from it. Without enough history the
// configured initial EMA is used.
func (s *EMACrossover) PreRun(ctx context.Context) error {
	bars, err := s.Seed(ctx)

	if series, serr := indicator.EMASeries(s.History(), s.period); serr == nil {
		s.live = optional.Some(series[len(series)-1])
		s.Prime(ctx, bars)
		s.log.Info("EMA primed from history", zap.Int("period", s.period), zap.Float64("ema", series[len(series)-1]))
	} else if s.initial > 0 {
		s.live = optional.Some(s.initial)
		s.log.Info("EMA seeded from configuration", zap.Float64("ema", s.initial))
	}

	return err
}

// EMA returns the current average, if any price has been seen.
func (s *EMACrossover) EMA() optional.Option[float64] {
	return s.live
}

func (s *EMACrossover) OnTick(ctx context.Context, ts time.Time, pc PriceContext) error {
	price, ok := pc.Price()
	if !ok {
		s.log.Warn("Invalid price, skipping", zap.Time("ts", ts))

		return nil
	}

	ema := indicator.NextEMA(price, s.live.TakeOr(price), s.period)
	s.live = optional.Some(ema)
	s.Push(price)

	s.log.Info("Price", zap.Time("ts", ts), zap.Float64("price", price), zap.Float64("ema", ema))

	if s.host.HasActivePosition(ctx) {
		return nil
	}

	switch s.override {
	case 1:
		s.armOverride(price, ema, types.PurchaseTypeBuy)

		return nil
	case -1:
		s.armOverride(price, ema, types.PurchaseTypeSell)

		return nil
	}

	switch {
	case price > ema:
		s.longCounter++
		s.shortCounter = 0

		if s.longCounter >= s.candles && !s.longReady {
			s.longReady = true
			s.log.Info("Long setup ready", zap.Int("candles", s.longCounter))
		}
	case price < ema:
		s.shortCounter++
		s.longCounter = 0

		if s.shortCounter >= s.candles && !s.shortReady {
			s.shortReady = true
			s.log.Info("Short setup ready", zap.Int("candles", s.shortCounter))
		}
	default:
		s.log.Info("Neutral candle")
	}

	switch {
	case s.longReady && price < ema:
		if s.Place(types.PurchaseTypeBuy, price) {
			s.longReady = false
			s.longCounter = 0
		}
	case s.shortReady && price > ema:
		if s.Place(types.PurchaseTypeSell, price) {
			s.shortReady = false
			s.shortCounter = 0
		}
	}

	return nil
}

// armOverride handles a forced setup: a close on the entry side of the EMA arms it
// at once, otherwise the counter starts from a full run.
func (s *EMACrossover) armOverride(price, ema float64, side types.PurchaseType) {
	long := side == types.PurchaseTypeBuy

	if (long && price < ema) || (!long && price > ema) {
		s.override = 0
		if long {
			s.longReady = true
		} else {
			s.shortReady = true
		}

		s.log.Info("Override signal armed", zap.String("side", string(side)))

		return
	}

	counter, other, ready := &s.longCounter, &s.shortCounter, &s.longReady
	if !long {
		counter, other, ready = &s.shortCounter, &s.longCounter, &s.shortReady
	}

	if *counter == 0 {
		*counter = s.candles

		return
	}

	if price != ema {
		*counter++
		*other = 0

		if *counter >= s.candles && !*ready {
			*ready = true
		}
	}
}

// ResetState clears the setup counters. The EMA itself survives.
func (s *EMACrossover) ResetState() {
	s.override = 0
	s.longReady = false
	s.shortReady = false
	s.longCounter = 0
	s.shortCounter = 0
}
