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
	defaultCCIPeriod         = 14
	defaultReversalThreshold = 120
	defaultThresholdLevel    = 200
	fastEMAPeriod            = 10
	slowEMAPeriod            = 200
	cciValuesCap             = 100
)

// ReversalLong matches a CCI series that dipped below -threshold and turned up:
// v[-3] < -t, v[-2] > -t, v[-1] > v[-2].
func ReversalLong(v []float64, threshold float64) bool {
	n := len(v)

	return n >= 3 && v[n-3] < -threshold && v[n-2] > -threshold && v[n-1] > v[n-2]
}

// ReversalShort matches a CCI series that was at or above threshold and turned down:
// v[-3] >= t, v[-2] < t, v[-1] < v[-2].
func ReversalShort(v []float64, threshold float64) bool {
	n := len(v)

	return n >= 3 && v[n-3] >= threshold && v[n-2] < threshold && v[n-1] < v[n-2]
}

type cciSeries struct {
	period    int
	deviation indicator.Deviation
	values    []float64
}

func newCCISeries(s Settings) cciSeries {
	period := s.CCIPeriod
	if period <= 1 {
		period = defaultCCIPeriod
	}

	deviation := indicator.DeviationStd
	if s.ClassicCCI {
		deviation = indicator.DeviationMean
	}

	return cciSeries{period: period, deviation: deviation, values: nil}
}

// update appends the CCI of history, if there is enough of it.
func (c *cciSeries) update(history []float64) optional.Option[float64] {
	v, err := indicator.CommodityChannelIndex(history, c.period, c.deviation)
	if err != nil {
		return optional.None[float64]()
	}

	c.values = append(c.values, v)
	if len(c.values) > cciValuesCap {
		c.values = append(c.values[:0], c.values[len(c.values)-cciValuesCap:]...)
	}

	return optional.Some(v)
}

// prime computes the trailing CCI values over a seeded history.
func (c *cciSeries) prime(history []float64) {
	start := len(history) - cciValuesCap
	if start < c.period {
		start = c.period
	}

	for end := start; end <= len(history); end++ {
		c.update(history[:end])
	}
}

func (c *cciSeries) reset() {
	c.values = nil
}

// CCIReversal trades a CCI hook back through ±Threshold, filtered by the EMA10/EMA200 trend.
type CCIReversal struct {
	Base
	cci       cciSeries
	threshold float64
	initial   float64
	fast      optional.Option[float64]
	slow      optional.Option[float64]
}

var _ Strategy = (*CCIReversal)(nil)

// NewCCIReversal builds the CCI reversal strategy.
func NewCCIReversal(d Deps) Strategy {
	threshold := d.Settings.Threshold
	if threshold <= 0 {
		threshold = defaultReversalThreshold
	}

	return &CCIReversal{
		Base:      NewBase(NameCCIReversal, d),
		cci:       newCCISeries(d.Settings),
		threshold: threshold,
		initial:   d.Settings.InitialEMA,
		fast:      optional.None[float64](),
		slow:      optional.None[float64](),
	}
}

func (s *CCIReversal) PreRun(ctx context.Context) error {
	bars, err := s.Seed(ctx)
	history := s.History()

	if series, serr := indicator.EMASeries(history, fastEMAPeriod); serr == nil {
		s.fast = optional.Some(series[len(series)-1])
	}

	if series, serr := indicator.EMASeries(history, slowEMAPeriod); serr == nil {
		s.slow = optional.Some(series[len(series)-1])
	} else if s.initial > 0 {
		s.slow = optional.Some(s.initial)
	}

	s.cci.prime(history)
	if len(s.cci.values) > 0 {
		s.Prime(ctx, bars)
	}

	return err
}

// Values returns the recent CCI readings, oldest first.
func (s *CCIReversal) Values() []float64 {
	return s.cci.values
}

func (s *CCIReversal) OnTick(ctx context.Context, ts time.Time, pc PriceContext) error {
	price, ok := pc.Price()
	if !ok {
		s.log.Warn("Invalid price, skipping (EMAs preserved)", zap.Time("ts", ts))

		return nil
	}

	fast := indicator.NextEMA(price, s.fast.TakeOr(price), fastEMAPeriod)
	slow := indicator.NextEMA(price, s.slow.TakeOr(price), slowEMAPeriod)
	s.fast, s.slow = optional.Some(fast), optional.Some(slow)

	s.Push(price)
	cci := s.cci.update(s.History())

	s.log.Info("Price",
		zap.Time("ts", ts),
		zap.Float64("price", price),
		zap.Float64("ema_fast", fast),
		zap.Float64("ema_slow", slow),
		zap.Float64("cci", cci.TakeOr(0)),
		zap.Bool("cci_ready", cci.IsSome()),
	)

	if s.host.HasActivePosition(ctx) {
		return nil
	}

	if side, ok := s.decide(fast, slow); ok {
		s.Place(side, price)
	}

	return nil
}

// decide applies the reversal patterns to the CCI readings and the trend filter to
// the EMAs.
func (s *CCIReversal) decide(fast, slow float64) (types.PurchaseType, bool) {
	switch {
	case ReversalLong(s.cci.values, s.threshold):
		if fast <= slow {
			s.log.Info("Long CCI pattern filtered out by trend", zap.Float64("ema_fast", fast), zap.Float64("ema_slow", slow))

			return "", false
		}

		return types.PurchaseTypeBuy, true
	case ReversalShort(s.cci.values, s.threshold):
		if fast >= slow {
			s.log.Info("Short CCI pattern filtered out by trend", zap.Float64("ema_fast", fast), zap.Float64("ema_slow", slow))

			return "", false
		}

		return types.PurchaseTypeSell, true
	}

	return "", false
}

// ResetState drops the history, the CCI readings and the fast EMA.
func (s *CCIReversal) ResetState() {
	s.ClearHistory()
	s.cci.reset()
	s.fast = optional.None[float64]()
}

// CCIThreshold fades an extreme CCI: above +Threshold sells, below -Threshold buys.
type CCIThreshold struct {
	Base
	cci       cciSeries
	threshold float64
}

var _ Strategy = (*CCIThreshold)(nil)

// NewCCIThreshold builds the CCI threshold strategy.
func NewCCIThreshold(d Deps) Strategy {
	threshold := d.Settings.Threshold
	if threshold <= 0 {
		threshold = defaultThresholdLevel
	}

	return &CCIThreshold{
		Base:      NewBase(NameCCIThreshold, d),
		cci:       newCCISeries(d.Settings),
		threshold: threshold,
	}
}

func (s *CCIThreshold) PreRun(ctx context.Context) error {
	bars, err := s.Seed(ctx)

	s.cci.prime(s.History())
	if len(s.cci.values) > 0 {
		s.Prime(ctx, bars)
	}

	return err
}

func (s *CCIThreshold) OnTick(ctx context.Context, ts time.Time, pc PriceContext) error {
	price, ok := pc.Price()
	if !ok {
		s.log.Warn("Invalid price, skipping", zap.Time("ts", ts))

		return nil
	}

	s.Push(price)

	cci, err := s.cci.update(s.History()).Take()
	if err != nil {
		s.log.Info("Not enough data for CCI", zap.Int("history", len(s.History())), zap.Int("period", s.cci.period))

		return nil
	}

	s.log.Info("Price", zap.Time("ts", ts), zap.Float64("price", price), zap.Float64("cci", cci))

	var side types.PurchaseType

	switch {
	case cci > s.threshold:
		side = types.PurchaseTypeSell
	case cci < -s.threshold:
		side = types.PurchaseTypeBuy
	default:
		return nil
	}

	if s.host.HasActivePosition(ctx) {
		s.log.Info("Signal blocked, trade already active", zap.String("side", string(side)))

		return nil
	}

	s.Place(side, price)

	return nil
}

// ResetState drops the history and CCI readings.
func (s *CCIThreshold) ResetState() {
	s.ClearHistory()
	s.cci.reset()
}
