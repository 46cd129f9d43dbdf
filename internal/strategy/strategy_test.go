package strategy

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/eyalcarmi01-ux/trading-bot/internal/bracket"
	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

type fakeHost struct {
	mu       sync.Mutex
	requests []bracket.Request
	refuse   bool
	active   bool
	bars     map[time.Duration][]types.MarketData
	barsErr  error
	barCalls map[time.Duration]int
	recorder *telemetry.Recorder
}

func newFakeHost() *fakeHost {
	return &fakeHost{ //nolint:exhaustruct
		bars:     make(map[time.Duration][]types.MarketData),
		barCalls: make(map[time.Duration]int),
		recorder: telemetry.NewRecorder(),
	}
}

func (h *fakeHost) PlaceBracket(req bracket.Request) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refuse {
		return false
	}

	h.requests = append(h.requests, req)

	return true
}

func (h *fakeHost) HasActivePosition(context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.active
}

func (h *fakeHost) CancelAllOrders(context.Context) error   { return nil }
func (h *fakeHost) CloseAllPositions(context.Context) error { return nil }

func (h *fakeHost) GetPrice(context.Context) optional.Option[types.PriceQuote] {
	return optional.None[types.PriceQuote]()
}

func (h *fakeHost) HistoricalBars(_ context.Context, barSize time.Duration, count int) ([]types.MarketData, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.barCalls[barSize]++

	if h.barsErr != nil {
		return nil, h.barsErr
	}

	bars := h.bars[barSize]
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}

	return bars, nil
}

func (h *fakeHost) Telemetry() telemetry.Sink {
	return h.recorder
}

func (h *fakeHost) sides() []types.PurchaseType {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]types.PurchaseType, 0, len(h.requests))
	for _, r := range h.requests {
		out = append(out, r.Side)
	}

	return out
}

func quoteAt(price float64) PriceContext {
	return PriceContext{
		Quote:       optional.Some(types.PriceQuote{Value: price, Source: types.QuoteSourceLiveTick, Field: types.QuoteFieldLast, Time: time.Time{}}),
		Phase:       types.PhaseIdle,
		NoNewOrders: false,
	}
}

func minuteBars(closes ...float64) []types.MarketData {
	start := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	bars := make([]types.MarketData, len(closes))

	for i, c := range closes {
		bars[i] = types.MarketData{ //nolint:exhaustruct
			Time:  start.Add(time.Duration(i) * time.Minute),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}

	return bars
}

type StrategyTestSuite struct {
	suite.Suite
	host *fakeHost
	ctx  context.Context
	ts   time.Time
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (s *StrategyTestSuite) SetupTest() {
	s.host = newFakeHost()
	s.ctx = context.Background()
	s.ts = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
}

func (s *StrategyTestSuite) deps(settings Settings) Deps {
	return Deps{
		Host:     s.host,
		Log:      nil,
		Symbol:   "CL",
		Params:   Params{}, //nolint:exhaustruct
		Window:   optional.None[types.TradeWindow](),
		Settings: settings,
	}
}

func (s *StrategyTestSuite) feed(st Strategy, prices ...float64) {
	for i, p := range prices {
		s.Require().NoError(st.OnTick(s.ctx, s.ts.Add(time.Duration(i)*time.Minute), quoteAt(p)))
	}
}

// ============================================================================
// Port plumbing
// ============================================================================

func (s *StrategyTestSuite) TestPriceContext() {
	_, ok := PriceContext{Quote: optional.None[types.PriceQuote]()}.Price() //nolint:exhaustruct
	s.False(ok)

	_, ok = quoteAt(math.NaN()).Price()
	s.False(ok)

	p, ok := quoteAt(101.5).Price()
	s.True(ok)
	s.Equal(101.5, p)
}

func (s *StrategyTestSuite) TestParamsDefaultsAndRequest() {
	p := Params{Quantity: 2}.WithDefaults(Params{Quantity: 1, TickSize: 0.25, StopTicks: 4, TargetTicksLong: 8, TargetTicksShort: 6})
	s.Equal(Params{Quantity: 2, TickSize: 0.25, StopTicks: 4, TargetTicksLong: 8, TargetTicksShort: 6}, p)

	req := p.Request(types.PurchaseTypeSell)
	s.Equal(types.PurchaseTypeSell, req.Side)
	s.Equal(2, req.Quantity)
	s.Equal(6, req.TargetTicksShort)
	s.NoError(req.Validate())
}

func (s *StrategyTestSuite) TestBaseHistoryCap() {
	b := NewBase("t", s.deps(Settings{})) //nolint:exhaustruct
	for i := 0; i < HistoryCap+20; i++ {
		b.Push(float64(i))
	}

	s.Len(b.History(), HistoryCap)
	s.Equal(20.0, b.History()[0])
	s.Equal(float64(HistoryCap+19), b.History()[HistoryCap-1])

	b.ClearHistory()
	s.Empty(b.History())
}

func (s *StrategyTestSuite) TestBaseSeedEmitsEvent() {
	bars := minuteBars(10, 11, 12)
	bars = append(bars, types.MarketData{Close: math.NaN()}) //nolint:exhaustruct
	s.host.bars[time.Minute] = bars

	b := NewBase("t", s.deps(Settings{SeedBars: 50})) //nolint:exhaustruct
	used, err := b.Seed(s.ctx)
	s.Require().NoError(err)
	s.Len(used, 3)
	s.Equal([]float64{10, 11, 12}, b.History())

	events := s.host.recorder.OfKind(telemetry.EventSeed)
	s.Require().Len(events, 1)
	s.Len(events[0].History, 3)
	s.Equal(12.0, events[0].History[2].Close)
	s.Equal("CL", events[0].Symbol)
}

func (s *StrategyTestSuite) TestBaseSeedFailure() {
	s.host.barsErr = fmt.Errorf("pacing violation")

	b := NewBase("t", s.deps(Settings{})) //nolint:exhaustruct
	_, err := b.Seed(s.ctx)
	s.Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeHistoricalDataFailed))
	s.Empty(s.host.recorder.Events())
}

func (s *StrategyTestSuite) TestBaseSeedDisabled() {
	b := NewBase("t", s.deps(Settings{SeedBars: -1})) //nolint:exhaustruct
	used, err := b.Seed(s.ctx)
	s.NoError(err)
	s.Nil(used)
	s.Zero(s.host.barCalls[time.Minute])
}

func (s *StrategyTestSuite) TestBaseShouldTradeNow() {
	b := NewBase("t", s.deps(Settings{})) //nolint:exhaustruct
	s.True(b.ShouldTradeNow(s.ts))

	d := s.deps(Settings{}) //nolint:exhaustruct
	d.Window = optional.Some(types.TradeWindow{Start: types.TimeOfDay{Hour: 12}, End: types.TimeOfDay{Hour: 13}, Location: time.UTC})
	b = NewBase("t", d)
	s.False(b.ShouldTradeNow(s.ts))
	s.True(b.ShouldTradeNow(s.ts.Add(2 * time.Hour)))
}

// ============================================================================
// Registry
// ============================================================================

func (s *StrategyTestSuite) TestNamesSorted() {
	s.Equal([]string{NameCCIReversal, NameCCIThreshold, NameEMA, NameFibonacci}, Names())
}

func (s *StrategyTestSuite) TestNewUnknown() {
	_, err := New("martingale", s.deps(Settings{})) //nolint:exhaustruct
	s.Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeUnsupportedStrategy))
}

func (s *StrategyTestSuite) TestNewFillsDefaultParams() {
	d := s.deps(Settings{SeedBars: -1}) //nolint:exhaustruct
	d.Params = Params{Quantity: 3}      //nolint:exhaustruct

	st, err := New(NameEMA, d)
	s.Require().NoError(err)
	s.Equal(NameEMA, st.Name())
	s.Equal(Params{Quantity: 3, TickSize: 0.01, StopTicks: 17, TargetTicksLong: 28, TargetTicksShort: 35}, st.(*EMACrossover).Params())

	p, ok := DefaultParams(NameFibonacci)
	s.True(ok)
	s.Equal(20, p.StopTicks)
	s.Equal(30, p.TargetTicksShort)
}

func (s *StrategyTestSuite) TestThresholdDefaultWindow() {
	st, err := New(NameCCIThreshold, s.deps(Settings{})) //nolint:exhaustruct
	s.Require().NoError(err)

	loc, err := types.LoadLocation("Asia/Jerusalem")
	s.Require().NoError(err)

	s.False(st.ShouldTradeNow(time.Date(2026, 3, 4, 7, 59, 0, 0, loc)))
	s.True(st.ShouldTradeNow(time.Date(2026, 3, 4, 8, 0, 0, 0, loc)))
	s.True(st.ShouldTradeNow(time.Date(2026, 3, 4, 23, 0, 0, 0, loc)))
	s.False(st.ShouldTradeNow(time.Date(2026, 3, 4, 23, 1, 0, 0, loc)))

	// An explicit window wins.
	d := s.deps(Settings{}) //nolint:exhaustruct
	d.Window = optional.Some(types.TradeWindow{Start: types.TimeOfDay{Hour: 0}, End: types.TimeOfDay{Hour: 23, Minute: 59}, Location: loc})
	st, err = New(NameCCIThreshold, d)
	s.Require().NoError(err)
	s.True(st.ShouldTradeNow(time.Date(2026, 3, 4, 7, 0, 0, 0, loc)))
}

// ============================================================================
// EMA crossover
// ============================================================================

func (s *StrategyTestSuite) newEMA(settings Settings) *EMACrossover {
	st, err := New(NameEMA, s.deps(settings))
	s.Require().NoError(err)

	return st.(*EMACrossover)
}

func (s *StrategyTestSuite) TestEMASetupThenPullbackBuys() {
	st := s.newEMA(Settings{EMAPeriod: 3, SetupCandles: 3, SeedBars: -1}) //nolint:exhaustruct

	// ema: 100, 100.5, 101.25, 102.125
	s.feed(st, 100, 101, 102, 103)
	s.True(st.longReady)
	s.Empty(s.host.requests)
	s.InDelta(102.125, st.EMA().Unwrap(), 1e-9)

	s.feed(st, 100)
	s.Equal([]types.PurchaseType{types.PurchaseTypeBuy}, s.host.sides())
	s.False(st.longReady)
	s.Equal(17, s.host.requests[0].StopTicks)
	s.Equal(28, s.host.requests[0].TargetTicksLong)
}

func (s *StrategyTestSuite) TestEMARefusedKeepsSetup() {
	st := s.newEMA(Settings{EMAPeriod: 3, SetupCandles: 3, SeedBars: -1}) //nolint:exhaustruct
	s.host.refuse = true

	s.feed(st, 100, 101, 102, 103, 100)
	s.Empty(s.host.requests)
	s.True(st.longReady)
}

func (s *StrategyTestSuite) TestEMAShortOverride() {
	st := s.newEMA(Settings{EMAPeriod: 3, SetupCandles: 3, SignalOverride: -1, SeedBars: -1}) //nolint:exhaustruct

	s.feed(st, 100) // equal to the EMA: counter starts from a full run
	s.Equal(3, st.shortCounter)

	s.feed(st, 101) // above the EMA arms the short
	s.True(st.shortReady)
	s.Zero(st.override)

	s.feed(st, 102)
	s.Equal([]types.PurchaseType{types.PurchaseTypeSell}, s.host.sides())
}

func (s *StrategyTestSuite) TestEMAIdleWhileActive() {
	st := s.newEMA(Settings{EMAPeriod: 3, SetupCandles: 3, SeedBars: -1}) //nolint:exhaustruct
	s.host.active = true

	s.feed(st, 100, 101, 102, 103, 100)
	s.Empty(s.host.requests)
	s.Zero(st.longCounter)
	s.False(st.longReady)
}

func (s *StrategyTestSuite) TestEMASkipsMissingPrice() {
	st := s.newEMA(Settings{EMAPeriod: 3, SeedBars: -1})                                      //nolint:exhaustruct
	s.NoError(st.OnTick(s.ctx, s.ts, PriceContext{Quote: optional.None[types.PriceQuote]()})) //nolint:exhaustruct
	s.True(st.EMA().IsNone())
}

func (s *StrategyTestSuite) TestEMAPreRunPrimesFromHistory() {
	s.host.bars[time.Minute] = minuteBars(1, 2, 3, 4, 5)
	st := s.newEMA(Settings{EMAPeriod: 3, SeedBars: 10}) //nolint:exhaustruct

	s.Require().NoError(st.PreRun(s.ctx))
	s.InDelta(4.0, st.EMA().Unwrap(), 1e-9)
	s.Len(s.host.recorder.OfKind(telemetry.EventSeed), 1)
	s.Len(s.host.recorder.OfKind(telemetry.EventPriming), 1)
}

func (s *StrategyTestSuite) TestEMAPreRunFallsBackToInitial() {
	s.host.barsErr = fmt.Errorf("no data permissions")
	st := s.newEMA(Settings{EMAPeriod: 200, InitialEMA: 71.3}) //nolint:exhaustruct

	err := st.PreRun(s.ctx)
	s.Error(err)
	s.Equal(71.3, st.EMA().Unwrap())
	s.Empty(s.host.recorder.OfKind(telemetry.EventPriming))
}

func (s *StrategyTestSuite) TestEMAResetState() {
	st := s.newEMA(Settings{EMAPeriod: 3, SetupCandles: 3, SignalOverride: 1, SeedBars: -1}) //nolint:exhaustruct
	s.feed(st, 100, 101, 102)

	st.ResetState()
	s.Zero(st.override)
	s.Zero(st.longCounter)
	s.False(st.longReady)
	s.True(st.EMA().IsSome())
}

// ============================================================================
// CCI reversal
// ============================================================================

func (s *StrategyTestSuite) TestReversalBoundaries() {
	cases := []struct {
		name   string
		values []float64
		long   bool
		short  bool
	}{
		{"long hook", []float64{-121, -119, -118}, true, false},
		{"long needs strictly below before", []float64{-120, -119, -118}, false, false},
		{"long needs strictly above after", []float64{-121, -120, -100}, false, false},
		{"long needs rising", []float64{-121, -119, -119}, false, false},
		{"short hook", []float64{121, 119, 118}, false, true},
		{"short accepts exactly threshold before", []float64{120, 119, 118}, false, true},
		{"short needs strictly below after", []float64{121, 120, 110}, false, false},
		{"short needs falling", []float64{121, 119, 119}, false, false},
		{"short just under threshold", []float64{119.99, 119, 118}, false, false},
		{"too short", []float64{-121, -119}, false, false},
		{"uses the newest three", []float64{500, 500, -121, -119, -118}, true, false},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Equal(tc.long, ReversalLong(tc.values, 120))
			s.Equal(tc.short, ReversalShort(tc.values, 120))
		})
	}
}

func (s *StrategyTestSuite) TestReversalTrendFilter() {
	st, err := New(NameCCIReversal, s.deps(Settings{SeedBars: -1})) //nolint:exhaustruct
	s.Require().NoError(err)
	rev := st.(*CCIReversal)

	rev.cci.values = []float64{-130, -110, -90}
	side, ok := rev.decide(101, 100)
	s.True(ok)
	s.Equal(types.PurchaseTypeBuy, side)

	_, ok = rev.decide(100, 100)
	s.False(ok)

	rev.cci.values = []float64{130, 110, 90}
	side, ok = rev.decide(99, 100)
	s.True(ok)
	s.Equal(types.PurchaseTypeSell, side)

	_, ok = rev.decide(101, 100)
	s.False(ok)
}

func (s *StrategyTestSuite) TestReversalTickUpdatesIndicators() {
	st, err := New(NameCCIReversal, s.deps(Settings{CCIPeriod: 3, SeedBars: -1})) //nolint:exhaustruct
	s.Require().NoError(err)
	rev := st.(*CCIReversal)

	s.feed(rev, 1, 2)
	s.Empty(rev.Values())

	s.feed(rev, 3)
	s.Require().Len(rev.Values(), 1)
	s.InDelta(1/0.015, rev.Values()[0], 1e-9)
	s.True(rev.fast.IsSome())
	s.Empty(s.host.requests)

	rev.ResetState()
	s.Empty(rev.Values())
	s.Empty(rev.History())
	s.True(rev.fast.IsNone())
	s.True(rev.slow.IsSome())
}

func (s *StrategyTestSuite) TestReversalPreRunPrimesCCI() {
	closes := make([]float64, 0, 30)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100+float64(i%5))
	}

	s.host.bars[time.Minute] = minuteBars(closes...)

	st, err := New(NameCCIReversal, s.deps(Settings{SeedBars: 30})) //nolint:exhaustruct
	s.Require().NoError(err)
	rev := st.(*CCIReversal)

	s.Require().NoError(rev.PreRun(s.ctx))
	s.Len(rev.Values(), 30-14+1)
	s.True(rev.fast.IsSome())
	// 30 bars are not enough for EMA200 and no initial value is configured.
	s.True(rev.slow.IsNone())
	s.Len(s.host.recorder.OfKind(telemetry.EventPriming), 1)
}

// ============================================================================
// CCI threshold
// ============================================================================

func (s *StrategyTestSuite) newThreshold() *CCIThreshold {
	d := s.deps(Settings{SeedBars: -1}) //nolint:exhaustruct
	d.Window = optional.Some(types.TradeWindow{Start: types.TimeOfDay{}, End: types.TimeOfDay{Hour: 23, Minute: 59}, Location: time.UTC})

	st, err := New(NameCCIThreshold, d)
	s.Require().NoError(err)

	return st.(*CCIThreshold)
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}

	return out
}

func (s *StrategyTestSuite) TestThresholdSpikeSells() {
	st := s.newThreshold()

	s.feed(st, flat(14, 100)...)
	s.Empty(s.host.requests)

	// 13 flat closes and one spike give a CCI of about +231.
	s.feed(st, 110)
	s.Equal([]types.PurchaseType{types.PurchaseTypeSell}, s.host.sides())
	s.Equal(20, s.host.requests[0].StopTicks)
	s.Equal(60, s.host.requests[0].TargetTicksShort)
}

func (s *StrategyTestSuite) TestThresholdDropBuys() {
	st := s.newThreshold()

	s.feed(st, flat(14, 100)...)
	s.feed(st, 90)
	s.Equal([]types.PurchaseType{types.PurchaseTypeBuy}, s.host.sides())
}

func (s *StrategyTestSuite) TestThresholdBlockedWhileActive() {
	st := s.newThreshold()
	s.host.active = true

	s.feed(st, flat(14, 100)...)
	s.feed(st, 110)
	s.Empty(s.host.requests)
}

func (s *StrategyTestSuite) TestThresholdNeedsHistory() {
	st := s.newThreshold()

	s.feed(st, 100, 100, 130)
	s.Empty(s.host.requests)

	st.ResetState()
	s.Empty(st.History())
	s.Empty(st.cci.values)
}

func (s *StrategyTestSuite) TestThresholdClassicMode() {
	d := s.deps(Settings{SeedBars: -1, ClassicCCI: true}) //nolint:exhaustruct
	st := NewCCIThreshold(d).(*CCIThreshold)

	// With mean deviation the same spike reads 13/14*10 / (0.015 * 2*13*10/196) = 466.7.
	s.feed(st, flat(14, 100)...)
	s.feed(st, 110)
	s.Require().Len(st.cci.values, 2)
	s.InDelta(466.67, st.cci.values[1], 0.01)
	s.Equal([]types.PurchaseType{types.PurchaseTypeSell}, s.host.sides())
}

// ============================================================================
// Fibonacci
// ============================================================================

func dailyBars(prevOpen, prevClose, high, low float64) []types.MarketData {
	start := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	bars := make([]types.MarketData, 10)

	for i := range bars {
		bars[i] = types.MarketData{ //nolint:exhaustruct
			Time: start.Add(time.Duration(i) * 24 * time.Hour), Open: 50, High: 60, Low: 40, Close: 55,
		}
	}

	bars[8] = types.MarketData{ //nolint:exhaustruct
		Time: start.Add(8 * 24 * time.Hour), Open: prevOpen, High: high, Low: low, Close: prevClose,
	}

	return bars
}

func (s *StrategyTestSuite) newFibonacci() *Fibonacci {
	st, err := New(NameFibonacci, s.deps(Settings{SeedBars: -1})) //nolint:exhaustruct
	s.Require().NoError(err)

	return st.(*Fibonacci)
}

func (s *StrategyTestSuite) TestFibonacciBullishPullbackBuys() {
	s.host.bars[24*time.Hour] = dailyBars(100, 110, 110, 100)
	st := s.newFibonacci()

	// Levels: 107.64, 106.18, 105, 103.82, 102.14.
	s.feed(st, 106.5)
	s.True(st.Bullish())
	s.Empty(s.host.requests)

	s.feed(st, 106.0)
	s.Equal([]types.PurchaseType{types.PurchaseTypeBuy}, s.host.sides())
	s.Equal(30, s.host.requests[0].TargetTicksLong)
}

func (s *StrategyTestSuite) TestFibonacciBearishBreakdownSells() {
	s.host.bars[24*time.Hour] = dailyBars(110, 100, 110, 100)
	st := s.newFibonacci()

	// Levels: 107.86, 106.18, 105, 103.82, 102.36.
	s.feed(st, 105.5, 104.9)
	s.False(st.Bullish())
	s.Equal([]types.PurchaseType{types.PurchaseTypeSell}, s.host.sides())
}

func (s *StrategyTestSuite) TestFibonacciIgnoresOutermostLevel() {
	s.host.bars[24*time.Hour] = dailyBars(100, 110, 110, 100)
	st := s.newFibonacci()

	// Falling through the top level is not a bullish pullback.
	s.feed(st, 108, 107.5)
	s.Empty(s.host.requests)
}

func (s *StrategyTestSuite) TestFibonacciRegimeFlips() {
	s.host.bars[24*time.Hour] = dailyBars(100, 110, 110, 100)
	st := s.newFibonacci()

	s.feed(st, 101)
	s.False(st.Bullish())
}

func (s *StrategyTestSuite) TestFibonacciNeedsDailyBars() {
	s.host.bars[24*time.Hour] = dailyBars(100, 110, 110, 100)[:5]
	st := s.newFibonacci()

	s.feed(st, 106.5, 106.0)
	s.Empty(s.host.requests)
	s.Equal(2, s.host.barCalls[24*time.Hour])
}

func (s *StrategyTestSuite) TestFibonacciRefreshesDaily() {
	s.host.bars[24*time.Hour] = dailyBars(100, 110, 110, 100)
	st := s.newFibonacci()

	s.feed(st, 106.5, 106.4)
	s.Equal(1, s.host.barCalls[24*time.Hour])

	s.Require().NoError(st.OnTick(s.ctx, s.ts.Add(24*time.Hour), quoteAt(106.3)))
	s.Equal(2, s.host.barCalls[24*time.Hour])
}

func (s *StrategyTestSuite) TestFibonacciBlockedWhileActive() {
	s.host.bars[24*time.Hour] = dailyBars(100, 110, 110, 100)
	s.host.active = true
	st := s.newFibonacci()

	s.feed(st, 106.5, 106.0)
	s.Empty(s.host.requests)

	st.ResetState()
	s.True(st.prev.IsNone())
}
