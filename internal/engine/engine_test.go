package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/eyalcarmi01-ux/trading-bot/internal/bracket"
	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/price"
	"github.com/eyalcarmi01-ux/trading-bot/internal/retry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/scheduler"
	"github.com/eyalcarmi01-ux/trading-bot/internal/session"
	"github.com/eyalcarmi01-ux/trading-bot/internal/strategy"
	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/mocks"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// fakeClock advances by exactly the requested duration on every After call. A blocking
// clock never fires.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	block bool
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if c.block {
		return ch
	}

	c.now = c.now.Add(d)
	ch <- c.now

	return ch
}

type EngineTestSuite struct {
	suite.Suite
	ctx      context.Context
	loc      *time.Location
	paper    *gateway.PaperGateway
	registry *session.ProcessRegistry
	recorder *telemetry.Recorder
	dir      string

	mu      sync.Mutex
	started []types.ContractHandle
	stopped []error
	closed  []types.ClosedTrade
	errs    []error
	phases  []types.TradePhase
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()

	loc, err := types.LoadLocation("Asia/Jerusalem")
	s.Require().NoError(err)
	s.loc = loc

	s.paper = gateway.NewPaperGateway()
	s.registry = session.NewProcessRegistry()
	s.recorder = telemetry.NewRecorder()
	s.dir = s.T().TempDir()
	s.started = nil
	s.stopped = nil
	s.closed = nil
	s.errs = nil
	s.phases = nil
}

func (s *EngineTestSuite) instrument() types.InstrumentDescriptor {
	return types.InstrumentDescriptor{Symbol: "CL", Exchange: "NYMEX", Currency: "USD", Expiry: "202512"}
}

func (s *EngineTestSuite) config(clientID int) Config {
	schedule := scheduler.DefaultConfig(s.loc)

	return Config{
		Name:       "ema-CL",
		Strategy:   "ema",
		Instrument: s.instrument(),
		ClientID:   clientID,
		Params:     strategy.Params{Quantity: 1, TickSize: 0.01, StopTicks: 17, TargetTicksLong: 28, TargetTicksShort: 35},
		Settings:   strategy.Settings{},
		Window:     optional.None[types.TradeWindow](),
		Schedule:   schedule,
		StatsPath:  filepath.Join(s.dir, "ema-CL.stats.yaml"),
	}
}

func (s *EngineTestSuite) callbacks() Callbacks {
	onStart := OnEngineStartCallback(func(_ string, contract types.ContractHandle) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.started = append(s.started, contract)

		return nil
	})
	onStop := OnEngineStopCallback(func(_ string, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.stopped = append(s.stopped, err)
	})
	onTrade := OnTradeClosedCallback(func(_ string, trade types.ClosedTrade) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.closed = append(s.closed, trade)

		return nil
	})
	onError := OnErrorCallback(func(_ string, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.errs = append(s.errs, err)
	})
	onPhase := OnPhaseChangeCallback(func(_ string, _, to types.TradePhase) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.phases = append(s.phases, to)
	})

	return Callbacks{
		OnEngineStart: &onStart,
		OnEngineStop:  &onStop,
		OnTradeClosed: &onTrade,
		OnError:       &onError,
		OnPhaseChange: &onPhase,
	}
}

// fastOptions shrink every timeout so that the paper round trips finish quickly.
func (s *EngineTestSuite) fastOptions() []Option {
	bracketCfg := bracket.DefaultConfig("ema-CL")
	bracketCfg.PriceWindow = 50 * time.Millisecond
	bracketCfg.IDTimeout = 50 * time.Millisecond
	bracketCfg.ConfirmTimeout = 100 * time.Millisecond
	bracketCfg.PollInterval = 5 * time.Millisecond
	bracketCfg.CallTimeout = 200 * time.Millisecond

	sessionCfg := session.DefaultConfig(0)
	sessionCfg.Retry = retry.Policy{MaxAttempts: 1, BaseDelay: 0, Jitter: 0, Counts: nil, Escalate: nil}
	sessionCfg.ConnectTimeout = time.Second
	sessionCfg.CallTimeout = time.Second

	return []Option{
		WithSessionConfig(sessionCfg),
		WithBracketOptions(
			bracket.WithConfig(bracketCfg),
			bracket.WithSleep(func(context.Context, time.Duration) error { return nil }),
		),
		WithPriceOptions(price.WithConfig(price.Config{
			StreamWindow: 50 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			CallTimeout:  200 * time.Millisecond,
			BarSize:      time.Minute,
			BarCount:     2,
		})),
		WithCallTimeout(time.Second),
	}
}

func (s *EngineTestSuite) newEngine(cfg Config, opts ...Option) *Engine {
	deps := Deps{
		Factory:  func() (gateway.Gateway, error) { return s.paper, nil },
		Registry: s.registry,
		Log:      logger.NewNopLogger(),
		Sink:     s.recorder,
		Metrics:  nil,
	}

	all := append(s.fastOptions(), WithCallbacks(s.callbacks()))

	e, err := New(cfg, deps, append(all, opts...)...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { e.executor.Close() })

	return e
}

// connect brings the session up without running the scheduler.
func (s *EngineTestSuite) connect(e *Engine) {
	s.Require().NoError(e.session.Connect(s.ctx))
	s.True(e.session.QualifyContract(s.ctx, s.instrument()).Qualified)
}

func (s *EngineTestSuite) at(hour, minute, second int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, second, 0, s.loc)
}

// ============================================================================
// New
// ============================================================================

func (s *EngineTestSuite) TestNew_GeneratesClientIDWhenZero() {
	e := s.newEngine(s.config(0))

	s.Positive(e.cfg.ClientID)
	s.False(s.registry.InUse(e.cfg.ClientID), "the identity is only held once connected")
	s.NotEmpty(e.RunID())
	s.Equal("ema-CL", e.Name())
	s.Equal(types.PhaseIdle, e.Phase())
}

func (s *EngineTestSuite) TestNew_DefaultsTheName() {
	cfg := s.config(11)
	cfg.Name = ""

	e := s.newEngine(cfg)

	s.Equal("ema-CL", e.Name())
}

func (s *EngineTestSuite) TestNew_UnknownStrategy() {
	cfg := s.config(11)
	cfg.Strategy = "macd"

	_, err := New(cfg, Deps{
		Factory:  func() (gateway.Gateway, error) { return s.paper, nil },
		Registry: s.registry,
		Log:      nil,
		Sink:     nil,
		Metrics:  nil,
	})

	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeUnsupportedStrategy))
}

// ============================================================================
// Host
// ============================================================================

func (s *EngineTestSuite) TestHost_NotConnected() {
	e := s.newEngine(s.config(11))

	err := e.CancelAllOrders(s.ctx)
	s.True(errors.HasCode(err, errors.ErrCodeNotConnected))

	err = e.CloseAllPositions(s.ctx)
	s.True(errors.HasCode(err, errors.ErrCodeNotConnected))

	_, err = e.HistoricalBars(s.ctx, time.Minute, 10)
	s.True(errors.HasCode(err, errors.ErrCodeNotConnected))

	s.False(e.HasActivePosition(s.ctx))
	s.Same(s.recorder, e.Telemetry())
}

func (s *EngineTestSuite) TestHost_HasActivePosition() {
	e := s.newEngine(s.config(11))
	s.connect(e)

	s.False(e.HasActivePosition(s.ctx))

	s.paper.SetPosition("CL", -2)
	s.True(e.HasActivePosition(s.ctx))

	s.paper.SetPosition("CL", 0)
	s.False(e.HasActivePosition(s.ctx))

	e.machine.Transition(types.PhaseSignalPending, "test")
	s.True(e.HasActivePosition(s.ctx))
}

func (s *EngineTestSuite) TestHost_CloseAllPositionsFlattens() {
	e := s.newEngine(s.config(11))
	s.connect(e)
	s.paper.SetPrice(70)
	s.paper.SetPosition("CL", 2)

	s.Require().NoError(e.CloseAllPositions(s.ctx))

	placed := s.paper.Placed()
	s.Require().Len(placed, 1)
	s.Equal(types.PurchaseTypeSell, placed[0].Side)
	s.Equal(2, placed[0].Quantity)
	s.False(e.HasActivePosition(s.ctx))
}

func (s *EngineTestSuite) TestHost_CloseAllPositionsWhenFlatPlacesNothing() {
	e := s.newEngine(s.config(11))
	s.connect(e)

	s.Require().NoError(e.CloseAllPositions(s.ctx))
	s.Empty(s.paper.Placed())
}

func (s *EngineTestSuite) TestHost_CancelAllOrders() {
	e := s.newEngine(s.config(11))
	s.connect(e)

	//nolint:exhaustruct
	ticket, err := s.paper.PlaceOrder(s.ctx, e.session.Contract(), types.Order{
		Role: types.OrderRoleEntry, Symbol: "CL", Side: types.PurchaseTypeBuy, Type: types.OrderTypeMarket, Quantity: 1,
	})
	s.Require().NoError(err)

	s.Require().NoError(e.CancelAllOrders(s.ctx))
	s.Equal(types.OrderStatusCancelled, s.paper.Status(ticket.Order().OrderID))
}

func (s *EngineTestSuite) TestHost_HistoricalBarsFromBarSource() {
	cfg := mocks.DefaultConfig()
	cfg.End = s.at(10, 0, 0)
	gen := mocks.NewDataGenerator(3, cfg)
	s.paper = gateway.NewPaperGateway(gateway.WithBarSource(gen))

	e := s.newEngine(s.config(11))
	s.connect(e)

	bars, err := e.HistoricalBars(s.ctx, time.Minute, 20)
	s.Require().NoError(err)
	s.Len(bars, 20)
	s.Equal("CL", bars[0].Symbol)
	s.Equal(1, gen.Calls())
}

func (s *EngineTestSuite) TestHost_HistoricalBarsFailure() {
	s.paper.SetFailures(nil, nil, errors.New(errors.ErrCodeHistoricalDataFailed, "pacing violation"))

	e := s.newEngine(s.config(11))
	s.connect(e)

	_, err := e.HistoricalBars(s.ctx, time.Minute, 20)
	s.True(errors.HasCode(err, errors.ErrCodeHistoricalDataFailed))
}

// ============================================================================
// Bracket round trip
// ============================================================================

func (s *EngineTestSuite) TestBracketRoundTrip_TargetFillClosesTrade() {
	e := s.newEngine(s.config(11))
	s.connect(e)
	s.paper.SetPrice(70)

	req := bracket.Request{
		Side: types.PurchaseTypeBuy, Quantity: 1, TickSize: 0.01,
		StopTicks: 17, TargetTicksLong: 28, TargetTicksShort: 35,
	}
	s.Require().True(e.PlaceBracket(req))
	e.executor.Wait()

	s.Equal(types.PhaseActive, e.Phase())
	s.True(e.HasActivePosition(s.ctx))
	s.Equal("ACTIVE", e.Health().Phase)
	s.True(e.Health().Connected)

	var target types.Order

	for _, o := range s.paper.Placed() {
		if o.Role == types.OrderRoleTarget {
			target = o
		}
	}

	s.Require().NotEmpty(target.OrderID)
	s.Require().NoError(s.paper.FillOrder(target.OrderID, target.Price.Unwrap()))

	s.Require().NoError(e.monitor.Check(s.ctx))

	s.Equal(types.PhaseIdle, e.Phase())

	s.mu.Lock()
	s.Require().Len(s.closed, 1)
	s.Equal(types.ExitReasonTargetFill, s.closed[0].Reason)
	s.Greater(s.closed[0].PnL, 0.0)
	s.Contains(s.phases, types.PhaseActive)
	s.mu.Unlock()

	stats := e.Stats()
	s.Equal(1, stats.TradeResult.NumberOfTrades)
	s.Equal(1, stats.TradeResult.NumberOfWinningTrades)
	s.Equal(1, stats.TradeResult.Exits[types.ExitReasonTargetFill])
}

func (s *EngineTestSuite) TestBracketRoundTrip_RefusedWhileActive() {
	e := s.newEngine(s.config(11))
	s.connect(e)
	s.paper.SetPrice(70)

	req := bracket.Request{
		Side: types.PurchaseTypeSell, Quantity: 1, TickSize: 0.01,
		StopTicks: 17, TargetTicksLong: 28, TargetTicksShort: 35,
	}
	s.Require().True(e.PlaceBracket(req))
	e.executor.Wait()

	s.False(e.PlaceBracket(req))
	s.Len(s.paper.Placed(), 3)
}

// ============================================================================
// Force close and reconnect
// ============================================================================

func (s *EngineTestSuite) TestForceClose_RetiresActiveTrade() {
	cfg := s.config(11)
	cfg.Schedule.ForceClose = optional.Some(types.TimeOfDay{Hour: 21, Minute: 0})

	clock := &fakeClock{mu: sync.Mutex{}, now: s.at(20, 59, 0), block: false}
	e := s.newEngine(cfg, WithSchedulerOptions(scheduler.WithClock(clock)))
	s.connect(e)
	s.paper.SetPrice(70)

	req := bracket.Request{
		Side: types.PurchaseTypeBuy, Quantity: 1, TickSize: 0.01,
		StopTicks: 17, TargetTicksLong: 28, TargetTicksShort: 35,
	}
	s.Require().True(e.PlaceBracket(req))
	e.executor.Wait()
	s.Require().Equal(types.PhaseActive, e.Phase())

	s.Equal(scheduler.OutcomeTicked, e.scheduler.Cycle(s.ctx))
	s.Equal(types.PhaseActive, e.Phase())

	s.paper.SetPrice(70.5)
	clock.now = s.at(21, 0, 30)
	e.scheduler.Cycle(s.ctx)

	s.Equal(types.PhaseIdle, e.Phase())
	s.True(e.machine.PendingStop().IsNone())
	s.False(e.HasActivePosition(s.ctx))

	positions, err := s.paper.Positions(s.ctx)
	s.Require().NoError(err)

	for _, pos := range positions {
		s.Zero(pos.Quantity)
	}

	exits := s.recorder.OfKind(telemetry.EventExit)
	s.Require().Len(exits, 1)
	s.Equal(types.ExitReasonManual, exits[0].Reason)
	s.Equal(types.PurchaseTypeSell, exits[0].Action)
	s.InDelta(0.5, exits[0].PnL, 1e-9)

	s.mu.Lock()
	s.Require().Len(s.closed, 1)
	s.Equal(types.ExitReasonManual, s.closed[0].Reason)
	s.mu.Unlock()

	s.Equal(1, e.Stats().TradeResult.Exits[types.ExitReasonManual])

	clock.now = s.at(22, 0, 0)
	e.scheduler.Cycle(s.ctx)
	s.Len(s.recorder.OfKind(telemetry.EventExit), 1, "no stop breach on the retired trade")
}

func (s *EngineTestSuite) TestCloseAllPositions_KeepsPlacementInProgress() {
	e := s.newEngine(s.config(11))
	s.connect(e)

	s.Require().True(e.machine.TryBegin("signal"))
	s.Require().NoError(e.CloseAllPositions(s.ctx))

	s.Equal(types.PhaseOrderPlacing, e.Phase())
	s.Empty(s.recorder.OfKind(telemetry.EventExit))
}

func (s *EngineTestSuite) TestCycle_ReconnectsAfterFailedInitialConnect() {
	s.paper = gateway.NewPaperGateway(gateway.WithConnectErrors(
		errors.New(errors.ErrCodeConnectionFailed, "gateway down"),
	))

	clock := &fakeClock{mu: sync.Mutex{}, now: s.at(10, 0, 0), block: false}
	e := s.newEngine(s.config(11),
		WithSchedulerOptions(scheduler.WithClock(clock)),
		WithSessionOptions(session.WithSleep(func(context.Context, time.Duration) error { return nil })),
	)

	s.Require().Error(e.session.Connect(s.ctx))
	s.False(e.session.QualifyContract(s.ctx, s.instrument()).Qualified)
	s.False(e.IsConnected())

	e.scheduler.Cycle(s.ctx)

	s.True(e.IsConnected())
	s.True(e.session.Contract().Qualified, "the contract is qualified again after the reconnect")
	s.Require().GreaterOrEqual(len(s.paper.ConnectAttempts()), 2)
	s.Equal([]int{11, 11}, s.paper.ConnectAttempts()[:2])
	s.True(e.Health().Connected)
}

// ============================================================================
// Run
// ============================================================================

func (s *EngineTestSuite) TestRun_StopsAtDailyShutdown() {
	clock := &fakeClock{mu: sync.Mutex{}, now: s.at(22, 50, 30), block: false}
	e := s.newEngine(s.config(11), WithSchedulerOptions(scheduler.WithClock(clock)))

	s.Require().NoError(e.Run(s.ctx))

	s.mu.Lock()
	s.Require().Len(s.started, 1)
	s.True(s.started[0].Qualified)
	s.Equal("CL", s.started[0].Instrument.Symbol)
	s.Require().Len(s.stopped, 1)
	s.NoError(s.stopped[0])
	s.mu.Unlock()

	s.False(s.paper.IsConnected())
	s.False(s.registry.InUse(11))
	s.Equal([]int{11}, s.paper.ConnectAttempts())

	stats, err := types.ReadSessionStats(e.stats.OutputPath())
	s.Require().NoError(err)
	s.Equal("ema-CL", stats.Daily.Instance)
	s.Equal("CL", stats.Daily.Symbol)
	s.Equal("ema", stats.Cumulative.Strategy.Name)
}

func (s *EngineTestSuite) TestRun_StartCallbackFailureStops() {
	clock := &fakeClock{mu: sync.Mutex{}, now: s.at(10, 0, 0), block: true}
	failing := OnEngineStartCallback(func(string, types.ContractHandle) error {
		return errors.New(errors.ErrCodeInvalidConfiguration, "refused")
	})

	cb := s.callbacks()
	cb.OnEngineStart = &failing

	e := s.newEngine(s.config(11), WithCallbacks(cb), WithSchedulerOptions(scheduler.WithClock(clock)))

	err := e.Run(s.ctx)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeCallbackFailed))

	s.mu.Lock()
	s.Require().Len(s.stopped, 1)
	s.Equal(err, s.stopped[0])
	s.mu.Unlock()

	s.False(s.paper.IsConnected())
}

func (s *EngineTestSuite) TestRun_ConnectFailureContinuesDegraded() {
	s.paper = gateway.NewPaperGateway(gateway.WithConnectErrors(
		errors.New(errors.ErrCodeConnectionFailed, "gateway down"),
	))

	clock := &fakeClock{mu: sync.Mutex{}, now: s.at(22, 50, 30), block: false}
	e := s.newEngine(s.config(11), WithSchedulerOptions(scheduler.WithClock(clock)))

	s.Require().NoError(e.Run(s.ctx))

	s.mu.Lock()
	s.Len(s.started, 1, "the engine keeps running without a connection")
	s.NotEmpty(s.errs)
	s.mu.Unlock()
}

func (s *EngineTestSuite) TestRun_InvalidInstrument() {
	cfg := s.config(11)
	cfg.Instrument.Exchange = ""

	e := s.newEngine(cfg)

	err := e.Run(s.ctx)
	s.Require().Error(err)

	s.mu.Lock()
	s.Empty(s.started)
	s.Len(s.stopped, 1)
	s.mu.Unlock()
}

func (s *EngineTestSuite) TestRun_CancelledContextShutsDown() {
	clock := &fakeClock{mu: sync.Mutex{}, now: s.at(10, 0, 0), block: true}
	ready := make(chan struct{})
	onStart := OnEngineStartCallback(func(string, types.ContractHandle) error {
		close(ready)

		return nil
	})

	cb := s.callbacks()
	cb.OnEngineStart = &onStart

	e := s.newEngine(s.config(11), WithCallbacks(cb), WithSchedulerOptions(scheduler.WithClock(clock)))

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)

	go func() { done <- e.Run(ctx) }()

	<-ready
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("engine did not stop after cancellation")
	}

	s.False(s.paper.IsConnected())
	s.False(s.registry.InUse(11))
}

// ============================================================================
// Stats
// ============================================================================

type StatsTrackerTestSuite struct {
	suite.Suite
	dir     string
	now     time.Time
	tracker *StatsTracker
}

func TestStatsTrackerSuite(t *testing.T) {
	suite.Run(t, new(StatsTrackerTestSuite))
}

func (s *StatsTrackerTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.tracker = NewStatsTracker("cci-CL", "CL", types.StrategyInfo{Name: "cci14_120", Version: "1.0.0"}, time.UTC,
		filepath.Join(s.dir, "cci.stats.yaml"), logger.NewNopLogger())
	s.tracker.now = func() time.Time { return s.now }
	s.tracker.currentDate = s.now.Format(dateLayout)
}

func (s *StatsTrackerTestSuite) trade(pnl float64, reason types.ExitReason, closedAt time.Time) types.ClosedTrade {
	return types.ClosedTrade{
		Symbol:   "CL",
		Side:     types.PurchaseTypeBuy,
		Quantity: 2,
		Entry:    70,
		Exit:     70 + pnl,
		PnL:      pnl,
		Reason:   reason,
		OpenedAt: closedAt.Add(-90 * time.Second),
		ClosedAt: closedAt,
	}
}

func (s *StatsTrackerTestSuite) TestRecordTrade_Aggregates() {
	s.tracker.RecordTrade(s.trade(0.28, types.ExitReasonTargetFill, s.now))
	s.tracker.RecordTrade(s.trade(-0.17, types.ExitReasonStopFill, s.now.Add(time.Minute)))
	s.tracker.RecordTrade(s.trade(-0.20, types.ExitReasonStopBreach, s.now.Add(2*time.Minute)))

	daily := s.tracker.Daily()
	s.Equal(3, daily.TradeResult.NumberOfTrades)
	s.Equal(1, daily.TradeResult.NumberOfWinningTrades)
	s.Equal(2, daily.TradeResult.NumberOfLosingTrades)
	s.InDelta(1.0/3.0, daily.TradeResult.WinRate, 1e-9)
	s.InDelta(-0.09, daily.TradePnl.RealizedPnL, 1e-9)
	s.InDelta(-0.18, daily.TradePnl.RealizedValue, 1e-9)
	s.InDelta(0.28, daily.TradePnl.MaximumProfit, 1e-9)
	s.InDelta(-0.20, daily.TradePnl.MaximumLoss, 1e-9)
	s.InDelta(0.37, daily.TradeResult.MaxDrawdown, 1e-9)
	s.Equal(90, daily.TradeHoldingTime.Avg)
	s.Equal(1, daily.TradeResult.Exits[types.ExitReasonStopBreach])
	s.Equal("2025-03-10", daily.Date)
}

func (s *StatsTrackerTestSuite) TestRecordTrade_NewDayResetsDaily() {
	s.tracker.RecordTrade(s.trade(0.28, types.ExitReasonTargetFill, s.now))
	s.tracker.RecordTrade(s.trade(0.10, types.ExitReasonTargetFill, s.now.Add(24*time.Hour)))

	daily := s.tracker.Daily()
	s.Equal(1, daily.TradeResult.NumberOfTrades)
	s.Equal("2025-03-11", daily.Date)

	cumulative := s.tracker.Cumulative()
	s.Equal(2, cumulative.TradeResult.NumberOfTrades)
	s.InDelta(0.38, cumulative.TradePnl.RealizedPnL, 1e-9)
}

func (s *StatsTrackerTestSuite) TestHandleDateBoundary_SameDayKeeps() {
	s.tracker.RecordTrade(s.trade(0.28, types.ExitReasonTargetFill, s.now))

	s.tracker.HandleDateBoundary("2025-03-10")
	s.Equal(1, s.tracker.Daily().TradeResult.NumberOfTrades)

	s.tracker.HandleDateBoundary("2025-03-11")
	s.Equal(0, s.tracker.Daily().TradeResult.NumberOfTrades)
	s.Equal(1, s.tracker.Cumulative().TradeResult.NumberOfTrades)
}

func (s *StatsTrackerTestSuite) TestWriteYAML() {
	s.tracker.SetEventsPath("data/events.parquet")
	s.tracker.RecordTrade(s.trade(0.28, types.ExitReasonTargetFill, s.now))

	s.Require().NoError(s.tracker.WriteYAML())

	stats, err := types.ReadSessionStats(s.tracker.OutputPath())
	s.Require().NoError(err)
	s.Equal(1, stats.Daily.TradeResult.NumberOfTrades)
	s.Equal("data/events.parquet", stats.Cumulative.EventsFilePath)
	s.Equal("cci14_120", stats.Daily.Strategy.Name)
}

func (s *StatsTrackerTestSuite) TestWriteYAML_DisabledWithoutPath() {
	tracker := NewStatsTracker("x", "CL", types.StrategyInfo{Name: "ema", Version: ""}, nil, "", logger.NewNopLogger())

	s.Require().NoError(tracker.WriteYAML())

	entries, err := os.ReadDir(s.dir)
	s.Require().NoError(err)
	s.Empty(entries)
}
