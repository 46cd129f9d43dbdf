// Package engine composes one trading instance out of the session, price, lifecycle,
// bracket, monitor, strategy and scheduler components, and runs several instances
// side by side in one process.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/bracket"
	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/lifecycle"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/metrics"
	"github.com/eyalcarmi01-ux/trading-bot/internal/monitor"
	"github.com/eyalcarmi01-ux/trading-bot/internal/price"
	"github.com/eyalcarmi01-ux/trading-bot/internal/scheduler"
	"github.com/eyalcarmi01-ux/trading-bot/internal/session"
	"github.com/eyalcarmi01-ux/trading-bot/internal/strategy"
	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/internal/version"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Lifecycle callback types. Callbacks returning an error abort Run when they fail.

// OnEngineStartCallback is called once the session is up and the contract qualified.
type OnEngineStartCallback func(instance string, contract types.ContractHandle) error

// OnEngineStopCallback is called when Run returns (always called via defer).
type OnEngineStopCallback func(instance string, err error)

// OnTradeClosedCallback is called for every trade the monitor closes.
type OnTradeClosedCallback func(instance string, trade types.ClosedTrade) error

// OnErrorCallback is called when a non-fatal error occurs.
type OnErrorCallback func(instance string, err error)

// OnPhaseChangeCallback is called after every effective trade phase change.
type OnPhaseChangeCallback func(instance string, from, to types.TradePhase)

// Callbacks holds the lifecycle callbacks of an engine.
// All fields are pointers - nil means no callback will be invoked.
type Callbacks struct {
	OnEngineStart *OnEngineStartCallback
	OnEngineStop  *OnEngineStopCallback
	OnTradeClosed *OnTradeClosedCallback
	OnError       *OnErrorCallback
	OnPhaseChange *OnPhaseChangeCallback
}

// Config describes one engine instance.
type Config struct {
	// Name labels logs, metrics and telemetry. It must be unique within a process.
	Name       string
	Strategy   string
	Instrument types.InstrumentDescriptor
	// ClientID is the requested gateway identity. Zero generates one.
	ClientID int
	Params   strategy.Params
	Settings strategy.Settings
	Window   optional.Option[types.TradeWindow]
	Schedule scheduler.Config
	// StatsPath receives the trade statistics when Run returns. Empty disables them.
	StatsPath string
}

// Deps are the process-level collaborators shared by instances.
type Deps struct {
	Factory  gateway.Factory
	Registry *session.ProcessRegistry
	// Log should already carry the instance's strategy tag.
	Log *logger.Logger
	// Sink may be nil, in which case events are dropped.
	Sink telemetry.Sink
	// Metrics may be nil, in which case the instance records into a private registry.
	Metrics *metrics.Metrics
}

// Engine is one trading instance. It implements strategy.Host and scheduler.Broker.
type Engine struct {
	cfg   Config
	runID string
	log   *logger.Logger

	callbacks    Callbacks
	sessionCfg   optional.Option[session.Config]
	sessionOpts  []session.Option
	bracketOpts  []bracket.Option
	priceOpts    []price.Option
	monitorOpts  []monitor.Option
	schedOpts    []scheduler.Option
	callTimeout  time.Duration
	positionTime time.Duration

	sink     telemetry.Sink
	recorder *metrics.Instance
	stats    *StatsTracker

	session   *session.Manager
	machine   *lifecycle.StateMachine
	oracle    *price.Oracle
	executor  *bracket.Executor
	monitor   *monitor.Monitor
	strategy  strategy.Strategy
	scheduler *scheduler.Scheduler
}

var (
	_ strategy.Host    = (*Engine)(nil)
	_ scheduler.Broker = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithCallbacks installs lifecycle callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(e *Engine) { e.callbacks = cb }
}

// WithSessionConfig replaces the session defaults.
func WithSessionConfig(cfg session.Config) Option {
	return func(e *Engine) { e.sessionCfg = optional.Some(cfg) }
}

// WithSessionOptions are passed to the session manager.
func WithSessionOptions(opts ...session.Option) Option {
	return func(e *Engine) { e.sessionOpts = append(e.sessionOpts, opts...) }
}

// WithBracketOptions are passed to the bracket executor.
func WithBracketOptions(opts ...bracket.Option) Option {
	return func(e *Engine) { e.bracketOpts = append(e.bracketOpts, opts...) }
}

// WithPriceOptions are passed to the price oracle.
func WithPriceOptions(opts ...price.Option) Option {
	return func(e *Engine) { e.priceOpts = append(e.priceOpts, opts...) }
}

// WithMonitorOptions are passed to the stop/fill monitor.
func WithMonitorOptions(opts ...monitor.Option) Option {
	return func(e *Engine) { e.monitorOpts = append(e.monitorOpts, opts...) }
}

// WithSchedulerOptions are passed to the scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(e *Engine) { e.schedOpts = append(e.schedOpts, opts...) }
}

// WithCallTimeout bounds the host's cancel, flatten, position and history calls.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.callTimeout = d }
}

// New wires an engine instance. Nothing connects until Run.
func New(cfg Config, deps Deps, opts ...Option) (*Engine, error) {
	if cfg.Name == "" {
		cfg.Name = cfg.Strategy + "-" + cfg.Instrument.Symbol
	}

	if deps.Log == nil {
		deps.Log = logger.NewNopLogger()
	}

	if deps.Registry == nil {
		deps.Registry = session.NewProcessRegistry()
	}

	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	runID := uuid.NewString()
	log := &logger.Logger{Logger: deps.Log.With(zap.String("instance", cfg.Name), zap.String("run_id", runID))}

	sink := deps.Sink
	if sink == nil {
		sink = telemetry.Nop{}
	}

	//nolint:exhaustruct // components are wired below
	e := &Engine{
		cfg:          cfg,
		runID:        runID,
		log:          log,
		sessionCfg:   optional.None[session.Config](),
		callTimeout:  10 * time.Second,
		positionTime: 3 * time.Second,
		sink:         sink,
		recorder:     deps.Metrics.For(cfg.Name),
	}

	for _, opt := range opts {
		opt(e)
	}

	loc := cfg.Schedule.Location
	e.stats = NewStatsTracker(cfg.Name, cfg.Instrument.Symbol, types.StrategyInfo{Name: cfg.Strategy, Version: version.GetVersion()}, loc, cfg.StatsPath, log)

	e.machine = lifecycle.New(log, lifecycle.WithObserver(e.onTransition))

	if cfg.ClientID == 0 {
		id, err := deps.Registry.Generate()
		if err != nil {
			return nil, err
		}

		// Connect acquires the identity again.
		deps.Registry.Release(id)
		cfg.ClientID = id
		e.cfg.ClientID = id
	}

	sessCfg := e.sessionCfg.TakeOr(session.DefaultConfig(cfg.ClientID))
	sessCfg.ClientID = cfg.ClientID

	sessionOpts := append([]session.Option{session.WithStateObserver(e.onSessionState)}, e.sessionOpts...)

	mgr, err := session.NewManager(sessCfg, deps.Factory, deps.Registry, log, sessionOpts...)
	if err != nil {
		return nil, err
	}

	e.session = mgr

	priceOpts := append([]price.Option{price.WithObserver(e.recorder.Quote)}, e.priceOpts...)
	e.oracle = price.NewOracle(e.session, log, priceOpts...)

	bracketOpts := append([]bracket.Option{
		bracket.WithConfig(bracket.DefaultConfig(cfg.Name)),
		bracket.WithOutcomeObserver(e.onBracketOutcome),
	}, e.bracketOpts...)
	e.executor = bracket.NewExecutor(e.session, e.oracle, e.machine, e.sink, log, bracketOpts...)

	strat, err := strategy.New(cfg.Strategy, strategy.Deps{
		Host:     e,
		Log:      log,
		Symbol:   cfg.Instrument.Symbol,
		Params:   cfg.Params,
		Window:   cfg.Window,
		Settings: cfg.Settings,
	})
	if err != nil {
		e.executor.Close()

		return nil, err
	}

	e.strategy = strat

	monitorOpts := append([]monitor.Option{
		monitor.WithResetHook(e.strategy.ResetState),
		monitor.WithClosedTradeObserver(e.onTradeClosed),
	}, e.monitorOpts...)
	e.monitor = monitor.New(cfg.Name, e.session, e.oracle, e.machine, e.sink, log, monitorOpts...)

	schedOpts := append([]scheduler.Option{scheduler.WithOutcomeObserver(e.onCycle)}, e.schedOpts...)
	e.scheduler = scheduler.New(cfg.Schedule, scheduler.Deps{
		Strategy: e.strategy,
		Monitor:  e.monitor,
		Machine:  e.machine,
		Quoter:   e.oracle,
		Broker:   e,
		Log:      log,
	}, schedOpts...)

	return e, nil
}

// Run connects, qualifies the contract and drives the scheduler until the daily
// shutdown or until ctx is cancelled. A failed connection does not stop the engine:
// it keeps cycling degraded and the scheduler reconnects between cycles.
func (e *Engine) Run(ctx context.Context) (runErr error) {
	defer func() {
		e.executor.Close()

		if err := e.oracle.Close(); err != nil {
			e.log.Warn("Failed to close quote stream", zap.Error(err))
		}

		// cancellation is how a process signal reaches the instance
		reason := "daily shutdown"
		if ctx.Err() != nil {
			reason = "signal"
		}

		e.Shutdown(context.WithoutCancel(ctx), reason)

		if err := e.stats.WriteYAML(); err != nil {
			e.log.Warn("Failed to write trade stats", zap.Error(err))
		}

		if e.callbacks.OnEngineStop != nil {
			(*e.callbacks.OnEngineStop)(e.cfg.Name, runErr)
		}

		e.log.Info("Engine stopped", zap.Error(runErr))
	}()

	if err := e.cfg.Instrument.Validate(); err != nil {
		return err
	}

	e.log.Info("Engine starting",
		zap.String("strategy", e.cfg.Strategy),
		zap.String("symbol", e.cfg.Instrument.Symbol),
		zap.String("version", version.GetVersion()),
	)

	if err := e.session.Connect(ctx); err != nil {
		e.log.Error("Initial connection failed, continuing degraded", zap.Error(err))
		e.reportError(err)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	contract := e.session.QualifyContract(ctx, e.cfg.Instrument)

	if e.callbacks.OnEngineStart != nil {
		if err := (*e.callbacks.OnEngineStart)(e.cfg.Name, contract); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "OnEngineStart callback failed", err)
		}
	}

	err := e.scheduler.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// Shutdown cancels working orders, flattens, disconnects and releases the identity.
// Only the first call does anything.
func (e *Engine) Shutdown(ctx context.Context, reason string) {
	e.session.GracefulShutdown(ctx, reason)
}

// Name is the instance name.
func (e *Engine) Name() string {
	return e.cfg.Name
}

// RunID identifies this run in logs.
func (e *Engine) RunID() string {
	return e.runID
}

// Phase is the current trade phase.
func (e *Engine) Phase() types.TradePhase {
	return e.machine.Phase()
}

// Stats returns the trade statistics of the current day.
func (e *Engine) Stats() types.SessionStats {
	return e.stats.Daily()
}

// Health is the /healthz view of the instance.
func (e *Engine) Health() metrics.InstanceHealth {
	return metrics.InstanceHealth{
		Strategy:  e.cfg.Strategy,
		Symbol:    e.cfg.Instrument.Symbol,
		Phase:     string(e.machine.Phase()),
		Session:   string(e.session.State()),
		Connected: e.session.IsConnected(),
	}
}

// ============================================================================
// strategy.Host
// ============================================================================

func (e *Engine) PlaceBracket(req bracket.Request) bool {
	return e.executor.PlaceBracket(req)
}

// HasActivePosition is true while a trade is in any phase other than IDLE, or when
// the broker reports a non-zero position in the instrument.
func (e *Engine) HasActivePosition(ctx context.Context) bool {
	if e.machine.Phase() != types.PhaseIdle {
		return true
	}

	gw := e.session.Gateway()
	if !gw.IsConnected() {
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, e.positionTime)
	defer cancel()

	pos, err := gateway.FindPosition(callCtx, gw, e.cfg.Instrument.Symbol)
	if err != nil {
		e.log.Debug("Position lookup failed", zap.Error(err))

		return false
	}

	return pos.Size() != 0
}

func (e *Engine) CancelAllOrders(ctx context.Context) error {
	gw, err := e.connected()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	return gateway.CancelAll(callCtx, gw)
}

// CloseAllPositions flattens the instrument and retires the open trade as a manual exit.
func (e *Engine) CloseAllPositions(ctx context.Context) error {
	gw, err := e.connected()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	closed, err := gateway.Flatten(callCtx, gw, e.session.Contract())

	for _, o := range closed {
		e.log.Info("Flattened position",
			zap.String("symbol", o.Symbol),
			zap.String("side", string(o.Side)),
			zap.Int("quantity", o.Quantity),
		)
	}

	if err != nil {
		return err
	}

	e.monitor.Flattened(ctx, closed)

	return nil
}

func (e *Engine) GetPrice(ctx context.Context) optional.Option[types.PriceQuote] {
	return e.oracle.GetPrice(ctx)
}

func (e *Engine) HistoricalBars(ctx context.Context, barSize time.Duration, count int) ([]types.MarketData, error) {
	gw, err := e.connected()
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	bars, err := gw.HistoricalBars(callCtx, e.session.Contract(), barSize, count)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "failed to fetch historical bars", err)
	}

	return bars, nil
}

func (e *Engine) Telemetry() telemetry.Sink {
	return e.sink
}

// ============================================================================
// scheduler.Broker
// ============================================================================

func (e *Engine) Reconnect(ctx context.Context) error {
	return e.session.Reconnect(ctx)
}

func (e *Engine) IsConnected() bool {
	return e.session.IsConnected()
}

func (e *Engine) connected() (gateway.Gateway, error) {
	gw := e.session.Gateway()
	if !gw.IsConnected() {
		return nil, errors.New(errors.ErrCodeNotConnected, "gateway is not connected")
	}

	return gw, nil
}

// ============================================================================
// Observers
// ============================================================================

func (e *Engine) onTransition(from, to types.TradePhase, elapsed time.Duration) {
	e.recorder.Transition(from, to, elapsed)

	if e.callbacks.OnPhaseChange != nil {
		(*e.callbacks.OnPhaseChange)(e.cfg.Name, from, to)
	}
}

func (e *Engine) onSessionState(state session.State) {
	e.recorder.Connected(state == session.StateConnected)
}

func (e *Engine) onBracketOutcome(outcome bracket.Outcome, attempts int) {
	e.recorder.Bracket(string(outcome))

	if outcome == bracket.OutcomeExhausted {
		e.reportError(errors.Newf(errors.ErrCodeOrderFailed, "bracket placement exhausted after %d attempts", attempts))
	}
}

func (e *Engine) onCycle(outcome scheduler.Outcome) {
	e.recorder.Cycle(string(outcome))

	if outcome == scheduler.OutcomeFailed {
		e.reportError(errors.New(errors.ErrCodeCycleFailed, "cycle failed"))
	}
}

func (e *Engine) onTradeClosed(trade types.ClosedTrade) {
	e.recorder.ClosedTrade(trade)
	e.stats.RecordTrade(trade)

	if e.callbacks.OnTradeClosed != nil {
		if err := (*e.callbacks.OnTradeClosed)(e.cfg.Name, trade); err != nil {
			e.log.Warn("OnTradeClosed callback failed", zap.Error(err))
			e.reportError(errors.Wrap(errors.ErrCodeCallbackFailed, "OnTradeClosed callback failed", err))
		}
	}
}

func (e *Engine) reportError(err error) {
	if e.callbacks.OnError != nil {
		(*e.callbacks.OnError)(e.cfg.Name, err)
	}
}
