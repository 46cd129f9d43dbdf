package engine

import (
	"path/filepath"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/config"
	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/metrics"
	"github.com/eyalcarmi01-ux/trading-bot/internal/scheduler"
	"github.com/eyalcarmi01-ux/trading-bot/internal/session"
	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
)

type builder struct {
	sinks       []telemetry.Sink
	paperOpts   []gateway.PaperOption
	engineOpts  []Option
	processOpts []ProcessOption
	barSource   gateway.BarSource
}

// BuildOption customizes Build.
type BuildOption func(*builder)

// WithSinks adds telemetry sinks next to the event store.
func WithSinks(sinks ...telemetry.Sink) BuildOption {
	return func(b *builder) { b.sinks = append(b.sinks, sinks...) }
}

// WithPaperOptions are applied to every paper gateway after the configured ones.
func WithPaperOptions(opts ...gateway.PaperOption) BuildOption {
	return func(b *builder) { b.paperOpts = append(b.paperOpts, opts...) }
}

// WithBarSource replaces the Polygon bar source of the paper gateway.
func WithBarSource(src gateway.BarSource) BuildOption {
	return func(b *builder) { b.barSource = src }
}

// WithEngineOptions are applied to every instance.
func WithEngineOptions(opts ...Option) BuildOption {
	return func(b *builder) { b.engineOpts = append(b.engineOpts, opts...) }
}

// WithProcessOptions are applied to the process.
func WithProcessOptions(opts ...ProcessOption) BuildOption {
	return func(b *builder) { b.processOpts = append(b.processOpts, opts...) }
}

// Build wires one engine per configured instance into a process. The instances share
// the identity registry, the metrics registry, the event store and the log files.
func Build(cfg *config.Config, log *logger.Logger, opts ...BuildOption) (*Process, error) {
	//nolint:exhaustruct
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	registry := session.NewProcessRegistry(
		session.WithCooldown(time.Duration(cfg.Registry.CooldownSeconds)*time.Second),
		session.WithIDRange(cfg.Registry.MinClientID, cfg.Registry.MaxClientID),
	)
	m := metrics.New()
	files := logger.NewFileRegistry()

	var store *telemetry.Store

	if cfg.Telemetry.Enabled {
		store = telemetry.NewStore(cfg.Telemetry.OutputPath)
		if err := store.Initialize(); err != nil {
			return nil, err
		}
	}

	cleanup := func() {
		if store != nil {
			_ = store.Close()
		}

		_ = files.CloseAll()
	}

	if b.barSource == nil && cfg.Gateway.PolygonAPIKey != "" && cfg.Gateway.Provider == string(gateway.ProviderPaper) {
		bars, err := gateway.NewPolygonBars(cfg.Gateway.PolygonAPIKey)
		if err != nil {
			cleanup()

			return nil, err
		}

		b.barSource = bars
	}

	engines := make([]*Engine, 0, len(cfg.Instances))

	for i, in := range cfg.Instances {
		e, err := b.instance(cfg, in, i, loc, registry, m, store, files, log)
		if err != nil {
			cleanup()

			return nil, err
		}

		engines = append(engines, e)

		log.Info("Instance configured", zap.String("instance", in.Name), zap.String("summary", in.Summary()))
	}

	processOpts := []ProcessOption{WithFileRegistry(files)}
	if store != nil {
		processOpts = append(processOpts, WithStore(store))
	}

	if cfg.Metrics.Enabled {
		processOpts = append(processOpts, WithMetricsServer(m, cfg.Metrics.Address))
	}

	return NewProcess(engines, log, append(processOpts, b.processOpts...)...), nil
}

func (b *builder) instance(
	cfg *config.Config,
	in config.Instance,
	index int,
	loc *time.Location,
	registry *session.ProcessRegistry,
	m *metrics.Metrics,
	store *telemetry.Store,
	files *logger.FileRegistry,
	log *logger.Logger,
) (*Engine, error) {
	instLog, err := logger.NewStrategyLogger(log, files, cfg.LogDir, in.LogTag())
	if err != nil {
		return nil, err
	}

	instrument, err := in.Instrument()
	if err != nil {
		return nil, err
	}

	seed := cfg.Gateway.Paper.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	paperOpts := []gateway.PaperOption{
		gateway.WithRandomWalk(gateway.NewRandomWalk(seed+int64(index), cfg.Gateway.Paper.InitialPrice, cfg.Gateway.Paper.Volatility, in.TickSize)),
	}
	if b.barSource != nil {
		paperOpts = append(paperOpts, gateway.WithBarSource(b.barSource))
	}

	factory, err := gateway.NewFactory(gateway.ProviderType(cfg.Gateway.Provider), gateway.FactoryOptions{
		Binance:           cfg.Gateway.Binance,
		Paper:             append(paperOpts, b.paperOpts...),
		RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
		Burst:             cfg.Gateway.Burst,
	})
	if err != nil {
		return nil, err
	}

	sinks := make(telemetry.Multi, 0, len(b.sinks)+1)
	if store != nil {
		sinks = append(sinks, store)
	}

	sinks = append(sinks, b.sinks...)

	schedule := scheduler.Config{
		Interval:       in.CycleInterval(),
		Location:       loc,
		AlignToMinute:  true,
		SessionStart:   optional.FromNillable(cfg.Session.Start),
		Cutoff:         optional.FromNillable(cfg.Session.Cutoff),
		Shutdown:       optional.FromNillable(cfg.Session.Shutdown),
		ForceClose:     optional.FromNillable(in.ForceClose),
		ReconnectEvery: scheduler.DefaultReconnectEvery,
	}

	e, err := New(Config{
		Name:       in.Name,
		Strategy:   in.Strategy,
		Instrument: instrument,
		ClientID:   in.ClientID,
		Params:     in.Params(),
		Settings:   in.Settings,
		Window:     in.Window(loc),
		Schedule:   schedule,
		StatsPath:  filepath.Join(cfg.LogDir, in.LogTag()+".stats.yaml"),
	}, Deps{
		Factory:  factory,
		Registry: registry,
		Log:      instLog,
		Sink:     telemetry.NewSafe(sinks, instLog),
		Metrics:  m,
	}, b.engineOpts...)
	if err != nil {
		return nil, err
	}

	if store != nil {
		e.stats.SetEventsPath(store.OutputPath())
	}

	return e, nil
}
