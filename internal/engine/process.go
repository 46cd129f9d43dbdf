package engine

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/metrics"
	"github.com/eyalcarmi01-ux/trading-bot/internal/telemetry"
)

// Process runs several engine instances concurrently and shuts every one of them
// down gracefully on SIGINT or SIGTERM.
type Process struct {
	engines []*Engine
	log     *logger.Logger

	metrics       *metrics.Metrics
	metricsAddr   string
	server        *metrics.Server
	store         *telemetry.Store
	files         *logger.FileRegistry
	signals       []os.Signal
	shutdownGrace time.Duration
}

// ProcessOption configures a Process.
type ProcessOption func(*Process)

// WithMetricsServer serves /metrics and /healthz on address while the process runs.
func WithMetricsServer(m *metrics.Metrics, address string) ProcessOption {
	return func(p *Process) {
		p.metrics = m
		p.metricsAddr = address
	}
}

// WithStore flushes and closes the telemetry store when the process stops.
func WithStore(store *telemetry.Store) ProcessOption {
	return func(p *Process) { p.store = store }
}

// WithFileRegistry closes the shared log files when the process stops.
func WithFileRegistry(files *logger.FileRegistry) ProcessOption {
	return func(p *Process) { p.files = files }
}

// WithSignals replaces the shutdown signals. No signals disables signal handling.
func WithSignals(sig ...os.Signal) ProcessOption {
	return func(p *Process) { p.signals = sig }
}

// WithShutdownGrace bounds the signal-path graceful shutdown of every instance.
func WithShutdownGrace(d time.Duration) ProcessOption {
	return func(p *Process) { p.shutdownGrace = d }
}

func NewProcess(engines []*Engine, log *logger.Logger, opts ...ProcessOption) *Process {
	//nolint:exhaustruct // optional parts are set by options
	p := &Process{
		engines:       engines,
		log:           log,
		signals:       []os.Signal{os.Interrupt, syscall.SIGTERM},
		shutdownGrace: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Engines returns the managed instances.
func (p *Process) Engines() []*Engine {
	return p.engines
}

// Health reports every instance for /healthz.
func (p *Process) Health() map[string]metrics.InstanceHealth {
	out := make(map[string]metrics.InstanceHealth, len(p.engines))
	for _, e := range p.engines {
		out[e.Name()] = e.Health()
	}

	return out
}

// Run blocks until every instance has stopped. It returns the first instance error.
func (p *Process) Run(ctx context.Context) error {
	if len(p.signals) > 0 {
		var stop context.CancelFunc

		ctx, stop = signal.NotifyContext(ctx, p.signals...)
		defer stop()
	}

	if p.metricsAddr != "" && p.metrics != nil {
		p.server = metrics.NewServer(p.metrics, p.Health, p.log)
		if err := p.server.Start(p.metricsAddr); err != nil {
			p.log.Warn("Metrics server unavailable", zap.Error(err))
			p.server = nil
		}
	}

	defer p.cleanup()

	finished := make(chan struct{})
	watcherDone := make(chan struct{})

	go func() {
		defer close(watcherDone)
		p.shutdownOnCancel(ctx, finished)
	}()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, e := range p.engines {
		wg.Add(1)

		go func(e *Engine) {
			defer wg.Done()

			if err := e.Run(ctx); err != nil {
				p.log.Error("Instance stopped with error", zap.String("instance", e.Name()), zap.Error(err))

				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(e)
	}

	wg.Wait()
	close(finished)
	<-watcherDone

	p.log.Info("All instances stopped")

	return firstErr
}

// shutdownOnCancel shuts every instance down as soon as ctx is cancelled, without
// waiting for the schedulers to notice.
func (p *Process) shutdownOnCancel(ctx context.Context, finished <-chan struct{}) {
	select {
	case <-finished:
		return
	case <-ctx.Done():
	}

	p.log.Info("Shutdown requested", zap.Error(context.Cause(ctx)))

	graceCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.shutdownGrace)
	defer cancel()

	var wg sync.WaitGroup

	for _, e := range p.engines {
		wg.Add(1)

		go func(e *Engine) {
			defer wg.Done()
			e.Shutdown(graceCtx, "signal")
		}(e)
	}

	wg.Wait()
}

func (p *Process) cleanup() {
	if p.server != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.server.Stop(stopCtx); err != nil {
			p.log.Warn("Failed to stop metrics server", zap.Error(err))
		}

		cancel()
	}

	if p.store != nil {
		if err := p.store.Flush(); err != nil {
			p.log.Warn("Failed to flush telemetry store", zap.Error(err))
		}

		if err := p.store.Close(); err != nil {
			p.log.Warn("Failed to close telemetry store", zap.Error(err))
		}
	}

	if p.files != nil {
		if err := p.files.CloseAll(); err != nil {
			p.log.Warn("Failed to close log files", zap.Error(err))
		}
	}
}
