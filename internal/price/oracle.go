// Package price acquires one representative price for an instrument, falling back from
// the streaming subscription to a snapshot and then to the last historical bar.
package price

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

// Source supplies the current gateway connection and contract. The session manager implements it.
type Source interface {
	Gateway() gateway.Gateway
	Contract() types.ContractHandle
}

// Config holds the oracle timings.
type Config struct {
	// StreamWindow is how long the streaming subscription is polled.
	StreamWindow time.Duration
	PollInterval time.Duration
	// CallTimeout bounds the snapshot and historical requests.
	CallTimeout time.Duration
	BarSize     time.Duration
	// BarCount is how many recent bars are requested for the last-resort close.
	BarCount int
}

// DefaultConfig polls the stream for 2.5s in 100ms steps.
func DefaultConfig() Config {
	return Config{
		StreamWindow: 2500 * time.Millisecond,
		PollInterval: 100 * time.Millisecond,
		CallTimeout:  5 * time.Second,
		BarSize:      time.Minute,
		BarCount:     2,
	}
}

// Oracle is the Price Oracle of one engine instance.
type Oracle struct {
	src      Source
	cfg      Config
	log      *logger.Logger
	observer func(types.PriceQuote)

	mu       sync.Mutex
	stream   gateway.QuoteStream
	streamGW gateway.Gateway
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithConfig replaces the default timings.
func WithConfig(cfg Config) Option {
	return func(o *Oracle) { o.cfg = cfg }
}

// WithObserver is called with every acquired quote.
func WithObserver(fn func(types.PriceQuote)) Option {
	return func(o *Oracle) { o.observer = fn }
}

// NewOracle creates an oracle reading through src.
func NewOracle(src Source, log *logger.Logger, opts ...Option) *Oracle {
	//nolint:exhaustruct // the stream is created lazily
	o := &Oracle{
		src: src,
		cfg: DefaultConfig(),
		log: log,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// GetPrice returns the best available quote, None when every source fails.
func (o *Oracle) GetPrice(ctx context.Context) optional.Option[types.PriceQuote] {
	return o.GetPriceWithin(ctx, o.cfg.StreamWindow)
}

// GetPriceWithin is GetPrice with the stream polling window capped at window.
func (o *Oracle) GetPriceWithin(ctx context.Context, window time.Duration) optional.Option[types.PriceQuote] {
	if window > o.cfg.StreamWindow {
		window = o.cfg.StreamWindow
	}

	steps := []func(context.Context) optional.Option[types.PriceQuote]{
		func(ctx context.Context) optional.Option[types.PriceQuote] { return o.fromStream(ctx, window) },
		o.fromSnapshot,
		o.fromBars,
	}

	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}

		if quote := step(ctx); quote.IsSome() {
			q := quote.Unwrap()

			o.log.Info("Price acquired",
				zap.Float64("price", q.Value),
				zap.String("source", string(q.Source)),
				zap.String("field", string(q.Field)),
			)

			if o.observer != nil {
				o.observer(q)
			}

			return quote
		}
	}

	o.log.Warn("No price available from stream, snapshot or historical bars")

	return optional.None[types.PriceQuote]()
}

// Close releases the streaming subscription.
func (o *Oracle) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.closeStreamLocked()
}

func (o *Oracle) fromStream(ctx context.Context, window time.Duration) optional.Option[types.PriceQuote] {
	stream := o.subscription(ctx)
	if stream == nil {
		return optional.None[types.PriceQuote]()
	}

	deadline := time.NewTimer(window)
	defer deadline.Stop()

	poll := time.NewTicker(o.cfg.PollInterval)
	defer poll.Stop()

	for {
		if tick, ok := stream.Latest(); ok {
			if value, field, ok := tick.Best(); ok {
				return optional.Some(types.PriceQuote{Value: value, Source: types.QuoteSourceLiveTick, Field: field, Time: time.Now()})
			}
		}

		select {
		case <-ctx.Done():
			return optional.None[types.PriceQuote]()
		case <-deadline.C:
			return optional.None[types.PriceQuote]()
		case <-poll.C:
		}
	}
}

// subscription returns the persistent stream, creating it on first use and again
// whenever the session has replaced its gateway connection.
func (o *Oracle) subscription(ctx context.Context) gateway.QuoteStream {
	gw := o.src.Gateway()
	if gw == nil || !gw.IsConnected() {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream != nil && o.streamGW == gw {
		return o.stream
	}

	_ = o.closeStreamLocked()

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	stream, err := gw.SubscribeQuotes(callCtx, o.src.Contract())
	if err != nil {
		o.log.Debug("Quote subscription unavailable", zap.Error(err))

		return nil
	}

	o.stream = stream
	o.streamGW = gw

	return stream
}

func (o *Oracle) closeStreamLocked() error {
	if o.stream == nil {
		return nil
	}

	err := o.stream.Close()
	o.stream = nil
	o.streamGW = nil

	return err
}

func (o *Oracle) fromSnapshot(ctx context.Context) optional.Option[types.PriceQuote] {
	gw := o.src.Gateway()
	if gw == nil || !gw.IsConnected() {
		return optional.None[types.PriceQuote]()
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	tick, err := gw.Snapshot(callCtx, o.src.Contract())
	if err != nil {
		o.log.Debug("Snapshot unavailable", zap.Error(err))

		return optional.None[types.PriceQuote]()
	}

	value, field, ok := tick.Best()
	if !ok {
		return optional.None[types.PriceQuote]()
	}

	return optional.Some(types.PriceQuote{Value: value, Source: types.QuoteSourceSnapshot, Field: field, Time: time.Now()})
}

func (o *Oracle) fromBars(ctx context.Context) optional.Option[types.PriceQuote] {
	gw := o.src.Gateway()
	if gw == nil || !gw.IsConnected() {
		return optional.None[types.PriceQuote]()
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	bars, err := gw.HistoricalBars(callCtx, o.src.Contract(), o.cfg.BarSize, o.cfg.BarCount)
	if err != nil {
		o.log.Debug("Historical bars unavailable", zap.Error(err))

		return optional.None[types.PriceQuote]()
	}

	for i := len(bars) - 1; i >= 0; i-- {
		if types.IsUsablePrice(bars[i].Close) {
			return optional.Some(types.PriceQuote{
				Value:  bars[i].Close,
				Source: types.QuoteSourceHistoricalBar,
				Field:  types.QuoteFieldClose,
				Time:   bars[i].Time,
			})
		}
	}

	return optional.None[types.PriceQuote]()
}
