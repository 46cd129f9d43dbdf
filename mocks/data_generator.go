package mocks

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

var _ gateway.BarSource = (*DataGenerator)(nil)

// DataGenerator generates synthetic OHLCV bars for tests. It also serves as a
// gateway.BarSource for the paper gateway.
type DataGenerator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	config GeneratorConfig
	calls  int
}

// NewDataGenerator creates a generator with the given seed. Use a fixed seed for
// reproducible results.
func NewDataGenerator(seed int64, config GeneratorConfig) *DataGenerator {
	return &DataGenerator{
		mu:     sync.Mutex{},
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // test data
		config: config,
		calls:  0,
	}
}

// GeneratorConfig configures how bars are generated.
type GeneratorConfig struct {
	Symbol string
	// End is the time of the last bar served by Bars. Zero means the current minute.
	End          time.Time
	InitialPrice float64
	// Volatility is the per-bar standard deviation of returns.
	Volatility float64
	// Trend is the total drift over one Generate call.
	Trend float64
	// TickSize rounds every price when positive.
	TickSize       float64
	VolumeBase     float64
	VolumeVariance float64
}

// DefaultConfig describes a crude oil future around 70 with a 0.01 tick.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "CL",
		End:            time.Time{},
		InitialPrice:   70.0,
		Volatility:     0.0005,
		Trend:          0.0,
		TickSize:       0.01,
		VolumeBase:     1000,
		VolumeVariance: 0.3,
	}
}

// Generate creates count bars starting at start, spaced by interval. Prices follow
// a geometric Brownian motion.
func (g *DataGenerator) Generate(start time.Time, interval time.Duration, count int) []types.MarketData {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.generateLocked(g.config.Symbol, start, interval, count)
}

// Bars returns count bars ending at the configured end time, oldest first.
func (g *DataGenerator) Bars(_ context.Context, symbol string, barSize time.Duration, count int) ([]types.MarketData, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++

	if count <= 0 {
		return []types.MarketData{}, nil
	}

	end := g.config.End
	if end.IsZero() {
		end = time.Now().Truncate(barSize)
	}

	start := end.Add(-time.Duration(count-1) * barSize)

	return g.generateLocked(symbol, start, barSize, count), nil
}

// Calls counts Bars requests.
func (g *DataGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.calls
}

func (g *DataGenerator) generateLocked(symbol string, start time.Time, interval time.Duration, count int) []types.MarketData {
	cfg := g.config
	data := make([]types.MarketData, count)
	price := cfg.InitialPrice
	ts := start

	for i := range count {
		open := price

		// Box-Muller transform for a standard normal draw
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := cfg.Trend / float64(count)

		closePrice := open * (1 + cfg.Volatility*z + drift)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		high := math.Max(open, closePrice) + math.Abs(g.rng.Float64()*cfg.Volatility*open*0.5)

		low := math.Min(open, closePrice) - math.Abs(g.rng.Float64()*cfg.Volatility*open*0.5)
		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		volume := cfg.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*cfg.VolumeVariance)
		if volume < 0 {
			volume = cfg.VolumeBase * 0.1
		}

		data[i] = types.MarketData{
			Id:     "",
			Symbol: symbol,
			Time:   ts,
			Open:   roundTo(open, cfg.TickSize),
			High:   roundTo(high, cfg.TickSize),
			Low:    roundTo(low, cfg.TickSize),
			Close:  roundTo(closePrice, cfg.TickSize),
			Volume: math.Round(volume),
		}

		price = closePrice
		ts = ts.Add(interval)
	}

	return data
}

func roundTo(val, tick float64) float64 {
	if tick <= 0 {
		return math.Round(val*10000) / 10000
	}

	return math.Round(val/tick) * tick
}
