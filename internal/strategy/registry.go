package strategy

import (
	"sort"

	"github.com/moznion/go-optional"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Strategy names accepted in configuration.
const (
	NameEMA          = "ema"
	NameCCIReversal  = "cci14_120"
	NameCCIThreshold = "cci14_200"
	NameFibonacci    = "fibonacci_v2"
)

// Factory builds a strategy from its dependencies.
type Factory func(d Deps) Strategy

type entry struct {
	factory Factory
	params  Params
	// window is applied when the instance configures none.
	window optional.Option[windowSpec]
}

type windowSpec struct {
	start, end types.TimeOfDay
	zone       string
}

var registry = map[string]entry{
	NameEMA: {
		factory: NewEMACrossover,
		params:  Params{Quantity: 1, TickSize: 0.01, StopTicks: 17, TargetTicksLong: 28, TargetTicksShort: 35},
		window:  optional.None[windowSpec](),
	},
	NameCCIReversal: {
		factory: NewCCIReversal,
		params:  Params{Quantity: 1, TickSize: 0.01, StopTicks: 7, TargetTicksLong: 10, TargetTicksShort: 10},
		window:  optional.None[windowSpec](),
	},
	NameCCIThreshold: {
		factory: NewCCIThreshold,
		params:  Params{Quantity: 1, TickSize: 0.01, StopTicks: 20, TargetTicksLong: 60, TargetTicksShort: 60},
		window: optional.Some(windowSpec{
			start: types.TimeOfDay{Hour: 8, Minute: 0},
			end:   types.TimeOfDay{Hour: 23, Minute: 0},
			zone:  "Asia/Jerusalem",
		}),
	},
	NameFibonacci: {
		factory: NewFibonacci,
		params:  Params{Quantity: 1, TickSize: 0.01, StopTicks: 20, TargetTicksLong: 30, TargetTicksShort: 30},
		window:  optional.None[windowSpec](),
	},
}

// New builds the named strategy. Zero bracket parameters take the strategy's defaults.
func New(name string, d Deps) (Strategy, error) {
	e, ok := registry[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnsupportedStrategy, "unknown strategy %q, expected one of %v", name, Names())
	}

	d.Params = d.Params.WithDefaults(e.params)

	if d.Window.IsNone() {
		if spec, err := e.window.Take(); err == nil {
			loc, err := types.LoadLocation(spec.zone)
			if err != nil {
				return nil, err
			}

			d.Window = optional.Some(types.TradeWindow{Start: spec.start, End: spec.end, Location: loc})
		}
	}

	return e.factory(d), nil
}

// DefaultParams returns the bracket defaults of the named strategy.
func DefaultParams(name string) (Params, bool) {
	e, ok := registry[name]

	return e.params, ok
}

// Names lists the registered strategies in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
