package indicator

import (
	"math"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// CCIConstant scales the deviation so most readings fall within ±100.
const CCIConstant = 0.015

// Deviation selects the dispersion measure in the CCI denominator.
type Deviation string

const (
	// DeviationMean is the classic mean absolute deviation.
	DeviationMean Deviation = "mean"
	// DeviationStd is the sample standard deviation.
	DeviationStd Deviation = "std"
)

// CommodityChannelIndex computes (x - mean) / (0.015 * deviation) over the last period
// values, where x is the newest one. A zero deviation yields 0.
func CommodityChannelIndex(values []float64, period int, deviation Deviation) (float64, error) {
	if period <= 1 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "CCI period must be greater than 1, got %d", period)
	}

	if len(values) < period {
		return 0, errors.NewInsufficientDataErrorf(period, len(values), "",
			"CCI(%d) needs %d values, got %d", period, period, len(values))
	}

	window := values[len(values)-period:]
	avg := mean(window)

	var dev float64

	switch deviation {
	case DeviationMean:
		for _, v := range window {
			dev += math.Abs(v - avg)
		}

		dev /= float64(period)
	default:
		for _, v := range window {
			dev += (v - avg) * (v - avg)
		}

		dev = math.Sqrt(dev / float64(period-1))
	}

	if dev == 0 {
		return 0, nil
	}

	return (window[period-1] - avg) / (CCIConstant * dev), nil
}

// TypicalPrices maps bars to (high + low + close) / 3.
func TypicalPrices(bars []types.MarketData) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = bar.TypicalPrice()
	}

	return out
}
