// Package indicator computes technical indicators over in-memory price series, oldest first.
package indicator

import (
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Alpha is the smoothing factor 2/(period+1).
func Alpha(period int) float64 {
	return 2.0 / float64(period+1)
}

// NextEMA folds one price into a running average: price*alpha + prev*(1-alpha).
func NextEMA(price, prev float64, period int) float64 {
	alpha := Alpha(period)

	return price*alpha + prev*(1-alpha)
}

// ExponentialMovingAverage seeds with the SMA of the first period values and then
// applies NextEMA to the rest, matching pandas ewm(span=period, adjust=False) after the seed.
func ExponentialMovingAverage(values []float64, period int) (float64, error) {
	series, err := EMASeries(values, period)
	if err != nil {
		return 0, err
	}

	return series[len(series)-1], nil
}

// EMASeries returns the running EMA for every value from index period-1 onward.
func EMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "period must be a positive integer, got %d", period)
	}

	if len(values) < period {
		return nil, errors.NewInsufficientDataErrorf(period, len(values), "",
			"EMA(%d) needs %d values, got %d", period, period, len(values))
	}

	ema := 0.0
	for _, v := range values[:period] {
		ema += v
	}

	ema /= float64(period)

	series := make([]float64, 0, len(values)-period+1)
	series = append(series, ema)

	for _, v := range values[period:] {
		ema = NextEMA(v, ema, period)
		series = append(series, ema)
	}

	return series, nil
}
