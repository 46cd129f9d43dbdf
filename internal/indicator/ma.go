package indicator

import (
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// SimpleMovingAverage averages the last period values.
func SimpleMovingAverage(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "period must be a positive integer, got %d", period)
	}

	if len(values) < period {
		return 0, errors.NewInsufficientDataErrorf(period, len(values), "",
			"SMA(%d) needs %d values, got %d", period, period, len(values))
	}

	return mean(values[len(values)-period:]), nil
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
