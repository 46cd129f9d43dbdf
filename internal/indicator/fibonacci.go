package indicator

import (
	"math"
	"sort"
)

// DefaultFibonacciRatios are the retracement ratios traded by default.
var DefaultFibonacciRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// FibonacciLevel is one retracement price with its ratio.
type FibonacciLevel struct {
	Ratio float64
	Price float64
}

// FibonacciLevels returns the retracement prices of the high/low range, one per ratio,
// sorted from high to low. A bullish range retraces down from the high, a bearish one
// up from the low. Prices are rounded to cents. An empty or inverted range yields nil.
func FibonacciLevels(high, low float64, bullish bool, ratios []float64) []FibonacciLevel {
	if high <= low {
		return nil
	}

	diff := high - low
	levels := make([]FibonacciLevel, 0, len(ratios))

	for _, r := range ratios {
		p := low + diff*r
		if bullish {
			p = high - diff*r
		}

		levels = append(levels, FibonacciLevel{Ratio: r, Price: math.Round(p*100) / 100})
	}

	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })

	return levels
}
