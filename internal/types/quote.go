package types

import (
	"math"
	"time"
)

// QuoteSource is the origin of an acquired price.
type QuoteSource string

const (
	QuoteSourceLiveTick      QuoteSource = "live-tick"
	QuoteSourceSnapshot      QuoteSource = "fallback-snapshot"
	QuoteSourceHistoricalBar QuoteSource = "historical-bar-close"
)

// QuoteField names the tick field a price was taken from.
type QuoteField string

const (
	QuoteFieldLast  QuoteField = "last"
	QuoteFieldClose QuoteField = "close"
	QuoteFieldAsk   QuoteField = "ask"
	QuoteFieldBid   QuoteField = "bid"
)

// PriceQuote is a single representative price. It is never persisted.
type PriceQuote struct {
	Value  float64     `json:"value"`
	Source QuoteSource `json:"source"`
	Field  QuoteField  `json:"field"`
	Time   time.Time   `json:"time"`
}

// Tick is a top-of-book snapshot. Zero or non-finite fields are treated as missing.
type Tick struct {
	Last  float64   `json:"last"`
	Close float64   `json:"close"`
	Ask   float64   `json:"ask"`
	Bid   float64   `json:"bid"`
	Time  time.Time `json:"time"`
}

// Best returns the first usable field in priority order last, close, ask, bid.
func (t Tick) Best() (float64, QuoteField, bool) {
	candidates := []struct {
		value float64
		field QuoteField
	}{
		{t.Last, QuoteFieldLast},
		{t.Close, QuoteFieldClose},
		{t.Ask, QuoteFieldAsk},
		{t.Bid, QuoteFieldBid},
	}

	for _, c := range candidates {
		if IsUsablePrice(c.value) {
			return c.value, c.field, true
		}
	}

	return 0, "", false
}

// IsUsablePrice reports whether v is finite and strictly positive.
func IsUsablePrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
