// Package telemetry carries the structured trade events an engine instance produces.
// Sinks are optional: trading never depends on an event being delivered.
package telemetry

import (
	"time"

	"github.com/google/uuid"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

// EventKind is the type of a telemetry event.
type EventKind string

const (
	EventEnter   EventKind = "enter"
	EventExit    EventKind = "exit"
	EventSeed    EventKind = "seed"
	EventPriming EventKind = "priming"
)

// HistoryEntry is one historical close used to warm up indicators.
type HistoryEntry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
}

// Event is one structured event document.
type Event struct {
	ID       string             `json:"id"`
	Kind     EventKind          `json:"event"`
	Time     time.Time          `json:"timestamp"`
	Algo     string             `json:"algo"`
	Symbol   string             `json:"symbol"`
	Action   types.PurchaseType `json:"action,omitempty"`
	Quantity int                `json:"quantity,omitempty"`
	Price    float64            `json:"price,omitempty"`
	Reason   types.ExitReason   `json:"reason,omitempty"`
	PnL      float64            `json:"pnl,omitempty"`
	History  []HistoryEntry     `json:"history,omitempty"`
}

// Enter builds the event emitted when a bracket becomes active.
func Enter(algo, symbol string, side types.PurchaseType, quantity int, price float64, at time.Time) Event {
	//nolint:exhaustruct // no reason, pnl or history on entry
	return Event{
		ID:       uuid.NewString(),
		Kind:     EventEnter,
		Time:     at,
		Algo:     algo,
		Symbol:   symbol,
		Action:   side,
		Quantity: quantity,
		Price:    price,
	}
}

// Exit builds the event emitted when a trade ends. The action is the side of the closing order.
func Exit(algo, symbol string, closeSide types.PurchaseType, quantity int, price float64, reason types.ExitReason, pnl float64, at time.Time) Event {
	//nolint:exhaustruct // no history on exit
	return Event{
		ID:       uuid.NewString(),
		Kind:     EventExit,
		Time:     at,
		Algo:     algo,
		Symbol:   symbol,
		Action:   closeSide,
		Quantity: quantity,
		Price:    price,
		Reason:   reason,
		PnL:      pnl,
	}
}

// History builds a seed or priming event from historical bars, oldest first.
func History(kind EventKind, algo, symbol string, bars []types.MarketData, at time.Time) Event {
	entries := make([]HistoryEntry, 0, len(bars))
	for i, bar := range bars {
		entries = append(entries, HistoryEntry{Index: i, Timestamp: bar.Time, Close: bar.Close})
	}

	//nolint:exhaustruct // no order fields on history events
	return Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Time:    at,
		Algo:    algo,
		Symbol:  symbol,
		History: entries,
	}
}
