package types

// TradePhase is the position of an engine instance in its trade lifecycle.
type TradePhase string

const (
	PhaseIdle          TradePhase = "IDLE"
	PhaseSignalPending TradePhase = "SIGNAL_PENDING"
	PhaseOrderPlacing  TradePhase = "ORDER_PLACING"
	PhaseBracketSent   TradePhase = "BRACKET_SENT"
	PhaseActive        TradePhase = "ACTIVE"
	PhaseExiting       TradePhase = "EXITING"
	PhaseClosed        TradePhase = "CLOSED"
)

// AllPhases lists every phase in lifecycle order.
var AllPhases = []TradePhase{
	PhaseIdle,
	PhaseSignalPending,
	PhaseOrderPlacing,
	PhaseBracketSent,
	PhaseActive,
	PhaseExiting,
	PhaseClosed,
}

// InFlight reports whether the phase represents orders or a position that must not be reset.
func (p TradePhase) InFlight() bool {
	switch p {
	case PhaseOrderPlacing, PhaseBracketSent, PhaseActive, PhaseExiting:
		return true
	default:
		return false
	}
}

// ExitReason classifies how a trade ended.
type ExitReason string

const (
	ExitReasonTargetFill    ExitReason = "TP_fill"
	ExitReasonStopFill      ExitReason = "SL_fill"
	ExitReasonStopBreach    ExitReason = "SL_breach"
	ExitReasonManual        ExitReason = "manual"
	ExitReasonBracketFailed ExitReason = "bracket_failed"
)
