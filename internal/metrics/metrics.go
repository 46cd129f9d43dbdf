// Package metrics exposes engine instance counters and gauges to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

// Metrics owns the collectors of one process. Every series is labelled with the
// instance name.
type Metrics struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	phaseSeconds *prometheus.HistogramVec
	phase        *prometheus.GaugeVec
	brackets     *prometheus.CounterVec
	exits        *prometheus.CounterVec
	realizedPnL  *prometheus.GaugeVec
	cycles       *prometheus.CounterVec
	quotes       *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	session      *prometheus.GaugeVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_phase_transitions_total",
				Help: "Trade phase transitions",
			},
			[]string{"instance", "from", "to"},
		),
		phaseSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trader_phase_duration_seconds",
				Help:    "Time spent in a phase before leaving it",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 300, 1800, 3600, 14400},
			},
			[]string{"instance", "phase"},
		),
		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_phase",
				Help: "Current trade phase, 1 for the active phase and 0 otherwise",
			},
			[]string{"instance", "phase"},
		),
		brackets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_brackets_total",
				Help: "Bracket placements by outcome",
			},
			[]string{"instance", "outcome"},
		),
		exits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_exits_total",
				Help: "Closed trades by exit reason and entry side",
			},
			[]string{"instance", "reason", "side"},
		),
		realizedPnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_realized_pnl",
				Help: "Cumulative realized P&L per unit since start",
			},
			[]string{"instance"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_cycles_total",
				Help: "Scheduler cycles by outcome",
			},
			[]string{"instance", "outcome"},
		),
		quotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trader_quotes_total",
				Help: "Acquired prices by source",
			},
			[]string{"instance", "source"},
		),
		lastPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_last_price",
				Help: "Most recently acquired price",
			},
			[]string{"instance"},
		),
		session: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trader_session_connected",
				Help: "1 while the broker session is connected",
			},
			[]string{"instance"},
		),
	}

	m.registry.MustRegister(
		m.transitions, m.phaseSeconds, m.phase, m.brackets, m.exits,
		m.realizedPnL, m.cycles, m.quotes, m.lastPrice, m.session,
	)

	return m
}

// Registry is the gatherer served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// For returns the recorder of one instance and marks it IDLE.
func (m *Metrics) For(instance string) *Instance {
	in := &Instance{m: m, name: instance}
	in.setPhase(types.PhaseIdle)

	return in
}

// Instance records the metrics of one engine instance.
type Instance struct {
	m    *Metrics
	name string
}

// Transition matches the lifecycle transition observer.
func (i *Instance) Transition(from, to types.TradePhase, elapsed time.Duration) {
	i.m.transitions.WithLabelValues(i.name, string(from), string(to)).Inc()
	i.m.phaseSeconds.WithLabelValues(i.name, string(from)).Observe(elapsed.Seconds())
	i.setPhase(to)
}

func (i *Instance) setPhase(current types.TradePhase) {
	for _, p := range types.AllPhases {
		v := 0.0
		if p == current {
			v = 1
		}

		i.m.phase.WithLabelValues(i.name, string(p)).Set(v)
	}
}

// Bracket counts a finished bracket placement.
func (i *Instance) Bracket(outcome string) {
	i.m.brackets.WithLabelValues(i.name, outcome).Inc()
}

// ClosedTrade counts an exit and adds its P&L.
func (i *Instance) ClosedTrade(t types.ClosedTrade) {
	i.m.exits.WithLabelValues(i.name, string(t.Reason), string(t.Side)).Inc()
	i.m.realizedPnL.WithLabelValues(i.name).Add(t.PnL)
}

// Cycle counts one scheduler cycle.
func (i *Instance) Cycle(outcome string) {
	i.m.cycles.WithLabelValues(i.name, outcome).Inc()
}

// Quote records an acquired price.
func (i *Instance) Quote(q types.PriceQuote) {
	i.m.quotes.WithLabelValues(i.name, string(q.Source)).Inc()
	i.m.lastPrice.WithLabelValues(i.name).Set(q.Value)
}

// Connected records the session connection state.
func (i *Instance) Connected(up bool) {
	v := 0.0
	if up {
		v = 1
	}

	i.m.session.WithLabelValues(i.name).Set(v)
}
