package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eyalcarmi01-ux/trading-bot/internal/logger"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
)

const dateLayout = "2006-01-02"

// statsAccumulator holds running statistics for closed trades.
type statsAccumulator struct {
	totalTrades   int
	winningTrades int
	losingTrades  int
	realizedPnL   float64
	realizedValue float64
	maxProfit     float64
	maxLoss       float64
	maxDrawdown   float64
	peakPnL       float64
	holdingTimes  []int // in seconds
	exits         map[types.ExitReason]int
}

func newStatsAccumulator() *statsAccumulator {
	//nolint:exhaustruct
	return &statsAccumulator{
		holdingTimes: make([]int, 0),
		exits:        make(map[types.ExitReason]int),
	}
}

func (acc *statsAccumulator) add(trade types.ClosedTrade) {
	acc.totalTrades++
	acc.realizedPnL += trade.PnL
	acc.realizedValue += trade.PnL * float64(trade.Quantity)
	acc.exits[trade.Reason]++

	if trade.PnL > 0 {
		acc.winningTrades++
	} else if trade.PnL < 0 {
		acc.losingTrades++
	}

	if trade.PnL > acc.maxProfit {
		acc.maxProfit = trade.PnL
	}

	if trade.PnL < acc.maxLoss {
		acc.maxLoss = trade.PnL
	}

	if acc.realizedPnL > acc.peakPnL {
		acc.peakPnL = acc.realizedPnL
	}

	if drawdown := acc.peakPnL - acc.realizedPnL; drawdown > acc.maxDrawdown {
		acc.maxDrawdown = drawdown
	}

	if !trade.OpenedAt.IsZero() && trade.ClosedAt.After(trade.OpenedAt) {
		acc.holdingTimes = append(acc.holdingTimes, int(trade.ClosedAt.Sub(trade.OpenedAt).Seconds()))
	}
}

// StatsTracker keeps the daily and cumulative trade statistics of one instance
// and writes them to a YAML file when the engine stops.
type StatsTracker struct {
	instance   string
	symbol     string
	strategy   types.StrategyInfo
	loc        *time.Location
	outputPath string
	eventsPath string
	now        func() time.Time

	mu           sync.Mutex
	sessionStart time.Time
	currentDate  string
	daily        *statsAccumulator
	cumulative   *statsAccumulator

	log *logger.Logger
}

// NewStatsTracker creates a tracker. An empty outputPath disables WriteYAML.
func NewStatsTracker(instance, symbol string, info types.StrategyInfo, loc *time.Location, outputPath string, log *logger.Logger) *StatsTracker {
	if loc == nil {
		loc = time.UTC
	}

	now := time.Now().In(loc)

	return &StatsTracker{
		instance:     instance,
		symbol:       symbol,
		strategy:     info,
		loc:          loc,
		outputPath:   outputPath,
		eventsPath:   "",
		now:          time.Now,
		mu:           sync.Mutex{},
		sessionStart: now,
		currentDate:  now.Format(dateLayout),
		daily:        newStatsAccumulator(),
		cumulative:   newStatsAccumulator(),
		log:          log,
	}
}

// SetEventsPath records where the telemetry store exports its events.
func (s *StatsTracker) SetEventsPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventsPath = path
}

// RecordTrade adds a closed trade. A trade closed on a later day than the current
// one starts a new daily period first.
func (s *StatsTracker) RecordTrade(trade types.ClosedTrade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := trade.ClosedAt
	if closed.IsZero() {
		closed = s.now()
	}

	if date := closed.In(s.loc).Format(dateLayout); date != s.currentDate {
		s.handleDateBoundaryLocked(date)
	}

	s.daily.add(trade)
	s.cumulative.add(trade)

	s.log.Debug("Trade recorded",
		zap.String("reason", string(trade.Reason)),
		zap.Float64("pnl", trade.PnL),
		zap.Int("total_trades", s.cumulative.totalTrades),
	)
}

// HandleDateBoundary resets the daily statistics when date differs from the current day.
func (s *StatsTracker) HandleDateBoundary(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if date != s.currentDate {
		s.handleDateBoundaryLocked(date)
	}
}

func (s *StatsTracker) handleDateBoundaryLocked(date string) {
	old := s.currentDate
	s.currentDate = date
	s.daily = newStatsAccumulator()

	s.log.Info("Date boundary handled, daily stats reset",
		zap.String("old_date", old),
		zap.String("new_date", date),
	)
}

// Daily returns the statistics of the current day.
func (s *StatsTracker) Daily() types.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buildLocked(s.daily, s.currentDate)
}

// Cumulative returns the statistics since the tracker was created.
func (s *StatsTracker) Cumulative() types.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buildLocked(s.cumulative, s.sessionStart.Format(dateLayout))
}

func (s *StatsTracker) buildLocked(acc *statsAccumulator, date string) types.SessionStats {
	winRate := 0.0
	if acc.totalTrades > 0 {
		winRate = float64(acc.winningTrades) / float64(acc.totalTrades)
	}

	holding := types.TradeHoldingTime{Min: 0, Max: 0, Avg: 0}

	if len(acc.holdingTimes) > 0 {
		holding.Min, holding.Max = acc.holdingTimes[0], acc.holdingTimes[0]
		total := 0

		for _, t := range acc.holdingTimes {
			total += t
			holding.Min = min(holding.Min, t)
			holding.Max = max(holding.Max, t)
		}

		holding.Avg = total / len(acc.holdingTimes)
	}

	exits := make(map[types.ExitReason]int, len(acc.exits))
	for reason, n := range acc.exits {
		exits[reason] = n
	}

	return types.SessionStats{
		Instance:     s.instance,
		Date:         date,
		SessionStart: s.sessionStart,
		LastUpdated:  s.now().In(s.loc),
		Symbol:       s.symbol,
		TradeResult: types.TradeResult{
			NumberOfTrades:        acc.totalTrades,
			NumberOfWinningTrades: acc.winningTrades,
			NumberOfLosingTrades:  acc.losingTrades,
			WinRate:               winRate,
			MaxDrawdown:           acc.maxDrawdown,
			Exits:                 exits,
		},
		TradePnl: types.TradePnl{
			RealizedPnL:   acc.realizedPnL,
			RealizedValue: acc.realizedValue,
			MaximumLoss:   acc.maxLoss,
			MaximumProfit: acc.maxProfit,
		},
		TradeHoldingTime: holding,
		EventsFilePath:   s.eventsPath,
		Strategy:         s.strategy,
	}
}

// WriteYAML writes both periods to the output path.
func (s *StatsTracker) WriteYAML() error {
	if s.outputPath == "" {
		return nil
	}

	stats := types.DailySessionStats{Daily: s.Daily(), Cumulative: s.Cumulative()}

	return types.WriteSessionStats(s.outputPath, stats)
}

// OutputPath is where WriteYAML writes.
func (s *StatsTracker) OutputPath() string {
	return s.outputPath
}
