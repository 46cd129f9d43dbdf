package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

type LiveStatisticsTestSuite struct {
	suite.Suite
	tempDir string
}

func (s *LiveStatisticsTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "live_statistics_test_*")
	s.Require().NoError(err)
	s.tempDir = tempDir
}

func (s *LiveStatisticsTestSuite) TearDownTest() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
}

func TestLiveStatisticsTestSuite(t *testing.T) {
	suite.Run(t, new(LiveStatisticsTestSuite))
}

func sampleStats() DailySessionStats {
	day := SessionStats{
		Instance:     "cci-CL",
		Date:         "2025-01-13",
		SessionStart: time.Date(2025, 1, 13, 7, 0, 0, 0, time.UTC),
		LastUpdated:  time.Date(2025, 1, 13, 12, 0, 0, 0, time.UTC),
		Symbol:       "CL",
		TradeResult: TradeResult{
			NumberOfTrades:        5,
			NumberOfWinningTrades: 3,
			NumberOfLosingTrades:  2,
			WinRate:               0.6,
			MaxDrawdown:           0.17,
			Exits:                 map[ExitReason]int{ExitReasonTargetFill: 3, ExitReasonStopFill: 2},
		},
		TradePnl: TradePnl{
			RealizedPnL:   0.42,
			RealizedValue: 0.84,
			MaximumLoss:   -0.1,
			MaximumProfit: 0.2,
		},
		TradeHoldingTime: TradeHoldingTime{Min: 30, Max: 1800, Avg: 900},
		EventsFilePath:   "data/events.parquet",
		Strategy:         StrategyInfo{Name: "cci14_120", Version: "v0.4.0"},
	}

	return DailySessionStats{Daily: day, Cumulative: day}
}

// ============================================================================
// WriteSessionStats Tests
// ============================================================================

func (s *LiveStatisticsTestSuite) TestWriteSessionStats_CreatesDirectory() {
	path := filepath.Join(s.tempDir, "stats", "cci-CL.yaml")

	s.Require().NoError(WriteSessionStats(path, sampleStats()))

	_, err := os.Stat(path)
	s.NoError(err)
}

func (s *LiveStatisticsTestSuite) TestWriteSessionStats_UnwritablePath() {
	blocker := filepath.Join(s.tempDir, "file")
	s.Require().NoError(os.WriteFile(blocker, []byte("x"), 0o600))

	err := WriteSessionStats(filepath.Join(blocker, "stats.yaml"), sampleStats())
	s.Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeTelemetryFailed))
}

// ============================================================================
// ReadSessionStats Tests
// ============================================================================

func (s *LiveStatisticsTestSuite) TestReadSessionStats_ReadsWhatWasWritten() {
	path := filepath.Join(s.tempDir, "stats.yaml")
	original := sampleStats()

	s.Require().NoError(WriteSessionStats(path, original))

	read, err := ReadSessionStats(path)
	s.Require().NoError(err)

	s.Equal(original.Daily.Instance, read.Daily.Instance)
	s.Equal(original.Daily.TradeResult.Exits, read.Daily.TradeResult.Exits)
	s.InDelta(original.Cumulative.TradePnl.RealizedPnL, read.Cumulative.TradePnl.RealizedPnL, 1e-9)
	s.Equal(original.Cumulative.TradeHoldingTime.Avg, read.Cumulative.TradeHoldingTime.Avg)
	s.Equal("v0.4.0", read.Daily.Strategy.Version)
}

func (s *LiveStatisticsTestSuite) TestReadSessionStats_FileNotFound() {
	_, err := ReadSessionStats(filepath.Join(s.tempDir, "nonexistent.yaml"))
	s.Error(err)
	s.Contains(err.Error(), "failed to read session stats")
}

func (s *LiveStatisticsTestSuite) TestReadSessionStats_InvalidYAML() {
	path := filepath.Join(s.tempDir, "invalid.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("invalid: yaml: content: [broken"), 0o600))

	_, err := ReadSessionStats(path)
	s.Error(err)
	s.Contains(err.Error(), "failed to unmarshal session stats")
}
