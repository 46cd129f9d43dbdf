package types

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// SessionStats are the trade statistics of one engine instance over one period.
type SessionStats struct {
	// Instance is the configured instance name.
	Instance string `yaml:"instance" json:"instance"`

	// Date is the trading day in YYYY-MM-DD format, or the first day for cumulative stats.
	Date string `yaml:"date" json:"date"`

	SessionStart time.Time `yaml:"session_start" json:"session_start"`
	LastUpdated  time.Time `yaml:"last_updated" json:"last_updated"`

	Symbol string `yaml:"symbol" json:"symbol"`

	TradeResult      TradeResult      `yaml:"trade_result" json:"trade_result"`
	TradePnl         TradePnl         `yaml:"trade_pnl" json:"trade_pnl"`
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time" json:"trade_holding_time"`

	// EventsFilePath is the telemetry store export, empty when telemetry is disabled.
	EventsFilePath string `yaml:"events_file_path,omitempty" json:"events_file_path,omitempty"`

	Strategy StrategyInfo `yaml:"strategy" json:"strategy"`
}

// DailySessionStats pairs the statistics of the current day with the totals since start.
type DailySessionStats struct {
	Daily      SessionStats `yaml:"daily" json:"daily"`
	Cumulative SessionStats `yaml:"cumulative" json:"cumulative"`
}

// WriteSessionStats writes stats to a YAML file, creating the parent directory.
func WriteSessionStats(path string, stats DailySessionStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to marshal session stats to YAML", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(errors.ErrCodeTelemetryFailed, err, "failed to create %s", dir)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // stats are not secret
		return errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to write session stats", err)
	}

	return nil
}

// ReadSessionStats reads a file written by WriteSessionStats.
func ReadSessionStats(path string) (DailySessionStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DailySessionStats{}, errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to read session stats", err)
	}

	var stats DailySessionStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return DailySessionStats{}, errors.Wrap(errors.ErrCodeTelemetryFailed, "failed to unmarshal session stats", err)
	}

	return stats, nil
}
