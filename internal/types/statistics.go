package types

type TradeHoldingTime struct {
	// Minimum holding time of a trade in seconds
	Min int `yaml:"min" json:"min"`
	// Maximum holding time of a trade in seconds
	Max int `yaml:"max" json:"max"`
	// Average holding time of a trade in seconds
	Avg int `yaml:"avg" json:"avg"`
}

type TradePnl struct {
	// Realized PnL per unit, the sum over closed trades.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl"`
	// Realized PnL times the traded quantity.
	RealizedValue float64 `yaml:"realized_value" json:"realized_value"`
	// Smallest single-trade PnL.
	MaximumLoss float64 `yaml:"maximum_loss" json:"maximum_loss"`
	// Largest single-trade PnL.
	MaximumProfit float64 `yaml:"maximum_profit" json:"maximum_profit"`
}

type TradeResult struct {
	// Count of all closed trades.
	NumberOfTrades int `yaml:"number_of_trades" json:"number_of_trades"`
	// Count of trades with positive pnl.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades" json:"number_of_winning_trades"`
	// Count of trades with negative pnl.
	NumberOfLosingTrades int     `yaml:"number_of_losing_trades" json:"number_of_losing_trades"`
	WinRate              float64 `yaml:"win_rate" json:"win_rate"`
	// Largest peak-to-trough fall of the realized PnL.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// Exits counts closed trades per exit reason.
	Exits map[ExitReason]int `yaml:"exits" json:"exits"`
}

// StrategyInfo identifies the strategy that produced a set of statistics.
type StrategyInfo struct {
	Name string `yaml:"name" json:"name"`
	// Version is the build version of the trader.
	Version string `yaml:"version" json:"version"`
}
