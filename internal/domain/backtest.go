package domain

import "time"

// BacktestNotesDefault labels runs started from the backtest entry point.
const BacktestNotesDefault = "Automated backtest"

// BacktestRun is the persisted header of one backtest.
// Corresponds to the stock_backtest_results table; its ledger lives in backtest_trades.
type BacktestRun struct {
	RunID     string // uuid
	CreatedAt time.Time

	StartDate    time.Time // resolved to a trading date
	EndDate      time.Time // resolved to a trading date
	StartingCash float64
	EndingCash   float64
	Params       StrategyParams

	Trades       int
	Wins         int
	WinRate      float64
	TotalProfit  float64
	AvgPctReturn float64

	Notes string
}

// BacktestSummary holds terminal performance metrics computed from a ledger.
type BacktestSummary struct {
	Trades       int
	Wins         int
	WinRate      float64 // wins / trades
	StartingCash float64
	EndingCash   float64
	TotalProfit  float64 // sum of ledger profit
	AvgPctReturn float64 // mean pct_return per trade

	// Distribution
	MedianPctReturn float64
	P10PctReturn    float64
	P90PctReturn    float64
	StddevPctReturn float64 // sample stddev

	// Path-dependent, in ledger order
	MaxDrawdown          float64 // worst peak-to-trough of cash_after
	MaxConsecutiveLosses int
}
