package domain

import "time"

// TradeRecord is one closed round trip in a simulated ledger.
// Immutable once appended. Corresponds to the backtest_trades table.
type TradeRecord struct {
	TradeID    string    // deterministic hash
	SignalDate time.Time // decision date the pick was ranked on
	BuyDate    time.Time // next trading day after SignalDate
	SellDate   time.Time // BuyDate + hold_days trading days
	Symbol     string

	BuyPrice  float64 // opening price at BuyDate
	SellPrice float64 // opening price at SellDate
	Shares    int64   // floor(per_pick / buy_price), always > 0

	Cost      float64 // shares * buy_price
	Proceeds  float64 // shares * sell_price
	Profit    float64 // proceeds - cost
	PctReturn float64 // profit / cost, 0 when cost is 0
	CashAfter float64 // cash balance immediately after crediting proceeds
}

// IsWin reports whether the trade made money. Break-even counts as a loss.
func (t *TradeRecord) IsWin() bool {
	return t.Profit > 0
}
