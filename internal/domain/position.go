package domain

import "time"

// Position is an ephemeral holding created by a buy and consumed exactly once by its sell.
// It is never persisted on its own; closing it yields a TradeRecord.
type Position struct {
	Symbol     string
	Shares     int64
	EntryPrice float64
	SignalDate time.Time
	EntryDate  time.Time
	ExitDate   time.Time // target sell date
}

// Cost is the cash debited when the position is opened.
func (p Position) Cost() float64 {
	return float64(p.Shares) * p.EntryPrice
}

// Close turns the position into a ledger entry sold at sellPrice.
func (p Position) Close(tradeID string, sellPrice, cashAfter float64) *TradeRecord {
	cost := p.Cost()
	proceeds := float64(p.Shares) * sellPrice
	profit := proceeds - cost
	pct := 0.0
	if cost > 0 {
		pct = profit / cost
	}
	return &TradeRecord{
		TradeID:    tradeID,
		SignalDate: p.SignalDate,
		BuyDate:    p.EntryDate,
		SellDate:   p.ExitDate,
		Symbol:     p.Symbol,
		BuyPrice:   p.EntryPrice,
		SellPrice:  sellPrice,
		Shares:     p.Shares,
		Cost:       cost,
		Proceeds:   proceeds,
		Profit:     profit,
		PctReturn:  pct,
		CashAfter:  cashAfter,
	}
}
