// Package verification replays stored backtests and checks that the
// simulation reproduces the persisted ledger.
package verification

import (
	"math"
	"time"

	"stock-backtest-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string // field name
	Expected any    // stored value
	Actual   any    // replayed value
}

// TradeResult is the comparison of one ledger position.
type TradeResult struct {
	Seq         int    // ledger position, 0-based
	TradeID     string // stored trade id, or replayed when the stored ledger is shorter
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains the outcome of verifying one run.
type VerificationReport struct {
	RunID            string
	StoredTrades     int
	ReplayedTrades   int
	MatchedTrades    int
	DivergentTrades  int
	StoredEndingCash float64
	ReplayEndingCash float64
	EndingCashMatch  bool
	Results          []TradeResult // divergent positions only
}

// Match reports whether the replay reproduced the run exactly.
func (r *VerificationReport) Match() bool {
	return r.EndingCashMatch && r.DivergentTrades == 0 && r.StoredTrades == r.ReplayedTrades
}

// CompareTradeRecords compares two trade records and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTradeRecords(stored, replayed *domain.TradeRecord) []FieldDivergence {
	var divergences []FieldDivergence

	str := func(field, a, b string) {
		if a != b {
			divergences = append(divergences, FieldDivergence{Field: field, Expected: a, Actual: b})
		}
	}
	date := func(field string, a, b time.Time) {
		if !a.Equal(b) {
			divergences = append(divergences, FieldDivergence{Field: field, Expected: domain.FormatDate(a), Actual: domain.FormatDate(b)})
		}
	}
	num := func(field string, a, b float64) {
		if !floatEquals(a, b) {
			divergences = append(divergences, FieldDivergence{Field: field, Expected: a, Actual: b})
		}
	}

	// Identity
	str("TradeID", stored.TradeID, replayed.TradeID)
	str("Symbol", stored.Symbol, replayed.Symbol)
	date("SignalDate", stored.SignalDate, replayed.SignalDate)
	date("BuyDate", stored.BuyDate, replayed.BuyDate)
	date("SellDate", stored.SellDate, replayed.SellDate)

	// Fill
	num("BuyPrice", stored.BuyPrice, replayed.BuyPrice)
	num("SellPrice", stored.SellPrice, replayed.SellPrice)
	if stored.Shares != replayed.Shares {
		divergences = append(divergences, FieldDivergence{Field: "Shares", Expected: stored.Shares, Actual: replayed.Shares})
	}

	// Money
	num("Cost", stored.Cost, replayed.Cost)
	num("Proceeds", stored.Proceeds, replayed.Proceeds)
	num("Profit", stored.Profit, replayed.Profit)
	num("PctReturn", stored.PctReturn, replayed.PctReturn)
	num("CashAfter", stored.CashAfter, replayed.CashAfter)

	return divergences
}

// CompareLedgers compares ledgers position by position. Positions present in
// only one ledger are divergent.
func CompareLedgers(stored, replayed []*domain.TradeRecord) []TradeResult {
	n := max(len(stored), len(replayed))
	results := make([]TradeResult, 0, n)
	for i := 0; i < n; i++ {
		r := TradeResult{Seq: i}
		switch {
		case i >= len(replayed):
			r.TradeID = stored[i].TradeID
			r.Divergences = []FieldDivergence{{Field: "Trade", Expected: stored[i].TradeID, Actual: nil}}
		case i >= len(stored):
			r.TradeID = replayed[i].TradeID
			r.Divergences = []FieldDivergence{{Field: "Trade", Expected: nil, Actual: replayed[i].TradeID}}
		default:
			r.TradeID = stored[i].TradeID
			r.Divergences = CompareTradeRecords(stored[i], replayed[i])
		}
		r.Match = len(r.Divergences) == 0
		results = append(results, r)
	}
	return results
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
