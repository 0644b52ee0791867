// Package metrics computes terminal performance summaries from a trade ledger.
package metrics

import (
	"math"
	"sort"

	"stock-backtest-lab/internal/domain"
)

// Summarize computes the backtest summary of ledger. The ledger is taken in
// its own order, which is the order trades were appended by the simulation;
// drawdown and loss streaks depend on it. Starting and ending cash come from
// the simulation since unsold positions make them differ from the ledger sum.
func Summarize(ledger []*domain.TradeRecord, startingCash, endingCash float64) *domain.BacktestSummary {
	s := &domain.BacktestSummary{
		StartingCash: startingCash,
		EndingCash:   endingCash,
	}
	n := len(ledger)
	if n == 0 {
		return s
	}

	returns := make([]float64, n)
	for i, t := range ledger {
		if t.IsWin() {
			s.Wins++
		}
		s.TotalProfit += t.Profit
		returns[i] = t.PctReturn
	}
	s.Trades = n
	s.WinRate = computeWinRate(s.Wins, n)
	s.AvgPctReturn = computeMean(returns)

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)
	s.MedianPctReturn = computePercentile(sorted, 0.50)
	s.P10PctReturn = computePercentile(sorted, 0.10)
	s.P90PctReturn = computePercentile(sorted, 0.90)
	s.StddevPctReturn = computeStddev(returns, s.AvgPctReturn)

	s.MaxDrawdown = computeMaxDrawdown(startingCash, ledger)
	s.MaxConsecutiveLosses = computeMaxConsecutiveLosses(ledger)
	return s
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		diff := x - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown is the worst peak-to-trough drop of the cash_after curve,
// with startingCash as the first peak.
func computeMaxDrawdown(startingCash float64, ledger []*domain.TradeRecord) float64 {
	peak := startingCash
	maxDrawdown := 0.0
	for _, t := range ledger {
		if t.CashAfter > peak {
			peak = t.CashAfter
		}
		if dd := peak - t.CashAfter; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of profit <= 0.
func computeMaxConsecutiveLosses(ledger []*domain.TradeRecord) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range ledger {
		if !t.IsWin() {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
