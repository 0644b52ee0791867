package simulation

import (
	"math"
	"sort"

	"stock-backtest-lab/internal/domain"
)

// percentileThreshold returns the p-quantile of scores using the "lower" rule:
// the order statistic at floor(p*(n-1)). The threshold is always one of the
// day's actual scores, so p=0.5 over [10 20 30 40] yields 20.
func percentileThreshold(scores []float64, p float64) float64 {
	if len(scores) == 0 {
		return math.Inf(-1)
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	// epsilon absorbs representation error such as 0.3*10 = 2.9999999999999996
	idx := int(math.Floor(p*float64(len(sorted)-1) + 1e-9))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// filterCandidates keeps rows scoring at or above the day's percentile cutoff
// and, when set, the absolute floor. Provider order is preserved, including ties.
func filterCandidates(rows []*domain.ScoreRow, params domain.StrategyParams) []*domain.ScoreRow {
	scores := make([]float64, 0, len(rows))
	for _, r := range rows {
		if !math.IsNaN(r.Score) {
			scores = append(scores, r.Score)
		}
	}
	cutoff := percentileThreshold(scores, params.MinScorePercentile)
	if params.MinScore != nil && *params.MinScore > cutoff {
		cutoff = *params.MinScore
	}

	kept := make([]*domain.ScoreRow, 0, len(rows))
	for _, r := range rows {
		if r.Score >= cutoff {
			kept = append(kept, r)
		}
	}
	return kept
}

// selectPicks truncates the filtered candidates to the first topK.
func selectPicks(candidates []*domain.ScoreRow, topK int) []*domain.ScoreRow {
	if len(candidates) > topK {
		return candidates[:topK]
	}
	return candidates
}
