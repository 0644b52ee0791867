package search

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"stock-backtest-lab/internal/domain"
)

// Sampler draws StrategyParams uniformly from ParamRanges with its own seeded
// source. Not safe for concurrent use; the runner samples every trial up front.
type Sampler struct {
	rng    *rand.Rand
	ranges domain.ParamRanges
}

// NewSampler creates a sampler. Equal seeds yield equal sequences.
func NewSampler(seed int64, ranges domain.ParamRanges) *Sampler {
	return &Sampler{
		rng:    rand.New(rand.NewSource(seed)),
		ranges: ranges,
	}
}

// Next draws one parameter set. Draw order is fixed: top_k, hold_days,
// position_fraction, min_score_pct. Fractions are rounded to two decimals.
func (s *Sampler) Next() domain.StrategyParams {
	r := s.ranges
	return domain.StrategyParams{
		TopK:               s.intIn(r.TopK),
		HoldDays:           s.intIn(r.HoldDays),
		PositionFraction:   s.floatIn(r.PositionFraction),
		MinScorePercentile: s.floatIn(r.MinScorePercentile),
	}
}

// intIn draws from the inclusive range [Min, Max].
func (s *Sampler) intIn(r domain.IntRange) int {
	return r.Min + s.rng.Intn(r.Max-r.Min+1)
}

// floatIn draws from [Min, Max] and rounds half away from zero to 2dp,
// clamped back into the range.
func (s *Sampler) floatIn(r domain.FloatRange) float64 {
	v := r.Min + s.rng.Float64()*(r.Max-r.Min)
	rounded := decimal.NewFromFloat(v).Round(2).InexactFloat64()
	if rounded < r.Min {
		return r.Min
	}
	if rounded > r.Max {
		return r.Max
	}
	return rounded
}
