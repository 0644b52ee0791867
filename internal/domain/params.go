package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned when strategy parameters or their sampling ranges are out of bounds.
var ErrInvalidParams = errors.New("invalid strategy params")

// StrategyParams are the knobs of the top-k, hold-N-days strategy.
// Immutable once sampled or configured.
type StrategyParams struct {
	TopK               int      `json:"top_k"`               // picks per decision day
	HoldDays           int      `json:"hold_days"`           // trading days between buy and sell
	PositionFraction   float64  `json:"position_fraction"`   // share of current cash allocated per day
	MinScorePercentile float64  `json:"min_score_pct"`       // quantile cutoff of the day's scores
	MinScore           *float64 `json:"min_score,omitempty"` // absolute score floor (nullable)
}

// DefaultBacktestParams mirrors the single-stock backtest: top pick, five-day hold, all cash.
func DefaultBacktestParams() StrategyParams {
	return StrategyParams{
		TopK:               1,
		HoldDays:           5,
		PositionFraction:   1.0,
		MinScorePercentile: 0.0,
	}
}

// Validate checks structural bounds. Search ranges are enforced by ParamRanges, not here.
func (p StrategyParams) Validate() error {
	if p.TopK < 1 {
		return fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidParams, p.TopK)
	}
	if p.HoldDays < 0 {
		return fmt.Errorf("%w: hold_days must be >= 0, got %d", ErrInvalidParams, p.HoldDays)
	}
	if p.PositionFraction <= 0 || p.PositionFraction > 1 {
		return fmt.Errorf("%w: position_fraction must be in (0, 1], got %v", ErrInvalidParams, p.PositionFraction)
	}
	if p.MinScorePercentile < 0 || p.MinScorePercentile > 1 {
		return fmt.Errorf("%w: min_score_pct must be in [0, 1], got %v", ErrInvalidParams, p.MinScorePercentile)
	}
	return nil
}

// String renders params in log-friendly form.
func (p StrategyParams) String() string {
	s := fmt.Sprintf("top_k=%d hold_days=%d position_fraction=%.2f min_score_pct=%.2f",
		p.TopK, p.HoldDays, p.PositionFraction, p.MinScorePercentile)
	if p.MinScore != nil {
		s += fmt.Sprintf(" min_score=%.2f", *p.MinScore)
	}
	return s
}

// IntRange is an inclusive integer sampling range.
type IntRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// FloatRange is an inclusive float sampling range.
type FloatRange struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// ParamRanges bounds the random search.
type ParamRanges struct {
	TopK               IntRange   `yaml:"top_k"`
	HoldDays           IntRange   `yaml:"hold_days"`
	PositionFraction   FloatRange `yaml:"position_fraction"`
	MinScorePercentile FloatRange `yaml:"min_score_pct"`
}

// DefaultParamRanges returns the standard search space.
func DefaultParamRanges() ParamRanges {
	return ParamRanges{
		TopK:               IntRange{Min: 1, Max: 5},
		HoldDays:           IntRange{Min: 3, Max: 10},
		PositionFraction:   FloatRange{Min: 0.2, Max: 1.0},
		MinScorePercentile: FloatRange{Min: 0.0, Max: 0.5},
	}
}

// Validate checks that every range is ordered and yields valid StrategyParams.
func (r ParamRanges) Validate() error {
	switch {
	case r.TopK.Min < 1 || r.TopK.Max < r.TopK.Min:
		return fmt.Errorf("%w: top_k range [%d, %d]", ErrInvalidParams, r.TopK.Min, r.TopK.Max)
	case r.HoldDays.Min < 0 || r.HoldDays.Max < r.HoldDays.Min:
		return fmt.Errorf("%w: hold_days range [%d, %d]", ErrInvalidParams, r.HoldDays.Min, r.HoldDays.Max)
	case r.PositionFraction.Min <= 0 || r.PositionFraction.Max > 1 || r.PositionFraction.Max < r.PositionFraction.Min:
		return fmt.Errorf("%w: position_fraction range [%v, %v]", ErrInvalidParams, r.PositionFraction.Min, r.PositionFraction.Max)
	case r.MinScorePercentile.Min < 0 || r.MinScorePercentile.Max > 1 || r.MinScorePercentile.Max < r.MinScorePercentile.Min:
		return fmt.Errorf("%w: min_score_pct range [%v, %v]", ErrInvalidParams, r.MinScorePercentile.Min, r.MinScorePercentile.Max)
	}
	return nil
}
