package domain

import (
	"errors"
	"testing"
)

func TestStrategyParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  StrategyParams
		wantErr bool
	}{
		{"defaults", DefaultBacktestParams(), false},
		{"zero top_k", StrategyParams{TopK: 0, HoldDays: 5, PositionFraction: 1}, true},
		{"negative hold", StrategyParams{TopK: 1, HoldDays: -1, PositionFraction: 1}, true},
		{"zero fraction", StrategyParams{TopK: 1, HoldDays: 5, PositionFraction: 0}, true},
		{"fraction above one", StrategyParams{TopK: 1, HoldDays: 5, PositionFraction: 1.01}, true},
		{"percentile above one", StrategyParams{TopK: 1, HoldDays: 5, PositionFraction: 1, MinScorePercentile: 1.5}, true},
		{"upper bounds", StrategyParams{TopK: 5, HoldDays: 10, PositionFraction: 1, MinScorePercentile: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParams) {
					t.Errorf("expected ErrInvalidParams, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParamRanges_Validate(t *testing.T) {
	if err := DefaultParamRanges().Validate(); err != nil {
		t.Fatalf("default ranges invalid: %v", err)
	}

	r := DefaultParamRanges()
	r.HoldDays = IntRange{Min: 10, Max: 3}
	if err := r.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected inverted hold_days range to fail, got %v", err)
	}

	r = DefaultParamRanges()
	r.PositionFraction = FloatRange{Min: 0, Max: 1}
	if err := r.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected zero fraction floor to fail, got %v", err)
	}
}

func TestTrialRecord_Beats(t *testing.T) {
	base := &TrialRecord{EndingCash: 1100, WinRate: 0.5}

	tests := []struct {
		name  string
		other *TrialRecord
		want  bool
	}{
		{"nil best", nil, true},
		{"lower cash", &TrialRecord{EndingCash: 1000, WinRate: 0.9}, true},
		{"higher cash", &TrialRecord{EndingCash: 1200, WinRate: 0.1}, false},
		{"same cash lower win rate", &TrialRecord{EndingCash: 1100, WinRate: 0.4}, true},
		{"exact tie", &TrialRecord{EndingCash: 1100, WinRate: 0.5}, false},
	}

	for _, tt := range tests {
		if got := base.Beats(tt.other); got != tt.want {
			t.Errorf("%s: Beats = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPosition_Close(t *testing.T) {
	p := Position{Symbol: "X", Shares: 100, EntryPrice: 10}
	tr := p.Close("id", 12, 1200)

	if tr.Cost != 1000 || tr.Proceeds != 1200 || tr.Profit != 200 {
		t.Errorf("unexpected amounts: cost=%v proceeds=%v profit=%v", tr.Cost, tr.Proceeds, tr.Profit)
	}
	if tr.PctReturn != 0.2 {
		t.Errorf("expected pct_return 0.2, got %v", tr.PctReturn)
	}
	if !tr.IsWin() {
		t.Error("expected win")
	}
}

func TestRankTrials(t *testing.T) {
	trials := []*TrialRecord{
		{TrialNumber: 1, EndingCash: 900, WinRate: 0.9},
		{TrialNumber: 2, EndingCash: 1100, WinRate: 0.2},
		{TrialNumber: 3, EndingCash: 1100, WinRate: 0.6},
		{TrialNumber: 4, EndingCash: 1100, WinRate: 0.2},
	}
	RankTrials(trials)

	want := []int{3, 2, 4, 1}
	for i, n := range want {
		if trials[i].TrialNumber != n {
			t.Errorf("position %d: got trial %d, want %d", i, trials[i].TrialNumber, n)
		}
	}
}
