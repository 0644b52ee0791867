package domain

import (
	"fmt"
	"sort"
	"time"
)

// TrialNotesBest labels the second write of a search's winning trial.
const TrialNotesBest = "best"

// TrialNotes returns the label of the per-trial write.
func TrialNotes(trialNumber int) string {
	return fmt.Sprintf("trial %d", trialNumber)
}

// TrialRecord is the outcome of one randomly parameterized simulation.
// Corresponds to the optimizer_results table. Never mutated after creation.
// TrialID is shared by the per-trial and "best" rows of the same trial.
type TrialRecord struct {
	TrialID     string // deterministic hash of (search_id, trial_number)
	SearchID    string // uuid of the search run
	TrialNumber int    // 1-based

	Params       StrategyParams
	StartDate    time.Time
	EndDate      time.Time
	StartingCash float64
	EndingCash   float64
	Trades       int
	Wins         int
	WinRate      float64 // wins / trades, 0 when no trades

	CreatedAt time.Time
	Notes     string
}

// Beats reports whether t ranks strictly ahead of other:
// higher ending cash first, then higher win rate. Equal trials do not beat each other,
// so the earliest of a tie stays best.
func (t *TrialRecord) Beats(other *TrialRecord) bool {
	if other == nil {
		return true
	}
	if t.EndingCash != other.EndingCash {
		return t.EndingCash > other.EndingCash
	}
	return t.WinRate > other.WinRate
}

// RankTrials sorts trials best first by the Beats ordering. Equal trials keep their order.
func RankTrials(trials []*TrialRecord) {
	sort.SliceStable(trials, func(i, j int) bool {
		return trials[i].Beats(trials[j])
	})
}
