// Package reporting renders ledgers, backtest summaries and search reports.
package reporting

import (
	"time"

	"stock-backtest-lab/internal/domain"
)

// DefaultTopTrials is the number of trials listed in a search report.
const DefaultTopTrials = 10

// SearchReport is the ranked view of one search's trial history.
type SearchReport struct {
	// Metadata
	GeneratedAt time.Time
	SearchID    string

	TrialCount int // per-trial rows, excluding the "best" row
	StartDate  time.Time
	EndDate    time.Time

	// Best is the top trial by ending cash, then win rate. Nil when the search has no trials.
	Best *domain.TrialRecord

	// Top holds at most DefaultTopTrials trials, best first.
	Top []*domain.TrialRecord

	// Ranked holds every per-trial row, best first.
	Ranked []*domain.TrialRecord
}
