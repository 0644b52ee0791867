package reporting

import (
	"context"
	"fmt"
	"time"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	trials storage.TrialStore
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(trials storage.TrialStore) *Generator {
	return &Generator{
		trials: trials,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// SearchReport loads the trial history of searchID and ranks it. The row
// labelled "best" duplicates a per-trial row and is left out of the ranking.
func (g *Generator) SearchReport(ctx context.Context, searchID string) (*SearchReport, error) {
	rows, err := g.trials.GetBySearchID(ctx, searchID)
	if err != nil {
		return nil, fmt.Errorf("load trials for search %s: %w", searchID, err)
	}

	ranked := make([]*domain.TrialRecord, 0, len(rows))
	for _, r := range rows {
		if r.Notes == domain.TrialNotesBest {
			continue
		}
		ranked = append(ranked, r)
	}
	domain.RankTrials(ranked)

	report := &SearchReport{
		GeneratedAt: g.now(),
		SearchID:    searchID,
		TrialCount:  len(ranked),
		Ranked:      ranked,
	}
	if len(ranked) == 0 {
		return report, nil
	}

	report.Best = ranked[0]
	report.StartDate = ranked[0].StartDate
	report.EndDate = ranked[0].EndDate

	top := ranked
	if len(top) > DefaultTopTrials {
		top = top[:DefaultTopTrials]
	}
	report.Top = top

	return report, nil
}
