package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// TrialStore implements storage.TrialStore using the optimizer_results table.
type TrialStore struct {
	pool *Pool
}

// NewTrialStore creates a new TrialStore.
func NewTrialStore(pool *Pool) *TrialStore {
	return &TrialStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrialStore = (*TrialStore)(nil)

// Insert appends one trial row. The serial id keeps the same trial_id insertable twice.
func (s *TrialStore) Insert(ctx context.Context, t *domain.TrialRecord) error {
	if t == nil || t.TrialID == "" || t.SearchID == "" {
		return storage.ErrInvalidInput
	}

	params, err := json.Marshal(t.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	query := `
		INSERT INTO optimizer_results (
			trial_id, search_id, trial_number, ts, params, start_date, end_date,
			starting_cash, ending_cash, trades, wins, win_rate, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.pool.Exec(ctx, query,
		t.TrialID, t.SearchID, t.TrialNumber, t.CreatedAt, params, t.StartDate, t.EndDate,
		t.StartingCash, t.EndingCash, t.Trades, t.Wins, t.WinRate, t.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert optimizer result: %w", err)
	}
	return nil
}

// GetBySearchID retrieves all rows of a search in insertion order.
func (s *TrialStore) GetBySearchID(ctx context.Context, searchID string) ([]*domain.TrialRecord, error) {
	query := `
		SELECT
			trial_id, search_id, trial_number, ts, params, start_date, end_date,
			starting_cash, ending_cash, trades, wins, win_rate, notes
		FROM optimizer_results
		WHERE search_id = $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, searchID)
	if err != nil {
		return nil, fmt.Errorf("get optimizer results by search id: %w", err)
	}
	defer rows.Close()

	var trials []*domain.TrialRecord
	for rows.Next() {
		var t domain.TrialRecord
		var params []byte

		err := rows.Scan(
			&t.TrialID, &t.SearchID, &t.TrialNumber, &t.CreatedAt, &params, &t.StartDate, &t.EndDate,
			&t.StartingCash, &t.EndingCash, &t.Trades, &t.Wins, &t.WinRate, &t.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan optimizer result row: %w", err)
		}
		if err := json.Unmarshal(params, &t.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
		t.StartDate = domain.NormalizeDate(t.StartDate)
		t.EndDate = domain.NormalizeDate(t.EndDate)

		trials = append(trials, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate optimizer result rows: %w", err)
	}

	return trials, nil
}
