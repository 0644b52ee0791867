package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// ScoreStore implements storage.ScoreStore using the daily_scores table.
type ScoreStore struct {
	pool *Pool
}

// NewScoreStore creates a new ScoreStore.
func NewScoreStore(pool *Pool) *ScoreStore {
	return &ScoreStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ScoreStore = (*ScoreStore)(nil)

// InsertBulk adds multiple scores atomically. Fails entire batch on duplicate (date, symbol).
func (s *ScoreStore) InsertBulk(ctx context.Context, scores []*domain.ScoreRow) error {
	if len(scores) == 0 {
		return nil
	}
	for _, r := range scores {
		if r == nil || math.IsNaN(r.Score) {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO daily_scores (score_date, symbol, score, indicators)
		VALUES ($1, $2, $3, $4)
	`

	// Executed one by one so the serial id follows slice order.
	for _, r := range scores {
		indicators, err := marshalIndicators(r.Indicators)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, query, domain.NormalizeDate(r.Date), r.Symbol, r.Score, indicators)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert daily score in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetRankedScores returns the scores of date, score DESC, ties by insertion order.
func (s *ScoreStore) GetRankedScores(ctx context.Context, date time.Time) ([]*domain.ScoreRow, error) {
	query := `
		SELECT score_date, symbol, score, indicators
		FROM daily_scores
		WHERE score_date = $1
		ORDER BY score DESC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.NormalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("get ranked scores: %w", err)
	}
	defer rows.Close()

	return scanScoreRows(rows)
}

// marshalIndicators encodes the breakdown as JSONB, NULL when empty.
func marshalIndicators(m map[string]float64) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal indicators: %w", err)
	}
	return data, nil
}

// scanScoreRows scans multiple rows into a slice of ScoreRow.
func scanScoreRows(rows pgx.Rows) ([]*domain.ScoreRow, error) {
	scores := make([]*domain.ScoreRow, 0)

	for rows.Next() {
		var r domain.ScoreRow
		var indicators []byte

		if err := rows.Scan(&r.Date, &r.Symbol, &r.Score, &indicators); err != nil {
			return nil, fmt.Errorf("scan daily score row: %w", err)
		}
		r.Date = domain.NormalizeDate(r.Date)
		if len(indicators) > 0 {
			if err := json.Unmarshal(indicators, &r.Indicators); err != nil {
				return nil, fmt.Errorf("unmarshal indicators: %w", err)
			}
		}

		scores = append(scores, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily score rows: %w", err)
	}

	return scores, nil
}
