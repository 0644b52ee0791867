package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// ScoreStore is an in-memory implementation of storage.ScoreStore.
type ScoreStore struct {
	mu     sync.RWMutex
	byDate map[time.Time][]*domain.ScoreRow // insertion order per date
	keys   map[string]struct{}              // (date, symbol)
}

// NewScoreStore creates a new in-memory score store.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{
		byDate: make(map[time.Time][]*domain.ScoreRow),
		keys:   make(map[string]struct{}),
	}
}

func scoreKey(date time.Time, symbol string) string {
	return fmt.Sprintf("%s|%s", domain.FormatDate(date), symbol)
}

// InsertBulk adds multiple scores. Fails entire batch on duplicate (date, symbol)
// or on a NaN score, which has no place in the ranking.
func (s *ScoreStore) InsertBulk(_ context.Context, scores []*domain.ScoreRow) error {
	if len(scores) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(scores))
	for _, r := range scores {
		if r == nil || r.Symbol == "" || r.Date.IsZero() || math.IsNaN(r.Score) {
			return storage.ErrInvalidInput
		}
		key := scoreKey(r.Date, r.Symbol)
		if _, exists := s.keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range scores {
		copy := *r
		copy.Date = domain.NormalizeDate(r.Date)
		s.byDate[copy.Date] = append(s.byDate[copy.Date], &copy)
		s.keys[scoreKey(r.Date, r.Symbol)] = struct{}{}
	}
	return nil
}

// GetRankedScores returns the scores of date, score DESC, ties in insertion order.
func (s *ScoreStore) GetRankedScores(_ context.Context, date time.Time) ([]*domain.ScoreRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byDate[domain.NormalizeDate(date)]
	result := make([]*domain.ScoreRow, 0, len(rows))
	for _, r := range rows {
		copy := *r
		result = append(result, &copy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	return result, nil
}

var _ storage.ScoreStore = (*ScoreStore)(nil)
