package memory

import (
	"context"
	"sync"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// TrialStore is an in-memory implementation of storage.TrialStore.
type TrialStore struct {
	mu   sync.RWMutex
	rows []*domain.TrialRecord // append-only, insertion order
}

// NewTrialStore creates a new in-memory trial store.
func NewTrialStore() *TrialStore {
	return &TrialStore{}
}

// Insert appends one trial row.
func (s *TrialStore) Insert(_ context.Context, t *domain.TrialRecord) error {
	if t == nil || t.TrialID == "" || t.SearchID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *t
	s.rows = append(s.rows, &copy)
	return nil
}

// GetBySearchID retrieves all rows of a search in insertion order.
func (s *TrialStore) GetBySearchID(_ context.Context, searchID string) ([]*domain.TrialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrialRecord
	for _, t := range s.rows {
		if t.SearchID == searchID {
			copy := *t
			result = append(result, &copy)
		}
	}
	return result, nil
}

var _ storage.TrialStore = (*TrialStore)(nil)
