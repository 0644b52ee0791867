package memory

import (
	"context"
	"sort"
	"sync"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// BacktestStore is an in-memory implementation of storage.BacktestStore.
type BacktestStore struct {
	mu      sync.RWMutex
	runs    map[string]*domain.BacktestRun   // keyed by run_id
	ledgers map[string][]*domain.TradeRecord // keyed by run_id, ledger order
	order   []string                         // run_ids in save order
}

// NewBacktestStore creates a new in-memory backtest store.
func NewBacktestStore() *BacktestStore {
	return &BacktestStore{
		runs:    make(map[string]*domain.BacktestRun),
		ledgers: make(map[string][]*domain.TradeRecord),
	}
}

// Save writes the run and its ledger. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestStore) Save(_ context.Context, run *domain.BacktestRun, ledger []*domain.TradeRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}
	for _, t := range ledger {
		if t == nil || t.TradeID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	r := *run
	s.runs[run.RunID] = &r
	trades := make([]*domain.TradeRecord, len(ledger))
	for i, t := range ledger {
		copy := *t
		trades[i] = &copy
	}
	s.ledgers[run.RunID] = trades
	s.order = append(s.order, run.RunID)
	return nil
}

// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestStore) GetRun(_ context.Context, runID string) (*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// GetLedger retrieves the trades of a run in ledger order.
func (s *BacktestStore) GetLedger(_ context.Context, runID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.ledgers[runID]
	result := make([]*domain.TradeRecord, len(trades))
	for i, t := range trades {
		copy := *t
		result[i] = &copy
	}
	return result, nil
}

// ListRuns returns all runs, newest first.
func (s *BacktestStore) ListRuns(_ context.Context) ([]*domain.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BacktestRun, 0, len(s.order))
	for _, id := range s.order {
		copy := *s.runs[id]
		result = append(result, &copy)
	}

	// save order breaks ties between runs created in the same instant
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

var _ storage.BacktestStore = (*BacktestStore)(nil)
