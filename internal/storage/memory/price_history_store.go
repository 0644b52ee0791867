package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailyBar // keyed by (symbol, date)
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		data: make(map[string]*domain.DailyBar),
	}
}

// barKey generates a unique key for a daily bar.
func barKey(symbol string, date time.Time) string {
	return fmt.Sprintf("%s|%s", symbol, domain.FormatDate(date))
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, bars []*domain.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(bars))

	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Symbol, b.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		copy := *b
		copy.Date = domain.NormalizeDate(b.Date)
		s.data[barKey(b.Symbol, b.Date)] = &copy
	}

	return nil
}

// GetTradingDates returns every distinct date with a bar.
func (s *PriceHistoryStore) GetTradingDates(_ context.Context) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, b := range s.data {
		if _, ok := seen[b.Date]; ok {
			continue
		}
		seen[b.Date] = struct{}{}
		dates = append(dates, b.Date)
	}
	return dates, nil
}

// GetOpeningPrice returns the open for (symbol, date). Returns ErrNotFound if absent.
func (s *PriceHistoryStore) GetOpeningPrice(_ context.Context, symbol string, date time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[barKey(symbol, date)]
	if !exists {
		return 0, storage.ErrNotFound
	}
	return b.Open, nil
}

// GetBySymbol retrieves bars for symbol within [start, end], ordered by date ASC.
func (s *PriceHistoryStore) GetBySymbol(_ context.Context, symbol string, start, end time.Time) ([]*domain.DailyBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from, to := domain.NormalizeDate(start), domain.NormalizeDate(end)
	var result []*domain.DailyBar
	for _, b := range s.data {
		if b.Symbol != symbol || b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		copy := *b
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// ListSymbols returns all symbols with history, sorted.
func (s *PriceHistoryStore) ListSymbols(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, b := range s.data {
		set[b.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(set))
	for sym := range set {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)
