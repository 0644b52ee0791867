// Package parquet implements storage.PriceHistoryStore on per-symbol, per-year
// Parquet files:
//
//	<dir>/daily/<SYMBOL>/<YYYY>.parquet
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// BarRecord is the on-disk schema of one daily bar.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // midnight UTC, Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	AdjClose  float64 `parquet:"adj_close"`
	Volume    int64   `parquet:"volume"`
}

// PriceHistoryStore reads and appends Parquet files under a data directory.
// Year files are cached after the first read; writes go through the cache.
type PriceHistoryStore struct {
	dataDir string

	mu    sync.RWMutex
	cache map[string][]BarRecord // keyed by file path, sorted by timestamp
}

// NewPriceHistoryStore creates a store rooted at dataDir.
func NewPriceHistoryStore(dataDir string) *PriceHistoryStore {
	return &PriceHistoryStore{
		dataDir: dataDir,
		cache:   make(map[string][]BarRecord),
	}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

func (s *PriceHistoryStore) symbolDir(symbol string) string {
	return filepath.Join(s.dataDir, "daily", symbol)
}

func (s *PriceHistoryStore) barPath(symbol string, year int) string {
	return filepath.Join(s.symbolDir(symbol), fmt.Sprintf("%d.parquet", year))
}

// InsertBulk merges bars into their year files. Fails entire batch on duplicate
// (symbol, date) before any file is rewritten.
func (s *PriceHistoryStore) InsertBulk(_ context.Context, bars []*domain.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	seen := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		d := domain.NormalizeDate(b.Date)
		id := b.Symbol + "|" + domain.FormatDate(d)
		if _, dup := seen[id]; dup {
			return storage.ErrDuplicateKey
		}
		seen[id] = struct{}{}

		k := key{b.Symbol, d.Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:    b.Symbol,
			Timestamp: d.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			AdjClose:  b.AdjClose,
			Volume:    b.Volume,
		})
	}

	// Validate every group against disk first so a duplicate leaves no partial write.
	merged := make(map[string][]BarRecord, len(groups))
	for k, incoming := range groups {
		path := s.barPath(k.symbol, k.year)
		existing, err := s.loadLocked(path)
		if err != nil {
			return err
		}
		have := make(map[int64]struct{}, len(existing))
		for _, r := range existing {
			have[r.Timestamp] = struct{}{}
		}
		for _, r := range incoming {
			if _, dup := have[r.Timestamp]; dup {
				return storage.ErrDuplicateKey
			}
		}
		merged[path] = mergeBarRecords(existing, incoming)
	}

	for path, records := range merged {
		if err := writeParquetFile(path, records); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		s.cache[path] = records
	}
	return nil
}

// GetTradingDates scans every year file and returns the distinct dates.
func (s *PriceHistoryStore) GetTradingDates(ctx context.Context) ([]time.Time, error) {
	symbols, err := s.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{})
	var dates []time.Time
	for _, sym := range symbols {
		years, err := s.yearsLocked(sym)
		if err != nil {
			return nil, err
		}
		for _, y := range years {
			records, err := s.loadLocked(s.barPath(sym, y))
			if err != nil {
				return nil, err
			}
			for _, r := range records {
				if _, ok := seen[r.Timestamp]; ok {
					continue
				}
				seen[r.Timestamp] = struct{}{}
				dates = append(dates, time.UnixMilli(r.Timestamp).UTC())
			}
		}
	}
	return dates, nil
}

// GetOpeningPrice returns the open for (symbol, date). Returns ErrNotFound if absent.
func (s *PriceHistoryStore) GetOpeningPrice(_ context.Context, symbol string, date time.Time) (float64, error) {
	d := domain.NormalizeDate(date)
	records, err := s.load(s.barPath(symbol, d.Year()))
	if err != nil {
		return 0, err
	}

	ts := d.UnixMilli()
	i := sort.Search(len(records), func(i int) bool { return records[i].Timestamp >= ts })
	if i == len(records) || records[i].Timestamp != ts {
		return 0, storage.ErrNotFound
	}
	return records[i].Open, nil
}

// GetBySymbol reads the year files covering [start, end], ordered by date ASC.
func (s *PriceHistoryStore) GetBySymbol(_ context.Context, symbol string, start, end time.Time) ([]*domain.DailyBar, error) {
	from, to := domain.NormalizeDate(start).UnixMilli(), domain.NormalizeDate(end).UnixMilli()

	var bars []*domain.DailyBar
	for year := start.Year(); year <= end.Year(); year++ {
		records, err := s.load(s.barPath(symbol, year))
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if r.Timestamp < from || r.Timestamp > to {
				continue
			}
			bars = append(bars, &domain.DailyBar{
				Symbol:   r.Symbol,
				Date:     time.UnixMilli(r.Timestamp).UTC(),
				Open:     r.Open,
				High:     r.High,
				Low:      r.Low,
				Close:    r.Close,
				AdjClose: r.AdjClose,
				Volume:   r.Volume,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists the symbol directories under <dir>/daily.
func (s *PriceHistoryStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, "daily"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// load returns the cached records of path, reading the file on first use.
// A missing file is an empty year.
func (s *PriceHistoryStore) load(path string) ([]BarRecord, error) {
	s.mu.RLock()
	records, ok := s.cache[path]
	s.mu.RUnlock()
	if ok {
		return records, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(path)
}

func (s *PriceHistoryStore) loadLocked(path string) ([]BarRecord, error) {
	if records, ok := s.cache[path]; ok {
		return records, nil
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	records, err := readParquetFile[BarRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	s.cache[path] = records
	return records, nil
}

// yearsLocked lists the years with a file for symbol.
func (s *PriceHistoryStore) yearsLocked(symbol string) ([]int, error) {
	entries, err := os.ReadDir(s.symbolDir(symbol))
	if err != nil {
		return nil, fmt.Errorf("list years for %s: %w", symbol, err)
	}

	var years []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		y, err := strconv.Atoi(strings.TrimSuffix(name, ".parquet"))
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	return years, nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeBarRecords combines year records sorted by timestamp. Callers reject
// duplicates first, so no key collides.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	merged := make([]BarRecord, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
