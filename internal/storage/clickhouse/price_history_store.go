package clickhouse

import (
	"context"
	"fmt"
	"time"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using the daily_bars table.
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, date).
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, bars []*domain.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates and collect the date span per symbol
	type key struct {
		symbol string
		date   time.Time
	}
	type span struct{ from, to time.Time }
	seen := make(map[key]struct{}, len(bars))
	spans := make(map[string]span)
	for _, b := range bars {
		d := domain.NormalizeDate(b.Date)
		k := key{b.Symbol, d}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		sp, ok := spans[b.Symbol]
		if !ok {
			sp = span{d, d}
		}
		if d.Before(sp.from) {
			sp.from = d
		}
		if d.After(sp.to) {
			sp.to = d
		}
		spans[b.Symbol] = sp
	}

	// Check for duplicates against existing rows, one range scan per symbol
	for symbol, sp := range spans {
		existing, err := s.datesBetween(ctx, symbol, sp.from, sp.to)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, d := range existing {
			if _, clash := seen[key{symbol, d}]; clash {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_bars (symbol, date, open, high, low, close, adj_close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Symbol, domain.NormalizeDate(b.Date),
			b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetTradingDates returns every distinct date in daily_bars.
func (s *PriceHistoryStore) GetTradingDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT date FROM daily_bars`)
	if err != nil {
		return nil, fmt.Errorf("query trading dates: %w", err)
	}
	defer rows.Close()

	return scanDates(rows)
}

// GetOpeningPrice returns the open for (symbol, date). Returns ErrNotFound if absent.
func (s *PriceHistoryStore) GetOpeningPrice(ctx context.Context, symbol string, date time.Time) (float64, error) {
	query := `
		SELECT open FROM daily_bars
		WHERE symbol = ? AND date = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, symbol, domain.NormalizeDate(date))
	if err != nil {
		return 0, fmt.Errorf("query opening price: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("iterate opening price: %w", err)
		}
		return 0, storage.ErrNotFound
	}

	var open float64
	if err := rows.Scan(&open); err != nil {
		return 0, fmt.Errorf("scan opening price: %w", err)
	}
	return open, nil
}

// GetBySymbol retrieves bars for symbol within [start, end], ordered by date ASC.
func (s *PriceHistoryStore) GetBySymbol(ctx context.Context, symbol string, start, end time.Time) ([]*domain.DailyBar, error) {
	query := `
		SELECT symbol, date, open, high, low, close, adj_close, volume
		FROM daily_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, domain.NormalizeDate(start), domain.NormalizeDate(end))
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanDailyBars(rows)
}

// ListSymbols returns all symbols with history, sorted.
func (s *PriceHistoryStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}
	return symbols, nil
}

// datesBetween returns the stored dates of symbol within [from, to].
func (s *PriceHistoryStore) datesBetween(ctx context.Context, symbol string, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT date FROM daily_bars
		WHERE symbol = ? AND date >= ? AND date <= ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDates(rows)
}

// scanDates scans single-column Date rows, normalized to midnight UTC.
func scanDates(rows chRows) ([]time.Time, error) {
	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, domain.NormalizeDate(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates: %w", err)
	}
	return dates, nil
}

// scanDailyBars scans multiple rows.
func scanDailyBars(rows chRows) ([]*domain.DailyBar, error) {
	var bars []*domain.DailyBar

	for rows.Next() {
		var b domain.DailyBar

		err := rows.Scan(
			&b.Symbol, &b.Date,
			&b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily bar row: %w", err)
		}

		b.Date = domain.NormalizeDate(b.Date)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily bar rows: %w", err)
	}

	return bars, nil
}
