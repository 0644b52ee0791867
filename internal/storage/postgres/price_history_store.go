package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using the stock_history table.
type PriceHistoryStore struct {
	pool *Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(pool *Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// InsertBulk adds multiple bars atomically. Fails entire batch on any duplicate.
func (s *PriceHistoryStore) InsertBulk(ctx context.Context, bars []*domain.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO stock_history (symbol, hdate, open, high, low, close, adj_close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query,
			b.Symbol, domain.NormalizeDate(b.Date), b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range bars {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert stock history in bulk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetTradingDates returns every distinct date in stock_history.
func (s *PriceHistoryStore) GetTradingDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT hdate FROM stock_history`)
	if err != nil {
		return nil, fmt.Errorf("get trading dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan trading date: %w", err)
		}
		dates = append(dates, domain.NormalizeDate(d))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trading dates: %w", err)
	}

	return dates, nil
}

// GetOpeningPrice returns the open for (symbol, date). Returns ErrNotFound if absent.
func (s *PriceHistoryStore) GetOpeningPrice(ctx context.Context, symbol string, date time.Time) (float64, error) {
	query := `SELECT open FROM stock_history WHERE symbol = $1 AND hdate = $2`

	var open float64
	err := s.pool.QueryRow(ctx, query, symbol, domain.NormalizeDate(date)).Scan(&open)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get opening price: %w", err)
	}
	return open, nil
}

// GetBySymbol retrieves bars for symbol within [start, end], ordered by date ASC.
func (s *PriceHistoryStore) GetBySymbol(ctx context.Context, symbol string, start, end time.Time) ([]*domain.DailyBar, error) {
	query := `
		SELECT symbol, hdate, open, high, low, close, adj_close, volume
		FROM stock_history
		WHERE symbol = $1 AND hdate >= $2 AND hdate <= $3
		ORDER BY hdate ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol, domain.NormalizeDate(start), domain.NormalizeDate(end))
	if err != nil {
		return nil, fmt.Errorf("get stock history by symbol: %w", err)
	}
	defer rows.Close()

	var bars []*domain.DailyBar
	for rows.Next() {
		var b domain.DailyBar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan stock history row: %w", err)
		}
		b.Date = domain.NormalizeDate(b.Date)
		bars = append(bars, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock history rows: %w", err)
	}

	return bars, nil
}

// ListSymbols returns all symbols with history, sorted.
func (s *PriceHistoryStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM stock_history ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect symbols: %w", err)
	}
	return symbols, nil
}
