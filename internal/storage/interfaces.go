// Package storage defines the persistence contracts consumed by the simulation,
// search and backtest layers. Backends live in sub-packages.
package storage

import (
	"context"
	"time"

	"stock-backtest-lab/internal/domain"
)

// PriceHistoryStore provides access to daily OHLCV history.
type PriceHistoryStore interface {
	// InsertBulk adds bars atomically. Fails entire batch on duplicate (symbol, date).
	InsertBulk(ctx context.Context, bars []*domain.DailyBar) error

	// GetTradingDates returns every date with at least one bar. Order is unspecified.
	GetTradingDates(ctx context.Context) ([]time.Time, error)

	// GetOpeningPrice returns the open of symbol on date. Returns ErrNotFound if absent.
	GetOpeningPrice(ctx context.Context, symbol string, date time.Time) (float64, error)

	// GetBySymbol retrieves bars for symbol within [start, end] (inclusive), ordered by date ASC.
	GetBySymbol(ctx context.Context, symbol string, start, end time.Time) ([]*domain.DailyBar, error)

	// ListSymbols returns all symbols with history, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}

// ScoreStore provides access to daily_scores storage.
type ScoreStore interface {
	// InsertBulk adds scores atomically. Fails entire batch on duplicate (date, symbol).
	InsertBulk(ctx context.Context, scores []*domain.ScoreRow) error

	// GetRankedScores returns the scores of date ordered by score DESC.
	// Ties keep insertion order. Empty slice when nothing was scored that day.
	GetRankedScores(ctx context.Context, date time.Time) ([]*domain.ScoreRow, error)
}

// BacktestStore persists backtest runs with their trade ledgers.
type BacktestStore interface {
	// Save writes the run header and its ledger atomically. Returns ErrDuplicateKey if run_id exists.
	Save(ctx context.Context, run *domain.BacktestRun, ledger []*domain.TradeRecord) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetLedger retrieves the trades of a run in ledger order.
	GetLedger(ctx context.Context, runID string) ([]*domain.TradeRecord, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]*domain.BacktestRun, error)
}

// TrialStore provides access to optimizer_results storage.
// Append-only; the same trial_id may appear twice (per-trial row and "best" row).
type TrialStore interface {
	// Insert appends one trial row. Safe for concurrent use.
	Insert(ctx context.Context, t *domain.TrialRecord) error

	// GetBySearchID retrieves all rows of a search in insertion order.
	GetBySearchID(ctx context.Context, searchID string) ([]*domain.TrialRecord, error)
}
