// Package sqlite implements a local results journal (backtest runs, ledgers and
// optimizer trials) on a single SQLite file using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
	"stock-backtest-lab/internal/storage/migrations"
)

// Compile-time interface checks.
var _ storage.BacktestStore = (*Journal)(nil)
var _ storage.TrialStore = (*Journal)(nil)

// Journal implements BacktestStore and TrialStore backed by a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal at dbPath and applies the schema.
func Open(ctx context.Context, dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One writer at a time; concurrent trial inserts queue on the pool.
	db.SetMaxOpenConns(1)

	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// ---------------------------------------------------------------------------
// BacktestStore implementation
// ---------------------------------------------------------------------------

const runColumns = `run_id, created_at, start_date, end_date, starting_cash, ending_cash, params,
	trades, wins, win_rate, total_profit, avg_pct_return, notes`

// Save writes the run and its ledger in one transaction.
func (j *Journal) Save(ctx context.Context, run *domain.BacktestRun, ledger []*domain.TradeRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO stock_backtest_results (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt.UTC().Format(time.RFC3339Nano),
		domain.FormatDate(run.StartDate), domain.FormatDate(run.EndDate),
		run.StartingCash, run.EndingCash, string(params),
		run.Trades, run.Wins, run.WinRate, run.TotalProfit, run.AvgPctReturn, run.Notes,
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO backtest_trades (
			run_id, seq, trade_id, signal_date, buy_date, sell_date, symbol,
			buy_price, sell_price, shares, cost, proceeds, profit, pct_return, cash_after
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range ledger {
		_, err := stmt.ExecContext(ctx,
			run.RunID, i, t.TradeID,
			domain.FormatDate(t.SignalDate), domain.FormatDate(t.BuyDate), domain.FormatDate(t.SellDate),
			t.Symbol, t.BuyPrice, t.SellPrice, t.Shares, t.Cost, t.Proceeds, t.Profit, t.PctReturn, t.CashAfter,
		)
		if err != nil {
			return fmt.Errorf("insert backtest trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
func (j *Journal) GetRun(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM stock_backtest_results WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run: %w", err)
	}
	return run, nil
}

// GetLedger retrieves the trades of a run in ledger order.
func (j *Journal) GetLedger(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT
			trade_id, signal_date, buy_date, sell_date, symbol,
			buy_price, sell_price, shares, cost, proceeds, profit, pct_return, cash_after
		FROM backtest_trades WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get backtest ledger: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		var t domain.TradeRecord
		var signal, buy, sell string
		err := rows.Scan(&t.TradeID, &signal, &buy, &sell, &t.Symbol,
			&t.BuyPrice, &t.SellPrice, &t.Shares, &t.Cost, &t.Proceeds, &t.Profit, &t.PctReturn, &t.CashAfter)
		if err != nil {
			return nil, fmt.Errorf("scan backtest trade row: %w", err)
		}
		if t.SignalDate, err = domain.ParseDate(signal); err != nil {
			return nil, err
		}
		if t.BuyDate, err = domain.ParseDate(buy); err != nil {
			return nil, err
		}
		if t.SellDate, err = domain.ParseDate(sell); err != nil {
			return nil, err
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest trade rows: %w", err)
	}
	return trades, nil
}

// ListRuns returns all runs, newest first.
func (j *Journal) ListRuns(ctx context.Context) ([]*domain.BacktestRun, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+runColumns+` FROM stock_backtest_results ORDER BY created_at DESC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}
	return runs, nil
}

// ---------------------------------------------------------------------------
// TrialStore implementation
// ---------------------------------------------------------------------------

// Insert appends one trial row.
func (j *Journal) Insert(ctx context.Context, t *domain.TrialRecord) error {
	if t == nil || t.TrialID == "" || t.SearchID == "" {
		return storage.ErrInvalidInput
	}
	params, err := json.Marshal(t.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `INSERT INTO optimizer_results (
			trial_id, search_id, trial_number, ts, params, start_date, end_date,
			starting_cash, ending_cash, trades, wins, win_rate, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TrialID, t.SearchID, t.TrialNumber, t.CreatedAt.UTC().Format(time.RFC3339Nano), string(params),
		domain.FormatDate(t.StartDate), domain.FormatDate(t.EndDate),
		t.StartingCash, t.EndingCash, t.Trades, t.Wins, t.WinRate, t.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert optimizer result: %w", err)
	}
	return nil
}

// GetBySearchID retrieves all rows of a search in insertion order.
func (j *Journal) GetBySearchID(ctx context.Context, searchID string) ([]*domain.TrialRecord, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT
			trial_id, search_id, trial_number, ts, params, start_date, end_date,
			starting_cash, ending_cash, trades, wins, win_rate, notes
		FROM optimizer_results WHERE search_id = ? ORDER BY id ASC`, searchID)
	if err != nil {
		return nil, fmt.Errorf("get optimizer results by search id: %w", err)
	}
	defer rows.Close()

	var trials []*domain.TrialRecord
	for rows.Next() {
		var t domain.TrialRecord
		var ts, params, start, end string
		err := rows.Scan(&t.TrialID, &t.SearchID, &t.TrialNumber, &ts, &params, &start, &end,
			&t.StartingCash, &t.EndingCash, &t.Trades, &t.Wins, &t.WinRate, &t.Notes)
		if err != nil {
			return nil, fmt.Errorf("scan optimizer result row: %w", err)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse ts: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &t.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
		if t.StartDate, err = domain.ParseDate(start); err != nil {
			return nil, err
		}
		if t.EndDate, err = domain.ParseDate(end); err != nil {
			return nil, err
		}
		trials = append(trials, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate optimizer result rows: %w", err)
	}
	return trials, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var created, start, end, params string

	err := row.Scan(&r.RunID, &created, &start, &end, &r.StartingCash, &r.EndingCash, &params,
		&r.Trades, &r.Wins, &r.WinRate, &r.TotalProfit, &r.AvgPctReturn, &r.Notes)
	if err != nil {
		return nil, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.StartDate, err = domain.ParseDate(start); err != nil {
		return nil, err
	}
	if r.EndDate, err = domain.ParseDate(end); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return &r, nil
}

// isConstraintError matches SQLite's UNIQUE/PRIMARY KEY violation message.
func isConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
