package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// BacktestStore implements storage.BacktestStore using the
// stock_backtest_results and backtest_trades tables.
type BacktestStore struct {
	pool *Pool
}

// NewBacktestStore creates a new BacktestStore.
func NewBacktestStore(pool *Pool) *BacktestStore {
	return &BacktestStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestStore = (*BacktestStore)(nil)

const backtestRunColumns = `
	run_id, created_at, start_date, end_date, starting_cash, ending_cash, params,
	trades, wins, win_rate, total_profit, avg_pct_return, notes
`

// Save writes the run and its ledger in one transaction. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestStore) Save(ctx context.Context, run *domain.BacktestRun, ledger []*domain.TradeRecord) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_backtest_results (`+backtestRunColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		run.RunID, run.CreatedAt, run.StartDate, run.EndDate, run.StartingCash, run.EndingCash, params,
		run.Trades, run.Wins, run.WinRate, run.TotalProfit, run.AvgPctReturn, run.Notes,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}

	tradeQuery := `
		INSERT INTO backtest_trades (
			run_id, seq, trade_id, signal_date, buy_date, sell_date, symbol,
			buy_price, sell_price, shares, cost, proceeds, profit, pct_return, cash_after
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	for i, t := range ledger {
		_, err := tx.Exec(ctx, tradeQuery,
			run.RunID, i, t.TradeID, t.SignalDate, t.BuyDate, t.SellDate, t.Symbol,
			t.BuyPrice, t.SellPrice, t.Shares, t.Cost, t.Proceeds, t.Profit, t.PctReturn, t.CashAfter,
		)
		if err != nil {
			return fmt.Errorf("insert backtest trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetRun retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestStore) GetRun(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM stock_backtest_results WHERE run_id = $1`

	run, err := scanBacktestRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run: %w", err)
	}
	return run, nil
}

// GetLedger retrieves the trades of a run in ledger order.
func (s *BacktestStore) GetLedger(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT
			trade_id, signal_date, buy_date, sell_date, symbol,
			buy_price, sell_price, shares, cost, proceeds, profit, pct_return, cash_after
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get backtest ledger: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.TradeRecord, 0)
	for rows.Next() {
		var t domain.TradeRecord
		err := rows.Scan(
			&t.TradeID, &t.SignalDate, &t.BuyDate, &t.SellDate, &t.Symbol,
			&t.BuyPrice, &t.SellPrice, &t.Shares, &t.Cost, &t.Proceeds, &t.Profit, &t.PctReturn, &t.CashAfter,
		)
		if err != nil {
			return nil, fmt.Errorf("scan backtest trade row: %w", err)
		}
		t.SignalDate = domain.NormalizeDate(t.SignalDate)
		t.BuyDate = domain.NormalizeDate(t.BuyDate)
		t.SellDate = domain.NormalizeDate(t.SellDate)
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest trade rows: %w", err)
	}

	return trades, nil
}

// ListRuns returns all runs, newest first.
func (s *BacktestStore) ListRuns(ctx context.Context) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM stock_backtest_results ORDER BY created_at DESC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		run, err := scanBacktestRun(rows)
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

// scanBacktestRun scans a single row into a BacktestRun.
func scanBacktestRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	var params []byte

	err := row.Scan(
		&r.RunID, &r.CreatedAt, &r.StartDate, &r.EndDate, &r.StartingCash, &r.EndingCash, &params,
		&r.Trades, &r.Wins, &r.WinRate, &r.TotalProfit, &r.AvgPctReturn, &r.Notes,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	r.StartDate = domain.NormalizeDate(r.StartDate)
	r.EndDate = domain.NormalizeDate(r.EndDate)

	return &r, nil
}
