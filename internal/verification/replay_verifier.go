package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stock-backtest-lab/internal/calendar"
	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/simulation"
	"stock-backtest-lab/internal/storage"
)

// ErrRunNotFound is returned when the run ID doesn't exist.
var ErrRunNotFound = errors.New("backtest run not found")

// Simulator runs one simulation. *simulation.Engine implements it.
type Simulator interface {
	Simulate(ctx context.Context, window []time.Time, startingCash float64, params domain.StrategyParams) (*simulation.Result, error)
}

// ReplayVerifier re-simulates stored runs.
type ReplayVerifier struct {
	runs   storage.BacktestStore
	dates  calendar.DateSource
	sim    Simulator
	logger *zap.Logger
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	Runs      storage.BacktestStore
	Dates     calendar.DateSource
	Simulator Simulator
	Logger    *zap.Logger
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayVerifier{
		runs:   opts.Runs,
		dates:  opts.Dates,
		sim:    opts.Simulator,
		logger: logger,
	}
}

// VerifyRun reloads a stored run, replays it with the stored params, starting
// cash and window, and compares the ledgers.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	// 1. Load stored run and ledger
	run, err := v.runs.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	stored, err := v.runs.GetLedger(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	// 2. Replay simulation
	cal, err := calendar.Load(ctx, v.dates, v.logger)
	if err != nil {
		return nil, err
	}
	window, err := cal.Window(run.StartDate, run.EndDate)
	if err != nil {
		return nil, fmt.Errorf("resolve stored window: %w", err)
	}
	res, err := v.sim.Simulate(ctx, window, run.StartingCash, run.Params)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	// 3. Compare results
	report := &VerificationReport{
		RunID:            runID,
		StoredTrades:     len(stored),
		ReplayedTrades:   len(res.Ledger),
		StoredEndingCash: run.EndingCash,
		ReplayEndingCash: res.EndingCash,
		EndingCashMatch:  floatEquals(run.EndingCash, res.EndingCash),
	}
	for _, r := range CompareLedgers(stored, res.Ledger) {
		if r.Match {
			report.MatchedTrades++
			continue
		}
		report.DivergentTrades++
		report.Results = append(report.Results, r)
	}

	v.logger.Info("verified run",
		zap.String("run_id", runID),
		zap.Int("stored_trades", report.StoredTrades),
		zap.Int("replayed_trades", report.ReplayedTrades),
		zap.Int("divergent", report.DivergentTrades),
		zap.Bool("ending_cash_match", report.EndingCashMatch),
	)
	return report, nil
}
