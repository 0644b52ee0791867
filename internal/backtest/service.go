// Package backtest runs a single parameterized simulation over a resolved
// window and persists its ledger.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stock-backtest-lab/internal/calendar"
	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/metrics"
	"stock-backtest-lab/internal/simulation"
	"stock-backtest-lab/internal/storage"
)

// DefaultStartingCash is the starting cash the CLI offers when none is given.
const DefaultStartingCash = 1000.0

// Simulator runs one simulation. *simulation.Engine implements it.
type Simulator interface {
	Simulate(ctx context.Context, window []time.Time, startingCash float64, params domain.StrategyParams) (*simulation.Result, error)
}

// Service executes backtests.
type Service struct {
	dates        calendar.DateSource
	sim          Simulator
	runs         storage.BacktestStore
	logger       *zap.Logger
	lookbackDays int
	clock        func() time.Time
}

// Options contains configuration for creating a Service.
type Options struct {
	Dates        calendar.DateSource // usually the price history store
	Simulator    Simulator
	Runs         storage.BacktestStore // nil disables persistence
	Logger       *zap.Logger
	LookbackDays int // default calendar.DefaultLookbackDays
	Clock        func() time.Time
}

// NewService creates a backtest service.
func NewService(opts Options) *Service {
	s := &Service{
		dates:        opts.Dates,
		sim:          opts.Simulator,
		runs:         opts.Runs,
		logger:       opts.Logger,
		lookbackDays: opts.LookbackDays,
		clock:        opts.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.lookbackDays <= 0 {
		s.lookbackDays = calendar.DefaultLookbackDays
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Request describes one backtest. Nil dates take the calendar defaults.
type Request struct {
	Start        *time.Time
	End          *time.Time
	StartingCash float64
	Params       domain.StrategyParams
	Notes        string
}

// Report is the outcome of a backtest.
type Report struct {
	Run     *domain.BacktestRun
	Ledger  []*domain.TradeRecord
	Summary *domain.BacktestSummary
	Window  []time.Time
	Unsold  []domain.Position
	Skips   map[simulation.SkipReason]int
}

// Run resolves the window, simulates, summarizes and persists. A window that
// cannot be resolved fails with calendar.ErrInvalidDateRange before anything
// is simulated. StartingCash must be positive; there is no implicit default.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	cal, err := calendar.Load(ctx, s.dates, s.logger)
	if err != nil {
		return nil, err
	}
	window, err := cal.WindowWithDefaults(req.Start, req.End, s.lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("resolve backtest window: %w", err)
	}

	cash := req.StartingCash
	if !(cash > 0) || math.IsInf(cash, 1) {
		return nil, fmt.Errorf("%w: starting_cash must be > 0, got %v", domain.ErrInvalidParams, cash)
	}

	s.logger.Info("running backtest",
		zap.String("start", domain.FormatDate(window[0])),
		zap.String("end", domain.FormatDate(window[len(window)-1])),
		zap.Int("trading_days", len(window)),
		zap.Float64("starting_cash", cash),
		zap.Stringer("params", req.Params),
	)

	res, err := s.sim.Simulate(ctx, window, cash, req.Params)
	if err != nil {
		return nil, fmt.Errorf("simulate: %w", err)
	}

	summary := metrics.Summarize(res.Ledger, res.StartingCash, res.EndingCash)

	notes := req.Notes
	if notes == "" {
		notes = domain.BacktestNotesDefault
	}
	run := &domain.BacktestRun{
		RunID:        uuid.NewString(),
		CreatedAt:    s.clock().UTC(),
		StartDate:    window[0],
		EndDate:      window[len(window)-1],
		StartingCash: summary.StartingCash,
		EndingCash:   summary.EndingCash,
		Params:       req.Params,
		Trades:       summary.Trades,
		Wins:         summary.Wins,
		WinRate:      summary.WinRate,
		TotalProfit:  summary.TotalProfit,
		AvgPctReturn: summary.AvgPctReturn,
		Notes:        notes,
	}

	if s.runs != nil {
		if err := s.runs.Save(ctx, run, res.Ledger); err != nil {
			s.logger.Error("failed to persist backtest", zap.String("run_id", run.RunID), zap.Error(err))
			return nil, fmt.Errorf("persist backtest %s: %w", run.RunID, err)
		}
	}

	if len(res.Unsold) > 0 {
		s.logger.Warn("positions left unsold", zap.Int("count", len(res.Unsold)))
	}
	s.logger.Info("backtest complete",
		zap.String("run_id", run.RunID),
		zap.Int("trades", summary.Trades),
		zap.Float64("ending_cash", summary.EndingCash),
		zap.Float64("win_rate", summary.WinRate),
	)

	return &Report{
		Run:     run,
		Ledger:  res.Ledger,
		Summary: summary,
		Window:  window,
		Unsold:  res.Unsold,
		Skips:   res.Skips,
	}, nil
}
