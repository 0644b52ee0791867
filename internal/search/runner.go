// Package search runs seeded random parameter search over the simulation engine.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/idhash"
	"stock-backtest-lab/internal/observability"
	"stock-backtest-lab/internal/simulation"
	"stock-backtest-lab/internal/storage"
)

// ErrNoTrials is returned by SaveBest when there is no best trial to save.
var ErrNoTrials = errors.New("search produced no trials")

// Simulator runs one simulation. *simulation.Engine implements it.
type Simulator interface {
	Simulate(ctx context.Context, window []time.Time, startingCash float64, params domain.StrategyParams) (*simulation.Result, error)
}

// Runner executes random searches.
type Runner struct {
	sim     Simulator
	trials  storage.TrialStore
	logger  *zap.Logger
	workers int
	clock   func() time.Time
}

// Options contains configuration for creating a Runner.
type Options struct {
	Simulator Simulator
	Trials    storage.TrialStore
	Logger    *zap.Logger
	Workers   int              // concurrent trials, default 1
	Clock     func() time.Time // timestamps trial records, default time.Now
}

// NewRunner creates a search runner.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		sim:     opts.Simulator,
		trials:  opts.Trials,
		logger:  opts.Logger,
		workers: opts.Workers,
		clock:   opts.Clock,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.workers < 1 {
		r.workers = 1
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	return r
}

// Request describes one search.
type Request struct {
	Window       []time.Time // resolved trading dates
	StartingCash float64
	Trials       int
	Seed         int64
	Ranges       domain.ParamRanges
	SearchID     string // generated when empty
}

// Outcome is the result of a search.
type Outcome struct {
	SearchID string
	Best     *domain.TrialRecord // nil when no trial completed

	// Records holds completed trials in trial order; failed trials are absent.
	Records []*domain.TrialRecord

	Failed          int // simulations that returned an error
	PersistFailures int // trial rows that could not be written
}

// Search samples req.Trials parameter sets from one seeded source, simulates
// each and persists every completed trial. Trials run on up to Workers
// goroutines; best is chosen in trial order, so the result does not depend on
// scheduling. A failed insert is logged and counted, never fatal. When ctx is
// cancelled the partial outcome is returned together with ctx.Err().
func (r *Runner) Search(ctx context.Context, req Request) (*Outcome, error) {
	if err := req.Ranges.Validate(); err != nil {
		return nil, err
	}
	if req.Trials < 0 {
		return nil, fmt.Errorf("%w: trials must be >= 0, got %d", domain.ErrInvalidParams, req.Trials)
	}

	searchID := req.SearchID
	if searchID == "" {
		searchID = uuid.NewString()
	}
	var startDate, endDate time.Time
	if n := len(req.Window); n > 0 {
		startDate, endDate = req.Window[0], req.Window[n-1]
	}

	sampler := NewSampler(req.Seed, req.Ranges)
	sampled := make([]domain.StrategyParams, req.Trials)
	for i := range sampled {
		sampled[i] = sampler.Next()
	}

	started := time.Now()
	slots := make([]*domain.TrialRecord, req.Trials)
	var (
		mu              sync.Mutex
		failed          int
		persistFailures int
	)

	var g errgroup.Group
	g.SetLimit(r.workers)

	for i, params := range sampled {
		if ctx.Err() != nil {
			break
		}
		trialNumber := i + 1
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			res, err := r.sim.Simulate(ctx, req.Window, req.StartingCash, params)
			if err != nil {
				r.logger.Error("trial simulation failed",
					zap.String("search_id", searchID),
					zap.Int("trial", trialNumber),
					zap.Stringer("params", params),
					zap.Error(err),
				)
				observability.RecordTrial("failed")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			rec := &domain.TrialRecord{
				TrialID:      idhash.ComputeTrialID(searchID, trialNumber),
				SearchID:     searchID,
				TrialNumber:  trialNumber,
				Params:       params,
				StartDate:    startDate,
				EndDate:      endDate,
				StartingCash: req.StartingCash,
				EndingCash:   res.EndingCash,
				Trades:       len(res.Ledger),
				Wins:         res.Wins(),
				WinRate:      res.WinRate(),
				CreatedAt:    r.clock().UTC(),
				Notes:        domain.TrialNotes(trialNumber),
			}
			slots[i] = rec

			r.logger.Info("trial complete",
				zap.Int("trial", trialNumber),
				zap.Stringer("params", params),
				zap.Float64("ending_cash", rec.EndingCash),
				zap.Int("trades", rec.Trades),
				zap.Float64("win_rate", rec.WinRate),
			)
			observability.RecordTrial("ok")

			if err := r.persist(ctx, rec); err != nil {
				observability.RecordTrialPersistenceError()
				mu.Lock()
				persistFailures++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := &Outcome{
		SearchID:        searchID,
		Records:         make([]*domain.TrialRecord, 0, len(slots)),
		Failed:          failed,
		PersistFailures: persistFailures,
	}
	for _, rec := range slots {
		if rec == nil {
			continue
		}
		out.Records = append(out.Records, rec)
		if rec.Beats(out.Best) {
			out.Best = rec
		}
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	if out.Best != nil {
		observability.RecordSearch(out.Best.EndingCash, time.Since(started))
		r.logger.Info("search complete",
			zap.String("search_id", searchID),
			zap.Int("trials", len(out.Records)),
			zap.Int("best_trial", out.Best.TrialNumber),
			zap.Stringer("best_params", out.Best.Params),
			zap.Float64("best_ending_cash", out.Best.EndingCash),
		)
	}
	return out, nil
}

// SaveBest writes the best trial a second time labelled "best". The row shares
// its trial_id with the per-trial row. Without a trial store it is a no-op.
func (r *Runner) SaveBest(ctx context.Context, best *domain.TrialRecord) error {
	if best == nil {
		return ErrNoTrials
	}
	if r.trials == nil {
		return nil
	}
	rec := *best
	rec.Notes = domain.TrialNotesBest
	rec.CreatedAt = r.clock().UTC()
	if err := r.trials.Insert(ctx, &rec); err != nil {
		return fmt.Errorf("save best trial: %w", err)
	}
	return nil
}

func (r *Runner) persist(ctx context.Context, rec *domain.TrialRecord) error {
	if r.trials == nil {
		return nil
	}
	if err := r.trials.Insert(ctx, rec); err != nil {
		r.logger.Error("failed to persist trial",
			zap.String("search_id", rec.SearchID),
			zap.Int("trial", rec.TrialNumber),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// FinishTimeout bounds the writes that follow a search.
const FinishTimeout = 30 * time.Second

// FinishContext returns a context for persisting a search outcome. It keeps
// the values of ctx but drops its deadline and cancellation, so a search cut
// short by its timeout can still save the partial best and its reports.
func FinishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), FinishTimeout)
}
