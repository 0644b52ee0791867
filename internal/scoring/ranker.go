package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stock-backtest-lab/internal/calendar"
	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/observability"
	"stock-backtest-lab/internal/storage"
)

// DefaultLookbackDays is the calendar-day history window scored per symbol.
const DefaultLookbackDays = 90

// Ranker scores every known symbol for a date and stores the scores.
type Ranker struct {
	prices       storage.PriceHistoryStore
	scores       storage.ScoreStore
	weights      Weights
	lookbackDays int
	workers      int
	logger       *zap.Logger
}

// RankerOptions contains configuration for creating a Ranker.
type RankerOptions struct {
	Prices       storage.PriceHistoryStore
	Scores       storage.ScoreStore
	Weights      *Weights // nil uses DefaultWeights
	LookbackDays int
	Workers      int
	Logger       *zap.Logger
}

// NewRanker creates a ranker.
func NewRanker(opts RankerOptions) *Ranker {
	r := &Ranker{
		prices:       opts.Prices,
		scores:       opts.Scores,
		weights:      DefaultWeights(),
		lookbackDays: opts.LookbackDays,
		workers:      opts.Workers,
		logger:       opts.Logger,
	}
	if opts.Weights != nil {
		r.weights = *opts.Weights
	}
	if r.lookbackDays <= 0 {
		r.lookbackDays = DefaultLookbackDays
	}
	if r.workers < 1 {
		r.workers = 8
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// RankDate scores every symbol on bars up to and including date and writes
// the rows to the score store. Symbols without history in the lookback
// window are skipped. Returns the rows written, sorted by symbol.
func (r *Ranker) RankDate(ctx context.Context, date time.Time) ([]*domain.ScoreRow, error) {
	date = domain.NormalizeDate(date)
	symbols, err := r.prices.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	from := date.AddDate(0, 0, -r.lookbackDays)
	started := time.Now()

	var (
		mu   sync.Mutex
		rows = make([]*domain.ScoreRow, 0, len(symbols))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, sym := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bars, err := r.prices.GetBySymbol(gctx, sym, from, date)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				r.logger.Warn("failed to load history", zap.String("symbol", sym), zap.Error(err))
				observability.RecordScoringError()
				return nil
			}
			if len(bars) == 0 {
				return nil
			}

			res := Score(bars, r.weights)
			mu.Lock()
			rows = append(rows, &domain.ScoreRow{
				Date:       date,
				Symbol:     sym,
				Score:      res.Score,
				Indicators: res.Signals,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	if len(rows) > 0 {
		if err := r.scores.InsertBulk(ctx, rows); err != nil {
			return nil, fmt.Errorf("store scores for %s: %w", domain.FormatDate(date), err)
		}
	}
	observability.RecordScored(len(rows))

	r.logger.Info("scored date",
		zap.String("date", domain.FormatDate(date)),
		zap.Int("symbols", len(symbols)),
		zap.Int("scored", len(rows)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return rows, nil
}

// RankRange runs RankDate for every trading date in [from, to]. Returns the
// number of rows written.
func (r *Ranker) RankRange(ctx context.Context, from, to time.Time) (int, error) {
	cal, err := calendar.Load(ctx, r.prices, r.logger)
	if err != nil {
		return 0, err
	}
	window, err := cal.Window(from, to)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, d := range window {
		rows, err := r.RankDate(ctx, d)
		if err != nil {
			return total, err
		}
		total += len(rows)
	}
	return total, nil
}
