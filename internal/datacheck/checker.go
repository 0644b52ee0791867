// Package datacheck reports whether stored history is sufficient for a backtest.
package datacheck

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// Check is one sufficiency criterion.
type Check struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// History summarizes the price_history table.
type History struct {
	Earliest    time.Time
	Latest      time.Time
	TradingDays int
	Symbols     int
	Bars        int
}

// Result holds the history summary and every check.
type Result struct {
	History History
	Checks  []Check
	AllPass bool
	Errors  []string // data integrity problems, one per offending bar
}

// Thresholds configures the checks. Zero values fall back to defaults.
type Thresholds struct {
	MinTradingDays   int     // default 60
	MaxStaleDays     int     // calendar days since the latest bar, default 7
	MinSymbols       int     // default 1
	ScoreWindowDays  int     // trailing trading days checked for scores, default 20
	MinScoreCoverage float64 // fraction of the window with scores, default 0.9
}

func (t Thresholds) withDefaults() Thresholds {
	if t.MinTradingDays <= 0 {
		t.MinTradingDays = 60
	}
	if t.MaxStaleDays <= 0 {
		t.MaxStaleDays = 7
	}
	if t.MinSymbols <= 0 {
		t.MinSymbols = 1
	}
	if t.ScoreWindowDays <= 0 {
		t.ScoreWindowDays = 20
	}
	if t.MinScoreCoverage <= 0 {
		t.MinScoreCoverage = 0.9
	}
	return t
}

// Checker validates stored history.
type Checker struct {
	prices     storage.PriceHistoryStore
	scores     storage.ScoreStore
	thresholds Thresholds
	logger     *zap.Logger
	now        func() time.Time
}

// NewChecker creates a checker. scores may be nil to skip the coverage check.
func NewChecker(prices storage.PriceHistoryStore, scores storage.ScoreStore, th Thresholds, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		prices:     prices,
		scores:     scores,
		thresholds: th.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the clock used by the staleness check.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Check runs every criterion. Store errors abort; failed criteria do not.
func (c *Checker) Check(ctx context.Context) (*Result, error) {
	dates, err := c.prices.GetTradingDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("get trading dates: %w", err)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	symbols, err := c.prices.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	res := &Result{AllPass: true, Errors: []string{}}
	res.History.TradingDays = len(dates)
	res.History.Symbols = len(symbols)
	if len(dates) > 0 {
		res.History.Earliest = dates[0]
		res.History.Latest = dates[len(dates)-1]

		for _, sym := range symbols {
			bars, err := c.prices.GetBySymbol(ctx, sym, res.History.Earliest, res.History.Latest)
			if err != nil {
				return nil, fmt.Errorf("get bars for %s: %w", sym, err)
			}
			res.History.Bars += len(bars)
			for _, b := range bars {
				if b.Open <= 0 || math.IsNaN(b.Open) {
					res.Errors = append(res.Errors, fmt.Sprintf("%s %s: invalid open %v", sym, domain.FormatDate(b.Date), b.Open))
				}
			}
		}
	}

	th := c.thresholds
	res.add(Check{
		Name:      "Trading days",
		Threshold: fmt.Sprintf(">= %d", th.MinTradingDays),
		Actual:    fmt.Sprintf("%d", len(dates)),
		Pass:      len(dates) >= th.MinTradingDays,
	})
	res.add(c.checkFreshness(res.History))
	res.add(Check{
		Name:      "Symbols",
		Threshold: fmt.Sprintf(">= %d", th.MinSymbols),
		Actual:    fmt.Sprintf("%d", len(symbols)),
		Pass:      len(symbols) >= th.MinSymbols,
	})
	res.add(Check{
		Name:      "Invalid opening prices",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", len(res.Errors)),
		Pass:      len(res.Errors) == 0,
	})

	if c.scores != nil {
		check, err := c.checkScoreCoverage(ctx, dates)
		if err != nil {
			return nil, err
		}
		res.add(check)
	}

	c.logger.Info("data check complete",
		zap.Int("trading_days", res.History.TradingDays),
		zap.Int("symbols", res.History.Symbols),
		zap.Int("bars", res.History.Bars),
		zap.Bool("all_pass", res.AllPass),
	)
	return res, nil
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Pass {
		r.AllPass = false
	}
}

func (c *Checker) checkFreshness(h History) Check {
	check := Check{
		Name:      "Days since latest bar",
		Threshold: fmt.Sprintf("<= %d", c.thresholds.MaxStaleDays),
		Actual:    "no data",
	}
	if h.TradingDays == 0 {
		return check
	}
	age := int(domain.NormalizeDate(c.now()).Sub(h.Latest).Hours() / 24)
	check.Actual = fmt.Sprintf("%d (latest %s)", age, domain.FormatDate(h.Latest))
	check.Pass = age <= c.thresholds.MaxStaleDays
	return check
}

func (c *Checker) checkScoreCoverage(ctx context.Context, dates []time.Time) (Check, error) {
	window := dates
	if len(window) > c.thresholds.ScoreWindowDays {
		window = window[len(window)-c.thresholds.ScoreWindowDays:]
	}
	check := Check{
		Name:      fmt.Sprintf("Score coverage (last %d trading days)", c.thresholds.ScoreWindowDays),
		Threshold: fmt.Sprintf(">= %.0f%%", c.thresholds.MinScoreCoverage*100),
		Actual:    "no data",
	}
	if len(window) == 0 {
		return check, nil
	}

	scored := 0
	for _, d := range window {
		rows, err := c.scores.GetRankedScores(ctx, d)
		if err != nil {
			return Check{}, fmt.Errorf("get scores for %s: %w", domain.FormatDate(d), err)
		}
		if len(rows) > 0 {
			scored++
		}
	}
	coverage := float64(scored) / float64(len(window))
	check.Actual = fmt.Sprintf("%.0f%% (%d/%d)", coverage*100, scored, len(window))
	check.Pass = coverage >= c.thresholds.MinScoreCoverage
	return check, nil
}
