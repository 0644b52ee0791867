// Package orchestrator runs the nightly parameter search.
// It coordinates: lock → calendar → search → best trial → reports → notification
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"stock-backtest-lab/internal/calendar"
	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/notify"
	"stock-backtest-lab/internal/observability"
	"stock-backtest-lab/internal/reporting"
	"stock-backtest-lab/internal/runlock"
	"stock-backtest-lab/internal/search"
)

// Report file names written to the output directory.
const (
	ReportMarkdownFile = "optimizer_report.md"
	TrialsCSVFile      = "optimizer_trials.csv"
)

// DefaultTimeout bounds one nightly run.
const DefaultTimeout = time.Hour

// Searcher runs and finalizes a search. *search.Runner implements it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Outcome, error)
	SaveBest(ctx context.Context, best *domain.TrialRecord) error
}

// Notifier delivers the best trial. *notify.Mailer implements it.
type Notifier interface {
	SendBestTrial(ctx context.Context, t *domain.TrialRecord) error
}

// Nightly coordinates one scheduled tuning run.
type Nightly struct {
	dates    calendar.DateSource
	searcher Searcher
	reports  *reporting.Generator
	notifier Notifier
	logger   *zap.Logger

	lockFile     string
	outputDir    string
	timeout      time.Duration
	trials       int
	seed         int64
	startingCash float64
	ranges       domain.ParamRanges
	lookbackDays int

	mu   sync.RWMutex
	last *RunResult
}

// Options for creating Nightly.
type Options struct {
	// Required
	Dates    calendar.DateSource
	Searcher Searcher
	Reports  *reporting.Generator

	// Optional
	Notifier Notifier // nil disables email
	Logger   *zap.Logger

	LockFile     string // empty disables locking
	OutputDir    string // empty disables report files
	Timeout      time.Duration
	Trials       int
	Seed         int64
	StartingCash float64
	Ranges       domain.ParamRanges
	LookbackDays int
}

// New creates a nightly runner.
func New(opts Options) *Nightly {
	n := &Nightly{
		dates:        opts.Dates,
		searcher:     opts.Searcher,
		reports:      opts.Reports,
		notifier:     opts.Notifier,
		logger:       opts.Logger,
		lockFile:     opts.LockFile,
		outputDir:    opts.OutputDir,
		timeout:      opts.Timeout,
		trials:       opts.Trials,
		seed:         opts.Seed,
		startingCash: opts.StartingCash,
		ranges:       opts.Ranges,
		lookbackDays: opts.LookbackDays,
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.timeout <= 0 {
		n.timeout = DefaultTimeout
	}
	return n
}

// RunResult contains results from one nightly run.
type RunResult struct {
	StartedAt  time.Time
	Duration   time.Duration
	SearchID   string
	Trials     int
	Best       *domain.TrialRecord
	ReportPath string
	CSVPath    string
	Errors     []string
}

// Run executes the nightly flow.
// Phases:
//  1. Acquire the run lock (runlock.ErrLocked when held elsewhere)
//  2. Resolve the window from the trading calendar
//  3. Search and persist every trial
//  4. Persist the best trial labelled "best"
//  5. Write the markdown and CSV reports
//  6. Email the best trial
//
// Phases 4 to 6 record their failures in RunResult.Errors and do not stop the run.
// A search cut short by the timeout keeps its partial best: phases 4 to 6 still
// run on a detached context and Run returns the result with the search error.
func (n *Nightly) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{StartedAt: started.UTC()}

	if n.lockFile != "" {
		lock, err := runlock.Acquire(n.lockFile)
		if err != nil {
			if errors.Is(err, runlock.ErrLocked) {
				n.logger.Info("another instance is running; skipping")
				observability.RecordPipelineRun("lock", "skipped", 0)
			}
			return nil, err
		}
		defer lock.Release()
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	n.logger.Info("nightly tuner starting", zap.Int("trials", n.trials))

	// Phase 2: window
	cal, err := calendar.Load(ctx, n.dates, n.logger)
	if err != nil {
		return n.fail(result, "calendar", fmt.Errorf("phase calendar failed: %w", err))
	}
	window, err := cal.WindowWithDefaults(nil, nil, n.lookbackDays)
	if err != nil {
		return n.fail(result, "calendar", fmt.Errorf("phase calendar failed: %w", err))
	}

	// Phase 3: search
	phaseStart := time.Now()
	out, err := n.searcher.Search(ctx, search.Request{
		Window:       window,
		StartingCash: n.startingCash,
		Trials:       n.trials,
		Seed:         n.seed,
		Ranges:       n.ranges,
	})
	if out != nil {
		result.SearchID = out.SearchID
		result.Trials = len(out.Records)
		result.Best = out.Best
		if out.PersistFailures > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("search: %d trials not persisted", out.PersistFailures))
		}
		if out.Failed > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("search: %d trials failed", out.Failed))
		}
	}
	var searchErr error
	if err != nil {
		if out == nil || out.Best == nil {
			return n.fail(result, "search", fmt.Errorf("phase search failed: %w", err))
		}
		// Keep the partial best; later phases must not inherit the expired deadline.
		searchErr = fmt.Errorf("phase search interrupted: %w", err)
		result.Errors = append(result.Errors, searchErr.Error())
		observability.RecordPipelineRun("search", "partial", time.Since(phaseStart).Seconds())
		n.logger.Warn("search interrupted; keeping partial best",
			zap.Int("trials", len(out.Records)),
			zap.Error(err),
		)
		finishCtx, finishCancel := search.FinishContext(ctx)
		defer finishCancel()
		ctx = finishCtx
	} else {
		observability.RecordPipelineRun("search", "success", time.Since(phaseStart).Seconds())
	}

	// Phase 4: best
	if out.Best != nil {
		if err := n.searcher.SaveBest(ctx, out.Best); err != nil {
			n.logger.Error("failed to save best trial", zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
		}
	} else {
		n.logger.Warn("search produced no trials")
	}

	// Phase 5: reports
	if n.outputDir != "" && n.reports != nil {
		if err := n.writeReports(ctx, result); err != nil {
			n.logger.Error("failed to write reports", zap.Error(err))
			result.Errors = append(result.Errors, err.Error())
		}
	}

	// Phase 6: notification
	if n.notifier != nil && out.Best != nil {
		if err := n.notifier.SendBestTrial(ctx, out.Best); err != nil {
			if errors.Is(err, notify.ErrNotConfigured) {
				n.logger.Warn("email not configured; skipping notification")
			} else {
				n.logger.Error("failed to send notification", zap.Error(err))
				result.Errors = append(result.Errors, err.Error())
			}
		}
	}

	result.Duration = time.Since(started)
	status := "success"
	if searchErr != nil {
		status = "partial"
	}
	observability.RecordPipelineRun("nightly", status, result.Duration.Seconds())

	fields := []zap.Field{
		zap.String("search_id", result.SearchID),
		zap.Int("trials", result.Trials),
		zap.Duration("duration", result.Duration),
		zap.Int("errors", len(result.Errors)),
	}
	if result.Best != nil {
		fields = append(fields, zap.Stringer("best_params", result.Best.Params), zap.Float64("best_ending_cash", result.Best.EndingCash))
	}
	n.logger.Info("nightly tuner finished", fields...)

	n.setLast(result)
	return result, searchErr
}

func (n *Nightly) fail(result *RunResult, phase string, err error) (*RunResult, error) {
	result.Duration = time.Since(result.StartedAt)
	result.Errors = append(result.Errors, err.Error())
	observability.RecordPipelineRun(phase, "failure", result.Duration.Seconds())
	n.logger.Error("nightly tuner failed", zap.String("phase", phase), zap.Error(err))
	n.setLast(result)
	return result, err
}

func (n *Nightly) writeReports(ctx context.Context, result *RunResult) error {
	report, err := n.reports.SearchReport(ctx, result.SearchID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(n.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	mdPath := filepath.Join(n.outputDir, ReportMarkdownFile)
	if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", mdPath, err)
	}
	csvPath := filepath.Join(n.outputDir, TrialsCSVFile)
	if err := os.WriteFile(csvPath, []byte(reporting.RenderTrialsCSV(report.Ranked)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", csvPath, err)
	}
	result.ReportPath, result.CSVPath = mdPath, csvPath
	return nil
}

func (n *Nightly) setLast(r *RunResult) {
	n.mu.Lock()
	n.last = r
	n.mu.Unlock()
}

// Last returns the most recent run result, or nil before the first run.
func (n *Nightly) Last() *RunResult {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.last
}

// Loop runs immediately and then every interval until ctx is done. Run errors
// are logged; a held lock skips that tick.
func (n *Nightly) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := n.Run(ctx); err != nil && !errors.Is(err, runlock.ErrLocked) {
			n.logger.Error("scheduled run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
