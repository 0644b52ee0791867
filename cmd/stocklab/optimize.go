package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stock-backtest-lab/internal/calendar"
	"stock-backtest-lab/internal/orchestrator"
	"stock-backtest-lab/internal/reporting"
	"stock-backtest-lab/internal/search"
	"stock-backtest-lab/internal/simulation"
	"stock-backtest-lab/internal/storage"
)

func newOptimizeCmd(a *app) *cobra.Command {
	var (
		trials     int
		seed       int64
		workers    int
		start, end string
		cash       float64
		reportDir  string
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Random search over strategy parameters",
		Long: `Sample strategy parameters, backtest each sample over the same window and
keep the one with the highest ending cash. Every trial is persisted, then the
winner is persisted again labelled "best".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := a.cfg.Search
			flags := cmd.Flags()
			if !flags.Changed("trials") {
				trials = sc.Trials
			}
			if !flags.Changed("seed") {
				seed = sc.Seed
			}
			if !flags.Changed("workers") {
				workers = sc.Workers
			}
			if !flags.Changed("cash") {
				cash = sc.StartingCash
			}

			startDate, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			endDate, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if sc.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
				defer cancel()
			}

			st, err := a.openStores(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			cal, err := calendar.Load(ctx, st.prices, a.logger)
			if err != nil {
				return err
			}
			window, err := cal.WindowWithDefaults(startDate, endDate, a.cfg.Backtest.LookbackDays)
			if err != nil {
				return fmt.Errorf("resolve search window: %w", err)
			}

			runner := search.NewRunner(search.Options{
				Simulator: simulation.NewEngine(simulation.EngineOptions{
					Scores: st.scores,
					Prices: st.prices,
					Logger: a.logger,
				}),
				Trials:  st.trials,
				Logger:  a.logger,
				Workers: workers,
			})
			req := search.Request{
				Window:       window,
				StartingCash: cash,
				Trials:       trials,
				Seed:         seed,
				Ranges:       sc.Ranges,
			}
			return runSearch(ctx, cmd.OutOrStdout(), runner, st.trials, req, reportDir, a.logger)
		},
	}

	f := cmd.Flags()
	f.IntVar(&trials, "trials", 50, "number of sampled parameter sets")
	f.Int64Var(&seed, "seed", 42, "sampler seed")
	f.IntVar(&workers, "workers", 4, "concurrent trials")
	f.StringVar(&start, "start", "", "start date YYYY-MM-DD")
	f.StringVar(&end, "end", "", "end date YYYY-MM-DD")
	f.Float64Var(&cash, "cash", 1000, "starting cash per trial")
	f.StringVar(&reportDir, "report-dir", "", "write the markdown report and trials CSV to this directory")
	return cmd
}

// runSearch runs the search, saves the best trial and writes the optional
// report. A search interrupted by its deadline keeps its partial best: the
// follow-up writes use search.FinishContext and the search error is returned
// after them.
func runSearch(ctx context.Context, w io.Writer, runner *search.Runner, trials storage.TrialStore, req search.Request, reportDir string, logger *zap.Logger) error {
	out, searchErr := runner.Search(ctx, req)
	if searchErr != nil {
		if out == nil || out.Best == nil {
			return searchErr
		}
		logger.Warn("search interrupted; keeping partial best", zap.Error(searchErr))
	}
	if out.Best == nil {
		return search.ErrNoTrials
	}

	finishCtx, cancel := search.FinishContext(ctx)
	defer cancel()

	if err := runner.SaveBest(finishCtx, out.Best); err != nil {
		logger.Error("failed to save best trial", zap.Error(err))
	}

	fmt.Fprintf(w, "Search %s: %d trials (%d failed, %d not persisted)\n",
		out.SearchID, len(out.Records), out.Failed, out.PersistFailures)
	fmt.Fprint(w, reporting.RenderTrialText(out.Best))

	if reportDir != "" {
		if err := writeSearchReport(finishCtx, reporting.NewGenerator(trials), out.SearchID, reportDir); err != nil {
			return err
		}
		logger.Info("search report written", zap.String("dir", reportDir))
	}
	return searchErr
}

func writeSearchReport(ctx context.Context, gen *reporting.Generator, searchID, dir string) error {
	report, err := gen.SearchReport(ctx, searchID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	md := filepath.Join(dir, orchestrator.ReportMarkdownFile)
	if err := os.WriteFile(md, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", md, err)
	}
	csvPath := filepath.Join(dir, orchestrator.TrialsCSVFile)
	if err := os.WriteFile(csvPath, []byte(reporting.RenderTrialsCSV(report.Ranked)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", csvPath, err)
	}
	return nil
}
