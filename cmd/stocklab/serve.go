package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stock-backtest-lab/internal/notify"
	"stock-backtest-lab/internal/observability"
	"stock-backtest-lab/internal/orchestrator"
	"stock-backtest-lab/internal/reporting"
	"stock-backtest-lab/internal/search"
	"stock-backtest-lab/internal/simulation"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the nightly tuner on a schedule",
		Long: `Run the random search every interval over the trailing lookback window,
persist the best trial, write reports and email the winner. Serves /metrics,
/health and /status on the configured address. A lock file keeps concurrent
instances from overlapping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Server.Interval
			}

			st, err := a.openStores(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			sc := a.cfg.Search
			runner := search.NewRunner(search.Options{
				Simulator: simulation.NewEngine(simulation.EngineOptions{
					Scores: st.scores,
					Prices: st.prices,
					Logger: a.logger,
				}),
				Trials:  st.trials,
				Logger:  a.logger,
				Workers: sc.Workers,
			})

			opts := orchestrator.Options{
				Dates:        st.prices,
				Searcher:     runner,
				Reports:      reporting.NewGenerator(st.trials),
				Logger:       a.logger,
				LockFile:     a.cfg.Server.LockFile,
				OutputDir:    a.cfg.Server.OutputDir,
				Timeout:      sc.Timeout,
				Trials:       sc.Trials,
				Seed:         sc.Seed,
				StartingCash: sc.StartingCash,
				Ranges:       sc.Ranges,
				LookbackDays: a.cfg.Backtest.LookbackDays,
			}
			if mailer := notify.NewMailer(a.notifyConfig(), a.logger); mailer.Configured() {
				opts.Notifier = mailer
			}
			nightly := orchestrator.New(opts)

			if once {
				_, err := nightly.Run(ctx)
				return err
			}

			srv := &http.Server{
				Addr:              a.cfg.Server.MetricsAddr,
				Handler:           newServeMux(nightly, st, time.Now()),
				ReadHeaderTimeout: 10 * time.Second,
			}
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				a.logger.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("http server error", zap.Error(err))
				}
			}()
			go func() {
				defer wg.Done()
				trackUptime(ctx, time.Minute)
			}()

			nightly.Loop(ctx, interval)

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("http shutdown", zap.Error(err))
			}
			wg.Wait()
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 24*time.Hour, "time between runs")
	cmd.Flags().BoolVar(&once, "once", false, "run a single nightly pass and exit")
	return cmd
}

// statusResponse is the JSON body of /status.
type statusResponse struct {
	Status    string        `json:"status"`
	Uptime    string        `json:"uptime"`
	StartedAt time.Time     `json:"started_at"`
	LastRun   *lastRunState `json:"last_run,omitempty"`
}

type lastRunState struct {
	StartedAt      time.Time `json:"started_at"`
	Duration       string    `json:"duration"`
	SearchID       string    `json:"search_id"`
	Trials         int       `json:"trials"`
	BestParams     string    `json:"best_params,omitempty"`
	BestEndingCash float64   `json:"best_ending_cash,omitempty"`
	BestTrades     int       `json:"best_trades,omitempty"`
	ReportPath     string    `json:"report_path,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
}

func newServeMux(nightly *orchestrator.Nightly, st *stores, started time.Time) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if st.pool != nil {
			if err := st.pool.Healthy(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{
			Status:    "running",
			Uptime:    time.Since(started).Round(time.Second).String(),
			StartedAt: started.UTC(),
		}
		if last := nightly.Last(); last != nil {
			resp.LastRun = toLastRunState(last)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	return mux
}

func toLastRunState(r *orchestrator.RunResult) *lastRunState {
	s := &lastRunState{
		StartedAt:  r.StartedAt,
		Duration:   r.Duration.Round(time.Millisecond).String(),
		SearchID:   r.SearchID,
		Trials:     r.Trials,
		ReportPath: r.ReportPath,
		Errors:     r.Errors,
	}
	if best := r.Best; best != nil {
		s.BestParams = best.Params.String()
		s.BestEndingCash = best.EndingCash
		s.BestTrades = best.Trades
	}
	return s
}

func trackUptime(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			observability.AddUptime(time.Since(last))
			return
		case now := <-ticker.C:
			observability.AddUptime(now.Sub(last))
			last = now
		}
	}
}

var _ orchestrator.Notifier = (*notify.Mailer)(nil)
