package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stock-backtest-lab/internal/backtest"
	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/notify"
	"stock-backtest-lab/internal/reporting"
	"stock-backtest-lab/internal/simulation"
)

func newBacktestCmd(a *app) *cobra.Command {
	var (
		start, end string
		cash       float64
		topK       int
		holdDays   int
		fraction   float64
		minPct     float64
		minScore   float64
		out        string
		email      bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one backtest and write its trade ledger",
		Long: `Run one backtest over [start, end] and write the trade ledger as CSV.

Dates default to the latest trading date and the configured lookback before it.
The summary is printed to stdout and the run is persisted with its ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			bc := a.cfg.Backtest

			params := bc.Params()
			flags := cmd.Flags()
			if flags.Changed("top-k") {
				params.TopK = topK
			}
			if flags.Changed("hold-days") {
				params.HoldDays = holdDays
			}
			if flags.Changed("fraction") {
				params.PositionFraction = fraction
			}
			if flags.Changed("min-pct") {
				params.MinScorePercentile = minPct
			}
			if flags.Changed("min-score") {
				params.MinScore = &minScore
			}
			if err := params.Validate(); err != nil {
				return err
			}
			if !flags.Changed("cash") {
				cash = bc.StartingCash
			}
			if !flags.Changed("out") {
				out = bc.OutputCSV
			}

			startDate, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			endDate, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}

			st, err := a.openStores(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := backtest.NewService(backtest.Options{
				Dates: st.prices,
				Simulator: simulation.NewEngine(simulation.EngineOptions{
					Scores: st.scores,
					Prices: st.prices,
					Logger: a.logger,
				}),
				Runs:         st.runs,
				Logger:       a.logger,
				LookbackDays: bc.LookbackDays,
			})
			report, err := svc.Run(ctx, backtest.Request{
				Start:        startDate,
				End:          endDate,
				StartingCash: cash,
				Params:       params,
			})
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, []byte(reporting.RenderLedgerCSV(report.Ledger)), 0o644); err != nil {
				return fmt.Errorf("write ledger: %w", err)
			}
			a.logger.Info("ledger written", zap.String("path", out), zap.Int("trades", len(report.Ledger)))

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Backtest %s (%s to %s, %d trading days)\n",
				report.Run.RunID,
				domain.FormatDate(report.Run.StartDate),
				domain.FormatDate(report.Run.EndDate),
				len(report.Window),
			)
			fmt.Fprint(w, reporting.RenderSummaryText(report.Summary))
			if len(report.Unsold) > 0 {
				fmt.Fprintf(w, "unsold_positions: %d\n", len(report.Unsold))
			}

			if email {
				mailer := notify.NewMailer(a.notifyConfig(), a.logger)
				if err := mailer.SendBacktestSummary(ctx, report.Summary); err != nil {
					a.logger.Warn("email not sent", zap.Error(err))
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&start, "start", "", "start date YYYY-MM-DD (default: end minus lookback)")
	f.StringVar(&end, "end", "", "end date YYYY-MM-DD (default: latest trading date)")
	f.Float64Var(&cash, "cash", backtest.DefaultStartingCash, "starting cash")
	f.IntVar(&topK, "top-k", 1, "picks per day")
	f.IntVar(&holdDays, "hold-days", 5, "trading days to hold each position")
	f.Float64Var(&fraction, "fraction", 1.0, "fraction of cash deployed per day")
	f.Float64Var(&minPct, "min-pct", 0, "minimum score percentile in [0, 1)")
	f.Float64Var(&minScore, "min-score", 0, "absolute minimum score")
	f.StringVar(&out, "out", "backtest_trades.csv", "ledger CSV path")
	f.BoolVar(&email, "email", false, "email the summary when SMTP is configured")
	return cmd
}

// parseDateFlag returns nil for an empty value.
func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}

func (a *app) notifyConfig() notify.Config {
	n := a.cfg.Notify
	return notify.Config{
		Host:     n.Host,
		Port:     n.Port,
		User:     n.User,
		Password: n.Password,
		TLS:      n.TLS,
		SSL:      n.SSL,
		From:     n.From,
		To:       n.To,
	}
}
