package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stock-backtest-lab/internal/datacheck"
	"stock-backtest-lab/internal/domain"
)

func newCheckCmd(a *app) *cobra.Command {
	var th datacheck.Thresholds

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report price history coverage and sufficiency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStores(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := datacheck.NewChecker(st.prices, st.scores, th, a.logger).Check(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			h := res.History
			if h.TradingDays > 0 {
				fmt.Fprintf(w, "History: %s to %s, %d trading days, %d symbols, %d bars\n",
					domain.FormatDate(h.Earliest), domain.FormatDate(h.Latest), h.TradingDays, h.Symbols, h.Bars)
			} else {
				fmt.Fprintln(w, "History: empty")
			}
			for _, c := range res.Checks {
				status := "PASS"
				if !c.Pass {
					status = "FAIL"
				}
				fmt.Fprintf(w, "[%s] %s: %s (want %s)\n", status, c.Name, c.Actual, c.Threshold)
			}
			for _, e := range res.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
			if !res.AllPass {
				return errors.New("data check failed")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&th.MinTradingDays, "min-days", 60, "minimum trading days")
	f.IntVar(&th.MaxStaleDays, "max-stale-days", 7, "maximum calendar days since the latest bar")
	f.IntVar(&th.MinSymbols, "min-symbols", 1, "minimum symbols with history")
	f.IntVar(&th.ScoreWindowDays, "score-window", 20, "trailing trading days checked for scores")
	f.Float64Var(&th.MinScoreCoverage, "score-coverage", 0.9, "minimum fraction of the window with scores")
	return cmd
}
