package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stock-backtest-lab/internal/calendar"
	"stock-backtest-lab/internal/scoring"
)

func newScoreCmd(a *app) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute heuristic indicator scores into daily_scores",
		Long: `Score every symbol on each trading date in [from, to] from its trailing
price history and append the rows to the score store. Both dates default to
the latest trading date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fromDate, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}
			toDate, err := parseDateFlag("to", to)
			if err != nil {
				return err
			}

			st, err := a.openStores(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			if fromDate == nil || toDate == nil {
				cal, err := calendar.Load(ctx, st.prices, a.logger)
				if err != nil {
					return err
				}
				last, ok := cal.Last()
				if !ok {
					return fmt.Errorf("%w: no price history", calendar.ErrInvalidDateRange)
				}
				if toDate == nil {
					toDate = &last
				}
				if fromDate == nil {
					fromDate = toDate
				}
			}

			sc := a.cfg.Scoring
			ranker := scoring.NewRanker(scoring.RankerOptions{
				Prices:       st.prices,
				Scores:       st.scores,
				Weights:      &sc.Weights,
				LookbackDays: sc.LookbackDays,
				Workers:      sc.Workers,
				Logger:       a.logger,
			})
			n, err := ranker.RankRange(ctx, *fromDate, *toDate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scored %d rows\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date YYYY-MM-DD")
	return cmd
}
