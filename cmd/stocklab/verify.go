package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stock-backtest-lab/internal/simulation"
	"stock-backtest-lab/internal/verification"
)

var errVerifyMismatch = errors.New("replay diverges from stored ledger")

func newVerifyCmd(a *app) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay a stored backtest and compare ledgers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStores(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			v := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
				Runs:  st.runs,
				Dates: st.prices,
				Simulator: simulation.NewEngine(simulation.EngineOptions{
					Scores: st.scores,
					Prices: st.prices,
					Logger: a.logger,
				}),
				Logger: a.logger,
			})
			rep, err := v.VerifyRun(ctx, runID)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run %s: %d stored, %d replayed, %d matched, %d divergent\n",
				rep.RunID, rep.StoredTrades, rep.ReplayedTrades, rep.MatchedTrades, rep.DivergentTrades)
			fmt.Fprintf(w, "ending cash: stored %.2f replayed %.2f\n", rep.StoredEndingCash, rep.ReplayEndingCash)
			for _, r := range rep.Results {
				for _, d := range r.Divergences {
					fmt.Fprintf(w, "  #%d %s %s: stored %v replayed %v\n", r.Seq, r.TradeID, d.Field, d.Expected, d.Actual)
				}
			}
			if !rep.Match() {
				return errVerifyMismatch
			}
			fmt.Fprintln(w, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "backtest run id")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}
