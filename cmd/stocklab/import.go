package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stock-backtest-lab/internal/importer"
)

func newImportCmd(a *app) *cobra.Command {
	var pricesPath, scoresPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load price and score CSV files",
		Long: `Load CSV files into the configured stores.

Prices: date,symbol,open,high,low,close,adj_close,volume
Scores: date,symbol,score

Rows with a malformed date or number are dropped and counted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pricesPath == "" && scoresPath == "" {
				return errors.New("nothing to import: pass --prices and/or --scores")
			}
			ctx := cmd.Context()
			st, err := a.openStores(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			im := importer.New(st.prices, st.scores, a.logger)
			w := cmd.OutOrStdout()
			if pricesPath != "" {
				stats, err := im.ImportPricesFile(ctx, pricesPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "prices: %d imported, %d bad dates, %d bad numbers\n", stats.Imported, stats.BadDates, stats.BadNumbers)
			}
			if scoresPath != "" {
				stats, err := im.ImportScoresFile(ctx, scoresPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "scores: %d imported, %d bad dates, %d bad numbers\n", stats.Imported, stats.BadDates, stats.BadNumbers)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pricesPath, "prices", "", "price CSV path")
	cmd.Flags().StringVar(&scoresPath, "scores", "", "score CSV path")
	return cmd
}
