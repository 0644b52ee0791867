package main

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stock-backtest-lab/internal/config"
	"stock-backtest-lab/internal/logging"
)

// app holds state shared by every subcommand.
type app struct {
	configPath  string
	logLevel    string
	useMemory   bool
	useFixtures bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "stocklab",
		Short: "Backtest and tune a daily top-k stock ranking strategy",
		Long: `stocklab replays precomputed daily scores against opening prices.

Each trading day it buys the top-ranked symbols at the next open and sells them
hold_days later. Commands cover single backtests, random parameter search,
heuristic scoring, CSV import, schema migration, replay verification and a
scheduled nightly tuner.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to YAML config (default: built-in defaults)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVar(&a.useMemory, "use-memory", false, "use in-memory stores regardless of config")
	pf.BoolVar(&a.useFixtures, "use-fixtures", false, "seed in-memory stores with synthetic data (implies --use-memory)")

	root.AddCommand(
		newBacktestCmd(a),
		newOptimizeCmd(a),
		newScoreCmd(a),
		newImportCmd(a),
		newMigrateCmd(a),
		newVerifyCmd(a),
		newCheckCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(a.logLevel)
	}
	if a.useFixtures {
		a.useMemory = true
	}
	if a.useMemory {
		cfg.Storage.Backend = config.BackendMemory
		cfg.Storage.Prices = config.BackendMemory
		cfg.Storage.Journal = ""
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}
