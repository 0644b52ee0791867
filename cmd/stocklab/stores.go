package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stock-backtest-lab/internal/config"
	"stock-backtest-lab/internal/fixtures"
	"stock-backtest-lab/internal/storage"
	chstore "stock-backtest-lab/internal/storage/clickhouse"
	"stock-backtest-lab/internal/storage/memory"
	"stock-backtest-lab/internal/storage/migrations"
	pqstore "stock-backtest-lab/internal/storage/parquet"
	pgstore "stock-backtest-lab/internal/storage/postgres"
	"stock-backtest-lab/internal/storage/sqlite"
)

// stores bundles every store a command may need.
type stores struct {
	prices storage.PriceHistoryStore
	scores storage.ScoreStore
	runs   storage.BacktestStore
	trials storage.TrialStore

	pool    *pgstore.Pool // nil unless a postgres store is in use
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores builds the configured backends. With migrate set, embedded
// schemas are applied to every SQL backend before use.
func (a *app) openStores(ctx context.Context, migrate bool) (*stores, error) {
	cfg := a.cfg.Storage
	s := &stores{}
	migrate = migrate || cfg.Migrate

	if cfg.Backend == config.BackendMemory {
		s.scores = memory.NewScoreStore()
		s.runs = memory.NewBacktestStore()
		s.trials = memory.NewTrialStore()
	}

	if cfg.Backend == config.BackendPostgres || cfg.Prices == config.BackendPostgres {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, int32(a.cfg.Search.Workers+4))
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.closers = append(s.closers, pool.Close)
		if migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				s.Close()
				return nil, err
			}
		}
		if cfg.Backend == config.BackendPostgres {
			s.scores = pgstore.NewScoreStore(pool)
			s.runs = pgstore.NewBacktestStore(pool)
			s.trials = pgstore.NewTrialStore(pool)
		}
	}

	switch cfg.Prices {
	case config.BackendMemory:
		s.prices = memory.NewPriceHistoryStore()
	case config.BackendPostgres:
		s.prices = pgstore.NewPriceHistoryStore(s.pool)
	case config.BackendClickhouse:
		var (
			conn *chstore.Conn
			err  error
		)
		if migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.prices = chstore.NewPriceHistoryStore(conn)
	case config.BackendParquet:
		s.prices = pqstore.NewPriceHistoryStore(cfg.ParquetDir)
	}

	if cfg.Journal == config.BackendSQLite {
		j, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = j.Close() })
		s.runs = j
		s.trials = j
	}

	if a.useFixtures {
		u := fixtures.Generate(fixtures.Options{Seed: a.cfg.Search.Seed})
		if err := u.Load(ctx, s.prices, s.scores); err != nil {
			s.Close()
			return nil, fmt.Errorf("seed fixtures: %w", err)
		}
		a.logger.Info("seeded fixture universe",
			zap.Int("bars", len(u.Bars)),
			zap.Int("scores", len(u.Scores)),
		)
	}

	a.logger.Debug("stores opened",
		zap.String("backend", cfg.Backend),
		zap.String("prices", cfg.Prices),
		zap.String("journal", cfg.Journal),
	)
	return s, nil
}
