// Package config loads the YAML configuration, .env file and environment
// overrides for stocklab.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/scoring"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Logging  Logging        `yaml:"logging"`
	Backtest BacktestConfig `yaml:"backtest"`
	Search   SearchConfig   `yaml:"search"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Server   Server         `yaml:"server"`
	Notify   Notify         `yaml:"notify"`
}

// Storage selects backends and holds their connection settings.
type Storage struct {
	Backend       string `yaml:"backend"` // memory | postgres
	Prices        string `yaml:"prices"`  // memory | postgres | clickhouse | parquet
	Journal       string `yaml:"journal"` // "" | sqlite
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
	ParquetDir    string `yaml:"parquet_dir"`
	Migrate       bool   `yaml:"migrate"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// BacktestConfig holds the backtest entry point defaults.
type BacktestConfig struct {
	StartingCash       float64  `yaml:"starting_cash"`
	LookbackDays       int      `yaml:"lookback_days"`
	OutputCSV          string   `yaml:"output_csv"`
	TopK               int      `yaml:"top_k"`
	HoldDays           int      `yaml:"hold_days"`
	PositionFraction   float64  `yaml:"position_fraction"`
	MinScorePercentile float64  `yaml:"min_score_percentile"`
	MinScore           *float64 `yaml:"min_score"`
}

// Params returns the configured strategy parameters.
func (b BacktestConfig) Params() domain.StrategyParams {
	return domain.StrategyParams{
		TopK:               b.TopK,
		HoldDays:           b.HoldDays,
		PositionFraction:   b.PositionFraction,
		MinScorePercentile: b.MinScorePercentile,
		MinScore:           b.MinScore,
	}
}

// SearchConfig holds the random search defaults.
type SearchConfig struct {
	Trials       int                `yaml:"trials"`
	Seed         int64              `yaml:"seed"`
	Workers      int                `yaml:"workers"`
	StartingCash float64            `yaml:"starting_cash"`
	Timeout      time.Duration      `yaml:"timeout"`
	Ranges       domain.ParamRanges `yaml:"ranges"`
}

// ScoringConfig controls the heuristic ranker.
type ScoringConfig struct {
	LookbackDays int             `yaml:"lookback_days"`
	Workers      int             `yaml:"workers"`
	Weights      scoring.Weights `yaml:"weights"`
}

// Server configures the scheduled tuner.
type Server struct {
	MetricsAddr string        `yaml:"metrics_addr"`
	Interval    time.Duration `yaml:"interval"`
	LockFile    string        `yaml:"lock_file"`
	OutputDir   string        `yaml:"output_dir"`
}

// Notify holds SMTP settings. An empty Host or To disables email.
type Notify struct {
	Host     string   `yaml:"smtp_host"`
	Port     int      `yaml:"smtp_port"`
	User     string   `yaml:"smtp_user"`
	Password string   `yaml:"smtp_pass"`
	TLS      bool     `yaml:"smtp_tls"`
	SSL      bool     `yaml:"smtp_ssl"`
	From     string   `yaml:"smtp_from"`
	To       []string `yaml:"smtp_to"`
}

// Backend names.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
	BackendParquet    = "parquet"
	BackendSQLite     = "sqlite"
)

// Default returns the built-in configuration.
func Default() *Config {
	params := domain.DefaultBacktestParams()
	return &Config{
		Storage: Storage{
			Backend:    BackendMemory,
			Prices:     BackendMemory,
			SQLitePath: "stocklab.db",
			ParquetDir: "data",
		},
		Logging: Logging{Level: "info", Format: "console"},
		Backtest: BacktestConfig{
			StartingCash:       1000,
			LookbackDays:       365,
			OutputCSV:          "backtest_trades.csv",
			TopK:               params.TopK,
			HoldDays:           params.HoldDays,
			PositionFraction:   params.PositionFraction,
			MinScorePercentile: params.MinScorePercentile,
		},
		Search: SearchConfig{
			Trials:       50,
			Seed:         42,
			Workers:      4,
			StartingCash: 1000,
			Timeout:      time.Hour,
			Ranges:       domain.DefaultParamRanges(),
		},
		Scoring: ScoringConfig{
			LookbackDays: scoring.DefaultLookbackDays,
			Workers:      8,
			Weights:      scoring.DefaultWeights(),
		},
		Server: Server{
			MetricsAddr: ":9090",
			Interval:    24 * time.Hour,
			LockFile:    "run/nightly_tuner.lock",
			OutputDir:   "output",
		},
		Notify: Notify{Port: 587, TLS: true},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads .env (if present), then the YAML file at path over Default(),
// then applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("PARQUET_DIR"); v != "" {
		cfg.Storage.ParquetDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Notify.Host = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		cfg.Notify.Port = port
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Notify.User = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		cfg.Notify.Password = v
	}
	if v := os.Getenv("SMTP_TLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SMTP_TLS: %w", err)
		}
		cfg.Notify.TLS = b
	}
	if v := os.Getenv("SMTP_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SMTP_SSL: %w", err)
		}
		cfg.Notify.SSL = b
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Notify.From = v
	}
	if v := os.Getenv("SMTP_TO"); v != "" {
		cfg.Notify.To = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks backend names, required connection settings and search bounds.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	switch c.Storage.Prices {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for postgres prices"))
		}
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			errs = append(errs, errors.New("storage.clickhouse_dsn is required for clickhouse prices"))
		}
	case BackendParquet:
		if c.Storage.ParquetDir == "" {
			errs = append(errs, errors.New("storage.parquet_dir is required for parquet prices"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.prices %q", c.Storage.Prices))
	}

	switch c.Storage.Journal {
	case "":
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite journal"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.journal %q", c.Storage.Journal))
	}

	if err := c.Search.Ranges.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("search.ranges: %w", err))
	}
	if c.Search.Trials < 0 {
		errs = append(errs, fmt.Errorf("search.trials must be >= 0, got %d", c.Search.Trials))
	}
	if c.Search.Workers < 1 {
		errs = append(errs, fmt.Errorf("search.workers must be >= 1, got %d", c.Search.Workers))
	}
	if c.Scoring.Workers < 1 {
		errs = append(errs, fmt.Errorf("scoring.workers must be >= 1, got %d", c.Scoring.Workers))
	}
	if err := c.Backtest.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backtest: %w", err))
	}

	return errors.Join(errs...)
}
