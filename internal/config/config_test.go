package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backtest-lab/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1000.0, cfg.Backtest.StartingCash)
	assert.Equal(t, 365, cfg.Backtest.LookbackDays)
	assert.Equal(t, "backtest_trades.csv", cfg.Backtest.OutputCSV)
	assert.Equal(t, domain.DefaultBacktestParams(), cfg.Backtest.Params())
	assert.Equal(t, 50, cfg.Search.Trials)
	assert.Equal(t, time.Hour, cfg.Search.Timeout)
	assert.Equal(t, 1.5, cfg.Scoring.Weights.MACD)
	assert.True(t, cfg.Notify.TLS)
}

func TestLoad_FileOverDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "config.yaml", `
storage:
  backend: postgres
  prices: clickhouse
  postgres_dsn: postgres://u:p@localhost/db
  clickhouse_dsn: clickhouse://localhost:9000/default
search:
  trials: 10
  timeout: 30m
  ranges:
    top_k: {min: 2, max: 3}
    hold_days: {min: 1, max: 4}
    position_fraction: {min: 0.5, max: 0.9}
    min_score_pct: {min: 0.1, max: 0.2}
backtest:
  min_score: 55.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, BackendClickhouse, cfg.Storage.Prices)
	assert.Equal(t, 10, cfg.Search.Trials)
	assert.Equal(t, 30*time.Minute, cfg.Search.Timeout)
	assert.Equal(t, domain.IntRange{Min: 2, Max: 3}, cfg.Search.Ranges.TopK)
	assert.Equal(t, 4, cfg.Search.Workers, "unset fields keep defaults")
	require.NotNil(t, cfg.Backtest.MinScore)
	assert.Equal(t, 55.5, *cfg.Backtest.MinScore)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("POSTGRES_DSN", "postgres://env")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_SSL", "true")
	t.Setenv("SMTP_TLS", "false")
	t.Setenv("SMTP_TO", "a@example.com, b@example.com,")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Storage.PostgresDSN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "smtp.example.com", cfg.Notify.Host)
	assert.Equal(t, 465, cfg.Notify.Port)
	assert.True(t, cfg.Notify.SSL)
	assert.False(t, cfg.Notify.TLS)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notify.To)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PARQUET_DIR=/srv/bars\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PARQUET_DIR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/bars", cfg.Storage.ParquetDir)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "search: [unclosed"))
	assert.ErrorContains(t, err, "parse config")

	t.Setenv("SMTP_PORT", "not-a-port")
	_, err = Load("")
	assert.ErrorContains(t, err, "SMTP_PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mysql" }, `unknown storage.backend "mysql"`},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = BackendPostgres }, "postgres_dsn is required"},
		{"clickhouse without dsn", func(c *Config) { c.Storage.Prices = BackendClickhouse }, "clickhouse_dsn is required"},
		{"unknown journal", func(c *Config) { c.Storage.Journal = "redis" }, "unknown storage.journal"},
		{"negative trials", func(c *Config) { c.Search.Trials = -1 }, "search.trials"},
		{"zero workers", func(c *Config) { c.Search.Workers = 0 }, "search.workers"},
		{"bad range", func(c *Config) { c.Search.Ranges.TopK = domain.IntRange{Min: 3, Max: 1} }, "search.ranges"},
		{"bad backtest params", func(c *Config) { c.Backtest.PositionFraction = 2 }, "backtest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
