package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backtest-lab/internal/reporting"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestBacktestCommand_Fixtures(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "trades.csv")

	out, err := execute(t, "backtest", "--use-fixtures", "--out", csvPath, "--top-k", "2", "--hold-days", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "trades:")
	assert.Contains(t, out, "ending_cash:")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, reporting.LedgerCSVHeader, lines[0])
	assert.Greater(t, len(lines), 1)
}

func TestBacktestCommand_BadRangeWritesNothing(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "trades.csv")

	_, err := execute(t, "backtest", "--use-fixtures", "--out", csvPath, "--start", "1990-01-01", "--end", "1990-02-01")
	require.Error(t, err)

	_, statErr := os.Stat(csvPath)
	assert.True(t, os.IsNotExist(statErr), "no ledger on a failed range")
}

func TestBacktestCommand_ZeroCashRejected(t *testing.T) {
	_, err := execute(t, "backtest", "--use-fixtures", "--cash", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting_cash")
}

func TestBacktestCommand_MalformedDate(t *testing.T) {
	_, err := execute(t, "backtest", "--use-memory", "--start", "01/02/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--start")
}

func TestOptimizeCommand_Fixtures(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "optimize", "--use-fixtures", "--trials", "4", "--workers", "2", "--report-dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "4 trials")
	assert.Contains(t, out, "ending_cash")

	md, err := os.ReadFile(filepath.Join(dir, "optimizer_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Optimizer Report")
}

func TestCheckCommand_Fixtures(t *testing.T) {
	out, err := execute(t, "check", "--use-fixtures", "--max-stale-days", "100000")
	require.NoError(t, err)
	assert.Contains(t, out, "[PASS] Trading days")
}

func TestVerifyCommand_UnknownRun(t *testing.T) {
	_, err := execute(t, "verify", "--use-memory", "--run-id", "missing")
	assert.Error(t, err)
}

func TestImportCommand_RequiresInput(t *testing.T) {
	_, err := execute(t, "import", "--use-memory")
	assert.Error(t, err)
}
