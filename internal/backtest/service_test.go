package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stock-backtest-lab/internal/calendar"
	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/simulation"
	"stock-backtest-lab/internal/storage/memory"
)

type env struct {
	days   []time.Time
	prices *memory.PriceHistoryStore
	scores *memory.ScoreStore
	runs   *memory.BacktestStore
}

// newEnv seeds n consecutive days from 2024-01-01 with symbol X at a flat open of 10,
// and a rising open of 12 on the sixth day.
func newEnv(t *testing.T, n int) *env {
	t.Helper()
	e := &env{
		prices: memory.NewPriceHistoryStore(),
		scores: memory.NewScoreStore(),
		runs:   memory.NewBacktestStore(),
	}
	ctx := context.Background()
	for i := 0; i < n; i++ {
		d := time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		e.days = append(e.days, d)
		open := 10.0
		if i == 6 {
			open = 12
		}
		require.NoError(t, e.prices.InsertBulk(ctx, []*domain.DailyBar{{Symbol: "X", Date: d, Open: open}}))
	}
	require.NoError(t, e.scores.InsertBulk(ctx, []*domain.ScoreRow{{Date: e.days[0], Symbol: "X", Score: 50}}))
	return e
}

func (e *env) service(t *testing.T) *Service {
	engine := simulation.NewEngine(simulation.EngineOptions{Scores: e.scores, Prices: e.prices, Logger: zaptest.NewLogger(t)})
	return NewService(Options{
		Dates:     e.prices,
		Simulator: engine,
		Runs:      e.runs,
		Logger:    zaptest.NewLogger(t),
		Clock:     func() time.Time { return time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC) },
	})
}

func TestRun_DefaultsAndPersists(t *testing.T) {
	e := newEnv(t, 10)
	ctx := context.Background()

	rep, err := e.service(t).Run(ctx, Request{StartingCash: DefaultStartingCash, Params: domain.DefaultBacktestParams()})
	require.NoError(t, err)

	assert.Equal(t, e.days, rep.Window)
	require.Len(t, rep.Ledger, 1)
	assert.InDelta(t, 1200.0, rep.Summary.EndingCash, 1e-9)
	assert.Equal(t, 1, rep.Summary.Wins)
	assert.Equal(t, DefaultStartingCash, rep.Run.StartingCash)
	assert.Equal(t, domain.BacktestNotesDefault, rep.Run.Notes)
	assert.Len(t, rep.Run.RunID, 36)

	stored, err := e.runs.GetRun(ctx, rep.Run.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Run.EndingCash, stored.EndingCash)
	assert.True(t, stored.StartDate.Equal(e.days[0]))
	assert.True(t, stored.EndDate.Equal(e.days[9]))

	ledger, err := e.runs.GetLedger(ctx, rep.Run.RunID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, rep.Ledger[0].TradeID, ledger[0].TradeID)
}

func TestRun_ExplicitRangeAndNotes(t *testing.T) {
	e := newEnv(t, 10)
	start, end := e.days[2], e.days[8]

	rep, err := e.service(t).Run(context.Background(), Request{
		Start:        &start,
		End:          &end,
		StartingCash: 500,
		Params:       domain.DefaultBacktestParams(),
		Notes:        "manual",
	})
	require.NoError(t, err)
	assert.Len(t, rep.Window, 7)
	assert.Empty(t, rep.Ledger, "the only signal is before the window")
	assert.Equal(t, 500.0, rep.Summary.EndingCash)
	assert.Equal(t, "manual", rep.Run.Notes)
}

func TestRun_UnresolvableRange(t *testing.T) {
	e := newEnv(t, 10)
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := e.service(t).Run(context.Background(), Request{Start: &start, Params: domain.DefaultBacktestParams()})
	assert.ErrorIs(t, err, calendar.ErrInvalidDateRange)

	runs, err := e.runs.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRun_InvalidParams(t *testing.T) {
	e := newEnv(t, 10)
	_, err := e.service(t).Run(context.Background(), Request{StartingCash: DefaultStartingCash, Params: domain.StrategyParams{TopK: 0, PositionFraction: 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestRun_RejectsNonPositiveCash(t *testing.T) {
	e := newEnv(t, 10)
	for _, cash := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := e.service(t).Run(context.Background(), Request{StartingCash: cash, Params: domain.DefaultBacktestParams()})
		assert.ErrorIs(t, err, domain.ErrInvalidParams, "cash %v", cash)
	}

	runs, err := e.runs.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs, "nothing persisted for rejected cash")
}

type failingRuns struct{ *memory.BacktestStore }

func (failingRuns) Save(context.Context, *domain.BacktestRun, []*domain.TradeRecord) error {
	return errors.New("disk full")
}

func TestRun_PersistenceFailure(t *testing.T) {
	e := newEnv(t, 10)
	engine := simulation.NewEngine(simulation.EngineOptions{Scores: e.scores, Prices: e.prices})
	svc := NewService(Options{Dates: e.prices, Simulator: engine, Runs: failingRuns{e.runs}})

	_, err := svc.Run(context.Background(), Request{StartingCash: DefaultStartingCash, Params: domain.DefaultBacktestParams()})
	assert.ErrorContains(t, err, "disk full")
}

type brokenDates struct{}

func (brokenDates) GetTradingDates(context.Context) ([]time.Time, error) {
	return nil, errors.New("connection refused")
}

func TestRun_CalendarSourceFailure(t *testing.T) {
	svc := NewService(Options{Dates: brokenDates{}})
	_, err := svc.Run(context.Background(), Request{StartingCash: DefaultStartingCash, Params: domain.DefaultBacktestParams()})
	assert.ErrorContains(t, err, "load trading dates")
}
