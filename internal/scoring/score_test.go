package scoring

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage/memory"
)

func series(symbol string, start time.Time, closes ...float64) []*domain.DailyBar {
	bars := make([]*domain.DailyBar, len(closes))
	for i, c := range closes {
		bars[i] = &domain.DailyBar{
			Symbol: symbol,
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestScore_Empty(t *testing.T) {
	res := Score(nil, DefaultWeights())
	assert.Equal(t, 0.0, res.Score)
	assert.NotNil(t, res.Signals)
}

func TestScore_BoundsAndRounding(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/3)
	}
	for n := 1; n <= len(closes); n++ {
		res := Score(series("X", day0, closes[:n]...), DefaultWeights())
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 100.0)
		assert.InDelta(t, res.Score, math.Round(res.Score*100)/100, 1e-9)
		for name, v := range res.Signals {
			assert.False(t, math.IsNaN(v), "signal %s is NaN at n=%d", name, n)
		}
	}
}

func TestScore_UptrendBeatsDowntrend(t *testing.T) {
	up := make([]float64, 40)
	down := make([]float64, 40)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 140 - float64(i)
	}
	upRes := Score(series("U", day0, up...), DefaultWeights())
	downRes := Score(series("D", day0, down...), DefaultWeights())

	assert.Equal(t, 1.0, upRes.Signals[SignalEMA12AboveE26])
	assert.Equal(t, 0.0, downRes.Signals[SignalEMA12AboveE26])
	assert.Greater(t, upRes.Score, downRes.Score)
}

func TestScore_Deterministic(t *testing.T) {
	bars := series("X", day0, 10, 11, 10.5, 12, 13, 12.5, 14)
	a := Score(bars, DefaultWeights())
	b := Score(bars, DefaultWeights())
	assert.Equal(t, a, b)
}

func TestScore_ZeroWeights(t *testing.T) {
	res := Score(series("X", day0, 10, 11, 12), Weights{})
	assert.Equal(t, 0.0, res.Score)
}

func TestRanker_RankDate(t *testing.T) {
	ctx := context.Background()
	prices := memory.NewPriceHistoryStore()
	scores := memory.NewScoreStore()

	require.NoError(t, prices.InsertBulk(ctx, series("AAA", day0, 10, 11, 12, 13, 14)))
	require.NoError(t, prices.InsertBulk(ctx, series("BBB", day0, 14, 13, 12, 11, 10)))
	// CCC only has history after the scored date.
	require.NoError(t, prices.InsertBulk(ctx, series("CCC", day0.AddDate(0, 0, 10), 5, 6)))

	r := NewRanker(RankerOptions{Prices: prices, Scores: scores, Workers: 2, Logger: zaptest.NewLogger(t)})
	date := day0.AddDate(0, 0, 4)
	rows, err := r.RankDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAA", rows[0].Symbol)
	assert.Equal(t, "BBB", rows[1].Symbol)

	ranked, err := scores.GetRankedScores(ctx, date)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.GreaterOrEqual(t, ranked[0].Score, ranked[1].Score)
	assert.Contains(t, ranked[0].Indicators, SignalRSI)

	_, err = r.RankDate(ctx, date)
	assert.Error(t, err, "scores for a date are written once")
}

func TestRanker_RankRange(t *testing.T) {
	ctx := context.Background()
	prices := memory.NewPriceHistoryStore()
	scores := memory.NewScoreStore()
	require.NoError(t, prices.InsertBulk(ctx, series("AAA", day0, 10, 11, 12, 13, 14)))
	require.NoError(t, prices.InsertBulk(ctx, series("BBB", day0, 9, 9, 9, 9, 9)))

	r := NewRanker(RankerOptions{Prices: prices, Scores: scores})
	n, err := r.RankRange(ctx, day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	for i := 1; i <= 3; i++ {
		rows, err := scores.GetRankedScores(ctx, day0.AddDate(0, 0, i))
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	}
}
