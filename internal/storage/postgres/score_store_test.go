package postgres

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

func TestScoreStore_RankedWithTies(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewScoreStore(pool)

	scores := []*domain.ScoreRow{
		{Date: date(2, 1), Symbol: "LOW", Score: 10},
		{Date: date(2, 1), Symbol: "TIE1", Score: 50, Indicators: map[string]float64{"rsi": 55.5}},
		{Date: date(2, 1), Symbol: "TIE2", Score: 50},
		{Date: date(2, 2), Symbol: "OTHER", Score: 99},
	}
	require.NoError(t, store.InsertBulk(ctx, scores))

	ranked, err := store.GetRankedScores(ctx, date(2, 1))
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "TIE1", ranked[0].Symbol)
	assert.Equal(t, "TIE2", ranked[1].Symbol)
	assert.Equal(t, "LOW", ranked[2].Symbol)
	assert.InDelta(t, 55.5, ranked[0].Indicators["rsi"], 1e-9)
	assert.Nil(t, ranked[1].Indicators)

	empty, err := store.GetRankedScores(ctx, date(3, 1))
	require.NoError(t, err)
	assert.Empty(t, empty)

	err = store.InsertBulk(ctx, []*domain.ScoreRow{{Date: date(2, 1), Symbol: "LOW", Score: 1}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestScoreStore_NaNRejectedBeforeQuery(t *testing.T) {
	store := NewScoreStore(nil)
	err := store.InsertBulk(context.Background(), []*domain.ScoreRow{{Date: date(2, 1), Symbol: "A", Score: math.NaN()}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
