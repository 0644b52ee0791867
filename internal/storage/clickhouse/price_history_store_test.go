package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

func TestPriceHistoryStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceHistoryStore(conn)

	bars := []*domain.DailyBar{
		{Symbol: "AAPL", Date: day(1, 3), Open: 11, Close: 11.2, Volume: 500},
		{Symbol: "AAPL", Date: day(1, 2), Open: 10, Close: 10.4, Volume: 400},
		{Symbol: "MSFT", Date: day(1, 2), Open: 20},
	}
	require.NoError(t, store.InsertBulk(ctx, bars))

	open, err := store.GetOpeningPrice(ctx, "AAPL", day(1, 3))
	require.NoError(t, err)
	assert.InDelta(t, 11.0, open, 1e-9)

	_, err = store.GetOpeningPrice(ctx, "MSFT", day(1, 3))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	history, err := store.GetBySymbol(ctx, "AAPL", day(1, 1), day(1, 31))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Date.Equal(day(1, 2)))
	assert.Equal(t, int64(500), history[1].Volume)

	dates, err := store.GetTradingDates(ctx)
	require.NoError(t, err)
	assert.Len(t, dates, 2)

	symbols, err := store.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestPriceHistoryStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPriceHistoryStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.DailyBar{{Symbol: "AAPL", Date: day(1, 2), Open: 10}}))

	err := store.InsertBulk(ctx, []*domain.DailyBar{{Symbol: "AAPL", Date: day(1, 2), Open: 12}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.DailyBar{
		{Symbol: "IBM", Date: day(1, 2), Open: 1},
		{Symbol: "IBM", Date: day(1, 2), Open: 2},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
