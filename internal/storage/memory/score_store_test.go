package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

func TestScoreStore_GetRankedScores(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore()

	scores := []*domain.ScoreRow{
		{Date: day(2), Symbol: "A", Score: 10},
		{Date: day(2), Symbol: "B", Score: 30},
		{Date: day(2), Symbol: "C", Score: 30},
		{Date: day(2), Symbol: "D", Score: 20},
		{Date: day(3), Symbol: "A", Score: 99},
	}
	if err := store.InsertBulk(ctx, scores); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	ranked, err := store.GetRankedScores(ctx, day(2))
	if err != nil {
		t.Fatalf("GetRankedScores failed: %v", err)
	}

	want := []string{"B", "C", "D", "A"}
	if len(ranked) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(ranked))
	}
	for i, sym := range want {
		if ranked[i].Symbol != sym {
			t.Errorf("rank %d: expected %s, got %s", i, sym, ranked[i].Symbol)
		}
	}

	empty, err := store.GetRankedScores(ctx, day(9))
	if err != nil {
		t.Fatalf("GetRankedScores failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no rows for unscored date, got %d", len(empty))
	}
}

func TestScoreStore_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore()

	if err := store.InsertBulk(ctx, []*domain.ScoreRow{{Date: day(2), Symbol: "A", Score: 1}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	err := store.InsertBulk(ctx, []*domain.ScoreRow{{Date: day(2), Symbol: "A", Score: 2}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestScoreStore_RejectsNaNScore(t *testing.T) {
	ctx := context.Background()
	store := NewScoreStore()

	batch := []*domain.ScoreRow{
		{Date: day(2), Symbol: "A", Score: 5},
		{Date: day(2), Symbol: "B", Score: math.NaN()},
		{Date: day(2), Symbol: "C", Score: 7},
	}
	err := store.InsertBulk(ctx, batch)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	ranked, err := store.GetRankedScores(ctx, day(2))
	if err != nil {
		t.Fatalf("GetRankedScores failed: %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("expected the whole batch rejected, got %d rows", len(ranked))
	}

	inf := []*domain.ScoreRow{
		{Date: day(3), Symbol: "A", Score: math.Inf(-1)},
		{Date: day(3), Symbol: "B", Score: 1},
	}
	if err := store.InsertBulk(ctx, inf); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	ranked, err = store.GetRankedScores(ctx, day(3))
	if err != nil {
		t.Fatalf("GetRankedScores failed: %v", err)
	}
	if len(ranked) != 2 || ranked[0].Symbol != "B" {
		t.Errorf("expected B ranked above -Inf, got %v", ranked)
	}
}
