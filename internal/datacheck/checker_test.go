package datacheck

import (
	"context"
	"strings"
	"testing"
	"time"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/fixtures"
	"stock-backtest-lab/internal/storage/memory"
)

func TestChecker_AllPass(t *testing.T) {
	ctx := context.Background()
	prices := memory.NewPriceHistoryStore()
	scores := memory.NewScoreStore()
	u := fixtures.Generate(fixtures.Options{Symbols: []string{"AAA", "BBB"}, Days: 80, Seed: 1})
	if err := u.Load(ctx, prices, scores); err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	latest := u.Days[len(u.Days)-1]

	res, err := NewChecker(prices, scores, Thresholds{}, nil).
		WithClock(func() time.Time { return latest.Add(36 * time.Hour) }).
		Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if !res.AllPass {
		for _, c := range res.Checks {
			t.Logf("%s: threshold %s actual %s pass %v", c.Name, c.Threshold, c.Actual, c.Pass)
		}
		t.Fatal("expected all checks to pass")
	}
	if len(res.Checks) != 5 {
		t.Errorf("expected 5 checks, got %d", len(res.Checks))
	}
	if res.History.TradingDays != 80 || res.History.Symbols != 2 || res.History.Bars != 160 {
		t.Errorf("unexpected history summary: %+v", res.History)
	}
	if !res.History.Earliest.Equal(u.Days[0]) || !res.History.Latest.Equal(latest) {
		t.Errorf("unexpected range %v..%v", res.History.Earliest, res.History.Latest)
	}
}

func TestChecker_Failures(t *testing.T) {
	ctx := context.Background()
	prices := memory.NewPriceHistoryStore()
	scores := memory.NewScoreStore()
	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := []*domain.DailyBar{
		{Symbol: "AAA", Date: d1, Open: 10},
		{Symbol: "AAA", Date: d2, Open: 0},
	}
	if err := prices.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("insert bars: %v", err)
	}

	res, err := NewChecker(prices, scores, Thresholds{}, nil).
		WithClock(func() time.Time { return d2.AddDate(0, 1, 0) }).
		Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	if res.AllPass {
		t.Fatal("expected failures")
	}
	failed := map[string]bool{}
	for _, c := range res.Checks {
		if !c.Pass {
			failed[c.Name] = true
		}
	}
	for _, name := range []string{"Trading days", "Days since latest bar", "Invalid opening prices"} {
		if !failed[name] {
			t.Errorf("expected %q to fail", name)
		}
	}
	if failed["Symbols"] {
		t.Error("symbols check should pass")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "2024-01-03") {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
}

func TestChecker_EmptyStore(t *testing.T) {
	res, err := NewChecker(memory.NewPriceHistoryStore(), nil, Thresholds{}, nil).Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.AllPass {
		t.Error("empty store should not pass")
	}
	if len(res.Checks) != 4 {
		t.Errorf("expected 4 checks without a score store, got %d", len(res.Checks))
	}
	if res.History.TradingDays != 0 {
		t.Errorf("expected no trading days, got %d", res.History.TradingDays)
	}
}
