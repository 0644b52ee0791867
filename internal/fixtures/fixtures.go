// Package fixtures generates a deterministic synthetic market for demos and tests.
package fixtures

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/storage"
)

// Options shapes the generated universe.
type Options struct {
	Symbols []string  // default DefaultSymbols
	Start   time.Time // first calendar day, default 2023-01-02
	Days    int       // trading days, default 300
	Seed    int64
}

// DefaultSymbols is the demo universe.
var DefaultSymbols = []string{"AAPL", "AMZN", "GOOG", "META", "MSFT", "NFLX", "NVDA", "TSLA"}

// Universe is a generated set of bars and scores.
type Universe struct {
	Days   []time.Time
	Bars   []*domain.DailyBar
	Scores []*domain.ScoreRow
}

// Generate builds random-walk bars on weekdays and a score per symbol per day.
// Scores lean on the next day's return so strategies have signal to find.
// Equal options always produce the same universe.
func Generate(opts Options) *Universe {
	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	}
	n := opts.Days
	if n <= 0 {
		n = 300
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	days := weekdays(domain.NormalizeDate(start), n)
	u := &Universe{Days: days}

	for _, sym := range symbols {
		price := 20 + rng.Float64()*180
		drift := (rng.Float64() - 0.45) * 0.002
		vol := 0.01 + rng.Float64()*0.02

		opens := make([]float64, n+1)
		opens[0] = price
		for i := 1; i <= n; i++ {
			opens[i] = math.Max(1, opens[i-1]*(1+drift+vol*rng.NormFloat64()))
		}

		for i, d := range days {
			open := cents(opens[i])
			next := opens[i+1]
			high := cents(math.Max(open, next) * (1 + rng.Float64()*vol))
			low := cents(math.Min(open, next) * (1 - rng.Float64()*vol))
			closePx := cents(next)
			u.Bars = append(u.Bars, &domain.DailyBar{
				Symbol:   sym,
				Date:     d,
				Open:     open,
				High:     high,
				Low:      low,
				Close:    closePx,
				AdjClose: closePx,
				Volume:   int64(1e5 + rng.Float64()*5e6),
			})

			ret := 0.0
			if i+2 <= n {
				ret = opens[i+2]/opens[i+1] - 1
			}
			score := 50 + 1000*ret + 10*rng.NormFloat64()
			score = math.Max(0, math.Min(100, score))
			u.Scores = append(u.Scores, &domain.ScoreRow{
				Date:   d,
				Symbol: sym,
				Score:  decimal.NewFromFloat(score).Round(2).InexactFloat64(),
			})
		}
	}
	return u
}

// Load inserts the universe into the given stores. Either store may be nil.
func (u *Universe) Load(ctx context.Context, prices storage.PriceHistoryStore, scores storage.ScoreStore) error {
	if prices != nil {
		if err := prices.InsertBulk(ctx, u.Bars); err != nil {
			return fmt.Errorf("load fixture bars: %w", err)
		}
	}
	if scores != nil {
		if err := scores.InsertBulk(ctx, u.Scores); err != nil {
			return fmt.Errorf("load fixture scores: %w", err)
		}
	}
	return nil
}

func weekdays(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := start; len(out) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func cents(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}
