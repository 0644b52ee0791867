// Package simulation replays a trading-calendar window day by day, turning ranked
// scores and opening prices into a trade ledger and terminal cash.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"stock-backtest-lab/internal/calendar"
	"stock-backtest-lab/internal/domain"
	"stock-backtest-lab/internal/idhash"
	"stock-backtest-lab/internal/observability"
	"stock-backtest-lab/internal/storage"
)

// ScoreProvider returns a date's candidates ordered by score DESC.
type ScoreProvider interface {
	GetRankedScores(ctx context.Context, date time.Time) ([]*domain.ScoreRow, error)
}

// PriceProvider returns the opening price of symbol on date, or storage.ErrNotFound.
type PriceProvider interface {
	GetOpeningPrice(ctx context.Context, symbol string, date time.Time) (float64, error)
}

// SkipReason names why a day or a pick produced no trade.
type SkipReason string

// Skip reasons. Day-level reasons skip the whole decision date; pick-level ones skip one candidate.
const (
	SkipNoScores         SkipReason = "no_scores"          // day
	SkipFilteredEmpty    SkipReason = "filtered_empty"     // day
	SkipNoBuyDay         SkipReason = "no_buy_day"         // day
	SkipNoSellDay        SkipReason = "no_sell_day"        // day
	SkipProviderFailure  SkipReason = "provider_failure"   // day or pick
	SkipPriceMissing     SkipReason = "price_missing"      // pick, buy side
	SkipZeroShares       SkipReason = "zero_shares"        // pick
	SkipSellPriceMissing SkipReason = "sell_price_missing" // pick, cost already debited
)

// Result is the outcome of one simulation.
type Result struct {
	Ledger       []*domain.TradeRecord // append order = decision day, then pick rank
	StartingCash float64
	EndingCash   float64

	// Unsold holds positions whose sell date had no opening price.
	// Their cost was debited and never credited back.
	Unsold []domain.Position

	Skips map[SkipReason]int
}

// Wins counts ledger entries with positive profit.
func (r *Result) Wins() int {
	wins := 0
	for _, t := range r.Ledger {
		if t.IsWin() {
			wins++
		}
	}
	return wins
}

// WinRate returns wins / trades, 0 when the ledger is empty.
func (r *Result) WinRate() float64 {
	if len(r.Ledger) == 0 {
		return 0
	}
	return float64(r.Wins()) / float64(len(r.Ledger))
}

// Engine runs simulations against score and price providers.
// An Engine holds no per-run state; concurrent Simulate calls are independent.
type Engine struct {
	scores ScoreProvider
	prices PriceProvider
	logger *zap.Logger
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	Scores ScoreProvider
	Prices PriceProvider
	Logger *zap.Logger
}

// NewEngine creates a simulation engine.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		scores: opts.Scores,
		prices: opts.Prices,
		logger: logger,
	}
}

// Simulate replays window (ascending trading dates) with params starting from startingCash.
//
// For the date at index i:
//  1. Fetch ranked scores; skip the day when there are none.
//  2. Keep candidates at or above the day's percentile cutoff; take the first top_k.
//  3. Buy at window[i+1], sell at window[i+1+hold_days]; skip the day if either is outside the window.
//  4. Split cash*position_fraction evenly over the picks. Each pick buys floor(per_pick/open) shares,
//     debits cost, then credits proceeds at the sell-date open and appends a TradeRecord.
//
// Missing data and provider errors are per-day or per-pick skips. Only invalid
// params, an unordered window or context cancellation return an error.
func (e *Engine) Simulate(ctx context.Context, window []time.Time, startingCash float64, params domain.StrategyParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	for i := 1; i < len(window); i++ {
		if !window[i].After(window[i-1]) {
			return nil, fmt.Errorf("%w: window not strictly increasing at %s", calendar.ErrInvalidDateRange, domain.FormatDate(window[i]))
		}
	}

	started := time.Now()
	res := &Result{
		Ledger:       make([]*domain.TradeRecord, 0),
		StartingCash: startingCash,
		Skips:        make(map[SkipReason]int),
	}
	cash := startingCash

	for i, day := range window {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := e.scores.GetRankedScores(ctx, day)
		if err != nil {
			e.skip(res, SkipProviderFailure, day, "", err)
			continue
		}
		if len(rows) == 0 {
			e.skip(res, SkipNoScores, day, "", nil)
			continue
		}

		picks := selectPicks(filterCandidates(rows, params), params.TopK)
		if len(picks) == 0 {
			e.skip(res, SkipFilteredEmpty, day, "", nil)
			continue
		}

		if i+1 >= len(window) {
			e.skip(res, SkipNoBuyDay, day, "", nil)
			continue
		}
		sellIdx := i + 1 + params.HoldDays
		if sellIdx >= len(window) {
			e.skip(res, SkipNoSellDay, day, "", nil)
			continue
		}
		buyDate, sellDate := window[i+1], window[sellIdx]

		// Allocation uses the live balance; open positions reserve nothing.
		perPick := cash * params.PositionFraction / float64(len(picks))

		for rank, pick := range picks {
			buyPrice, reason := e.openingPrice(ctx, pick.Symbol, buyDate)
			if reason != "" {
				e.skip(res, reason, day, pick.Symbol, nil)
				continue
			}

			shares := int64(math.Floor(perPick / buyPrice))
			if shares <= 0 {
				e.skip(res, SkipZeroShares, day, pick.Symbol, nil)
				continue
			}

			pos := domain.Position{
				Symbol:     pick.Symbol,
				Shares:     shares,
				EntryPrice: buyPrice,
				SignalDate: day,
				EntryDate:  buyDate,
				ExitDate:   sellDate,
			}
			cash -= pos.Cost()

			sellPrice, reason := e.openingPrice(ctx, pick.Symbol, sellDate)
			if reason != "" {
				res.Unsold = append(res.Unsold, pos)
				e.skip(res, SkipSellPriceMissing, day, pick.Symbol, nil)
				continue
			}

			cash += float64(shares) * sellPrice
			tradeID := idhash.ComputeTradeID(pick.Symbol, day, buyDate, sellDate, rank)
			res.Ledger = append(res.Ledger, pos.Close(tradeID, sellPrice, cash))
		}
	}

	res.EndingCash = cash

	skips := make(map[string]int, len(res.Skips))
	for reason, n := range res.Skips {
		skips[string(reason)] = n
	}
	observability.RecordSimulation(len(res.Ledger), time.Since(started))
	observability.RecordSkips(skips)

	return res, nil
}

// openingPrice wraps the price provider so failures become skip reasons.
// Non-positive or NaN prices count as missing.
func (e *Engine) openingPrice(ctx context.Context, symbol string, date time.Time) (float64, SkipReason) {
	price, err := e.prices.GetOpeningPrice(ctx, symbol, date)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, SkipPriceMissing
		}
		e.logger.Debug("price provider failure",
			zap.String("symbol", symbol),
			zap.String("date", domain.FormatDate(date)),
			zap.Error(err),
		)
		return 0, SkipProviderFailure
	}
	if price <= 0 || math.IsNaN(price) {
		return 0, SkipPriceMissing
	}
	return price, ""
}

func (e *Engine) skip(res *Result, reason SkipReason, day time.Time, symbol string, err error) {
	res.Skips[reason]++
	if ce := e.logger.Check(zap.DebugLevel, "simulation skip"); ce != nil {
		fields := []zap.Field{
			zap.String("reason", string(reason)),
			zap.String("date", domain.FormatDate(day)),
		}
		if symbol != "" {
			fields = append(fields, zap.String("symbol", symbol))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		ce.Write(fields...)
	}
}
