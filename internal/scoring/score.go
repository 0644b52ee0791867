// Package scoring ranks symbols by a weighted blend of technical indicators
// computed from daily price history.
package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"stock-backtest-lab/internal/domain"
)

// Weights scales each signal's contribution to the score.
type Weights struct {
	MACD  float64 `yaml:"macd"`
	SMA20 float64 `yaml:"sma20"`
	SMA50 float64 `yaml:"sma50"`
	EMA   float64 `yaml:"ema"`
	RSI   float64 `yaml:"rsi"`
	BB    float64 `yaml:"bb"`
	Stoch float64 `yaml:"stoch"`
}

// DefaultWeights returns the standard weighting, with MACD counted heaviest.
func DefaultWeights() Weights {
	return Weights{MACD: 1.5, SMA20: 1, SMA50: 1, EMA: 1, RSI: 1, BB: 0.5, Stoch: 1}
}

// maxPositive is the sum of positive weights, the raw score of a perfect signal set.
func (w Weights) maxPositive() float64 {
	total := 0.0
	for _, v := range []float64{w.MACD, w.SMA20, w.SMA50, w.EMA, w.RSI, w.BB, w.Stoch} {
		if v > 0 {
			total += v
		}
	}
	return total
}

// Signal names recorded in ScoreRow.Indicators.
const (
	SignalMACDStrength  = "macd_strength"
	SignalAboveSMA20    = "close_above_sma20"
	SignalAboveSMA50    = "close_above_sma50"
	SignalEMA12AboveE26 = "ema12_above_ema26"
	SignalRSI           = "rsi"
	SignalBBPosition    = "bb_position"
	SignalStochStrength = "stoch_strength"
	SignalVolumeAvg5    = "volume_avg_5"
	SignalMomentum10    = "momentum_10"
)

// Result is the score of the last bar of a series.
type Result struct {
	Score   float64 // 0..100, two decimals
	Raw     float64 // weighted signal sum before normalization
	Signals map[string]float64
}

// Score computes the weighted 0-100 score of the last bar in bars, which
// must be ordered oldest first. An empty series scores 0.
func Score(bars []*domain.DailyBar, w Weights) Result {
	n := len(bars)
	if n == 0 {
		return Result{Signals: map[string]float64{}}
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range bars {
		closes[i], highs[i], lows[i] = b.Close, b.High, b.Low
	}
	last := n - 1
	closeNow := closes[last]
	signals := make(map[string]float64, 9)
	wsum := 0.0

	// MACD histogram relative to its largest magnitude in the series.
	_, _, hist := MACD(closes, 12, 26, 9)
	histMax := 0.0
	for _, h := range hist {
		histMax = math.Max(histMax, math.Abs(h))
	}
	macdStrength := 0.0
	if histMax > 0 {
		macdStrength = clamp01(hist[last] / histMax)
	}
	signals[SignalMACDStrength] = round(macdStrength, 3)
	wsum += w.MACD * macdStrength

	sma20 := SMA(closes, 20)[last]
	sma50 := SMA(closes, 50)[last]
	s20 := clamp01(relDiff(closeNow, sma20) * 10)
	s50 := clamp01(relDiff(closeNow, sma50) * 10)
	signals[SignalAboveSMA20] = round(s20, 3)
	signals[SignalAboveSMA50] = round(s50, 3)
	wsum += w.SMA20*s20 + w.SMA50*s50

	signals[SignalEMA12AboveE26] = 0
	if EMA(closes, 12)[last] > EMA(closes, 26)[last] {
		signals[SignalEMA12AboveE26] = 1
		wsum += w.EMA
	}

	// RSI contributes positively below 50 and negatively above.
	rsi := RSI(closes, 14)[last]
	signals[SignalRSI] = round(rsi, 2)
	wsum += w.RSI * (50 - rsi) / 50

	_, upper, lower := Bollinger(closes, 20, 2)
	bbRange := upper[last] - lower[last]
	if bbRange == 0 {
		bbRange = 1
	}
	bbPos := clamp01((closeNow - lower[last]) / bbRange)
	signals[SignalBBPosition] = round(bbPos, 3)
	wsum += w.BB * bbPos

	k, d := Stochastic(highs, lows, closes, 14, 3)
	stoch := clamp01((k[last] - d[last]) / 100)
	signals[SignalStochStrength] = round(stoch, 3)
	wsum += w.Stoch * stoch

	// Informational only.
	volSum, volN := 0.0, 0
	for i := max(0, n-5); i < n; i++ {
		volSum += float64(bars[i].Volume)
		volN++
	}
	signals[SignalVolumeAvg5] = math.Trunc(volSum / float64(volN))
	if mom := Momentum(closes, 10)[last]; !math.IsNaN(mom) {
		signals[SignalMomentum10] = round(mom, 3)
	}

	score := 0.0
	if mp := w.maxPositive(); mp > 0 {
		score = math.Max(0, math.Min(100, 100*wsum/mp))
	}
	return Result{
		Score:   round(score, 2),
		Raw:     round(wsum, 3),
		Signals: signals,
	}
}

func relDiff(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return (a - b) / b
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}

func round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}
