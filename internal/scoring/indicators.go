package scoring

import "math"

// Series helpers operate oldest-first and return a slice of the input length.
// Values that are undefined for a position (for example momentum before n bars)
// are NaN.

// SMA is the rolling mean with a minimum of one period.
func SMA(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		n := min(i+1, window)
		out[i] = sum / float64(n)
	}
	return out
}

// EMA is the recursive exponential mean with alpha = 2/(span+1), seeded
// with the first value.
func EMA(xs []float64, span int) []float64 {
	return ewm(xs, 2.0/(float64(span)+1))
}

func ewm(xs []float64, alpha float64) []float64 {
	out := make([]float64, len(xs))
	started := false
	prev := 0.0
	for i, x := range xs {
		if math.IsNaN(x) {
			out[i] = math.NaN()
			if started {
				out[i] = prev
			}
			continue
		}
		if !started {
			prev = x
			started = true
		} else {
			prev = alpha*x + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// MACD returns the MACD line, its signal line and the histogram.
func MACD(close []float64, fast, slow, signal int) (line, sig, hist []float64) {
	f, s := EMA(close, fast), EMA(close, slow)
	line = make([]float64, len(close))
	for i := range close {
		line[i] = f[i] - s[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, len(close))
	for i := range close {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// RSI uses Wilder smoothing (alpha = 1/period). Positions where the average
// loss is zero are reported as 0.
func RSI(close []float64, period int) []float64 {
	n := len(close)
	up := make([]float64, n)
	down := make([]float64, n)
	for i := range close {
		if i == 0 {
			up[i], down[i] = math.NaN(), math.NaN()
			continue
		}
		d := close[i] - close[i-1]
		up[i] = math.Max(d, 0)
		down[i] = math.Max(-d, 0)
	}
	alpha := 1.0 / float64(period)
	avgUp, avgDown := ewm(up, alpha), ewm(down, alpha)

	out := make([]float64, n)
	for i := range out {
		if math.IsNaN(avgUp[i]) || math.IsNaN(avgDown[i]) || avgDown[i] == 0 {
			continue
		}
		rs := avgUp[i] / avgDown[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// Bollinger returns the mid, upper and lower bands using the rolling sample
// standard deviation. A single-sample window has zero width.
func Bollinger(close []float64, window int, numStd float64) (mid, upper, lower []float64) {
	mid = SMA(close, window)
	upper = make([]float64, len(close))
	lower = make([]float64, len(close))
	for i := range close {
		lo := max(0, i-window+1)
		sd := sampleStd(close[lo:i+1], mid[i])
		upper[i] = mid[i] + numStd*sd
		lower[i] = mid[i] - numStd*sd
	}
	return mid, upper, lower
}

func sampleStd(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// Momentum is close[i] - close[i-n].
func Momentum(close []float64, n int) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		if i < n {
			out[i] = math.NaN()
			continue
		}
		out[i] = close[i] - close[i-n]
	}
	return out
}

// Stochastic returns %K over kWindow and its dWindow mean %D. A flat
// high/low range yields 0.
func Stochastic(high, low, close []float64, kWindow, dWindow int) (k, d []float64) {
	k = make([]float64, len(close))
	for i := range close {
		lo := max(0, i-kWindow+1)
		ll, hh := low[lo], high[lo]
		for j := lo + 1; j <= i; j++ {
			ll = math.Min(ll, low[j])
			hh = math.Max(hh, high[j])
		}
		if hh-ll == 0 {
			continue
		}
		k[i] = 100 * (close[i] - ll) / (hh - ll)
	}
	return k, SMA(k, dWindow)
}
