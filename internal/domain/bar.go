package domain

import "time"

// DailyBar is one OHLCV observation for a symbol on a trading date.
// Corresponds to the stock_history table. At most one bar exists per (symbol, date).
type DailyBar struct {
	Symbol   string    // ticker, upper case
	Date     time.Time // trading date, midnight UTC
	Open     float64   // opening trade price, used for both entry and exit
	High     float64
	Low      float64
	Close    float64
	AdjClose float64 // split/dividend adjusted close
	Volume   int64
}
