package domain

import "time"

// ScoreRow is one precomputed ranking score for a symbol on a date.
// Corresponds to the daily_scores table.
type ScoreRow struct {
	Date       time.Time          // decision date, midnight UTC
	Symbol     string             // ticker
	Score      float64            // higher ranks first
	Indicators map[string]float64 // optional signal breakdown (nullable)
}
