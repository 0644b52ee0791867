// Package idhash computes deterministic SHA256 identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(symbol|signal_date|buy_date|sell_date|rank)
// rank is the pick's position among the day's picks, so two picks on one day never collide.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	symbol string,
	signalDate time.Time,
	buyDate time.Time,
	sellDate time.Time,
	rank int,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		symbol,
		signalDate.Format(dateLayout),
		buyDate.Format(dateLayout),
		sellDate.Format(dateLayout),
		rank,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
