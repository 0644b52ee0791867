package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTrialID computes a deterministic trial_id using SHA256.
// Formula: SHA256(search_id|trial_number)
// Returns hex-encoded hash (64 characters).
func ComputeTrialID(searchID string, trialNumber int) string {
	data := fmt.Sprintf("%s|%d", searchID, trialNumber)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
