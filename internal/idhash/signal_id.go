package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeSignalID computes a deterministic signal_id using SHA256.
// Formula: SHA256(token_address|wallet|position|event_time)
// Returns hex-encoded hash (64 characters).
func ComputeSignalID(
	tokenAddress string,
	wallet string,
	position string,
	eventTime int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		tokenAddress,
		wallet,
		position,
		eventTime,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
