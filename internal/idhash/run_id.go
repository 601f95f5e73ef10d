// Package idhash derives deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(chain_id|token|account|started_at_ms), addresses lowercased.
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	chainID int64,
	token string,
	account string,
	startedAt int64,
) string {
	data := fmt.Sprintf("%d|%s|%s|%d",
		chainID,
		strings.ToLower(token),
		strings.ToLower(account),
		startedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
