// Package idhash computes deterministic identifiers for observer runs.
package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// shortIDLen is the number of leading hash bytes encoded into the short id.
const shortIDLen = 12

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(scenario|agent|seed|created_at_ms), base58-encoded.
// Base58 keeps the id compact and safe for URLs and file names.
func ComputeRunID(scenario, agent string, seed int64, createdAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%d|%d", scenario, agent, seed, createdAtMs)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// ShortRunID returns the short display form of a full run_id: the base58
// encoding of the first shortIDLen bytes of the decoded id. Falls back to
// a plain prefix if the id is not valid base58.
func ShortRunID(runID string) string {
	raw, err := base58.Decode(runID)
	if err != nil || len(raw) < shortIDLen {
		if len(runID) > shortIDLen {
			return runID[:shortIDLen]
		}
		return runID
	}
	return base58.Encode(raw[:shortIDLen])
}
