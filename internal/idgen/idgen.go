// Package idgen provides random ID generation for API-visible resources.
package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Prefixes used across the service. Prefixed IDs make log lines and
// support tickets self-describing.
const (
	PrefixUser        = "usr_"
	PrefixTransaction = "txn_"
	PrefixAssessment  = "asm_"
	PrefixWebhook     = "whk_"
	PrefixEvent       = "evt_"
)

// New generates a random UUIDv4 string.
func New() string {
	return uuid.NewString()
}

// WithPrefix generates a random ID with a prefix (e.g. "usr_", "asm_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Hex generates a random hex string of the given byte length.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}
