// Package idempotency derives deterministic keys for processor calls.
//
// The processor is the enforcement point for "at most one charge or
// refund per key"; this package only guarantees that semantically equal
// requests produce the same key. Callers are responsible for excluding
// cosmetic fields (free-text notes) from the payload before deriving.
package idempotency

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DeriveKey computes a hex SHA-256 digest over the namespace, the scope
// identifier, the canonical JSON serialization of payload, and the salt.
//
// The salt is a freshly generated per-attempt token for checkout (each
// attempt is a distinct charge) and empty or stable for refunds, where
// true deduplication across retries is wanted.
func DeriveKey(namespace, scopeID string, payload any, salt string) (string, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("idempotency: serialize payload: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(scopeID))
	h.Write([]byte{0})
	h.Write(canonical)
	h.Write([]byte{0})
	h.Write([]byte(salt))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// NewSalt generates a fresh per-attempt salt.
func NewSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("idempotency: generate salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}
