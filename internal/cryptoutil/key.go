// Package cryptoutil decodes and fingerprints the HMAC keys that sign stored
// interactions.
package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MinKeyBytes is the shortest accepted HMAC-SHA256 key.
const MinKeyBytes = 32

// DecodeKey turns a configured key into key bytes. A key of 64 or more hex
// characters is hex-decoded; anything else is used as raw bytes. Either way
// the result must be at least MinKeyBytes long.
func DecodeKey(key string) ([]byte, error) {
	n := len(key)
	if n >= 2*MinKeyBytes && n%2 == 0 && isHex(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("hex decode: %w", err)
		}
		return decoded, nil
	}
	if n < MinKeyBytes {
		return nil, fmt.Errorf("must be at least %d bytes or %d+ hex characters (got %d)", MinKeyBytes, 2*MinKeyBytes, n)
	}
	return []byte(key), nil
}

// Fingerprint identifies a key without revealing it: the first 8 hex
// characters of its SHA-256.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
