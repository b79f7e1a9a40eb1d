package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FingerprintLength is the length of every fingerprint in hex characters.
const FingerprintLength = sha256.Size * 2

// ComputeContentFingerprint returns the lowercase hex SHA-256 of the
// UTF-8 bytes of input. The empty string is a valid input and hashes
// like any other.
func ComputeContentFingerprint(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// FingerprintValue returns the SHA-256 fingerprint of v's canonical JSON
// encoding. See MarshalCanonical for the accepted types.
func FingerprintValue(v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint value: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
