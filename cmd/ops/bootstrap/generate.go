package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenByteLength is the number of random bytes in a generated secret.
// 32 bytes hex-encode to a 64-character string.
const tokenByteLength = 32

// GenerateSecureToken returns a hex-encoded random token suitable for the
// admin API key. Generated tokens are never displayed to the operator.
func GenerateSecureToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secure token: crypto/rand failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
