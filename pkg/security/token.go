package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const minTokenBytes = 32

// GenerateSessionToken returns a hex-encoded random token of at least 32 bytes of entropy.
func GenerateSessionToken(size int) (string, error) {
	if size < minTokenBytes {
		size = minTokenBytes
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
