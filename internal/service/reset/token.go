package reset

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Raw token entropy, 256 bits
const tokenBytes = 32

// Generate random raw token and its digest
// Only digest has to be persisted, raw token is handed to account owner
func generateToken() (raw string, digest string, err error) {
	b := make([]byte, tokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", fmt.Errorf("error while generate reset token. Err: %w", err)
	}

	raw = hex.EncodeToString(b)
	return raw, Digest(raw), nil
}

// Hex encoded sha256 of raw token
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
