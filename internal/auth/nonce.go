package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"session-service/internal/utils"
)

const (
	NonceLength  = 32
	NonceCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-._"
)

// NewNonce returns a single-use value for one Apple sign-in attempt.
func NewNonce() (string, error) {
	return utils.RandomString(NonceLength, NonceCharset)
}

// HashNonce returns the lowercase hex SHA-256 of raw. The hash is what
// the identity broker embeds in the token's nonce claim.
func HashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
