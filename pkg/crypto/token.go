// Package crypto holds the primitives behind agent credentials and opaque
// tokens: random token generation, token fingerprints and memory-hard hashing.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrTokenLength is returned when a token of non-positive size is requested.
var ErrTokenLength = errors.New("crypto: token length must be positive")

// GenerateToken returns length random bytes encoded as unpadded URL-safe base64.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrTokenLength, length)
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("crypto: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// FingerprintToken is the lookup key stored in place of an opaque token: the
// hex SHA-256 digest. Tokens carry enough entropy that no salt is needed.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
