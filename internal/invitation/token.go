package invitation

import (
	"crypto/rand"
	"fmt"
)

const (
	// TokenLength is the number of characters in a link token.
	TokenLength = 32
	// maxTokenAttempts bounds collision retries before link creation fails.
	maxTokenAttempts = 5

	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
)

// NewToken returns a random URL-safe token. The alphabet has 64 symbols, so
// masking a random byte to six bits keeps the distribution uniform.
func NewToken() (string, error) {
	buf := make([]byte, TokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[b&63]
	}
	return string(buf), nil
}

// ValidToken reports whether token has the shape NewToken produces.
func ValidToken(token string) bool {
	if len(token) != TokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
