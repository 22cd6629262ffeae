package registrations

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes is the entropy of a cancellation token.
const tokenBytes = 32

// NewCancellationToken returns an unguessable URL-safe token.
func NewCancellationToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate cancellation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
