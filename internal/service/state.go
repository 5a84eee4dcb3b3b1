package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/arturoeanton/parley/internal/port"
)

const stateTokenBytes = 32

// StateGuard mints and checks the one-time anti-CSRF value that travels in
// the state cookie and the provider's callback query.
type StateGuard struct {
	random io.Reader
}

// NewStateGuard returns a guard backed by crypto/rand.
func NewStateGuard() *StateGuard {
	return &StateGuard{random: rand.Reader}
}

// Issue returns a fresh 256-bit token, base64url encoded without padding.
func (g *StateGuard) Issue() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := io.ReadFull(g.random, b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Verify succeeds only when both values are present and identical.
func (g *StateGuard) Verify(cookieValue, callbackValue string) error {
	if cookieValue == "" || callbackValue == "" {
		return port.ErrCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(callbackValue)) != 1 {
		return port.ErrCSRFMismatch
	}
	return nil
}
