package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/metrics"
	"github.com/arturoeanton/parley/internal/port"
	"github.com/gofiber/fiber/v3"
)

const identityKey = "identity"

// CredentialVerifier decodes a bearer credential.
type CredentialVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

// IdentityHandler is a Fiber handler that receives the caller's identity
// explicitly. identity is nil for anonymous requests.
type IdentityHandler func(c fiber.Ctx, identity *domain.Identity) error

// OptionalAuth resolves the bearer credential, if any, and calls next with
// the result. Missing, non-Bearer and invalid credentials all reach next
// as anonymous; the request is never rejected here.
func OptionalAuth(verifier CredentialVerifier, next IdentityHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		return next(c, identityFromRequest(c, verifier))
	}
}

// Authenticate is the group-level form of OptionalAuth. It stores the
// identity in request locals for IdentityFrom and continues the chain.
func Authenticate(verifier CredentialVerifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		if identity := identityFromRequest(c, verifier); identity != nil {
			c.Locals(identityKey, identity)
		}
		return c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate, or nil.
func IdentityFrom(c fiber.Ctx) *domain.Identity {
	identity, ok := c.Locals(identityKey).(*domain.Identity)
	if !ok {
		return nil
	}
	return identity
}

// Identified adapts an IdentityHandler to a route behind Authenticate.
func Identified(next IdentityHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		return next(c, IdentityFrom(c))
	}
}

func identityFromRequest(c fiber.Ctx, verifier CredentialVerifier) *domain.Identity {
	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return nil
	}

	identity, err := verifier.Verify(token)
	if err != nil {
		slog.Info("credential rejected", "path", c.Path(), "error", err)
		return nil
	}
	return identity
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CountingVerifier records every verification result on m.
func CountingVerifier(v CredentialVerifier, m *metrics.Metrics) CredentialVerifier {
	return &countingVerifier{next: v, metrics: m}
}

type countingVerifier struct {
	next    CredentialVerifier
	metrics *metrics.Metrics
}

func (v *countingVerifier) Verify(token string) (*domain.Identity, error) {
	identity, err := v.next.Verify(token)
	v.metrics.IncrementCredentialCheck(verifyResult(err))
	return identity, err
}

func verifyResult(err error) string {
	switch {
	case err == nil:
		return metrics.VerifyValid
	case errors.Is(err, port.ErrTokenExpired):
		return metrics.VerifyExpired
	case errors.Is(err, port.ErrBadSignature):
		return metrics.VerifyBadSignature
	case errors.Is(err, port.ErrUnsupportedAlgorithm):
		return metrics.VerifyUnsupportedAlg
	default:
		return metrics.VerifyMalformed
	}
}
