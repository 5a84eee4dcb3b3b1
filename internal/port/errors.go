package port

import (
	"errors"
	"fmt"
)

// Login flow errors. Each one aborts the request that produced it.
var (
	ErrCSRFMismatch               = errors.New("csrf state mismatch")
	ErrMissingAuthorizationCode   = errors.New("missing authorization code")
	ErrProviderExchangeFailed     = errors.New("provider token exchange failed")
	ErrProviderProfileFetchFailed = errors.New("provider profile fetch failed")
	ErrAccountPersistenceFailed   = errors.New("account persistence failed")
	ErrEmailConflict              = errors.New("email already registered to another account")
	ErrCredentialSigningFailed    = errors.New("credential signing failed")
)

// Credential verification errors. The auth middleware swallows these into an
// anonymous request.
var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrBadSignature         = errors.New("bad token signature")
	ErrTokenExpired         = errors.New("token expired")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// Account store errors.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateExternalID = errors.New("account with this provider id already exists")
	ErrDuplicateEmail      = errors.New("account with this email already exists")
)

// ProviderError carries the identity provider's HTTP status for a failed call.
// StatusCode is zero when the provider was never reached.
type ProviderError struct {
	Kind       error
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is.
func (e *ProviderError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
