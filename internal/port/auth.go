package port

//go:generate mockgen -source=auth.go -destination=mocks/auth_mocks.go -package=mocks

import (
	"context"

	"github.com/arturoeanton/parley/internal/domain"
	"golang.org/x/oauth2"
)

// AuthProvider abstracts the OAuth2 identity provider.
type AuthProvider interface {
	// ProviderName returns the name stored in users.provider (e.g. "google").
	ProviderName() string

	// AuthURL returns the full OAuth2 authorization URL for redirecting the user.
	AuthURL(state string) string

	// ExchangeCode exchanges an authorization code for an access token.
	// Failures are *ProviderError of kind ErrProviderExchangeFailed.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// GetUserProfile fetches the authenticated user's profile from the provider.
	// Failures are *ProviderError of kind ErrProviderProfileFetchFailed.
	GetUserProfile(ctx context.Context, accessToken string) (*domain.ExternalProfile, error)
}

// AccountStore is the narrow storage contract the login flow depends on.
type AccountStore interface {
	// FindAccountByExternalID returns ErrAccountNotFound on a miss.
	FindAccountByExternalID(ctx context.Context, externalID string) (*domain.User, error)

	// CreateAccount inserts an externally authenticated account. Unique
	// violations surface as ErrDuplicateExternalID or ErrDuplicateEmail.
	CreateAccount(ctx context.Context, email, displayName, externalID, avatarURL string) (*domain.User, error)

	// UpdateAvatar refreshes the stored avatar after a later login.
	UpdateAvatar(ctx context.Context, id int64, avatarURL string) error
}
