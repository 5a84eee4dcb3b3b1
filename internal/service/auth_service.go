package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/metrics"
	"github.com/arturoeanton/parley/internal/port"
)

// AuthService handles the external login flow: redirect, code exchange,
// profile fetch, account resolution and credential issuance.
type AuthService struct {
	provider port.AuthProvider
	state    *StateGuard
	resolver *IdentityResolver
	issuer   *CredentialIssuer
	metrics  *metrics.Metrics
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	provider port.AuthProvider,
	state *StateGuard,
	resolver *IdentityResolver,
	issuer *CredentialIssuer,
	m *metrics.Metrics,
) *AuthService {
	return &AuthService{
		provider: provider,
		state:    state,
		resolver: resolver,
		issuer:   issuer,
		metrics:  m,
	}
}

// ProviderName returns the configured provider's name.
func (s *AuthService) ProviderName() string {
	return s.provider.ProviderName()
}

// StartLogin mints a state token and returns the provider consent URL
// carrying it. The caller stores the state in the state cookie.
func (s *AuthService) StartLogin() (authURL, state string, err error) {
	state, err = s.state.Issue()
	if err != nil {
		return "", "", err
	}
	return s.provider.AuthURL(state), state, nil
}

// VerifyState checks the callback state against the cookie value.
func (s *AuthService) VerifyState(cookieValue, callbackValue string) error {
	return s.state.Verify(cookieValue, callbackValue)
}

// CompleteLogin exchanges the authorization code, resolves the local account
// and returns a signed session credential for it.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (string, *domain.User, error) {
	if code == "" {
		return "", nil, port.ErrMissingAuthorizationCode
	}

	start := time.Now()
	tokens, err := s.provider.ExchangeCode(ctx, code)
	s.metrics.ObserveProviderCall("exchange", start)
	if err != nil {
		return "", nil, fmt.Errorf("exchange code: %w", err)
	}

	start = time.Now()
	profile, err := s.provider.GetUserProfile(ctx, tokens.AccessToken)
	s.metrics.ObserveProviderCall("profile", start)
	if err != nil {
		return "", nil, fmt.Errorf("get profile: %w", err)
	}

	user, err := s.resolver.Resolve(ctx, profile)
	if err != nil {
		return "", nil, fmt.Errorf("resolve account: %w", err)
	}

	credential, err := s.issuer.Issue(user)
	if err != nil {
		return "", nil, fmt.Errorf("issue credential: %w", err)
	}

	slog.Info("user authenticated", "user_id", user.ID, "provider", s.provider.ProviderName())
	return credential, user, nil
}
