package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/port"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleProfileURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds the Google OAuth2 client settings.
// Empty endpoint URLs fall back to Google's production endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Timeout      time.Duration
}

// GoogleProvider implements port.AuthProvider for Google OAuth2.
type GoogleProvider struct {
	oauth      *oauth2.Config
	profileURL string
	httpClient *http.Client
}

// NewGoogleProvider creates a new Google OAuth2 provider.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	profileURL := cfg.UserInfoURL
	if profileURL == "" {
		profileURL = googleProfileURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     endpoint,
		},
		profileURL: profileURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ProviderName returns "google".
func (g *GoogleProvider) ProviderName() string {
	return domain.ProviderGoogle
}

// AuthURL returns the Google OAuth2 consent screen URL.
// Offline access is requested although refresh tokens are never used.
func (g *GoogleProvider) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode exchanges an authorization code for tokens.
func (g *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		perr := &port.ProviderError{Kind: port.ErrProviderExchangeFailed, Err: err}
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			perr.StatusCode = rerr.Response.StatusCode
			// The raw body can echo the code back; keep only the OAuth error code.
			perr.Err = fmt.Errorf("google: token endpoint error %q", rerr.ErrorCode)
		}
		return nil, perr
	}
	if token.AccessToken == "" {
		return nil, &port.ProviderError{Kind: port.ErrProviderExchangeFailed, Err: errors.New("google: missing access token")}
	}
	return token, nil
}

// GetUserProfile fetches the Google user profile using an access token.
func (g *GoogleProvider) GetUserProfile(ctx context.Context, accessToken string) (*domain.ExternalProfile, error) {
	fail := func(status int, err error) error {
		return &port.ProviderError{Kind: port.ErrProviderProfileFetchFailed, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.profileURL, nil)
	if err != nil {
		return nil, fail(0, fmt.Errorf("google: create profile request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fail(0, fmt.Errorf("google: fetch profile: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fail(resp.StatusCode, fmt.Errorf("google: profile fetch failed: %s", string(body)))
	}

	var profile domain.ExternalProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("google: decode profile: %w", err))
	}
	if profile.ID == "" {
		return nil, fail(resp.StatusCode, errors.New("google: profile has no id"))
	}

	return &profile, nil
}
