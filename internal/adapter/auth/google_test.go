package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/arturoeanton/parley/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.Handler) *GoogleProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoogleProvider(GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
	})
}

func TestGoogleProvider_AuthURL(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{
		ClientID:    "client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	raw := p.AuthURL("state-value")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-value", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "http://localhost:8080/auth/google/callback", q.Get("redirect_uri"))
}

func TestGoogleProvider_ExchangeCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	p := newTestProvider(t, mux)

	token, err := p.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "provider-access-token", token.AccessToken)
}

func TestGoogleProvider_ExchangeCode_ProviderRejects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code the-code expired"}`))
	})
	p := newTestProvider(t, mux)

	_, err := p.ExchangeCode(context.Background(), "the-code")
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrProviderExchangeFailed))

	var perr *port.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.NotContains(t, err.Error(), "the-code")
}

func TestGoogleProvider_ExchangeCode_Unreachable(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{
		ClientID: "client-id",
		TokenURL: "http://127.0.0.1:1/token",
	})

	_, err := p.ExchangeCode(context.Background(), "the-code")
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrProviderExchangeFailed)
}

func TestGoogleProvider_GetUserProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer provider-access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1098","email":"ada@example.com","name":"Ada Lovelace","picture":"https://example.com/ada.png"}`))
	})
	p := newTestProvider(t, mux)

	profile, err := p.GetUserProfile(context.Background(), "provider-access-token")
	require.NoError(t, err)
	assert.Equal(t, "1098", profile.ID)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "Ada Lovelace", profile.Name)
	assert.Equal(t, "https://example.com/ada.png", profile.AvatarURL)
}

func TestGoogleProvider_GetUserProfile_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"invalid_token"}`},
		{name: "bad json", status: http.StatusOK, body: `{not json`},
		{name: "missing id", status: http.StatusOK, body: `{"email":"ada@example.com"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			p := newTestProvider(t, mux)

			_, err := p.GetUserProfile(context.Background(), "provider-access-token")
			require.Error(t, err)
			assert.ErrorIs(t, err, port.ErrProviderProfileFetchFailed)

			var perr *port.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.status, perr.StatusCode)
		})
	}
}
