package handler

import (
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/arturoeanton/parley/internal/metrics"
	"github.com/arturoeanton/parley/internal/middleware"
	"github.com/arturoeanton/parley/internal/port"
	"github.com/arturoeanton/parley/internal/service"
	"github.com/gofiber/fiber/v3"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// AuthHandler handles the external login endpoints.
type AuthHandler struct {
	authService  *service.AuthService
	audit        middleware.AuditWriter
	metrics      *metrics.Metrics
	frontendURL  string
	secureCookie bool
}

// NewAuthHandler creates a new auth handler. audit may be nil.
func NewAuthHandler(
	authService *service.AuthService,
	audit middleware.AuditWriter,
	m *metrics.Metrics,
	frontendURL string,
	secureCookie bool,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		audit:        audit,
		metrics:      m,
		frontendURL:  frontendURL,
		secureCookie: secureCookie,
	}
}

// Register sets up auth routes under /auth/<provider>.
func (h *AuthHandler) Register(app *fiber.App) {
	auth := app.Group(h.cookiePath())
	auth.Get("/login", h.Login)

	if h.audit != nil {
		auth.Get("/callback", middleware.LoginAudit(h.audit, h.authService.ProviderName()), h.Callback)
		return
	}
	auth.Get("/callback", h.Callback)
}

// Login sets the state cookie and redirects to the provider's consent screen.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	authURL, state, err := h.authService.StartLogin()
	if err != nil {
		slog.Error("start login failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to start login")
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     h.cookiePath(),
		Expires:  time.Now().Add(stateCookieTTL),
		MaxAge:   int(stateCookieTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.Redirect().Status(fiber.StatusTemporaryRedirect).To(authURL)
}

// Callback verifies state, completes the code exchange and redirects to the
// frontend with the session credential.
func (h *AuthHandler) Callback(c fiber.Ctx) error {
	cookieState := c.Cookies(stateCookieName)
	queryState := c.Query("state")
	// The state cookie is single use regardless of outcome.
	h.clearStateCookie(c)

	if providerErr := c.Query("error"); providerErr != "" {
		slog.Warn("provider denied authorization", "path", c.Path(), "provider_error", providerErr)
		return h.fail(c, fiber.StatusBadRequest, "Authorization failed: "+sanitizeErrorCode(providerErr), metrics.OutcomeProviderError)
	}

	if err := h.authService.VerifyState(cookieState, queryState); err != nil {
		slog.Warn("invalid oauth state", "path", c.Path(), "cookie_present", cookieState != "", "error", err)
		return h.fail(c, fiber.StatusBadRequest, "Invalid state", metrics.OutcomeInvalidState)
	}

	credential, user, err := h.authService.CompleteLogin(c.Context(), c.Query("code"))
	if err != nil {
		status, message, outcome := callbackFailure(err)
		attrs := []any{"path", c.Path(), "status", status, "error", err}
		var perr *port.ProviderError
		if errors.As(err, &perr) && perr.StatusCode != 0 {
			attrs = append(attrs, "provider_status", perr.StatusCode)
		}
		if status >= fiber.StatusInternalServerError {
			slog.Error("login callback failed", attrs...)
		} else {
			slog.Warn("login callback rejected", attrs...)
		}
		return h.fail(c, status, message, outcome)
	}

	h.metrics.IncrementLogin(metrics.OutcomeSuccess)
	middleware.RecordLogin(c, user.ID, metrics.OutcomeSuccess)

	redirectURL := h.frontendURL + "/auth/callback?token=" + url.QueryEscape(credential)
	return c.Redirect().Status(fiber.StatusTemporaryRedirect).To(redirectURL)
}

func (h *AuthHandler) fail(c fiber.Ctx, status int, message, outcome string) error {
	h.metrics.IncrementLogin(outcome)
	middleware.RecordLogin(c, 0, outcome)
	return c.Status(status).SendString(message)
}

func (h *AuthHandler) clearStateCookie(c fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) cookiePath() string {
	return "/auth/" + h.authService.ProviderName()
}

// callbackFailure maps a login flow error to status, body and metric outcome.
func callbackFailure(err error) (int, string, string) {
	switch {
	case errors.Is(err, port.ErrMissingAuthorizationCode):
		return fiber.StatusBadRequest, "No authorization code", metrics.OutcomeMissingCode
	case errors.Is(err, port.ErrProviderExchangeFailed):
		return fiber.StatusBadGateway, "Failed to exchange token", metrics.OutcomeExchangeFailed
	case errors.Is(err, port.ErrProviderProfileFetchFailed):
		return fiber.StatusBadGateway, "Failed to get user info", metrics.OutcomeProfileFailed
	case errors.Is(err, port.ErrEmailConflict):
		return fiber.StatusConflict, "Email already registered to another account", metrics.OutcomeEmailConflict
	case errors.Is(err, port.ErrCredentialSigningFailed):
		return fiber.StatusInternalServerError, "Failed to generate token", metrics.OutcomeSigningFailed
	default:
		return fiber.StatusInternalServerError, "Failed to resolve account", metrics.OutcomePersistenceFailed
	}
}

// sanitizeErrorCode keeps OAuth error codes ([a-z_]) and drops anything else.
func sanitizeErrorCode(code string) string {
	if len(code) > 64 {
		return "unknown_error"
	}
	for _, r := range code {
		if (r < 'a' || r > 'z') && r != '_' {
			return "unknown_error"
		}
	}
	return code
}
