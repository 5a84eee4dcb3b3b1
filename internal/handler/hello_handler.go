package handler

import (
	"log/slog"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/middleware"
	"github.com/gofiber/fiber/v3"
)

// HelloResponse is the body of GET /api/v1/hello.
type HelloResponse struct {
	Message string           `json:"message"`
	Status  string           `json:"status"`
	User    *domain.Identity `json:"user,omitempty"`
}

// HelloHandler serves the health, greeting and identity endpoints.
type HelloHandler struct {
	verifier middleware.CredentialVerifier
	appName  string
}

// NewHelloHandler creates a new hello handler.
func NewHelloHandler(verifier middleware.CredentialVerifier, appName string) *HelloHandler {
	return &HelloHandler{verifier: verifier, appName: appName}
}

// Register sets up routes on the /api/v1 router.
func (h *HelloHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/hello", middleware.OptionalAuth(h.verifier, h.Hello))
	router.Get("/me", middleware.OptionalAuth(h.verifier, h.Me))
}

// Health reports that the server is up.
func (h *HelloHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "Server is healthy",
		"app":     h.appName,
	})
}

// Hello greets anonymous and authenticated callers alike.
func (h *HelloHandler) Hello(c fiber.Ctx, identity *domain.Identity) error {
	resp := HelloResponse{
		Message: "Hello from " + h.appName + "!",
		Status:  "success",
		User:    identity,
	}
	if identity != nil {
		resp.Message = "Hello " + identity.Username + "! You are authenticated."
		slog.Debug("authenticated hello", "user_id", identity.UserID)
	}
	return c.JSON(resp)
}

// Me returns the caller's identity.
func (h *HelloHandler) Me(c fiber.Ctx, identity *domain.Identity) error {
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}
	return c.JSON(identity)
}
