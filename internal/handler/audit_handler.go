package handler

import (
	"context"
	"strconv"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/middleware"
	"github.com/gofiber/fiber/v3"
)

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 100
)

// AuditReader lists stored audit records.
type AuditReader interface {
	ListAuditLogs(ctx context.Context, userID string, limit int) ([]domain.AuditLog, error)
}

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	store AuditReader
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(store AuditReader) *AuditHandler {
	return &AuditHandler{store: store}
}

// Register sets up audit routes. The router must run middleware.Authenticate.
func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit")
	audit.Get("/logins", middleware.Identified(h.ListLogins))
}

// ListLogins returns the caller's most recent login records.
func (h *AuditHandler) ListLogins(c fiber.Ctx, identity *domain.Identity) error {
	if identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultAuditLimit)))
	if err != nil || limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	logs, err := h.store.ListAuditLogs(c.Context(), strconv.FormatInt(identity.UserID, 10), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list audit logs"})
	}
	if logs == nil {
		logs = []domain.AuditLog{}
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
