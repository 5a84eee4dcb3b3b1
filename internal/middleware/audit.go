package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/utils/v2"
	"github.com/mssola/useragent"
)

const (
	loginUserKey    = "login_user_id"
	loginOutcomeKey = "login_outcome"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(ctx context.Context, entry domain.AuditLog) error
}

// RecordLogin marks the current callback request with its result so the
// audit middleware can attribute it. userID is zero when no account was resolved.
func RecordLogin(c fiber.Ctx, userID int64, outcome string) {
	if userID > 0 {
		c.Locals(loginUserKey, userID)
	}
	c.Locals(loginOutcomeKey, outcome)
}

// LoginAudit writes one audit record per login callback.
func LoginAudit(writer AuditWriter, provider string) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber strings alias request buffers; copy what outlives the request.
		path := utils.CopyString(c.Path())
		ip := utils.CopyString(c.IP())
		userAgent := utils.CopyString(c.Get(fiber.HeaderUserAgent))

		err := c.Next()

		entry := domain.AuditLog{
			UserID:     domain.AuditAnonymous,
			Action:     domain.AuditActionLoginFailed,
			Resource:   "auth",
			ResourceID: provider,
			IP:         ip,
			UserAgent:  userAgent,
		}
		if id, ok := c.Locals(loginUserKey).(int64); ok {
			entry.UserID = strconv.FormatInt(id, 10)
			entry.Action = domain.AuditActionLogin
		}
		outcome, _ := c.Locals(loginOutcomeKey).(string)

		ua := useragent.New(userAgent)
		browser, version := ua.Browser()
		details := map[string]any{
			"path":        path,
			"status":      c.Response().StatusCode(),
			"outcome":     outcome,
			"duration_ms": time.Since(start).Milliseconds(),
			"browser":     browser,
			"version":     version,
			"os":          ua.OS(),
			"mobile":      ua.Mobile(),
		}
		detailsJSON, _ := json.Marshal(details)
		entry.Details = string(detailsJSON)

		if writeErr := writer.WriteAudit(c.Context(), entry); writeErr != nil {
			slog.Error("failed to write audit log", "error", writeErr)
		}

		return err
	}
}
