package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ar210505/rubric-coder-intel/internal/observability"
)

const (
	// CorrelationHeader carries the id in requests and responses.
	CorrelationHeader = "X-Correlation-ID"

	correlationLocal = "correlation_id"
)

// CorrelationID reuses the caller's X-Correlation-ID (or X-Request-ID) or mints one, echoes it,
// and binds it to the user context so background jobs dispatched by the request inherit it.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		incoming := strings.TrimSpace(c.Get(CorrelationHeader))
		if incoming == "" {
			incoming = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if incoming == "" {
			incoming = uuid.NewString()
		}

		c.Locals(correlationLocal, incoming)
		c.Set(CorrelationHeader, incoming)
		c.SetUserContext(observability.ContextWithCorrelation(c.UserContext(), incoming))

		return c.Next()
	}
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return observability.CorrelationIDFromContext(c.UserContext())
}
