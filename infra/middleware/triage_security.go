package middleware

import (
	"github.com/gofiber/fiber/v2"

	"triage_server/pkg/apperr"
)

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		return c.Next()
	}
}

// MaxBodySize rejects bodies larger than maxBytes. Twilio webhook forms are small, so
// anything large is not from Twilio.
func MaxBodySize(maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) > maxBytes {
			return apperr.New("PAYLOAD_TOO_LARGE", "request body too large", fiber.StatusRequestEntityTooLarge).
				WithDetail("max_size", maxBytes)
		}
		return c.Next()
	}
}
