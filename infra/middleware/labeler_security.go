package middleware

import "github.com/gofiber/fiber/v2"

// SecurityHeaders sets conservative response headers for a JSON-only API.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Set("Cache-Control", "no-store")
		return c.Next()
	}
}

// RequireJSON rejects bodies on write methods that are not declared as JSON.
func RequireJSON() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
			if len(c.Body()) > 0 && !c.Is("json") {
				return fiber.NewError(fiber.StatusUnsupportedMediaType, "content type must be application/json")
			}
		}
		return c.Next()
	}
}
