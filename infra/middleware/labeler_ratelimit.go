package middleware

import (
	"math"
	"strconv"

	"labeler_server/pkg/apperr"
	"labeler_server/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimit rejects clients that exceed limiter, keyed by IP.
func RateLimit(limiter ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, wait := limiter.Allow(c.UserContext(), c.IP())
		if ok {
			return c.Next()
		}
		retry := int(math.Ceil(wait.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		return apperr.RateLimited(retry)
	}
}
