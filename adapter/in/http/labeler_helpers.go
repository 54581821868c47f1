// Package http exposes the classifier over a JSON API.
package http

import (
	"strconv"

	"labeler_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// StatusResponse is the body of simple acknowledgements.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// bindJSON decodes the request body into v. An empty body leaves v untouched.
func bindJSON(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("invalid JSON body")
	}
	return nil
}

// queryFloat parses a float query parameter, falling back to def when absent.
func queryFloat(c *fiber.Ctx, key string, def float64) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.BadRequest(key + " must be a number").WithDetail("field", key)
	}
	return v, nil
}

// queryInt parses an int query parameter, falling back to def when absent.
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.BadRequest(key + " must be an integer").WithDetail("field", key)
	}
	return v, nil
}
