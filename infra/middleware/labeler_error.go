package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"labeler_server/pkg/apperr"
	"labeler_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDLocal is the fiber.Ctx locals key holding the request ID.
const RequestIDLocal = "request_id"

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders every error returned by a handler as an ErrorResponse.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals(RequestIDLocal).(string)
		response := ErrorResponse{
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		var fiberErr *fiber.Error
		if !apperr.IsAppError(err) && errors.As(err, &fiberErr) {
			response.Error = ErrorDetail{Code: codeForStatus(fiberErr.Code), Message: fiberErr.Message}
			return c.Status(fiberErr.Code).JSON(response)
		}

		// Anything that is not an AppError renders as a generic 500.
		appErr := apperr.AsAppError(err)
		status := appErr.HTTPStatus()
		response.Error = ErrorDetail{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}

		log := logger.WithField("request_id", requestID).WithField("error_code", appErr.Code)
		if appErr.Err != nil {
			log = log.WithError(appErr.Err)
		}
		if status >= 500 {
			log.Error("internal error: %s", appErr.Message)
		} else {
			log.Warn("client error: %s", appErr.Message)
		}

		return c.Status(status).JSON(response)
	}
}

// RequestID propagates X-Request-ID, generating one when absent, and stores it in the user context.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals(RequestIDLocal, requestID)
		c.Set(fiber.HeaderXRequestID, requestID)
		c.SetUserContext(logger.ContextWithRequestID(c.UserContext(), requestID))
		return c.Next()
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Run the error handler now so the logged status is the one sent.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		requestID, _ := c.Locals(RequestIDLocal).(string)
		status := c.Response().StatusCode()
		log := logger.WithFields(map[string]any{
			"request_id": requestID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"ip":         c.IP(),
		}).WithDuration(time.Since(start))

		switch {
		case status >= 500:
			log.Error("request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("request error: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}
		return nil
	}
}

// Recover turns a handler panic into a 500 response.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals(RequestIDLocal).(string)
				logger.WithFields(map[string]any{
					"request_id": requestID,
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
					"stack":      string(debug.Stack()),
				}).Error("panic recovered")
				err = apperr.Internal("An unexpected error occurred")
			}
		}()
		return c.Next()
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return apperr.CodeBadRequest
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return apperr.CodeRateLimited
	case fiber.StatusServiceUnavailable:
		return apperr.CodeUnavailable
	default:
		if status >= 500 {
			return apperr.CodeInternalError
		}
		return "UNKNOWN_ERROR"
	}
}
