package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/viesti/telia-gateway/internal/domain"
	"go.uber.org/zap"
)

// ErrorHandler maps errors escaping a handler to JSON error responses.
// Domain sentinels get their canonical statuses; anything unrecognized is a
// 500 with the detail kept out of the response body.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := err.Error()

		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		case errors.Is(err, domain.ErrValidation):
			code = fiber.StatusBadRequest
		case errors.Is(err, domain.ErrNotFound):
			code = fiber.StatusNotFound
		case errors.Is(err, domain.ErrForbidden):
			code = fiber.StatusForbidden
		default:
			message = "internal server error"
		}

		logFn := logger.Warn
		if code >= fiber.StatusInternalServerError {
			logFn = logger.Error
		}
		logFn("request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
