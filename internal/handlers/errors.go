package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
)

var sentinels = []error{
	apperr.ErrInvalidInput,
	apperr.ErrUnauthorized,
	apperr.ErrConflict,
	apperr.ErrNotFound,
}

// publicMessage returns the context an error was wrapped with, minus the
// sentinel it wraps, or fallback when there is none.
func publicMessage(err error, fallback string) string {
	msg := err.Error()
	for _, sentinel := range sentinels {
		if trimmed, ok := strings.CutSuffix(msg, ": "+sentinel.Error()); ok && errors.Is(err, sentinel) {
			return trimmed
		}
	}
	return fallback
}

func writeError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": publicMessage(err, "Invalid request")})
	case errors.Is(err, apperr.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": publicMessage(err, "Unauthorized")})
	case errors.Is(err, apperr.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": publicMessage(err, "Already exists")})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": publicMessage(err, "Not found")})
	case errors.Is(err, apperr.ErrTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "The request took too long. Please try again.",
			"kind":  apperr.KindTimeout,
			"retry": true,
		})
	case errors.Is(err, apperr.ErrTransport):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "A backing service is unavailable. Please try again.",
			"kind":  apperr.KindTransport,
			"retry": true,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
	}
}
