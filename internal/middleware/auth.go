package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
)

const (
	LocalUserID      = "user_id"
	LocalIdentity    = "identity"
	LocalAccessToken = "access_token"
)

type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (*models.Identity, error)
}

func AuthRequired(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		return authenticate(c, verifier, tokenString)
	}
}

// QueryTokenAuth accepts the token from the "token" query parameter as well
// as the Authorization header; browsers cannot set headers on websocket
// upgrades.
func QueryTokenAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := strings.TrimSpace(c.Query("token"))
		if tokenString == "" {
			tokenString, _ = BearerToken(c.Get("Authorization"))
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
		}
		return authenticate(c, verifier, tokenString)
	}
}

func BearerToken(header string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(header), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func authenticate(c *fiber.Ctx, verifier TokenVerifier, tokenString string) error {
	identity, err := verifier.Verify(c.UserContext(), tokenString)
	if err != nil {
		if errors.Is(err, apperr.ErrTransport) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Authentication backend unavailable",
			})
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	c.Locals(LocalUserID, identity.ID)
	c.Locals(LocalIdentity, identity)
	c.Locals(LocalAccessToken, tokenString)

	return c.Next()
}
