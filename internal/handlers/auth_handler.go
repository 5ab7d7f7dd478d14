package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/lostmarbl3/fai-trainsmart/internal/middleware"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/services"
	"go.uber.org/zap"
)

type AuthService interface {
	SignUp(ctx context.Context, input models.SignUpInput) (*models.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*models.AuthSession, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AuthSession, error)
	SignOut(ctx context.Context, accessToken string) error
	CurrentSession(ctx context.Context, accessToken string) (*models.AuthSession, error)
}

type Bootstrapper interface {
	Bootstrap(ctx context.Context, identity models.Identity) (*services.Bootstrap, error)
}

type AuthHandler struct {
	auth      AuthService
	bootstrap Bootstrapper
	logger    *zap.Logger
}

func NewAuthHandler(auth AuthService, bootstrap Bootstrapper, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		auth:      auth,
		bootstrap: bootstrap,
		logger:    logger,
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req models.SignUpInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.auth.SignUp(c.UserContext(), req)
	if err != nil {
		h.logger.Debug("sign-up rejected", zap.Error(err))
		return writeError(c, err, "Failed to create account")
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.auth.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return writeError(c, err, "Failed to sign in")
	}
	return c.JSON(session)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return writeError(c, err, "Failed to refresh session")
	}
	return c.JSON(session)
}

func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	token, _ := c.Locals(middleware.LocalAccessToken).(string)
	if err := h.auth.SignOut(c.UserContext(), token); err != nil {
		return writeError(c, err, "Failed to sign out")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) Session(c *fiber.Ctx) error {
	token, _ := c.Locals(middleware.LocalAccessToken).(string)
	session, err := h.auth.CurrentSession(c.UserContext(), token)
	if err != nil {
		return writeError(c, err, "Failed to load session")
	}
	return c.JSON(session)
}

// Bootstrap resolves the caller's profile, creating it on first sign-in, and
// reports the view to render.
func (h *AuthHandler) Bootstrap(c *fiber.Ctx) error {
	identity, ok := c.Locals(middleware.LocalIdentity).(*models.Identity)
	if !ok || identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	result, err := h.bootstrap.Bootstrap(c.UserContext(), *identity)
	if err != nil {
		h.logger.Warn("bootstrap failed", zap.String("user_id", identity.ID), zap.Error(err))
		return writeError(c, err, "Failed to load profile")
	}
	return c.JSON(result)
}
