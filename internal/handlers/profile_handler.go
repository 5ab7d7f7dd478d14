package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/lostmarbl3/fai-trainsmart/internal/middleware"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/repository"
)

type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	CreateProfile(ctx context.Context, profile *models.Profile) error
	UpdateProfile(ctx context.Context, userID string, req repository.UpdateProfileInput) (*models.Profile, error)
}

type ProfileHandler struct {
	profiles ProfileService
}

func NewProfileHandler(profiles ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type createProfileRequest struct {
	UserID             string  `json:"user_id"`
	Role               string  `json:"role"`
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	TrainerID          *string `json:"trainer_id"`
	SubscriptionTier   *string `json:"subscription_tier"`
	SubscriptionStatus *string `json:"subscription_status"`
	BillingCustomerID  *string `json:"billing_customer_id"`
	ClientLimit        *int    `json:"client_limit"`
}

type updateProfileRequest struct {
	Role               *string `json:"role"`
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	FullName           *string `json:"full_name"`
	TrainerID          *string `json:"trainer_id"`
	SubscriptionTier   *string `json:"subscription_tier"`
	SubscriptionStatus *string `json:"subscription_status"`
	BillingCustomerID  *string `json:"billing_customer_id"`
	ClientLimit        *int    `json:"client_limit"`
}

func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := ownProfileID(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	profile, err := h.profiles.GetProfile(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err, "Failed to fetch profile")
	}
	return c.JSON(profile)
}

func (h *ProfileHandler) CreateProfile(c *fiber.Ctx) error {
	identity, ok := c.Locals(middleware.LocalIdentity).(*models.Identity)
	if !ok || identity == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.UserID == "" {
		req.UserID = identity.ID
	}
	if req.UserID != identity.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}
	if validationErr := validateCreateProfileRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile := &models.Profile{
		UserID:      req.UserID,
		Email:       identity.Email,
		FirstName:   trimmedPtr(req.FirstName),
		LastName:    trimmedPtr(req.LastName),
		Role:        models.Role(req.Role),
		TrainerID:   trimmedPtr(req.TrainerID),
		ClientLimit: req.ClientLimit,
	}
	if role, ok := models.ParseRole(req.Role); ok {
		profile.Role = role
	}

	if err := h.profiles.CreateProfile(c.UserContext(), profile); err != nil {
		return writeError(c, err, "Failed to create profile")
	}
	return c.Status(fiber.StatusCreated).JSON(profile)
}

func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := ownProfileID(c)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if validationErr := validateProfileUpdateRequest(req); validationErr != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr})
	}

	profile, err := h.profiles.UpdateProfile(c.UserContext(), userID, repository.UpdateProfileInput{
		FirstName: trimmedPtr(req.FirstName),
		LastName:  trimmedPtr(req.LastName),
		FullName:  trimmedPtr(req.FullName),
		TrainerID: trimmedPtr(req.TrainerID),
	})
	if err != nil {
		return writeError(c, err, "Failed to update profile")
	}
	return c.JSON(profile)
}

// ownProfileID returns the :user_id route parameter when it names the
// caller's own profile.
func ownProfileID(c *fiber.Ctx) (string, bool) {
	subject, ok := c.Locals(middleware.LocalUserID).(string)
	if !ok || subject == "" {
		return "", false
	}
	userID := c.Params("user_id")
	return userID, userID == subject
}
