package handlers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxNameLength = 100

func validateCreateProfileRequest(req createProfileRequest) string {
	if err := validateName("first_name", req.FirstName); err != "" {
		return err
	}
	if err := validateName("last_name", req.LastName); err != "" {
		return err
	}
	if err := validateTrainerID(req.TrainerID); err != "" {
		return err
	}
	if err := rejectBillingFields(req.SubscriptionTier, req.SubscriptionStatus, req.BillingCustomerID); err != "" {
		return err
	}
	if req.ClientLimit != nil && *req.ClientLimit < 0 {
		return "client_limit must be 0 or greater"
	}
	return ""
}

func validateProfileUpdateRequest(req updateProfileRequest) string {
	if req.Role != nil {
		return "role cannot be changed"
	}
	if err := validateName("first_name", req.FirstName); err != "" {
		return err
	}
	if err := validateName("last_name", req.LastName); err != "" {
		return err
	}
	if err := validateName("full_name", req.FullName); err != "" {
		return err
	}
	if err := validateTrainerID(req.TrainerID); err != "" {
		return err
	}
	if err := rejectBillingFields(req.SubscriptionTier, req.SubscriptionStatus, req.BillingCustomerID); err != "" {
		return err
	}
	if req.ClientLimit != nil {
		return "client_limit cannot be changed"
	}
	return ""
}

func validateTrainerID(value *string) string {
	if value == nil {
		return ""
	}
	if strings.TrimSpace(*value) == "" {
		return "trainer_id must not be empty"
	}
	if _, err := uuid.Parse(strings.TrimSpace(*value)); err != nil {
		return "trainer_id must be a valid UUID"
	}
	return ""
}

// rejectBillingFields keeps subscription state out of owner-writable input.
func rejectBillingFields(tier, status, customerID *string) string {
	switch {
	case tier != nil:
		return "subscription_tier cannot be changed"
	case status != nil:
		return "subscription_status cannot be changed"
	case customerID != nil:
		return "billing_customer_id cannot be changed"
	}
	return ""
}

func validateName(field string, value *string) string {
	if value == nil {
		return ""
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return fmt.Sprintf("%s must not be empty", field)
	}
	if len(trimmed) > maxNameLength {
		return fmt.Sprintf("%s must be at most %d characters", field, maxNameLength)
	}
	return ""
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
