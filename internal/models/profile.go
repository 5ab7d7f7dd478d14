package models

import (
	"strings"
	"time"
)

type Profile struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Email              string    `json:"email"`
	FirstName          *string   `json:"first_name"`
	LastName           *string   `json:"last_name"`
	FullName           *string   `json:"full_name"`
	Role               Role      `json:"role"`
	TrainerID          *string   `json:"trainer_id"`
	SubscriptionTier   *string   `json:"subscription_tier"`
	SubscriptionStatus *string   `json:"subscription_status"`
	BillingCustomerID  *string   `json:"billing_customer_id"`
	ClientLimit        *int      `json:"client_limit"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// JoinFullName returns nil when neither part carries text.
func JoinFullName(firstName, lastName *string) *string {
	parts := make([]string, 0, 2)
	for _, part := range []*string{firstName, lastName} {
		if part == nil {
			continue
		}
		if trimmed := strings.TrimSpace(*part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	full := strings.Join(parts, " ")
	return &full
}
