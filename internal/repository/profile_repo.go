package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
)

const profileColumns = `id, user_id, email, first_name, last_name, full_name, role::text, trainer_id,
		subscription_tier, subscription_status, billing_customer_id, client_limit, created_at, updated_at`

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	profile, err := scanProfile(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, translateError(err)
	}
	return profile, nil
}

// Create inserts profile and fills in the generated columns. A second profile
// for the same user_id fails with apperr.ErrConflict.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.FullName == nil {
		profile.FullName = models.JoinFullName(profile.FirstName, profile.LastName)
	}
	query := `
		INSERT INTO profiles (id, user_id, email, first_name, last_name, full_name, role, trainer_id,
			subscription_tier, subscription_status, billing_customer_id, client_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::user_role, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		profile.ID,
		profile.UserID,
		profile.Email,
		profile.FirstName,
		profile.LastName,
		profile.FullName,
		string(profile.Role),
		profile.TrainerID,
		profile.SubscriptionTier,
		profile.SubscriptionStatus,
		profile.BillingCustomerID,
		profile.ClientLimit,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	return translateError(err)
}

func (r *ProfileRepository) UpdatePartial(ctx context.Context, userID string, req UpdateProfileInput) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET first_name = COALESCE($1, first_name),
			last_name = COALESCE($2, last_name),
			full_name = COALESCE($3, full_name),
			trainer_id = COALESCE($4, trainer_id),
			subscription_tier = COALESCE($5, subscription_tier),
			subscription_status = COALESCE($6, subscription_status),
			billing_customer_id = COALESCE($7, billing_customer_id),
			client_limit = COALESCE($8, client_limit),
			updated_at = NOW()
		WHERE user_id = $9
		RETURNING ` + profileColumns
	profile, err := scanProfile(r.db.QueryRow(ctx, query,
		req.FirstName,
		req.LastName,
		req.FullName,
		req.TrainerID,
		req.SubscriptionTier,
		req.SubscriptionStatus,
		req.BillingCustomerID,
		req.ClientLimit,
		userID,
	))
	if err != nil {
		return nil, translateError(err)
	}
	return profile, nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var profile models.Profile
	var role string
	err := row.Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Email,
		&profile.FirstName,
		&profile.LastName,
		&profile.FullName,
		&role,
		&profile.TrainerID,
		&profile.SubscriptionTier,
		&profile.SubscriptionStatus,
		&profile.BillingCustomerID,
		&profile.ClientLimit,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	profile.Role = models.Role(role)
	return &profile, nil
}

// UpdateProfileInput is the patch accepted by the update path. Role is fixed
// at creation and cannot be patched.
type UpdateProfileInput struct {
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	FullName           *string `json:"full_name"`
	TrainerID          *string `json:"trainer_id"`
	SubscriptionTier   *string `json:"subscription_tier"`
	SubscriptionStatus *string `json:"subscription_status"`
	BillingCustomerID  *string `json:"billing_customer_id"`
	ClientLimit        *int    `json:"client_limit"`
}

func (in UpdateProfileInput) Empty() bool {
	return in.FirstName == nil && in.LastName == nil && in.FullName == nil && in.TrainerID == nil &&
		in.SubscriptionTier == nil && in.SubscriptionStatus == nil && in.BillingCustomerID == nil &&
		in.ClientLimit == nil
}
