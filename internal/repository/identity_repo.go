package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type IdentityRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type IdentityRepository struct {
	db DBTX
}

func NewIdentityRepository(db DBTX) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(ctx context.Context, identity *IdentityRecord) error {
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	if identity.Metadata == nil {
		identity.Metadata = map[string]any{}
	}
	query := `
		INSERT INTO identities (id, email, password_hash, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, identity.ID, identity.Email, identity.PasswordHash, identity.Metadata).
		Scan(&identity.CreatedAt, &identity.UpdatedAt)
	return translateError(err)
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*IdentityRecord, error) {
	query := `
		SELECT id, email, password_hash, metadata, created_at, updated_at
		FROM identities
		WHERE email = $1
	`
	return r.scanOne(ctx, query, email)
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*IdentityRecord, error) {
	query := `
		SELECT id, email, password_hash, metadata, created_at, updated_at
		FROM identities
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *IdentityRepository) scanOne(ctx context.Context, query string, arg any) (*IdentityRecord, error) {
	var identity IdentityRecord
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.Metadata,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return &identity, nil
}
