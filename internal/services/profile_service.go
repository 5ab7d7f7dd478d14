package services

import (
	"context"
	"strings"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/repository"
	"github.com/lostmarbl3/fai-trainsmart/internal/view"
)

type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	UpdatePartial(ctx context.Context, userID string, req repository.UpdateProfileInput) (*models.Profile, error)
}

type ProfileResolver interface {
	Resolve(ctx context.Context, identity models.Identity) (*models.Profile, error)
}

type ProfileService struct {
	store    ProfileStore
	resolver ProfileResolver
}

// Bootstrap is the server-side outcome of loading a signed-in identity.
type Bootstrap struct {
	Profile *models.Profile `json:"profile"`
	View    view.ViewID     `json:"view"`
	Message string          `json:"message,omitempty"`
	Kind    string          `json:"kind,omitempty"`
}

func NewProfileService(store ProfileStore, resolver ProfileResolver) *ProfileService {
	return &ProfileService{
		store:    store,
		resolver: resolver,
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.store.GetByUserID(ctx, userID)
}

func (s *ProfileService) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if strings.TrimSpace(profile.UserID) == "" {
		return apperr.Wrap(apperr.ErrInvalidInput, "user_id is required")
	}
	if profile.Role == "" {
		profile.Role = models.DefaultRole
	}
	if !profile.Role.Valid() {
		return apperr.Wrap(apperr.ErrInvalidInput, "role must be one of: trainer, client, solo")
	}
	return s.store.Create(ctx, profile)
}

// UpdateProfile applies a partial update. Role is not part of the patch.
// Changing a name without sending full_name recomputes it.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, req repository.UpdateProfileInput) (*models.Profile, error) {
	if req.Empty() {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "no fields to update")
	}

	if req.FullName == nil && (req.FirstName != nil || req.LastName != nil) {
		current, err := s.store.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		first, last := current.FirstName, current.LastName
		if req.FirstName != nil {
			first = req.FirstName
		}
		if req.LastName != nil {
			last = req.LastName
		}
		req.FullName = models.JoinFullName(first, last)
	}

	return s.store.UpdatePartial(ctx, userID, req)
}

// Bootstrap resolves the profile of identity, creating it on first use, and
// picks the view for its role.
func (s *ProfileService) Bootstrap(ctx context.Context, identity models.Identity) (*Bootstrap, error) {
	profile, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	v := view.SelectView(profile.Role)
	return &Bootstrap{
		Profile: profile,
		View:    v,
		Message: v.Message(),
		Kind:    apperr.Kind(v.Err()),
	}, nil
}
