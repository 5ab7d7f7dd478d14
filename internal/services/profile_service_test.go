package services

import (
	"context"
	"errors"
	"testing"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/repository"
	"github.com/lostmarbl3/fai-trainsmart/internal/view"
)

type stubProfileStore struct {
	profile     *models.Profile
	created     *models.Profile
	lastPatch   repository.UpdateProfileInput
	updateCalls int
}

func (s *stubProfileStore) GetByUserID(_ context.Context, _ string) (*models.Profile, error) {
	if s.profile == nil {
		return nil, apperr.ErrNotFound
	}
	return s.profile, nil
}

func (s *stubProfileStore) Create(_ context.Context, profile *models.Profile) error {
	s.created = profile
	return nil
}

func (s *stubProfileStore) UpdatePartial(_ context.Context, _ string, req repository.UpdateProfileInput) (*models.Profile, error) {
	s.updateCalls++
	s.lastPatch = req
	return s.profile, nil
}

type stubResolver struct {
	profile *models.Profile
	err     error
}

func (r stubResolver) Resolve(context.Context, models.Identity) (*models.Profile, error) {
	return r.profile, r.err
}

func strPtr(v string) *string { return &v }

func TestUpdateProfileRejectsEmptyPatch(t *testing.T) {
	store := &stubProfileStore{profile: &models.Profile{UserID: "u1"}}
	svc := NewProfileService(store, nil)

	_, err := svc.UpdateProfile(context.Background(), "u1", repository.UpdateProfileInput{})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if store.updateCalls != 0 {
		t.Fatalf("expected no update for an empty patch")
	}
}

func TestUpdateProfileRecomputesFullName(t *testing.T) {
	store := &stubProfileStore{profile: &models.Profile{
		UserID:    "u1",
		FirstName: strPtr("Ada"),
		LastName:  strPtr("Byron"),
	}}
	svc := NewProfileService(store, nil)

	if _, err := svc.UpdateProfile(context.Background(), "u1", repository.UpdateProfileInput{LastName: strPtr("Lovelace")}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if store.lastPatch.FullName == nil || *store.lastPatch.FullName != "Ada Lovelace" {
		t.Fatalf("expected recomputed full name, got %v", store.lastPatch.FullName)
	}
}

func TestUpdateProfileKeepsExplicitFullName(t *testing.T) {
	store := &stubProfileStore{profile: &models.Profile{UserID: "u1"}}
	svc := NewProfileService(store, nil)

	patch := repository.UpdateProfileInput{FirstName: strPtr("Ada"), FullName: strPtr("Countess Lovelace")}
	if _, err := svc.UpdateProfile(context.Background(), "u1", patch); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if *store.lastPatch.FullName != "Countess Lovelace" {
		t.Fatalf("expected explicit full name to win, got %s", *store.lastPatch.FullName)
	}
}

func TestUpdateProfileMissingProfile(t *testing.T) {
	svc := NewProfileService(&stubProfileStore{}, nil)
	_, err := svc.UpdateProfile(context.Background(), "u1", repository.UpdateProfileInput{FirstName: strPtr("Ada")})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateProfileValidatesRole(t *testing.T) {
	store := &stubProfileStore{}
	svc := NewProfileService(store, nil)

	if err := svc.CreateProfile(context.Background(), &models.Profile{UserID: "u1", Role: "admin"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}
	if err := svc.CreateProfile(context.Background(), &models.Profile{Role: models.RoleSolo}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without user id, got %v", err)
	}
	if err := svc.CreateProfile(context.Background(), &models.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if store.created.Role != models.RoleSolo {
		t.Fatalf("expected default role solo, got %s", store.created.Role)
	}
}

func TestBootstrapSelectsView(t *testing.T) {
	svc := NewProfileService(nil, stubResolver{profile: &models.Profile{UserID: "u1", Role: models.RoleTrainer}})
	result, err := svc.Bootstrap(context.Background(), models.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if result.View != view.TrainerDashboard || result.Message != "" {
		t.Fatalf("unexpected bootstrap %+v", result)
	}

	svc = NewProfileService(nil, stubResolver{profile: &models.Profile{UserID: "u1", Role: "coach"}})
	result, err = svc.Bootstrap(context.Background(), models.Identity{ID: "u1"})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if result.View != view.UnknownRole || result.Message == "" || result.Kind != apperr.KindUnknownRole {
		t.Fatalf("expected unknown role view with a message, got %+v", result)
	}

	svc = NewProfileService(nil, stubResolver{err: apperr.ErrTimeout})
	if _, err := svc.Bootstrap(context.Background(), models.Identity{ID: "u1"}); !errors.Is(err, apperr.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
