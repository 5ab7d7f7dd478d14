package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/repository"
)

// TokenSource yields the access token to send with each request.
type TokenSource interface {
	AccessToken() string
}

// RecordStore reads and writes profile records through the server API. It
// satisfies the synchronizer's record store contract: a missing row is
// apperr.ErrNotFound and a duplicate create is apperr.ErrConflict.
type RecordStore struct {
	api    *API
	tokens TokenSource
}

func NewRecordStore(api *API, tokens TokenSource) *RecordStore {
	return &RecordStore{api: api, tokens: tokens}
}

func (s *RecordStore) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := s.api.do(ctx, http.MethodGet, profilePath(userID), token, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Create stores profile and overwrites it with the record the server kept.
func (s *RecordStore) Create(ctx context.Context, profile *models.Profile) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	return s.api.do(ctx, http.MethodPost, "/api/v1/profiles", token, profile, profile)
}

func (s *RecordStore) UpdatePartial(ctx context.Context, userID string, patch repository.UpdateProfileInput) (*models.Profile, error) {
	token, err := s.token()
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := s.api.do(ctx, http.MethodPatch, profilePath(userID), token, patch, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *RecordStore) token() (string, error) {
	token := s.tokens.AccessToken()
	if token == "" {
		return "", apperr.Wrap(apperr.ErrUnauthorized, "not signed in")
	}
	return token, nil
}

func profilePath(userID string) string {
	return fmt.Sprintf("/api/v1/profiles/%s", url.PathEscape(userID))
}
