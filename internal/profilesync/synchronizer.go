// Package profilesync resolves the application profile for an identity,
// creating it on first sign-in.
//
// Resolution is fetch-or-create. Concurrent calls for the same identity share a
// single in-flight resolution, so a process never issues two creates for one
// identity. A create that loses a race against another process surfaces as a
// uniqueness conflict and is recovered by re-fetching the winner's row.
package profilesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/metrics"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultTimeout = 10 * time.Second

// RecordStore is the slice of the profile store the synchronizer needs.
// GetByUserID reports an absent row as apperr.ErrNotFound; Create reports a
// duplicate user_id as apperr.ErrConflict.
type RecordStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
}

type Synchronizer struct {
	store              RecordStore
	timeout            time.Duration
	trainerClientLimit *int
	logger             *zap.Logger
	metrics            metrics.Recorder
	flights            singleflight.Group
}

type Option func(*Synchronizer)

func WithTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTrainerClientLimit sets the client_limit given to new trainer profiles
// whose identity does not carry one.
func WithTrainerClientLimit(limit int) Option {
	return func(s *Synchronizer) {
		if limit >= 0 {
			s.trainerClientLimit = &limit
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(recorder metrics.Recorder) Option {
	return func(s *Synchronizer) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

func New(store RecordStore, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:   store,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type result struct {
	profile *models.Profile
	outcome string
}

// Resolve returns the profile for identity, creating it when absent.
// It returns an error wrapping apperr.ErrTimeout when resolution takes longer
// than the configured timeout.
func (s *Synchronizer) Resolve(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	if identity.ID == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "identity without id")
	}

	started := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The flight outlives any single caller: a caller that gives up must not
	// cancel the resolution other callers are sharing.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(identity.ID, func() (any, error) {
		runCtx, cancel := context.WithTimeout(flightCtx, s.timeout)
		defer cancel()
		return s.resolve(runCtx, identity)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			err := res.Err
			if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, apperr.ErrTimeout) {
				err = fmt.Errorf("%w: %w", apperr.ErrTimeout, err)
			}
			s.record(err, "", started)
			return nil, err
		}
		r := res.Val.(result)
		s.record(nil, r.outcome, started)
		profile := *r.profile
		return &profile, nil
	case <-waitCtx.Done():
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.record(ctxErr, "", started)
			return nil, ctxErr
		}
		err := fmt.Errorf("%w: profile resolution exceeded %s", apperr.ErrTimeout, s.timeout)
		s.record(err, "", started)
		return nil, err
	}
}

func (s *Synchronizer) resolve(ctx context.Context, identity models.Identity) (result, error) {
	profile, err := s.store.GetByUserID(ctx, identity.ID)
	switch {
	case err == nil:
		return result{profile: profile, outcome: metrics.OutcomeFound}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return result{}, apperr.Wrap(err, "fetch profile")
	}

	profile = s.newProfile(identity)
	err = s.store.Create(ctx, profile)
	switch {
	case err == nil:
		s.logger.Info("profile created",
			zap.String("user_id", identity.ID),
			zap.String("role", profile.Role.String()),
		)
		return result{profile: profile, outcome: metrics.OutcomeCreated}, nil
	case !errors.Is(err, apperr.ErrConflict):
		return result{}, apperr.Wrap(err, "create profile")
	}

	s.logger.Debug("profile created concurrently, re-fetching", zap.String("user_id", identity.ID))
	profile, err = s.store.GetByUserID(ctx, identity.ID)
	if err != nil {
		return result{}, apperr.Wrap(err, "re-fetch profile after conflict")
	}
	return result{profile: profile, outcome: metrics.OutcomeConflictRecovered}, nil
}

func (s *Synchronizer) newProfile(identity models.Identity) *models.Profile {
	role := identity.RequestedRole()
	firstName := identity.FirstName()
	lastName := identity.LastName()

	profile := &models.Profile{
		UserID:      identity.ID,
		Email:       identity.Email,
		FirstName:   firstName,
		LastName:    lastName,
		FullName:    models.JoinFullName(firstName, lastName),
		Role:        role,
		ClientLimit: identity.ClientLimit(),
	}
	if profile.ClientLimit == nil && role == models.RoleTrainer && s.trainerClientLimit != nil {
		limit := *s.trainerClientLimit
		profile.ClientLimit = &limit
	}
	return profile
}

func (s *Synchronizer) record(err error, outcome string, started time.Time) {
	if err != nil {
		outcome = metrics.OutcomeError
		if errors.Is(err, apperr.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		s.logger.Warn("profile resolution failed", zap.String("kind", apperr.Kind(err)), zap.Error(err))
	}
	s.metrics.RecordResolution(outcome, time.Since(started))
}
