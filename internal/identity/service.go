// Package identity is the server-side identity provider: it registers
// identities, issues and rotates tokens and announces every session
// transition to the event hub.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/metrics"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/repository"
	"github.com/lostmarbl3/fai-trainsmart/pkg/utils"
	"go.uber.org/zap"
)

const (
	EventSignedUp  = "signed_up"
	EventSignedIn  = "signed_in"
	EventRefreshed = "refreshed"
	EventSignedOut = "signed_out"
)

const (
	minPasswordLength = 8
	refreshTokenBytes = 32
)

type IdentityStore interface {
	Create(ctx context.Context, identity *repository.IdentityRecord) error
	GetByEmail(ctx context.Context, email string) (*repository.IdentityRecord, error)
	GetByID(ctx context.Context, id string) (*repository.IdentityRecord, error)
}

// Broadcaster pushes session events to the identity's open connections.
type Broadcaster interface {
	PublishSession(userID, event string)
}

type Config struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type Service struct {
	identities IdentityStore
	tokens     TokenStore
	events     Broadcaster
	metrics    metrics.Recorder
	logger     *zap.Logger
	cfg        Config
	now        func() time.Time
}

func NewService(
	identities IdentityStore,
	tokens TokenStore,
	events Broadcaster,
	recorder metrics.Recorder,
	logger *zap.Logger,
	cfg Config,
) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = time.Hour
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	return &Service{
		identities: identities,
		tokens:     tokens,
		events:     events,
		metrics:    recorder,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

func NormalizeEmail(raw string) (string, error) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", apperr.Wrap(apperr.ErrInvalidInput, "invalid email format")
	}
	return strings.ToLower(parsed.Address), nil
}

// SignUp registers a new identity and signs it in. The profile is not created
// here; it is resolved lazily on the first bootstrap.
func (s *Service) SignUp(ctx context.Context, input models.SignUpInput) (*models.AuthSession, error) {
	email, err := NormalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if len(input.Password) < minPasswordLength {
		return nil, apperr.Wrap(apperr.ErrInvalidInput, "password must be at least 8 characters")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	record := &repository.IdentityRecord{
		Email:        email,
		PasswordHash: hashed,
		Metadata:     input.Metadata(),
	}
	if err := s.identities.Create(ctx, record); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Wrap(apperr.ErrConflict, "email already exists")
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	s.logger.Info("identity registered", zap.String("user_id", record.ID))
	s.metrics.RecordAuthEvent(EventSignedUp)
	return s.issue(ctx, record, EventSignedIn)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*models.AuthSession, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	record, err := s.identities.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Wrap(apperr.ErrUnauthorized, "invalid email or password")
		}
		return nil, fmt.Errorf("failed to lookup identity: %w", err)
	}
	if !utils.CheckPassword(password, record.PasswordHash) {
		return nil, apperr.Wrap(apperr.ErrUnauthorized, "invalid email or password")
	}

	return s.issue(ctx, record, EventSignedIn)
}

// Refresh rotates refreshToken: the presented token is consumed and a new
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.AuthSession, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperr.Wrap(apperr.ErrUnauthorized, "missing refresh token")
	}
	userID, err := s.tokens.ConsumeRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	record, err := s.identities.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Wrap(apperr.ErrUnauthorized, "identity no longer exists")
		}
		return nil, fmt.Errorf("failed to lookup identity: %w", err)
	}

	return s.issue(ctx, record, EventRefreshed)
}

// SignOut revokes accessToken until its natural expiry and drops every
// refresh token of its identity.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.validate(ctx, accessToken)
	if err != nil {
		return err
	}

	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.tokens.Blacklist(ctx, claims.ID, ttl); err != nil {
		return err
	}
	if err := s.tokens.RevokeRefresh(ctx, claims.UserID); err != nil {
		return err
	}

	s.logger.Info("identity signed out", zap.String("user_id", claims.UserID))
	s.announce(claims.UserID, EventSignedOut)
	return nil
}

// Verify resolves a bearer token to the identity it was issued for.
func (s *Service) Verify(ctx context.Context, accessToken string) (*models.Identity, error) {
	current, err := s.CurrentSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &current.Identity, nil
}

// CurrentSession returns the session carried by accessToken. The refresh
// token is never echoed back.
func (s *Service) CurrentSession(ctx context.Context, accessToken string) (*models.AuthSession, error) {
	claims, err := s.validate(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	record, err := s.identities.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Wrap(apperr.ErrUnauthorized, "identity no longer exists")
		}
		return nil, fmt.Errorf("failed to lookup identity: %w", err)
	}

	return &models.AuthSession{
		Identity:    toIdentity(record),
		AccessToken: accessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) validate(ctx context.Context, accessToken string) (*utils.Claims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, apperr.Wrap(apperr.ErrUnauthorized, "missing token")
	}
	claims, err := utils.ValidateToken(accessToken, s.cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthorized, err)
	}
	revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.Wrap(apperr.ErrUnauthorized, "token revoked")
	}
	return claims, nil
}

func (s *Service) issue(ctx context.Context, record *repository.IdentityRecord, event string) (*models.AuthSession, error) {
	accessToken, claims, err := utils.GenerateToken(record.ID, record.Email, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	refreshToken, err := utils.GenerateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	if err := s.tokens.SaveRefresh(ctx, refreshToken, record.ID, s.cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}

	s.announce(record.ID, event)
	return &models.AuthSession{
		Identity:     toIdentity(record),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) announce(userID, event string) {
	s.metrics.RecordAuthEvent(event)
	if s.events != nil {
		s.events.PublishSession(userID, event)
	}
}

func toIdentity(record *repository.IdentityRecord) models.Identity {
	return models.Identity{
		ID:       record.ID,
		Email:    record.Email,
		Metadata: record.Metadata,
	}
}
