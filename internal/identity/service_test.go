package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/repository"
)

type memoryIdentities struct {
	mu      sync.Mutex
	byID    map[string]*repository.IdentityRecord
	byEmail map[string]string
}

func newMemoryIdentities() *memoryIdentities {
	return &memoryIdentities{
		byID:    map[string]*repository.IdentityRecord{},
		byEmail: map[string]string{},
	}
}

func (m *memoryIdentities) Create(_ context.Context, identity *repository.IdentityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[identity.Email]; exists {
		return apperr.Wrap(apperr.ErrConflict, "duplicate key value violates unique constraint")
	}
	identity.ID = uuid.NewString()
	copied := *identity
	m.byID[identity.ID] = &copied
	m.byEmail[identity.Email] = identity.ID
	return nil
}

func (m *memoryIdentities) GetByEmail(_ context.Context, email string) (*repository.IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *m.byID[id]
	return &copied, nil
}

func (m *memoryIdentities) GetByID(_ context.Context, id string) (*repository.IdentityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

type memoryTokens struct {
	mu        sync.Mutex
	refresh   map[string]string
	blacklist map[string]time.Duration
	failWith  error
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{refresh: map[string]string{}, blacklist: map[string]time.Duration{}}
}

func (m *memoryTokens) SaveRefresh(_ context.Context, token, userID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.refresh[token] = userID
	return nil
}

func (m *memoryTokens) ConsumeRefresh(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.refresh[token]
	if !ok {
		return "", apperr.Wrap(apperr.ErrUnauthorized, "refresh token not recognised")
	}
	delete(m.refresh, token)
	return userID, nil
}

func (m *memoryTokens) RevokeRefresh(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, owner := range m.refresh {
		if owner == userID {
			delete(m.refresh, token)
		}
	}
	return nil
}

func (m *memoryTokens) Blacklist(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[jti] = ttl
	return nil
}

func (m *memoryTokens) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blacklist[jti]
	return ok, nil
}

type sessionEvent struct {
	userID string
	event  string
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sessionEvent
}

func (b *recordingBroadcaster) PublishSession(userID, event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sessionEvent{userID: userID, event: event})
}

func (b *recordingBroadcaster) last() sessionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return sessionEvent{}
	}
	return b.events[len(b.events)-1]
}

func newTestService() (*Service, *memoryTokens, *recordingBroadcaster) {
	tokens := newMemoryTokens()
	events := &recordingBroadcaster{}
	svc := NewService(newMemoryIdentities(), tokens, events, nil, nil, Config{JWTSecret: "test-secret"})
	return svc, tokens, events
}

func signUp(t *testing.T, svc *Service, email string) *models.AuthSession {
	t.Helper()
	session, err := svc.SignUp(context.Background(), models.SignUpInput{
		Email:     email,
		Password:  "password123",
		Role:      "trainer",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return session
}

func TestSignUpIssuesSessionAndStoresMetadata(t *testing.T) {
	svc, _, events := newTestService()

	session := signUp(t, svc, "  Ada@Example.com ")
	if session.Identity.Email != "ada@example.com" {
		t.Fatalf("expected normalised email, got %q", session.Identity.Email)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		t.Fatalf("expected both tokens to be issued")
	}
	if session.Identity.RequestedRole() != models.RoleTrainer {
		t.Fatalf("expected trainer role in metadata, got %s", session.Identity.RequestedRole())
	}
	if !session.Live(time.Now()) {
		t.Fatalf("expected a live session")
	}
	if got := events.last(); got.event != EventSignedIn || got.userID != session.Identity.ID {
		t.Fatalf("expected signed_in event for %s, got %+v", session.Identity.ID, got)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc, _, _ := newTestService()
	cases := []struct {
		name  string
		input models.SignUpInput
	}{
		{"bad email", models.SignUpInput{Email: "not-an-email", Password: "password123"}},
		{"short password", models.SignUpInput{Email: "a@example.com", Password: "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tc.input)
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSignUpDuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newTestService()
	signUp(t, svc, "a@example.com")

	_, err := svc.SignUp(context.Background(), models.SignUpInput{Email: "A@example.com", Password: "password123"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSignUpUnknownRoleFallsBackToSolo(t *testing.T) {
	svc, _, _ := newTestService()
	session, err := svc.SignUp(context.Background(), models.SignUpInput{
		Email: "a@example.com", Password: "password123", Role: "admin",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if session.Identity.RequestedRole() != models.RoleSolo {
		t.Fatalf("expected solo, got %s", session.Identity.RequestedRole())
	}
}

func TestSignInChecksCredentials(t *testing.T) {
	svc, _, _ := newTestService()
	created := signUp(t, svc, "a@example.com")

	session, err := svc.SignIn(context.Background(), "A@example.com", "password123")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if session.Identity.ID != created.Identity.ID {
		t.Fatalf("expected the same identity, got %s", session.Identity.ID)
	}

	if _, err := svc.SignIn(context.Background(), "a@example.com", "wrong-password"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for a wrong password, got %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "nobody@example.com", "password123"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for an unknown email, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _, events := newTestService()
	created := signUp(t, svc, "a@example.com")

	refreshed, err := svc.Refresh(context.Background(), created.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if refreshed.RefreshToken == created.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}
	if got := events.last(); got.event != EventRefreshed {
		t.Fatalf("expected refreshed event, got %+v", got)
	}

	if _, err := svc.Refresh(context.Background(), created.RefreshToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected a consumed refresh token to be rejected, got %v", err)
	}
}

func TestSignOutRevokesTokens(t *testing.T) {
	svc, tokens, events := newTestService()
	created := signUp(t, svc, "a@example.com")

	if _, err := svc.Verify(context.Background(), created.AccessToken); err != nil {
		t.Fatalf("Verify before sign-out: %v", err)
	}
	if err := svc.SignOut(context.Background(), created.AccessToken); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	if _, err := svc.Verify(context.Background(), created.AccessToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), created.RefreshToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected refresh token to be revoked, got %v", err)
	}
	if got := events.last(); got.event != EventSignedOut || got.userID != created.Identity.ID {
		t.Fatalf("expected signed_out event, got %+v", got)
	}
	for _, ttl := range tokens.blacklist {
		if ttl <= 0 || ttl > time.Hour {
			t.Fatalf("expected blacklist entry to live until token expiry, got %s", ttl)
		}
	}
}

func TestCurrentSessionRejectsForeignTokens(t *testing.T) {
	svc, _, _ := newTestService()
	created := signUp(t, svc, "a@example.com")

	other := NewService(newMemoryIdentities(), newMemoryTokens(), nil, nil, nil, Config{JWTSecret: "other-secret"})
	if _, err := other.CurrentSession(context.Background(), created.AccessToken); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected token signed with another secret to be rejected, got %v", err)
	}
	if _, err := svc.CurrentSession(context.Background(), ""); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected empty token to be rejected, got %v", err)
	}

	current, err := svc.CurrentSession(context.Background(), created.AccessToken)
	if err != nil {
		t.Fatalf("CurrentSession: %v", err)
	}
	if current.RefreshToken != "" {
		t.Fatalf("expected refresh token to stay private")
	}
	if current.Identity.FirstName() == nil || *current.Identity.FirstName() != "Ada" {
		t.Fatalf("expected metadata to round-trip")
	}
}

func TestTokenStoreFailureSurfacesAsTransport(t *testing.T) {
	svc, tokens, _ := newTestService()
	tokens.failWith = apperr.Transport(errors.New("redis: connection refused"))

	_, err := svc.SignUp(context.Background(), models.SignUpInput{Email: "a@example.com", Password: "password123"})
	if !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}
