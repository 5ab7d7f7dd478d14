package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"go.uber.org/zap"
)

const (
	refreshLead       = time.Minute
	refreshRetryDelay = 30 * time.Second
	refreshTimeout    = 10 * time.Second
)

// Provider is the client-side identity provider. It keeps the session in a
// TokenFile, refreshes it shortly before expiry and reports refreshes and
// remote sign-outs through OnChange.
type Provider struct {
	api    *API
	tokens *TokenFile
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	session     *models.AuthSession
	loaded      bool
	listeners   map[uint64]func(*models.AuthSession)
	nextID      uint64
	refresh     *time.Timer
	closed      bool
	refreshLead time.Duration
}

func NewProvider(api *API, tokens *TokenFile, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		api:         api,
		tokens:      tokens,
		logger:      logger,
		now:         time.Now,
		listeners:   make(map[uint64]func(*models.AuthSession)),
		refreshLead: refreshLead,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CurrentSession returns the persisted session after checking it with the
// server. An expired access token is refreshed first.
func (p *Provider) CurrentSession(ctx context.Context) (*models.AuthSession, error) {
	stored, err := p.stored()
	if err != nil || stored == nil {
		return nil, err
	}

	if !stored.Live(p.now()) {
		return p.refreshNow(ctx, stored)
	}

	var current models.AuthSession
	err = p.api.do(ctx, http.MethodGet, "/api/auth/session", stored.AccessToken, nil, &current)
	if errors.Is(err, apperr.ErrUnauthorized) {
		return p.refreshNow(ctx, stored)
	}
	if err != nil {
		return nil, err
	}

	current.RefreshToken = stored.RefreshToken
	if err := p.adopt(&current); err != nil {
		return nil, err
	}
	return copySession(&current), nil
}

func (p *Provider) SignUp(ctx context.Context, input models.SignUpInput) (*models.AuthSession, error) {
	var created models.AuthSession
	if err := p.api.do(ctx, http.MethodPost, "/api/auth/signup", "", input, &created); err != nil {
		return nil, err
	}
	if err := p.adopt(&created); err != nil {
		return nil, err
	}
	return copySession(&created), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.AuthSession, error) {
	var signedIn models.AuthSession
	if err := p.api.do(ctx, http.MethodPost, "/api/auth/signin", "", credentials{Email: email, Password: password}, &signedIn); err != nil {
		return nil, err
	}
	if err := p.adopt(&signedIn); err != nil {
		return nil, err
	}
	return copySession(&signedIn), nil
}

// SignOut revokes the session on the server and forgets it locally. The
// local copy is dropped even when the server cannot be reached.
func (p *Provider) SignOut(ctx context.Context) error {
	stored, err := p.stored()
	if err != nil {
		p.logger.Debug("token file unreadable during sign-out", zap.Error(err))
	}

	var remoteErr error
	if stored != nil && stored.AccessToken != "" {
		remoteErr = p.api.do(ctx, http.MethodPost, "/api/auth/signout", stored.AccessToken, nil, nil)
		if errors.Is(remoteErr, apperr.ErrUnauthorized) {
			remoteErr = nil
		}
	}

	if err := p.forget(); err != nil {
		return err
	}
	return remoteErr
}

// OnChange registers fn for transitions the provider originates itself.
func (p *Provider) OnChange(fn func(*models.AuthSession)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Close stops the background refresh.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.refresh != nil {
		p.refresh.Stop()
		p.refresh = nil
	}
}

// Watch follows the server's session event feed until ctx is done or the
// connection drops. A sign-out announced for the current identity, from this
// device or another, ends the local session.
func (p *Provider) Watch(ctx context.Context) error {
	stored, err := p.stored()
	if err != nil {
		return err
	}
	if stored == nil {
		return apperr.Wrap(apperr.ErrUnauthorized, "not signed in")
	}

	feedURL, err := p.feedURL(stored.AccessToken)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, feedURL, nil)
	if err != nil {
		return apperr.Transport(fmt.Errorf("dial session feed: %w", err))
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var event sessionEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperr.Transport(fmt.Errorf("read session feed: %w", err))
		}
		p.logger.Debug("session event", zap.String("event", event.Event), zap.String("user_id", event.UserID))

		if event.Type == "session" && event.Event == "signed_out" && event.UserID == stored.Identity.ID {
			if err := p.forget(); err != nil {
				p.logger.Warn("failed to clear token file", zap.Error(err))
			}
			p.emit(nil)
			return nil
		}
	}
}

type sessionEvent struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

func (p *Provider) feedURL(token string) (string, error) {
	u, err := url.Parse(p.api.BaseURL() + "/api/v1/ws")
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (p *Provider) stored() (*models.AuthSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		loaded, err := p.tokens.Load()
		if err != nil {
			return nil, err
		}
		p.session = loaded
		p.loaded = true
	}
	return copySession(p.session), nil
}

func (p *Provider) refreshNow(ctx context.Context, stored *models.AuthSession) (*models.AuthSession, error) {
	if strings.TrimSpace(stored.RefreshToken) == "" {
		if err := p.forget(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var refreshed models.AuthSession
	err := p.api.do(ctx, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": stored.RefreshToken}, &refreshed)
	if errors.Is(err, apperr.ErrUnauthorized) {
		if err := p.forget(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := p.adopt(&refreshed); err != nil {
		return nil, err
	}
	return copySession(&refreshed), nil
}

// adopt persists session and schedules its refresh.
func (p *Provider) adopt(session *models.AuthSession) error {
	if err := p.tokens.Save(session); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = copySession(session)
	p.loaded = true
	p.scheduleLocked(session.ExpiresAt.Add(-p.refreshLead).Sub(p.now()))
	return nil
}

func (p *Provider) forget() error {
	p.mu.Lock()
	p.session = nil
	p.loaded = true
	if p.refresh != nil {
		p.refresh.Stop()
		p.refresh = nil
	}
	p.mu.Unlock()
	return p.tokens.Clear()
}

// scheduleLocked must be called with p.mu held.
func (p *Provider) scheduleLocked(delay time.Duration) {
	if p.refresh != nil {
		p.refresh.Stop()
		p.refresh = nil
	}
	if p.closed || p.session == nil || p.session.RefreshToken == "" {
		return
	}
	if delay < 0 {
		delay = 0
	}
	token := p.session.RefreshToken
	p.refresh = time.AfterFunc(delay, func() { p.backgroundRefresh(token) })
}

func (p *Provider) backgroundRefresh(token string) {
	p.mu.Lock()
	if p.closed || p.session == nil || p.session.RefreshToken != token {
		p.mu.Unlock()
		return
	}
	stored := copySession(p.session)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	refreshed, err := p.refreshNow(ctx, stored)
	switch {
	case err != nil:
		p.logger.Warn("background refresh failed", zap.Error(err))
		p.mu.Lock()
		p.scheduleLocked(refreshRetryDelay)
		p.mu.Unlock()
	case refreshed == nil:
		p.logger.Info("session could not be refreshed; signed out")
		p.emit(nil)
	default:
		p.logger.Debug("session refreshed", zap.Time("expires_at", refreshed.ExpiresAt))
		p.emit(refreshed)
	}
}

func (p *Provider) emit(session *models.AuthSession) {
	p.mu.Lock()
	fns := make([]func(*models.AuthSession), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(copySession(session))
	}
}

func copySession(session *models.AuthSession) *models.AuthSession {
	if session == nil {
		return nil
	}
	copied := *session
	return &copied
}
