// Package session holds the signed-in identity of a running application and
// tells subscribers whenever it changes.
package session

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"go.uber.org/zap"
)

var ErrAlreadyStarted = errors.New("session store already started")

// Provider is the identity provider as seen from a client application.
// OnChange only reports transitions the provider originates on its own, such
// as a background token refresh or a sign-out from another device; sign-in and
// sign-out performed through the Store are published by the Store itself.
type Provider interface {
	CurrentSession(ctx context.Context) (*models.AuthSession, error)
	SignUp(ctx context.Context, input models.SignUpInput) (*models.AuthSession, error)
	SignIn(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignOut(ctx context.Context) error
	OnChange(fn func(*models.AuthSession)) (unsubscribe func())
}

type Listener func(identity *models.Identity)

type Store struct {
	provider Provider
	logger   *zap.Logger
	now      func() time.Time

	mu              sync.Mutex
	session         *models.AuthSession
	listeners       map[uint64]Listener
	nextListenerID  uint64
	queue           []*models.Identity
	expiry          *time.Timer
	started         bool
	stopped         bool
	providerUnsub   func()
	providerChanges uint64

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func NewStore(provider Provider, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		provider:  provider,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[uint64]Listener),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins delivering notifications, follows the provider's own change
// feed until Stop and loads any session the provider already holds. A change
// the provider reports while that load is in flight supersedes it.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	go s.dispatch()

	unsubscribe := s.provider.OnChange(s.onProviderChange)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		unsubscribe()
		return nil
	}
	s.providerUnsub = unsubscribe
	seen := s.providerChanges
	s.mu.Unlock()

	existing, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.Debug("no session restored", zap.Error(err))
		return nil
	}
	if !existing.Live(s.now()) {
		return nil
	}

	s.mu.Lock()
	if s.stopped || s.providerChanges != seen {
		s.mu.Unlock()
		s.logger.Debug("restored session superseded by a provider change")
		return nil
	}
	s.publishLocked(existing)
	s.mu.Unlock()
	s.signal()
	return nil
}

func (s *Store) onProviderChange(next *models.AuthSession) {
	s.mu.Lock()
	s.providerChanges++
	s.mu.Unlock()
	s.Publish(next)
}

// Stop detaches from the provider, delivers what is already queued and stops
// the dispatcher. Later publications are dropped. Stop is idempotent.
func (s *Store) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	unsubscribe := s.providerUnsub
	s.providerUnsub = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	close(s.quit)
	if started {
		<-s.done
	}
}

// GetCurrentSession asks the provider for a valid session. Any failure is
// reported as "no session".
func (s *Store) GetCurrentSession(ctx context.Context) *models.Identity {
	current, err := s.provider.CurrentSession(ctx)
	if err != nil {
		s.logger.Debug("current session unavailable", zap.Error(err))
		return nil
	}
	if !current.Live(s.now()) {
		return nil
	}
	return cloneIdentity(&current.Identity)
}

func (s *Store) Current() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	return cloneIdentity(&s.session.Identity)
}

func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// Subscribe registers fn for every later transition. The returned function
// removes it; calling it more than once, or from inside fn, is safe.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListenerID
	s.nextListenerID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Publish records a transition delivered from outside (refresh, remote
// sign-out, restored session). A nil or expired session means signed out.
// Notifications keep publication order and are not deduplicated.
func (s *Store) Publish(next *models.AuthSession) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.publishLocked(next)
	s.mu.Unlock()

	s.signal()
}

// publishLocked must be called with s.mu held.
func (s *Store) publishLocked(next *models.AuthSession) {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}

	var identity *models.Identity
	if next.Live(s.now()) {
		copied := *next
		copied.Identity = *cloneIdentity(&next.Identity)
		s.session = &copied
		identity = cloneIdentity(&copied.Identity)
		s.armExpiry(copied.AccessToken, copied.ExpiresAt)
	} else {
		s.session = nil
	}
	s.queue = append(s.queue, identity)
}

func (s *Store) SignUp(ctx context.Context, input models.SignUpInput) (*models.Identity, error) {
	created, err := s.provider.SignUp(ctx, input)
	if err != nil {
		return nil, err
	}
	s.Publish(created)
	return cloneIdentity(&created.Identity), nil
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	signedIn, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.Publish(signedIn)
	return cloneIdentity(&signedIn.Identity), nil
}

// SignOut clears the local session even when the provider call fails.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.provider.SignOut(ctx)
	s.Publish(nil)
	return err
}

// armExpiry must be called with s.mu held.
func (s *Store) armExpiry(token string, expiresAt time.Time) {
	s.expiry = time.AfterFunc(expiresAt.Sub(s.now()), func() {
		s.mu.Lock()
		if s.stopped || s.session == nil || s.session.AccessToken != token {
			s.mu.Unlock()
			return
		}
		s.session = nil
		s.expiry = nil
		s.queue = append(s.queue, nil)
		s.mu.Unlock()

		s.logger.Info("session expired without refresh")
		s.signal()
	})
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) dispatch() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.quit:
			s.drain()
			return
		}
	}
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		identity := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		ids := slices.Sorted(maps.Keys(s.listeners))
		s.mu.Unlock()

		for _, id := range ids {
			s.mu.Lock()
			fn, ok := s.listeners[id]
			s.mu.Unlock()
			if ok {
				s.deliver(fn, cloneIdentity(identity))
			}
		}
	}
}

func (s *Store) deliver(fn Listener, identity *models.Identity) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session listener panicked", zap.Any("panic", r))
		}
	}()
	fn(identity)
}

func cloneIdentity(identity *models.Identity) *models.Identity {
	if identity == nil {
		return nil
	}
	copied := *identity
	copied.Metadata = maps.Clone(identity.Metadata)
	return &copied
}
