package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/session"
	"github.com/lostmarbl3/fai-trainsmart/internal/view"
)

type stubSource struct {
	mu        sync.Mutex
	current   *models.Identity
	listeners map[int]session.Listener
	next      int
}

func newStubSource(current *models.Identity) *stubSource {
	return &stubSource{current: current, listeners: map[int]session.Listener{}}
}

func (s *stubSource) Current() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *stubSource) Subscribe(fn session.Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *stubSource) publish(identity *models.Identity) {
	s.mu.Lock()
	s.current = identity
	fns := make([]session.Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(identity)
	}
}

func (s *stubSource) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

type call struct {
	identity models.Identity
	reply    chan reply
}

type reply struct {
	profile *models.Profile
	err     error
}

// gatedResolver hands every Resolve call to the test, which answers it.
type gatedResolver struct {
	calls chan call
}

func newGatedResolver() *gatedResolver {
	return &gatedResolver{calls: make(chan call, 16)}
}

func (r *gatedResolver) Resolve(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	c := call{identity: identity, reply: make(chan reply, 1)}
	r.calls <- c
	select {
	case rep := <-c.reply:
		return rep.profile, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *gatedResolver) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a Resolve call")
		return call{}
	}
}

func (r *gatedResolver) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-r.calls:
		t.Fatalf("unexpected Resolve call for %s", c.identity.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

type stateLog struct {
	states chan view.State
}

func watch(c *Controller) *stateLog {
	log := &stateLog{states: make(chan view.State, 64)}
	c.Watch(func(s view.State) { log.states <- s })
	return log
}

func (l *stateLog) next(t *testing.T) view.State {
	t.Helper()
	select {
	case s := <-l.states:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a state change")
		return view.State{}
	}
}

func (l *stateLog) expect(t *testing.T, want ...string) {
	t.Helper()
	for i, w := range want {
		if got := l.next(t).String(); got != w {
			t.Fatalf("state %d: expected %s, got %s", i, w, got)
		}
	}
}

func (l *stateLog) expectNone(t *testing.T) {
	t.Helper()
	select {
	case s := <-l.states:
		t.Fatalf("unexpected state change %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func identity(id string) *models.Identity {
	return &models.Identity{ID: id, Email: id + "@example.com"}
}

func profileFor(id string, role models.Role) *models.Profile {
	return &models.Profile{ID: "p-" + id, UserID: id, Email: id + "@example.com", Role: role}
}

func TestMountWithoutSessionStaysUnauthenticated(t *testing.T) {
	resolver := newGatedResolver()
	c := NewController(newStubSource(nil), resolver, nil)
	log := watch(c)

	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	if got := c.State().Phase; got != view.PhaseUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", got)
	}
	log.expectNone(t)
	resolver.expectNone(t)
	if err := c.Mount(context.Background()); !errors.Is(err, ErrAlreadyMounted) {
		t.Fatalf("expected ErrAlreadyMounted, got %v", err)
	}
}

func TestMountWithSessionLoadsMatchingView(t *testing.T) {
	cases := []struct {
		role models.Role
		view view.ViewID
	}{
		{models.RoleTrainer, view.TrainerDashboard},
		{models.RoleClient, view.ClientDashboard},
		{models.RoleSolo, view.SoloDashboard},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			resolver := newGatedResolver()
			c := NewController(newStubSource(identity("u1")), resolver, nil)
			log := watch(c)
			if err := c.Mount(context.Background()); err != nil {
				t.Fatalf("Mount: %v", err)
			}
			defer c.Unmount()

			log.expect(t, "loading")
			resolver.next(t).reply <- reply{profile: profileFor("u1", tc.role)}

			state := log.next(t)
			if state.Phase != view.PhaseReady || state.View != tc.view {
				t.Fatalf("expected ready on %s, got %s on %s", tc.view, state, state.View)
			}
		})
	}
}

func TestUnknownRoleLandsOnSupportView(t *testing.T) {
	resolver := newGatedResolver()
	c := NewController(newStubSource(identity("u1")), resolver, nil)
	log := watch(c)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	log.expect(t, "loading")
	resolver.next(t).reply <- reply{profile: profileFor("u1", models.Role("admin"))}

	state := log.next(t)
	if state.Phase != view.PhaseReady || state.View != view.UnknownRole {
		t.Fatalf("expected ready on unknown_role view, got %s on %s", state, state.View)
	}
	if !errors.Is(state.Err, apperr.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", state.Err)
	}
	if state.View.Message() == "" {
		t.Fatalf("expected a contact-support message")
	}
}

func TestTransportFailureOffersRetry(t *testing.T) {
	resolver := newGatedResolver()
	c := NewController(newStubSource(identity("u1")), resolver, nil)
	log := watch(c)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	log.expect(t, "loading")
	resolver.next(t).reply <- reply{err: apperr.Transport(errors.New("connection reset"))}

	failed := log.next(t)
	if failed.Phase != view.PhaseFailed || !failed.Retry {
		t.Fatalf("expected retryable failure, got %s retry=%v", failed, failed.Retry)
	}
	if failed.String() != "failed(transport)" {
		t.Fatalf("unexpected failure rendering %s", failed)
	}

	if err := c.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	log.expect(t, "loading")
	resolver.next(t).reply <- reply{profile: profileFor("u1", models.RoleSolo)}
	log.expect(t, "ready(solo)")

	if err := c.Retry(); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("expected ErrNothingToRetry once ready, got %v", err)
	}
}

func TestTimeoutFailureOffersRetry(t *testing.T) {
	resolver := newGatedResolver()
	c := NewController(newStubSource(identity("u1")), resolver, nil)
	log := watch(c)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	log.expect(t, "loading")
	resolver.next(t).reply <- reply{err: fmt.Errorf("%w: profile resolution exceeded 10s", apperr.ErrTimeout)}

	failed := log.next(t)
	if failed.String() != "failed(timeout)" || !failed.Retry {
		t.Fatalf("expected retryable timeout, got %s retry=%v", failed, failed.Retry)
	}
}

func TestDuplicateNotificationIsIgnored(t *testing.T) {
	source := newStubSource(identity("u1"))
	resolver := newGatedResolver()
	c := NewController(source, resolver, nil)
	log := watch(c)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	log.expect(t, "loading")
	pending := resolver.next(t)

	source.publish(identity("u1"))
	resolver.expectNone(t)
	log.expectNone(t)

	pending.reply <- reply{profile: profileFor("u1", models.RoleClient)}
	log.expect(t, "ready(client)")

	source.publish(identity("u1"))
	resolver.expectNone(t)
	log.expectNone(t)
}

func TestSignOutDiscardsInFlightResolution(t *testing.T) {
	source := newStubSource(identity("u1"))
	resolver := newGatedResolver()
	c := NewController(source, resolver, nil)
	log := watch(c)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	log.expect(t, "loading")
	pending := resolver.next(t)

	source.publish(nil)
	log.expect(t, "unauthenticated")

	pending.reply <- reply{profile: profileFor("u1", models.RoleTrainer)}
	log.expectNone(t)
	if got := c.State().Phase; got != view.PhaseUnauthenticated {
		t.Fatalf("expected stale result to be discarded, got %s", got)
	}
}

func TestSwitchingIdentityReloads(t *testing.T) {
	source := newStubSource(identity("u1"))
	resolver := newGatedResolver()
	c := NewController(source, resolver, nil)
	log := watch(c)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	log.expect(t, "loading")
	resolver.next(t).reply <- reply{profile: profileFor("u1", models.RoleTrainer)}
	log.expect(t, "ready(trainer)")

	source.publish(identity("u2"))
	log.expect(t, "unauthenticated", "loading")
	next := resolver.next(t)
	if next.identity.ID != "u2" {
		t.Fatalf("expected resolution for u2, got %s", next.identity.ID)
	}
	next.reply <- reply{profile: profileFor("u2", models.RoleClient)}

	state := log.next(t)
	if state.String() != "ready(client)" || state.UserID != "u2" {
		t.Fatalf("expected u2 ready as client, got %s for %s", state, state.UserID)
	}
}

func TestUnmountDropsLateResults(t *testing.T) {
	source := newStubSource(identity("u1"))
	resolver := newGatedResolver()
	c := NewController(source, resolver, nil)
	log := watch(c)
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	log.expect(t, "loading")
	pending := resolver.next(t)

	c.Unmount()
	c.Unmount()
	if source.listenerCount() != 0 {
		t.Fatalf("expected Unmount to unsubscribe from the session source")
	}

	pending.reply <- reply{profile: profileFor("u1", models.RoleSolo)}
	source.publish(nil)
	log.expectNone(t)
	if got := c.State().Phase; got != view.PhaseLoading {
		t.Fatalf("expected no state change after unmount, got %s", got)
	}
	if err := c.Retry(); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("expected ErrNotMounted, got %v", err)
	}
}

func TestWatcherMayUnsubscribeAndReadState(t *testing.T) {
	resolver := newGatedResolver()
	c := NewController(newStubSource(identity("u1")), resolver, nil)
	seen := make(chan view.Phase, 8)
	var unsubscribe func()
	unsubscribe = c.Watch(func(s view.State) {
		seen <- c.State().Phase
		unsubscribe()
	})
	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	resolver.next(t).reply <- reply{profile: profileFor("u1", models.RoleSolo)}
	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher was never called")
	}
	time.Sleep(50 * time.Millisecond)
	if len(seen) != 0 {
		t.Fatalf("expected a single delivery after unsubscribe, got %d more", len(seen))
	}
}

// signOutDuringMount signs out between Subscribe and Current, returning the
// identity it held before.
type signOutDuringMount struct {
	*stubSource
}

func (s signOutDuringMount) Current() *models.Identity {
	before := s.stubSource.Current()
	s.publish(nil)
	return before
}

func TestSignOutDuringMountWinsOverStaleCurrent(t *testing.T) {
	resolver := newGatedResolver()
	source := signOutDuringMount{newStubSource(identity("u1"))}
	c := NewController(source, resolver, nil)
	log := watch(c)

	if err := c.Mount(context.Background()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	defer c.Unmount()

	if got := c.State().Phase; got != view.PhaseUnauthenticated {
		t.Fatalf("expected unauthenticated, got %s", got)
	}
	log.expectNone(t)
	resolver.expectNone(t)
}
