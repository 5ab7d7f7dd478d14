// Package bootstrap drives the view machine from session transitions: each
// signed-in identity is resolved to its profile and the matching view.
package bootstrap

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/lostmarbl3/fai-trainsmart/internal/models"
	"github.com/lostmarbl3/fai-trainsmart/internal/session"
	"github.com/lostmarbl3/fai-trainsmart/internal/view"
	"go.uber.org/zap"
)

var (
	ErrAlreadyMounted = errors.New("controller already mounted")
	ErrNotMounted     = errors.New("controller not mounted")
	ErrNothingToRetry = errors.New("no failed load to retry")
)

type IdentitySource interface {
	Current() *models.Identity
	Subscribe(fn session.Listener) (unsubscribe func())
}

type Resolver interface {
	Resolve(ctx context.Context, identity models.Identity) (*models.Profile, error)
}

type Controller struct {
	source   IdentitySource
	resolver Resolver
	logger   *zap.Logger

	mu          sync.Mutex
	machine     *view.Machine
	mounted     bool
	generation  uint64
	notified    uint64
	identity    *models.Identity
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	watchers    map[uint64]func(view.State)
	nextWatcher uint64
	pending     []view.State
	emitting    bool
}

func NewController(source IdentitySource, resolver Resolver, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		source:   source,
		resolver: resolver,
		logger:   logger,
		machine:  view.NewMachine(),
		watchers: make(map[uint64]func(view.State)),
	}
}

// Mount subscribes to session transitions and evaluates the current
// identity. Resolutions run on ctx until Unmount.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.machine = view.NewMachine()
	c.identity = nil
	c.ctx, c.cancel = context.WithCancel(ctx)
	seen := c.notified
	c.mu.Unlock()

	unsubscribe := c.source.Subscribe(c.onIdentity)
	current := c.source.Current()

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	if c.notified != seen {
		// A notification delivered since Subscribe is newer than current.
		c.mu.Unlock()
		return nil
	}
	c.apply(current)
	return nil
}

// Unmount detaches from the session source. Resolutions still in flight are
// cancelled and their results discarded.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	c.generation++
	cancel := c.cancel
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *Controller) State() view.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State()
}

// Watch registers fn for every state change. Calls arrive one at a time in
// transition order.
func (c *Controller) Watch(fn func(view.State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

// Retry reloads the profile after a failed load.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return ErrNotMounted
	}
	if c.machine.State().Phase != view.PhaseFailed || c.identity == nil {
		c.mu.Unlock()
		return ErrNothingToRetry
	}
	states := c.startLoad(*c.identity)
	c.emit(states)
	return nil
}

func (c *Controller) onIdentity(identity *models.Identity) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.notified++
	c.apply(identity)
}

// apply must be called with c.mu held; it releases it.
func (c *Controller) apply(identity *models.Identity) {
	current := c.machine.State()
	var states []view.State

	if identity == nil {
		c.generation++
		c.identity = nil
		if current.Phase != view.PhaseUnauthenticated {
			states = c.step(states, c.machine.SignOut)
		}
		c.emit(states)
		return
	}

	switch current.Phase {
	case view.PhaseLoading, view.PhaseReady:
		if current.UserID == identity.ID {
			c.mu.Unlock()
			c.logger.Debug("duplicate session notification ignored", zap.String("user_id", identity.ID))
			return
		}
		c.generation++
		states = c.step(states, c.machine.SignOut)
	}
	states = append(states, c.startLoad(*identity)...)
	c.emit(states)
}

// startLoad must be called with c.mu held.
func (c *Controller) startLoad(identity models.Identity) []view.State {
	state, err := c.machine.Load(identity.ID)
	if err != nil {
		c.logger.Warn("load rejected", zap.Error(err))
		return nil
	}
	c.generation++
	c.identity = &identity
	go c.resolve(c.ctx, c.generation, identity)
	return []view.State{state}
}

func (c *Controller) resolve(ctx context.Context, generation uint64, identity models.Identity) {
	profile, err := c.resolver.Resolve(ctx, identity)

	c.mu.Lock()
	if !c.mounted || generation != c.generation {
		c.mu.Unlock()
		c.logger.Debug("stale profile resolution discarded", zap.String("user_id", identity.ID))
		return
	}

	var states []view.State
	if err != nil {
		c.logger.Warn("profile resolution failed", zap.String("user_id", identity.ID), zap.Error(err))
		states = c.step(states, func() (view.State, error) { return c.machine.Fail(err) })
	} else {
		states = c.step(states, func() (view.State, error) { return c.machine.Ready(profile) })
	}
	c.emit(states)
}

func (c *Controller) step(states []view.State, transition func() (view.State, error)) []view.State {
	state, err := transition()
	if err != nil {
		c.logger.Warn("view transition rejected", zap.Error(err))
		return states
	}
	return append(states, state)
}

// emit must be called with c.mu held; it releases it. Whoever finds the
// queue idle delivers it, so watchers never run concurrently.
func (c *Controller) emit(states []view.State) {
	c.pending = append(c.pending, states...)
	if c.emitting {
		c.mu.Unlock()
		return
	}
	c.emitting = true
	for len(c.pending) > 0 {
		state := c.pending[0]
		c.pending = c.pending[1:]
		ids := slices.Sorted(maps.Keys(c.watchers))
		c.mu.Unlock()

		c.logger.Debug("view state", zap.String("state", state.String()))
		for _, id := range ids {
			c.mu.Lock()
			fn, ok := c.watchers[id]
			c.mu.Unlock()
			if ok {
				fn(state)
			}
		}
		c.mu.Lock()
	}
	c.emitting = false
	c.mu.Unlock()
}
