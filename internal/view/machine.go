package view

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
)

type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseLoading         Phase = "loading"
	PhaseReady           Phase = "ready"
	PhaseFailed          Phase = "failed"
)

var ErrInvalidTransition = errors.New("invalid view transition")

type State struct {
	Phase   Phase           `json:"phase"`
	UserID  string          `json:"user_id,omitempty"`
	Role    models.Role     `json:"role,omitempty"`
	View    ViewID          `json:"view,omitempty"`
	Profile *models.Profile `json:"profile,omitempty"`
	Err     error           `json:"-"`
	Retry   bool            `json:"retry,omitempty"`
}

func (s State) String() string {
	switch s.Phase {
	case PhaseReady:
		return fmt.Sprintf("ready(%s)", s.Role)
	case PhaseFailed:
		return fmt.Sprintf("failed(%s)", apperr.Kind(s.Err))
	default:
		return string(s.Phase)
	}
}

var allowed = map[Phase]map[Phase]bool{
	PhaseUnauthenticated: {PhaseLoading: true},
	PhaseLoading:         {PhaseReady: true, PhaseFailed: true, PhaseUnauthenticated: true},
	PhaseFailed:          {PhaseLoading: true, PhaseUnauthenticated: true},
	PhaseReady:           {PhaseUnauthenticated: true},
}

// Machine tracks the bootstrap phase. It only moves forward
// (unauthenticated → loading → ready/failed); the way back is sign-out, and a
// failed load may be retried.
type Machine struct {
	mu    sync.RWMutex
	state State
}

func NewMachine() *Machine {
	return &Machine{state: State{Phase: PhaseUnauthenticated}}
}

func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) Load(userID string) (State, error) {
	return m.transition(PhaseLoading, func(State) State {
		return State{Phase: PhaseLoading, UserID: userID}
	})
}

// Ready settles on the view for profile. A profile whose role is outside the
// closed set still lands in ready, on the UnknownRole view.
func (m *Machine) Ready(profile *models.Profile) (State, error) {
	v := SelectView(profile.Role)
	return m.transition(PhaseReady, func(State) State {
		return State{
			Phase:   PhaseReady,
			UserID:  profile.UserID,
			Role:    profile.Role,
			View:    v,
			Profile: profile,
			Err:     v.Err(),
		}
	})
}

func (m *Machine) Fail(err error) (State, error) {
	return m.transition(PhaseFailed, func(prev State) State {
		return State{
			Phase:  PhaseFailed,
			UserID: prev.UserID,
			Err:    err,
			Retry:  apperr.Retryable(err),
		}
	})
}

func (m *Machine) SignOut() (State, error) {
	return m.transition(PhaseUnauthenticated, func(State) State {
		return State{Phase: PhaseUnauthenticated}
	})
}

func (m *Machine) transition(phase Phase, build func(prev State) State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !allowed[m.state.Phase][phase] {
		return m.state, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state.Phase, phase)
	}
	m.state = build(m.state)
	return m.state, nil
}
