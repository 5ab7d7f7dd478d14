package view

import (
	"errors"
	"testing"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
)

func TestSelectViewIsTotal(t *testing.T) {
	cases := map[models.Role]ViewID{
		models.RoleTrainer: TrainerDashboard,
		models.RoleClient:  ClientDashboard,
		models.RoleSolo:    SoloDashboard,
		"":                 UnknownRole,
		"admin":            UnknownRole,
		"TRAINER":          UnknownRole,
	}
	seen := map[ViewID]models.Role{}
	for role, want := range cases {
		got := SelectView(role)
		if got != want {
			t.Fatalf("SelectView(%q) = %q, want %q", role, got, want)
		}
		if role.Valid() {
			if other, dup := seen[got]; dup {
				t.Fatalf("roles %q and %q share view %q", role, other, got)
			}
			seen[got] = role
		}
	}
}

func TestUnknownRoleViewCarriesError(t *testing.T) {
	if !errors.Is(UnknownRole.Err(), apperr.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole")
	}
	if SoloDashboard.Err() != nil {
		t.Fatalf("expected no error for a known view")
	}
	if UnknownRole.Message() == "" {
		t.Fatalf("expected a contact-support message")
	}
}

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine()
	if m.State().Phase != PhaseUnauthenticated {
		t.Fatalf("expected initial unauthenticated state")
	}
	if _, err := m.Load("user-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	state, err := m.Ready(&models.Profile{UserID: "user-1", Role: models.RoleTrainer})
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if state.View != TrainerDashboard || state.String() != "ready(trainer)" {
		t.Fatalf("unexpected state %v", state)
	}
	if _, err := m.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
}

func TestMachineRejectsBackTransitions(t *testing.T) {
	m := NewMachine()
	if _, err := m.Ready(&models.Profile{Role: models.RoleSolo}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected unauthenticated -> ready to be rejected, got %v", err)
	}
	_, _ = m.Load("user-1")
	_, _ = m.Ready(&models.Profile{UserID: "user-1", Role: models.RoleSolo})
	if _, err := m.Load("user-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ready -> loading to be rejected, got %v", err)
	}
	if m.State().Phase != PhaseReady {
		t.Fatalf("expected rejected transition to leave state unchanged")
	}
}

func TestMachineFailureOffersRetryForTimeouts(t *testing.T) {
	m := NewMachine()
	_, _ = m.Load("user-1")
	state, err := m.Fail(apperr.Wrap(apperr.ErrTimeout, "resolve"))
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if !state.Retry || state.UserID != "user-1" {
		t.Fatalf("expected retry affordance for user-1, got %+v", state)
	}
	if _, err := m.Load("user-1"); err != nil {
		t.Fatalf("expected retry from failed to be allowed: %v", err)
	}
}

func TestMachineUnknownRoleLandsInReady(t *testing.T) {
	m := NewMachine()
	_, _ = m.Load("user-1")
	state, err := m.Ready(&models.Profile{UserID: "user-1", Role: "coach"})
	if err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if state.View != UnknownRole || !errors.Is(state.Err, apperr.ErrUnknownRole) {
		t.Fatalf("expected unknown role view, got %+v", state)
	}
}
