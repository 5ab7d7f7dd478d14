package view

import (
	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/lostmarbl3/fai-trainsmart/internal/models"
)

type ViewID string

const (
	TrainerDashboard ViewID = "trainer_dashboard"
	ClientDashboard  ViewID = "client_dashboard"
	SoloDashboard    ViewID = "solo_dashboard"
	UnknownRole      ViewID = "unknown_role"
)

// SelectView maps a role to the view rendered for it. Every input yields a
// view; roles outside the closed set get UnknownRole.
func SelectView(role models.Role) ViewID {
	switch role {
	case models.RoleTrainer:
		return TrainerDashboard
	case models.RoleClient:
		return ClientDashboard
	case models.RoleSolo:
		return SoloDashboard
	default:
		return UnknownRole
	}
}

func (v ViewID) Err() error {
	if v == UnknownRole {
		return apperr.ErrUnknownRole
	}
	return nil
}

func (v ViewID) Title() string {
	switch v {
	case TrainerDashboard:
		return "Trainer dashboard"
	case ClientDashboard:
		return "Client dashboard"
	case SoloDashboard:
		return "Solo dashboard"
	default:
		return "Unknown role"
	}
}

// Message is the user-facing hint shown alongside the view, if any.
func (v ViewID) Message() string {
	if v == UnknownRole {
		return "Your account role is not recognized. Please contact support."
	}
	return ""
}
