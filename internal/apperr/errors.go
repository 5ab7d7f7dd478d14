// Package apperr holds the error taxonomy shared by the bootstrap flow and the
// HTTP layer. Callers match with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrTransport    = errors.New("transport error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrTimeout      = errors.New("timeout")
	ErrUnknownRole  = errors.New("unknown role")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	KindTransport   = "transport"
	KindNotFound    = "not_found"
	KindConflict    = "conflict"
	KindTimeout     = "timeout"
	KindUnknownRole = "unknown_role"
	KindInternal    = "internal"
)

// Wrap adds context while keeping the sentinel reachable.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Transport marks err as a transport failure without hiding the cause.
func Transport(err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrUnknownRole):
		return KindUnknownRole
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}

// UserVisible reports whether err belongs to the failures surfaced to the UI.
// Not-found and conflict are absorbed by the profile synchronizer.
func UserVisible(err error) bool {
	switch Kind(err) {
	case KindTransport, KindTimeout, KindUnknownRole:
		return true
	default:
		return false
	}
}

// Retryable reports whether the UI should offer a retry affordance.
func Retryable(err error) bool {
	switch Kind(err) {
	case KindTransport, KindTimeout:
		return true
	default:
		return false
	}
}
