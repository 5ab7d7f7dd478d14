package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindClassifiesWrappedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{Wrap(ErrTimeout, "resolve profile"), KindTimeout},
		{Transport(context.Canceled), KindTransport},
		{fmt.Errorf("create: %w", ErrConflict), KindConflict},
		{ErrNotFound, KindNotFound},
		{ErrUnknownRole, KindUnknownRole},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestTransportKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Transport(cause)
	if !errors.Is(err, ErrTransport) || !errors.Is(err, cause) {
		t.Fatalf("expected both sentinel and cause to be reachable, got %v", err)
	}
	if again := Transport(err); again != err {
		t.Fatalf("expected Transport to be idempotent")
	}
}

func TestOnlyTransportTimeoutAndUnknownRoleAreUserVisible(t *testing.T) {
	if !UserVisible(ErrTransport) || !UserVisible(ErrTimeout) || !UserVisible(ErrUnknownRole) {
		t.Fatalf("expected transport, timeout and unknown role to be user visible")
	}
	if UserVisible(ErrNotFound) || UserVisible(ErrConflict) {
		t.Fatalf("expected not found and conflict to be absorbed")
	}
	if Retryable(ErrUnknownRole) {
		t.Fatalf("unknown role must not offer a retry")
	}
}
