package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Sentinel(t *testing.T) {
	errX := New(KindConflict, "Invalid token")
	wrapped := fmt.Errorf("verify email: %w", errX)
	if got := KindOf(wrapped); got != KindConflict {
		t.Errorf("KindOf = %q, want %q", got, KindConflict)
	}
	if !errors.Is(wrapped, errX) {
		t.Error("errors.Is should match the sentinel through wrapping")
	}
	if got := MessageOf(wrapped); got != "Invalid token" {
		t.Errorf("MessageOf = %q, want %q", got, "Invalid token")
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	err := errors.New("connection refused")
	if got := KindOf(err); got != KindInternal {
		t.Errorf("KindOf = %q, want %q", got, KindInternal)
	}
	if got := MessageOf(err); got != "Internal server error" {
		t.Errorf("MessageOf leaked %q", got)
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindFederationProvider, "federation provider request failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Wrap should keep cause in the chain")
	}
	if MessageOf(err) != "federation provider request failed" {
		t.Errorf("MessageOf = %q", MessageOf(err))
	}
}
