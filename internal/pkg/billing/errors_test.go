package billing

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"not found", NewNotFound("plan not found"), CodeNotFound},
		{"provider", NewProviderError("boom", errors.New("network")), CodeProvider},
		{"card declined", NewCardDeclined("declined", nil), CodeCardDeclined},
		{"quota", NewQuotaExceeded("limit reached"), CodeQuotaExceeded},
		{"signature", NewSignatureInvalid("bad signature"), CodeSignatureInvalid},
		{"wrapped", fmt.Errorf("consume: %w", NewQuotaExceeded("limit reached")), CodeQuotaExceeded},
		{"foreign", errors.New("plain"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := NewQuotaExceeded("limit reached")
	if !IsCode(err, CodeQuotaExceeded) {
		t.Error("expected quota_exceeded match")
	}
	if IsCode(err, CodeNotFound) {
		t.Error("quota error must not match not_found")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderError("failed to create customer", cause)
	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Error() != "provider_error: failed to create customer: connection reset" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := NewNotFound("subscription not found")
	if err.Error() != "not_found: subscription not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
