package errors

import (
	"errors"
	"testing"
)

func TestClassAndReason(t *testing.T) {
	tests := []struct {
		name   string
		err    ControlPlaneError
		class  Class
		status int
	}{
		{"validation", Validation(ReasonMalformedMAC, "bad mac"), ClassValidation, 400},
		{"authz", Authz(ReasonUnknownDevice, "unknown"), ClassAuthz, 403},
		{"not found", NotFound("device_not_found", "no such device"), ClassNotFound, 404},
		{"conflict", Conflict(ReasonMACCollision, "mac taken"), ClassConflict, 409},
		{"collaborator", CollaboratorUnavailable(ReasonCADisabled, "ca disabled"), ClassCollaboratorUnavailable, 503},
		{"storage", Storage("io_error", "disk write failed", errors.New("disk full")), ClassStorage, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Class() != tt.class {
				t.Errorf("Class() = %v, want %v", tt.err.Class(), tt.class)
			}
			if !Is(tt.err, tt.class) {
				t.Errorf("Is(%v) = false, want true", tt.class)
			}
			if HTTPStatus(tt.err.Class()) != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", HTTPStatus(tt.err.Class()), tt.status)
			}
			if ReasonOf(tt.err) == "" {
				t.Errorf("ReasonOf returned empty string")
			}
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Storage("io_error", "write failed", cause)

	if !errors.Is(wrapped, cause) {
		t.Errorf("errors.Is did not find wrapped cause")
	}
	if wrapped.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", wrapped.Unwrap(), cause)
	}
}

func TestReasonOfNonControlPlaneError(t *testing.T) {
	if ReasonOf(errors.New("plain")) != "" {
		t.Errorf("expected empty reason for plain error")
	}
	if Is(errors.New("plain"), ClassValidation) {
		t.Errorf("expected Is to be false for plain error")
	}
}
