package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message",
			err:  New(ErrCodeInvalidGraph, "unsupported version %q", "9"),
			want: `INVALID_GRAPH: unsupported version "9"`,
		},
		{
			name: "cause",
			err:  Wrap(ErrCodeStorage, cause, "load positions for %s", "mathlib"),
			want: "STORAGE_ERROR: load positions for mathlib: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(Wrap(ErrCodeStorage, cause, "x"), cause) {
		t.Error("Wrap should keep the cause visible to errors.Is")
	}
}

func TestClassification(t *testing.T) {
	badProject := New(ErrCodeInvalidProject, "project %q contains a path separator", "a/b")
	storage := Wrap(ErrCodeStorage, errors.New("EOF"), "merge positions")

	tests := []struct {
		name    string
		err     error
		code    Code
		invalid bool
		status  int
		message string
	}{
		{"invalid project", badProject, ErrCodeInvalidProject, true, 400, `project "a/b" contains a path separator`},
		{"wrapped by fmt", fmt.Errorf("positions show: %w", badProject), ErrCodeInvalidProject, true, 400, `project "a/b" contains a path separator`},
		{"bad config", New(ErrCodeInvalidConfig, "physics.damping must be in (0, 1]"), ErrCodeInvalidConfig, true, 400, "physics.damping must be in (0, 1]"},
		{"not found", New(ErrCodeNotFound, "node %q", "Nat.add"), ErrCodeNotFound, false, 404, `node "Nat.add"`},
		{"storage", storage, ErrCodeStorage, false, 502, "merge positions"},
		{"timeout", New(ErrCodeTimeout, "warmup"), ErrCodeTimeout, false, 504, "warmup"},
		{"unsupported", New(ErrCodeUnsupported, "format pdf"), ErrCodeUnsupported, false, 501, "format pdf"},
		{"plain", errors.New("boom"), "", false, 500, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %q, want %q", got, tt.code)
			}
			if tt.code != "" && !Is(tt.err, tt.code) {
				t.Errorf("Is(err, %q) = false", tt.code)
			}
			if got := IsInvalid(tt.err); got != tt.invalid {
				t.Errorf("IsInvalid() = %v, want %v", got, tt.invalid)
			}
			if got := HTTPStatus(tt.err); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
			if got := UserMessage(tt.err); got != tt.message {
				t.Errorf("UserMessage() = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestNilErrors(t *testing.T) {
	if Is(nil, ErrCodeInternal) {
		t.Error("Is(nil) should be false")
	}
	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
	if IsInvalid(nil) {
		t.Error("IsInvalid(nil) should be false")
	}
}
