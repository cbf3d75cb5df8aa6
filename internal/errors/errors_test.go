// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestAppError_Error verifies message formatting with and without a cause.
func TestAppError_Error(t *testing.T) {
	e := New(ErrManifestMissing, "no hashes.txt in folder")
	if got := e.Error(); got != "[MANIFEST_MISSING] no hashes.txt in folder" {
		t.Errorf("Error() = %q", got)
	}

	w := Wrap(ErrFolderMove, "move a -> b", errors.New("permission denied"))
	if !strings.HasSuffix(w.Error(), ": permission denied") {
		t.Errorf("Error() = %q, want cause suffix", w.Error())
	}
}

// TestIs_wrapped verifies Is sees through fmt.Errorf wrapping.
func TestIs_wrapped(t *testing.T) {
	base := New(ErrSessionExpired, "portal session expired")
	wrapped := fmt.Errorf("upload: %w", base)

	if !Is(wrapped, ErrSessionExpired) {
		t.Error("Is() = false for wrapped AppError")
	}
	if Is(wrapped, ErrNotFound) {
		t.Error("Is() = true for different code")
	}
	if Is(errors.New("plain"), ErrInternal) {
		t.Error("Is() = true for plain error")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	w := Wrap(ErrReportFailed, "write pdf", cause)
	if !errors.Is(w, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(errors.New("x")); got != ErrInternal {
		t.Errorf("CodeOf(plain) = %s", got)
	}
	if got := CodeOf(fmt.Errorf("ctx: %w", New(ErrInvalid, "bad"))); got != ErrInvalid {
		t.Errorf("CodeOf(wrapped) = %s", got)
	}
}

// TestExitCode verifies the CLI exit status contract.
func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"manifest missing", New(ErrManifestMissing, "x"), 1},
		{"plain error", errors.New("boom"), 1},
		{"session expired", New(ErrSessionExpired, "x"), 2},
		{"wrapped session expired", fmt.Errorf("run: %w", New(ErrSessionExpired, "x")), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
