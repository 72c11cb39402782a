package services_test

import (
	"errors"
	"strings"
	"testing"

	"audioconv/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "convert", "ffmpeg", "exit status 1", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"convert", "ffmpeg", "exit status 1"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrTransient, "ingest", "put blob", "", errors.New("disk")), true},
		{services.ErrNotReady, true},
		{errors.Join(services.ErrNotReady, services.ErrJobFailed), false},
		{services.ErrUnauthorized, false},
		{services.ErrConflict, false},
		{nil, false},
	}
	for i, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Fatalf("case %d: IsRetryable(%v) = %v want %v", i, tc.err, got, tc.want)
		}
	}
}
