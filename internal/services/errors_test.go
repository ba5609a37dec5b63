package services_test

import (
	"errors"
	"strings"
	"testing"

	"dramamerge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrMergeFailed, "merge", "concat", "ffmpeg exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrMergeFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"merge", "concat", "ffmpeg exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToExternalTool(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, services.StatusSucceeded},
		{"no media", services.Wrap(services.ErrNoMediaFiles, "discover", "", "", nil), services.StatusNoMediaFiles},
		{"merge", services.Wrap(services.ErrMergeFailed, "merge", "", "", nil), services.StatusMergeFailed},
		{"cancel beats merge", services.Wrap(services.ErrCancelled, "merge", "", "", services.ErrMergeFailed), services.StatusCancelled},
		{"lookup", services.Wrap(services.ErrMetadataLookupFailed, "metadata", "", "", nil), services.StatusMetadataLookupFailed},
		{"unknown", errors.New("other"), services.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsJobFatal(t *testing.T) {
	if services.IsJobFatal(nil) {
		t.Fatal("nil must not be fatal")
	}
	if !services.IsJobFatal(services.Wrap(services.ErrNoMediaFiles, "discover", "", "", nil)) {
		t.Fatal("expected no media files to be fatal")
	}
	if services.IsJobFatal(services.Wrap(services.ErrMergeFailed, "merge", "", "", nil)) {
		t.Fatal("expected merge failure to be segment scoped")
	}
	if services.IsJobFatal(services.Wrap(services.ErrCancelled, "merge", "", "", nil)) {
		t.Fatal("expected cancellation to be segment scoped")
	}
}
