package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"songflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "metadata", "generate", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"metadata", "generate", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapCallClassifiesDeadline(t *testing.T) {
	err := services.WrapCall("audio", "submit", fmt.Errorf("post: %w", context.DeadlineExceeded))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if got := services.Outcome(err); got != "timeout" {
		t.Fatalf("expected timeout outcome, got %q", got)
	}

	err = services.WrapCall("cover", "generate", errors.New("500 from provider"))
	if got := services.Outcome(err); got != "provider_error" {
		t.Fatalf("expected provider_error outcome, got %q", got)
	}
	if services.WrapCall("cover", "generate", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestMessageDropsMarkerAndBoundsLength(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "metadata", "decode", "missing title", nil)
	if got := services.Message(err); got != "metadata: decode: missing title" {
		t.Fatalf("unexpected message %q", got)
	}
	long := errors.New(strings.Repeat("x", 5000))
	if got := services.Message(long); len(got) > 1003 {
		t.Fatalf("expected bounded message, got %d bytes", len(got))
	}
	if services.Message(nil) != "" {
		t.Fatal("expected empty message for nil error")
	}
}

func TestMessageTruncatesOnRuneBoundary(t *testing.T) {
	// the byte limit falls inside a two-byte rune
	long := errors.New("x" + strings.Repeat("é", 600))
	got := services.Message(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated message is not valid UTF-8: %q", got[len(got)-8:])
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis, got %q", got[len(got)-8:])
	}
	if body := strings.TrimSuffix(got, "..."); len(body) != 999 {
		t.Fatalf("expected cut at 999 bytes, got %d", len(body))
	}
}

func TestWrapCallKeepsExistingClassification(t *testing.T) {
	inner := services.Wrap(services.ErrValidation, "cover", "decode response", "no image", nil)
	err := services.WrapCall("cover", "image provider", inner)
	if services.Outcome(err) != "invalid_response" {
		t.Fatalf("expected invalid_response, got %q", services.Outcome(err))
	}
	if errors.Is(err, services.ErrExternalTool) {
		t.Fatal("classified errors must not gain a second marker")
	}
	if got := services.Message(err); got != "cover: image provider: cover: decode response: no image" {
		t.Fatalf("unexpected message %q", got)
	}
}
