package services_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"songflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithSongID(ctx, "song-9")
	ctx = services.WithStage(ctx, "metadata")
	ctx = services.WithRequestID(ctx, "req-123")

	want := services.Call{SessionID: "sess-1", SongID: "song-9", Stage: "metadata", RequestID: "req-123"}
	if diff := cmp.Diff(want, services.CallFromContext(ctx)); diff != "" {
		t.Fatalf("call mismatch (-want +got):\n%s", diff)
	}
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-123" {
		t.Fatalf("unexpected request id: %v %v", id, ok)
	}
}

func TestWithCallKeepsExistingFields(t *testing.T) {
	ctx := services.WithCall(context.Background(), services.Call{SessionID: "s", SongID: "a"})
	ctx = services.WithCall(ctx, services.Call{SongID: "b", Stage: "cover"})

	want := services.Call{SessionID: "s", SongID: "b", Stage: "cover"}
	if diff := cmp.Diff(want, services.CallFromContext(ctx)); diff != "" {
		t.Fatalf("call mismatch (-want +got):\n%s", diff)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	base := context.Background()
	ctx := services.WithStage(base, "")
	ctx = services.WithSongID(ctx, "")
	if ctx != base {
		t.Fatal("expected blank values to return the original context")
	}
	if got := services.CallFromContext(ctx); got != (services.Call{}) {
		t.Fatalf("expected empty call, got %+v", got)
	}
}

func TestSetRequestID(t *testing.T) {
	ctx := services.WithRequestID(context.Background(), "req-7")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	services.SetRequestID(req)
	if got := req.Header.Get(services.RequestIDHeader); got != "req-7" {
		t.Fatalf("header = %q", got)
	}
}
