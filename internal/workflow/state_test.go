package workflow

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchedulerStateFlags(t *testing.T) {
	s := NewSchedulerState()
	st := s.ensure(context.Background(), "b")
	s.ensure(context.Background(), "a")
	if again := s.ensure(context.Background(), "b"); again != st {
		t.Fatal("ensure must return the existing record")
	}
	if diff := cmp.Diff([]string{"a", "b"}, s.Tracked()); diff != "" {
		t.Fatalf("tracked mismatch (-want +got):\n%s", diff)
	}

	if !s.acquire(st, flagCover) {
		t.Fatal("expected first acquire to succeed")
	}
	if s.acquire(st, flagCover) {
		t.Fatal("expected second acquire to fail while held")
	}
	if !s.acquire(st, flagPoll) {
		t.Fatal("flags are independent")
	}
	if diff := cmp.Diff([]string{"cover", "poll"}, s.Busy("b")); diff != "" {
		t.Fatalf("busy mismatch (-want +got):\n%s", diff)
	}
	s.release(st, flagCover)
	if !s.acquire(st, flagCover) {
		t.Fatal("expected acquire after release")
	}
}

func TestSchedulerStateDiscardCancelsAndIsolates(t *testing.T) {
	s := NewSchedulerState()
	old := s.ensure(context.Background(), "x")
	if !s.acquire(old, flagMetadata) {
		t.Fatal("acquire failed")
	}
	if !s.discard("x") || s.discard("x") {
		t.Fatal("discard should report whether a record existed")
	}
	if old.ctx.Err() == nil {
		t.Fatal("discard must cancel the session context")
	}
	if s.acquire(old, flagCover) {
		t.Fatal("cancelled record must not hand out flags")
	}

	fresh := s.ensure(context.Background(), "x")
	s.release(old, flagMetadata)
	if !s.acquire(fresh, flagMetadata) {
		t.Fatal("new record must start with clear flags")
	}
	if s.Busy("missing") != nil {
		t.Fatal("unknown session has no flags")
	}
}
