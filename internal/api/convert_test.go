package api

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"songflow/internal/preflight"
	"songflow/internal/queue"
	"songflow/internal/workflow"
)

func TestFromSongFormatsTimestamps(t *testing.T) {
	completed := time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("X", 3600))
	song := &queue.Song{
		ID:                    "abc",
		SessionID:             "s1",
		OrderIndex:            1.5,
		Status:                queue.StatusReady,
		Title:                 "Night Drive",
		ErroredAtStatus:       queue.StatusGeneratingAudio,
		GenerationCompletedAt: &completed,
		CreatedAt:             completed.Add(-time.Minute),
	}
	dto := FromSong(song)
	if dto.CompletedAt != "2026-03-01T11:30:00.000Z" {
		t.Fatalf("CompletedAt = %q", dto.CompletedAt)
	}
	if dto.ErroredAt != "generating_audio" || dto.Status != "ready" {
		t.Fatalf("unexpected status fields: %+v", dto)
	}
	if FromSong(nil).ID != "" {
		t.Fatal("expected zero value for nil song")
	}
}

func TestFromStatusSummaryZeroFillsStats(t *testing.T) {
	summary := workflow.StatusSummary{
		Running:   true,
		SongStats: map[queue.Status]int{queue.StatusReady: 2},
		Sessions:  map[string][]string{"s1": {"poll"}},
	}
	got := FromStatusSummary(summary)
	if got.LastTick != "" {
		t.Fatalf("LastTick = %q, want empty for zero time", got.LastTick)
	}
	if got.SongStats["ready"] != 2 || got.SongStats["pending"] != 0 {
		t.Fatalf("unexpected stats: %v", got.SongStats)
	}
	if diff := cmp.Diff([]string{"poll"}, got.Sessions["s1"]); diff != "" {
		t.Fatalf("busy flags mismatch (-want +got):\n%s", diff)
	}
}

func TestFromPreflightSortsByName(t *testing.T) {
	got := FromPreflight([]preflight.Result{
		{Name: "llm", Passed: true},
		{Name: "ace", Passed: false, Detail: "connection refused"},
	})
	want := []PreflightCheck{
		{Name: "ace", Passed: false, Detail: "connection refused"},
		{Name: "llm", Passed: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("preflight mismatch (-want +got):\n%s", diff)
	}
}
