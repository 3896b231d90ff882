package workflow

import (
	"database/sql"
	"strings"
	"testing"

	"songflow/internal/config"
	"songflow/internal/queue"
	"songflow/internal/services/ace"
	"songflow/internal/testsupport"
)

// rejectSongUpdates installs a trigger that aborts every songs UPDATE
// matching when. The returned func removes it.
func (h *harness) rejectSongUpdates(t *testing.T, when string) func() {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+h.cfg.DatabasePath()+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open trigger connection: %v", err)
	}
	stmt := `CREATE TRIGGER reject_song_write BEFORE UPDATE ON songs WHEN ` + when +
		` BEGIN SELECT RAISE(ABORT, 'disk I/O error'); END`
	if _, err := db.Exec(stmt); err != nil {
		_ = db.Close()
		t.Fatalf("create trigger: %v", err)
	}
	drop := func() {
		if _, err := db.Exec(`DROP TRIGGER IF EXISTS reject_song_write`); err != nil {
			t.Errorf("drop trigger: %v", err)
		}
	}
	t.Cleanup(func() {
		drop()
		_ = db.Close()
	})
	return drop
}

func TestStoreWriteFailureMarksSongError(t *testing.T) {
	tests := []struct {
		name      string
		start     queue.Status
		when      string
		erroredAt queue.Status
		operation string
	}{
		{
			name:      "metadata",
			start:     queue.StatusPending,
			when:      `NEW.status = 'metadata_ready'`,
			erroredAt: queue.StatusGeneratingMetadata,
			operation: "persist metadata",
		},
		{
			name:      "submit",
			start:     queue.StatusMetadataReady,
			when:      `NEW.status = 'generating_audio'`,
			erroredAt: queue.StatusSubmittingToACE,
			operation: "persist task id",
		},
		{
			name:      "save",
			start:     queue.StatusGeneratingAudio,
			when:      `NEW.status = 'ready'`,
			erroredAt: queue.StatusSaving,
			operation: "persist save",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(c *config.Config) { c.Workflow.BufferTarget = 0 })
			sess := testsupport.NewSession(t, h.store, queue.ModeEndless)
			song := testsupport.AddSong(t, h.store, sess.ID, 1, tc.start)
			h.rejectSongUpdates(t, tc.when)

			h.tick(t)
			got := h.song(t, song.ID)
			if got.Status != queue.StatusError || got.ErroredAtStatus != tc.erroredAt {
				t.Fatalf("unexpected song state: %s errored_at=%s", got.Status, got.ErroredAtStatus)
			}
			if !strings.Contains(got.ErrorMessage, tc.operation) || !strings.Contains(got.ErrorMessage, "disk I/O error") {
				t.Fatalf("unexpected error message %q", got.ErrorMessage)
			}
			if busy := h.mgr.State().Busy(sess.ID); len(busy) != 0 {
				t.Fatalf("expected flags released, got %v", busy)
			}
		})
	}
}

func TestMetadataWriteFailureDoesNotBlockSession(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Workflow.BufferTarget = 0 })
	sess := testsupport.NewSession(t, h.store, queue.ModeEndless)
	first := testsupport.AddSong(t, h.store, sess.ID, 1, queue.StatusPending)
	second := testsupport.AddSong(t, h.store, sess.ID, 2, queue.StatusPending)
	drop := h.rejectSongUpdates(t, `NEW.status = 'metadata_ready'`)

	h.tick(t)
	if got := h.song(t, first.ID); got.Status != queue.StatusError {
		t.Fatalf("expected first song in error, got %s", got.Status)
	}

	drop()
	h.tick(t)
	if got := h.song(t, second.ID); got.Status != queue.StatusMetadataReady {
		t.Fatalf("expected second song to advance, got %s", got.Status)
	}
}

func TestCoverWriteFailureReleasesClaim(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Workflow.BufferTarget = 0 })
	h.audio.setState(ace.StatePending)
	sess := testsupport.NewSession(t, h.store, queue.ModeEndless)
	song := testsupport.AddSong(t, h.store, sess.ID, 1, queue.StatusReady)
	h.rejectSongUpdates(t, `NEW.cover_url IS NOT NULL`)

	h.tick(t)
	h.tick(t)

	if calls := h.image.Calls(); calls != 1 {
		t.Fatalf("expected one cover attempt, got %d", calls)
	}
	got := h.song(t, song.ID)
	if got.Status != queue.StatusReady || got.CoverClaimedAt != nil || got.CoverURL != "" {
		t.Fatalf("unexpected song: status=%s claimed=%v cover=%q", got.Status, got.CoverClaimedAt, got.CoverURL)
	}
	if !strings.Contains(got.CoverError, "persist cover") {
		t.Fatalf("unexpected cover error %q", got.CoverError)
	}
}
