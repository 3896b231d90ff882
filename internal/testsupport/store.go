package testsupport

import (
	"context"
	"testing"

	"songflow/internal/config"
	"songflow/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates an active session for tests.
func NewSession(t testing.TB, store *queue.Store, mode queue.Mode) *queue.Session {
	t.Helper()

	session, err := store.CreateSession(context.Background(), queue.NewSession{
		Prompt: "warm lo-fi beats for a rainy afternoon",
		Mode:   mode,
	})
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}

// SampleMetadata returns a complete metadata set.
func SampleMetadata(title string) queue.SongMetadata {
	return queue.SongMetadata{
		Title:         title,
		Artist:        "The Testers",
		Genre:         "lo-fi",
		Subgenre:      "chillhop",
		Lyrics:        "[verse]\nrain on the window",
		Caption:       "lo-fi, mellow piano, vinyl crackle",
		CoverPrompt:   "a rainy window at dusk",
		BPM:           84,
		KeyScale:      "A minor",
		TimeSignature: "4/4",
		AudioDuration: 120,
	}
}

// AddSong inserts a song at orderIndex and walks it through the real store
// transitions until it reaches status. Only statuses reachable without
// violating the per-session single-flight guards are supported when several
// songs are advanced in one session.
func AddSong(t testing.TB, store *queue.Store, sessionID string, orderIndex float64, status queue.Status) *queue.Song {
	t.Helper()
	ctx := context.Background()

	song, err := store.InsertPendingSong(ctx, sessionID, orderIndex)
	if err != nil {
		t.Fatalf("InsertPendingSong: %v", err)
	}
	step := func(ok bool, err error, what string) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", what, err)
		}
		if !ok {
			t.Fatalf("%s: not applied", what)
		}
	}
	claim := func(from, to queue.Status) {
		t.Helper()
		ok, err := store.ClaimSong(ctx, song.ID, from, to)
		step(ok, err, "claim "+string(from)+"->"+string(to))
	}

	if status == queue.StatusPending {
		return mustGet(t, store, song.ID)
	}
	claim(queue.StatusPending, queue.StatusGeneratingMetadata)
	switch status {
	case queue.StatusGeneratingMetadata:
		return mustGet(t, store, song.ID)
	case queue.StatusError, queue.StatusRetryPending:
		ok, err := store.MarkError(ctx, song.ID, queue.StatusGeneratingMetadata, "metadata provider failed")
		step(ok, err, "mark error")
		if status == queue.StatusRetryPending {
			ok, err = store.RequestRetry(ctx, song.ID)
			step(ok, err, "request retry")
		}
		return mustGet(t, store, song.ID)
	}

	ok, err := store.CompleteMetadata(ctx, song.ID, SampleMetadata("Song "+song.ID[:8]))
	step(ok, err, "complete metadata")
	if status == queue.StatusMetadataReady {
		return mustGet(t, store, song.ID)
	}
	claim(queue.StatusMetadataReady, queue.StatusSubmittingToACE)
	if status == queue.StatusSubmittingToACE {
		return mustGet(t, store, song.ID)
	}
	ok, err = store.MarkSubmitted(ctx, song.ID, "task-"+song.ID[:8])
	step(ok, err, "mark submitted")
	if status == queue.StatusGeneratingAudio {
		return mustGet(t, store, song.ID)
	}
	claim(queue.StatusGeneratingAudio, queue.StatusSaving)
	if status == queue.StatusSaving {
		return mustGet(t, store, song.ID)
	}
	ok, err = store.CompleteSave(ctx, song.ID, queue.SaveResult{AudioURL: "http://media/" + song.ID, StoragePath: "/tmp/" + song.ID})
	step(ok, err, "complete save")
	if status == queue.StatusReady {
		return mustGet(t, store, song.ID)
	}
	if status == queue.StatusPlayed {
		if err := store.MarkPlayed(ctx, song.ID); err != nil {
			t.Fatalf("MarkPlayed: %v", err)
		}
		return mustGet(t, store, song.ID)
	}
	t.Fatalf("AddSong: unsupported status %s", status)
	return nil
}

func mustGet(t testing.TB, store *queue.Store, id string) *queue.Song {
	t.Helper()
	song, err := store.GetSong(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSong: %v", err)
	}
	return song
}
