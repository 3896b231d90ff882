package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"songflow/internal/queue"
	"songflow/internal/testsupport"
)

func newStore(t *testing.T) *queue.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func TestCreateSessionDefaults(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	session, err := store.CreateSession(ctx, queue.NewSession{Prompt: "  synthwave drive  "})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.Prompt != "synthwave drive" {
		t.Fatalf("prompt not trimmed: %q", session.Prompt)
	}
	if session.Mode != queue.ModeEndless || session.Status != queue.SessionActive {
		t.Fatalf("unexpected defaults: mode=%s status=%s", session.Mode, session.Status)
	}
	if _, err := store.CreateSession(ctx, queue.NewSession{Prompt: " "}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if _, err := store.CreateSession(ctx, queue.NewSession{Prompt: "x", Mode: "forever"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStatusTransitionsAreValidated(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	if err := store.UpdateSessionStatus(ctx, session.ID, queue.SessionClosing); err != nil {
		t.Fatalf("active -> closing: %v", err)
	}
	if err := store.UpdateSessionStatus(ctx, session.ID, queue.SessionClosed); err != nil {
		t.Fatalf("closing -> closed: %v", err)
	}
	err := store.UpdateSessionStatus(ctx, session.ID, queue.SessionActive)
	if !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition reopening a closed session, got %v", err)
	}
	if _, err := store.InsertPendingSong(ctx, session.ID, 1); err == nil {
		t.Fatal("closed sessions must not accept songs")
	}

	serviced, err := store.ListServicedSessions(ctx)
	if err != nil {
		t.Fatalf("ListServicedSessions: %v", err)
	}
	if len(serviced) != 0 {
		t.Fatalf("closed session still serviced: %d", len(serviced))
	}
}

func TestUpdateSessionPromptBumpsEpoch(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	before := testsupport.AddSong(t, store, session.ID, 1, queue.StatusPending)
	updated, err := store.UpdateSessionPrompt(ctx, session.ID, "dark techno")
	if err != nil {
		t.Fatalf("UpdateSessionPrompt: %v", err)
	}
	if updated.PromptEpoch != session.PromptEpoch+1 || updated.Prompt != "dark techno" {
		t.Fatalf("unexpected session after prompt update: %+v", updated)
	}
	after := testsupport.AddSong(t, store, session.ID, 2, queue.StatusPending)
	if before.PromptEpoch == after.PromptEpoch {
		t.Fatalf("songs should record the epoch they were created under: %d vs %d", before.PromptEpoch, after.PromptEpoch)
	}
}

func TestClaimNextPendingIsSingleFlightPerSession(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)
	other := testsupport.NewSession(t, store, queue.ModeEndless)

	second := testsupport.AddSong(t, store, session.ID, 2, queue.StatusPending)
	first := testsupport.AddSong(t, store, session.ID, 1, queue.StatusPending)
	foreign := testsupport.AddSong(t, store, other.ID, 1, queue.StatusPending)

	claimed, err := store.ClaimNextPending(ctx, session.ID)
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected lowest order song %s, got %+v", first.ID, claimed)
	}
	if claimed.Status != queue.StatusGeneratingMetadata || claimed.GenerationStartedAt == nil {
		t.Fatalf("claim did not return the updated row: %+v", claimed)
	}

	again, err := store.ClaimNextPending(ctx, session.ID)
	if err != nil {
		t.Fatalf("ClaimNextPending second: %v", err)
	}
	if again != nil {
		t.Fatalf("second claim must be refused while %s is generating metadata, got %s", first.ID, again.ID)
	}

	otherClaim, err := store.ClaimNextPending(ctx, other.ID)
	if err != nil || otherClaim == nil || otherClaim.ID != foreign.ID {
		t.Fatalf("sessions must not block each other: %+v %v", otherClaim, err)
	}

	ok, err := store.CompleteMetadata(ctx, first.ID, testsupport.SampleMetadata("First"))
	if err != nil || !ok {
		t.Fatalf("CompleteMetadata: ok=%v err=%v", ok, err)
	}
	next, err := store.ClaimNextPending(ctx, session.ID)
	if err != nil || next == nil || next.ID != second.ID {
		t.Fatalf("expected %s after guard cleared, got %+v %v", second.ID, next, err)
	}
}

func TestConcurrentClaimsProduceOneWinner(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)
	for i := 1; i <= 3; i++ {
		testsupport.AddSong(t, store, session.ID, float64(i), queue.StatusPending)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			song, err := store.ClaimNextPending(ctx, session.ID)
			if err != nil {
				t.Errorf("ClaimNextPending: %v", err)
				return
			}
			if song != nil {
				mu.Lock()
				winners = append(winners, song.ID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}
}

func TestClaimNextForSubmitGuardsActiveAudio(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	active := testsupport.AddSong(t, store, session.ID, 1, queue.StatusGeneratingAudio)
	waiting := testsupport.AddSong(t, store, session.ID, 2, queue.StatusMetadataReady)

	song, err := store.ClaimNextForSubmit(ctx, session.ID)
	if err != nil {
		t.Fatalf("ClaimNextForSubmit: %v", err)
	}
	if song != nil {
		t.Fatalf("submit must wait while %s generates audio", active.ID)
	}

	ok, err := store.ClaimSong(ctx, active.ID, queue.StatusGeneratingAudio, queue.StatusSaving)
	if err != nil || !ok {
		t.Fatalf("claim saving: %v %v", ok, err)
	}
	song, err = store.ClaimNextForSubmit(ctx, session.ID)
	if err != nil || song == nil || song.ID != waiting.ID {
		t.Fatalf("expected %s once audio left generating, got %+v %v", waiting.ID, song, err)
	}
	if song.Status != queue.StatusSubmittingToACE {
		t.Fatalf("unexpected status %s", song.Status)
	}
}

func TestClaimSongRejectsInvalidAndLostRaces(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)
	song := testsupport.AddSong(t, store, session.ID, 1, queue.StatusPending)

	if _, err := store.ClaimSong(ctx, song.ID, queue.StatusPending, queue.StatusReady); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	ok, err := store.ClaimSong(ctx, song.ID, queue.StatusMetadataReady, queue.StatusSubmittingToACE)
	if err != nil {
		t.Fatalf("ClaimSong: %v", err)
	}
	if ok {
		t.Fatal("claim from a status the song is not in must report false")
	}
	got, _ := store.GetSong(ctx, song.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("song changed on refused claim: %s", got.Status)
	}
}

func TestCompleteSaveCountsGeneratedSongs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	song := testsupport.AddSong(t, store, session.ID, 1, queue.StatusReady)
	if song.AudioURL == "" || song.GenerationCompletedAt == nil {
		t.Fatalf("ready song missing audio location: %+v", song)
	}
	reloaded, err := store.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if reloaded.SongsGenerated != 1 {
		t.Fatalf("expected songs_generated=1, got %d", reloaded.SongsGenerated)
	}

	ok, err := store.CompleteSave(ctx, song.ID, queue.SaveResult{AudioURL: "again"})
	if err != nil {
		t.Fatalf("CompleteSave: %v", err)
	}
	if ok {
		t.Fatal("a song that is not saving must not complete twice")
	}
	reloaded, _ = store.GetSession(ctx, session.ID)
	if reloaded.SongsGenerated != 1 {
		t.Fatalf("count moved on refused save: %d", reloaded.SongsGenerated)
	}
}

func TestMarkErrorAndRetryFlow(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)
	song := testsupport.AddSong(t, store, session.ID, 1, queue.StatusGeneratingAudio)

	ok, err := store.ClaimSong(ctx, song.ID, queue.StatusGeneratingAudio, queue.StatusSaving)
	if err != nil || !ok {
		t.Fatalf("claim saving: %v %v", ok, err)
	}
	ok, err = store.MarkError(ctx, song.ID, queue.StatusSaving, "disk full")
	if err != nil || !ok {
		t.Fatalf("MarkError: %v %v", ok, err)
	}
	failed, _ := store.GetSong(ctx, song.ID)
	if failed.Status != queue.StatusError || failed.ErroredAtStatus != queue.StatusSaving || failed.ErrorMessage != "disk full" {
		t.Fatalf("unexpected failed song: %+v", failed)
	}

	if _, err := store.MarkError(ctx, song.ID, queue.StatusReady, "x"); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("ready -> error is not allowed, got %v", err)
	}

	ok, err = store.RequestRetry(ctx, song.ID)
	if err != nil || !ok {
		t.Fatalf("RequestRetry: %v %v", ok, err)
	}
	ok, err = store.RequestRetry(ctx, song.ID)
	if err != nil || ok {
		t.Fatalf("retry only applies to errored songs: %v %v", ok, err)
	}

	target, ok, err := store.RevertRetry(ctx, song.ID)
	if err != nil || !ok {
		t.Fatalf("RevertRetry: %v %v", ok, err)
	}
	if target != queue.StatusMetadataReady {
		t.Fatalf("audio-stage failures resume at metadata_ready, got %s", target)
	}
	resumed, _ := store.GetSong(ctx, song.ID)
	if resumed.Status != queue.StatusMetadataReady || resumed.ACETaskID != "" || resumed.ErrorMessage != "" || resumed.RetryCount != 1 {
		t.Fatalf("retry did not reset the attempt: %+v", resumed)
	}
	if resumed.Title == "" {
		t.Fatal("metadata must survive an audio-stage retry")
	}

	if _, ok, err := store.RevertRetry(ctx, song.ID); err != nil || ok {
		t.Fatalf("second revert must be a no-op: %v %v", ok, err)
	}
}

func TestRetryOfMetadataFailureRestartsFromPending(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)
	song := testsupport.AddSong(t, store, session.ID, 1, queue.StatusRetryPending)

	target, ok, err := store.RevertRetry(ctx, song.ID)
	if err != nil || !ok {
		t.Fatalf("RevertRetry: %v %v", ok, err)
	}
	if target != queue.StatusPending {
		t.Fatalf("expected pending, got %s", target)
	}
}

func TestCoverClaimLifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)
	song := testsupport.AddSong(t, store, session.ID, 1, queue.StatusMetadataReady)
	if !song.NeedsCover() {
		t.Fatal("metadata_ready song with a cover prompt needs a cover")
	}

	ok, err := store.ClaimCover(ctx, song.ID)
	if err != nil || !ok {
		t.Fatalf("ClaimCover: %v %v", ok, err)
	}
	ok, err = store.ClaimCover(ctx, song.ID)
	if err != nil || ok {
		t.Fatalf("second cover claim must fail: %v %v", ok, err)
	}
	if err := store.SetCover(ctx, song.ID, "http://media/cover.png"); err != nil {
		t.Fatalf("SetCover: %v", err)
	}
	done, _ := store.GetSong(ctx, song.ID)
	if done.CoverURL == "" || done.CoverClaimedAt != nil || done.NeedsCover() {
		t.Fatalf("cover not recorded: %+v", done)
	}
}

func TestFailCoverRespectsTransitionTable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	inFlight := testsupport.AddSong(t, store, session.ID, 1, queue.StatusMetadataReady)
	ready := testsupport.AddSong(t, store, session.ID, 2, queue.StatusReady)

	status, err := store.FailCover(ctx, inFlight.ID, "image provider down")
	if err != nil {
		t.Fatalf("FailCover: %v", err)
	}
	if status != queue.StatusError {
		t.Fatalf("metadata_ready cover failure should error the song, got %s", status)
	}
	got, _ := store.GetSong(ctx, inFlight.ID)
	if got.CoverError == "" || got.ErroredAtStatus != queue.StatusMetadataReady {
		t.Fatalf("cover failure not recorded: %+v", got)
	}

	status, err = store.FailCover(ctx, ready.ID, "")
	if err != nil {
		t.Fatalf("FailCover ready: %v", err)
	}
	if status != queue.StatusReady {
		t.Fatalf("ready songs stay ready on cover failure, got %s", status)
	}
	got, _ = store.GetSong(ctx, ready.ID)
	if got.CoverError == "" || got.NeedsCover() {
		t.Fatalf("failed cover must not be retried: %+v", got)
	}
	if _, err := store.FailCover(ctx, "missing", "x"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevertTransientStatuses(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	meta := testsupport.AddSong(t, store, session.ID, 1, queue.StatusGeneratingMetadata)
	audio := testsupport.AddSong(t, store, session.ID, 2, queue.StatusGeneratingAudio)
	ready := testsupport.AddSong(t, store, session.ID, 3, queue.StatusReady)

	changed, err := store.RevertTransientStatuses(ctx, session.ID)
	if err != nil {
		t.Fatalf("RevertTransientStatuses: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 reverted songs, got %d", changed)
	}
	got := map[string]queue.Status{}
	for _, id := range []string{meta.ID, audio.ID, ready.ID} {
		s, _ := store.GetSong(ctx, id)
		got[id] = s.Status
		if id == audio.ID && s.ACETaskID != "" {
			t.Fatal("reverted audio song must drop its task id")
		}
	}
	want := map[string]queue.Status{
		meta.ID:  queue.StatusPending,
		audio.ID: queue.StatusMetadataReady,
		ready.ID: queue.StatusReady,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("revert mismatch (-want +got):\n%s", diff)
	}
}

func TestRecoverFromRestartKeepsPollableAudio(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	meta := testsupport.AddSong(t, store, session.ID, 1, queue.StatusGeneratingMetadata)
	saving := testsupport.AddSong(t, store, session.ID, 2, queue.StatusSaving)
	submitting := testsupport.AddSong(t, store, session.ID, 3, queue.StatusMetadataReady)
	if ok, err := store.ClaimSong(ctx, submitting.ID, queue.StatusMetadataReady, queue.StatusSubmittingToACE); err != nil || !ok {
		t.Fatalf("claim submit: %v %v", ok, err)
	}
	cover := testsupport.AddSong(t, store, session.ID, 4, queue.StatusReady)
	if ok, err := store.ClaimCover(ctx, cover.ID); err != nil || !ok {
		t.Fatalf("ClaimCover: %v %v", ok, err)
	}

	if _, err := store.RecoverFromRestart(ctx, session.ID); err != nil {
		t.Fatalf("RecoverFromRestart: %v", err)
	}

	check := func(id string, want queue.Status) *queue.Song {
		t.Helper()
		s, err := store.GetSong(ctx, id)
		if err != nil {
			t.Fatalf("GetSong: %v", err)
		}
		if s.Status != want {
			t.Fatalf("song %s: got %s want %s", id, s.Status, want)
		}
		return s
	}
	check(meta.ID, queue.StatusPending)
	if s := check(saving.ID, queue.StatusGeneratingAudio); s.ACETaskID == "" {
		t.Fatal("saving song must keep its task id to resume polling")
	}
	check(submitting.ID, queue.StatusMetadataReady)
	if s := check(cover.ID, queue.StatusReady); s.CoverClaimedAt != nil {
		t.Fatal("cover claims must be released on recovery")
	}
}

func TestInterruptOrdering(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	empty, err := store.InsertInterrupt(ctx, session.ID, "play something jazzy")
	if err != nil {
		t.Fatalf("InsertInterrupt empty: %v", err)
	}
	if empty.OrderIndex != 0.5 || !empty.IsInterrupt || empty.InterruptPrompt != "play something jazzy" {
		t.Fatalf("unexpected interrupt in empty session: %+v", empty)
	}
	if _, err := store.DeleteSong(ctx, empty.ID); err != nil {
		t.Fatalf("DeleteSong: %v", err)
	}

	testsupport.AddSong(t, store, session.ID, 1, queue.StatusPlayed)
	testsupport.AddSong(t, store, session.ID, 2, queue.StatusReady)
	testsupport.AddSong(t, store, session.ID, 3, queue.StatusPending)

	first, err := store.InsertInterrupt(ctx, session.ID, "jazz")
	if err != nil {
		t.Fatalf("InsertInterrupt: %v", err)
	}
	if first.OrderIndex != 1.5 {
		t.Fatalf("expected 1.5 after last played, got %v", first.OrderIndex)
	}
	second, err := store.InsertInterrupt(ctx, session.ID, "more jazz")
	if err != nil {
		t.Fatalf("InsertInterrupt second: %v", err)
	}
	if second.OrderIndex != 1.25 {
		t.Fatalf("expected midpoint 1.25 on collision, got %v", second.OrderIndex)
	}
	if _, err := store.InsertInterrupt(ctx, session.ID, "  "); err == nil {
		t.Fatal("interrupt without prompt must fail")
	}

	songs, err := store.ListSongs(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListSongs: %v", err)
	}
	var order []float64
	for _, s := range songs {
		order = append(order, s.OrderIndex)
	}
	if diff := cmp.Diff([]float64{1, 1.25, 1.5, 2, 3}, order); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestInterruptBeforeFirstSongWhenNothingPlayed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)
	testsupport.AddSong(t, store, session.ID, 4, queue.StatusReady)

	song, err := store.InsertInterrupt(ctx, session.ID, "opener")
	if err != nil {
		t.Fatalf("InsertInterrupt: %v", err)
	}
	if song.OrderIndex != 3.5 {
		t.Fatalf("expected 3.5, got %v", song.OrderIndex)
	}
}

func TestPlaybackTransitions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	if next, err := store.NextPlayable(ctx, session.ID); err != nil || next != nil {
		t.Fatalf("empty session has nothing playable: %+v %v", next, err)
	}
	late := testsupport.AddSong(t, store, session.ID, 2, queue.StatusReady)
	early := testsupport.AddSong(t, store, session.ID, 1, queue.StatusReady)

	next, err := store.NextPlayable(ctx, session.ID)
	if err != nil || next == nil || next.ID != early.ID {
		t.Fatalf("expected %s, got %+v %v", early.ID, next, err)
	}
	if err := store.MarkPlayed(ctx, early.ID); err != nil {
		t.Fatalf("MarkPlayed: %v", err)
	}
	if err := store.MarkPlayed(ctx, early.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("double play must be rejected, got %v", err)
	}
	next, _ = store.NextPlayable(ctx, session.ID)
	if next == nil || next.ID != late.ID {
		t.Fatalf("expected %s next, got %+v", late.ID, next)
	}
	if err := store.Replay(ctx, early.ID); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if err := store.MarkPlayed(ctx, "missing"); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetWorkQueueReportsStaleSongs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	queue.SetClock(store, func() time.Time { return base })
	stale := testsupport.AddSong(t, store, session.ID, 1, queue.StatusGeneratingAudio)

	queue.SetClock(store, func() time.Time { return base.Add(time.Hour) })
	fresh := testsupport.AddSong(t, store, session.ID, 2, queue.StatusMetadataReady)
	if ok, err := store.ClaimSong(ctx, fresh.ID, queue.StatusMetadataReady, queue.StatusSubmittingToACE); err != nil || !ok {
		t.Fatalf("claim: %v %v", ok, err)
	}

	wq, err := store.GetWorkQueue(ctx, session.ID, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("GetWorkQueue: %v", err)
	}
	if len(wq.Stale) != 1 || wq.Stale[0].ID != stale.ID {
		t.Fatalf("expected only %s stale, got %+v", stale.ID, wq.Stale)
	}
	if wq.TransientCount != 2 {
		t.Fatalf("expected 2 transient songs, got %d", wq.TransientCount)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.PutSetting(ctx, queue.SettingImageProvider, "openai"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	if err := store.PutSetting(ctx, queue.SettingImageModel, "gpt-image-1"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	if err := store.PutSetting(ctx, "bogus", "x"); err == nil {
		t.Fatal("unknown settings must be rejected")
	}
	settings, err := store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if diff := cmp.Diff(queue.Settings{ImageProvider: "openai", ImageModel: "gpt-image-1"}, settings); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
	if err := store.PutSetting(ctx, queue.SettingImageModel, ""); err != nil {
		t.Fatalf("clear setting: %v", err)
	}
	settings, _ = store.GetSettings(ctx)
	if settings.ImageModel != "" {
		t.Fatalf("setting not cleared: %+v", settings)
	}
}

func TestHealthAndStats(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	session := testsupport.NewSession(t, store, queue.ModeEndless)
	testsupport.AddSong(t, store, session.ID, 1, queue.StatusReady)
	testsupport.AddSong(t, store, session.ID, 2, queue.StatusPending)
	testsupport.AddSong(t, store, session.ID, 3, queue.StatusError)

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if diff := cmp.Diff(queue.HealthSummary{Total: 3, Pending: 1, Ready: 1, Failed: 1}, health); diff != "" {
		t.Fatalf("health mismatch (-want +got):\n%s", diff)
	}
	db, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !db.DatabaseExists || !db.DatabaseReadable || !db.IntegrityCheck || db.TotalSongs != 3 || db.TotalSessions != 1 || db.SchemaVersion != 1 {
		t.Fatalf("unexpected database health: %+v", db)
	}
}

func TestOpenPathRejectsForeignSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 7"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	db.Close()

	if _, err := queue.OpenPath(path); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenPathReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	first, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	first.Close()
	second, err := queue.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	second.Close()
}
