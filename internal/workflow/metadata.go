package workflow

import (
	"context"

	"songflow/internal/logging"
	"songflow/internal/queue"
	"songflow/internal/services"
	"songflow/internal/songmeta"
	"songflow/internal/stage"
)

// runMetadata claims the next pending song and asks the text provider for
// its metadata.
func (m *Manager) runMetadata(ctx context.Context, text TextProvider, sess *queue.Session, recent []*queue.Song) {
	claimCtx, cancel := m.storeContext(ctx)
	song, err := m.store.ClaimNextPending(claimCtx, sess.ID)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("metadata claim failed",
				logging.Error(err),
				logging.String(logging.FieldSessionID, sess.ID),
				logging.String(logging.FieldEventType, "metadata_claim_failed"),
			)
		}
		return
	}
	if song == nil {
		return
	}

	run := m.beginStage(ctx, stage.Metadata, song)
	req := songmeta.Request{
		SessionID: sess.ID,
		Prompt:    song.EffectivePrompt(sess.Prompt),
		Interrupt: song.IsInterrupt,
		Provider:  sess.LLMProvider,
		Model:     sess.LLMModel,
		Params:    sess.Params,
		Recent:    recentSongs(recent),
	}

	callCtx, cancel := withTimeout(run.ctx, m.cfg.Workflow.MetadataTimeout())
	meta, err := text.Generate(callCtx, req)
	cancel()
	if ctx.Err() != nil {
		run.abandoned()
		return
	}
	if err != nil {
		m.failSong(ctx, run, song.ID, queue.StatusGeneratingMetadata, services.WrapCall(stage.Metadata, "generate metadata", err))
		return
	}

	writeCtx, cancel := m.storeContext(ctx)
	ok, err := m.store.CompleteMetadata(writeCtx, song.ID, meta)
	cancel()
	switch {
	case err != nil:
		m.failSong(ctx, run, song.ID, queue.StatusGeneratingMetadata,
			services.Wrap(services.ErrTransient, stage.Metadata, "persist metadata", "", err))
	case !ok:
		run.lostRace("complete metadata")
	default:
		run.completed(
			logging.String("title", meta.Title),
			logging.String("genre", meta.Genre),
			logging.Int("bpm", meta.BPM),
			logging.String("key_scale", meta.KeyScale),
			logging.Int("duration_seconds", meta.AudioDuration),
		)
	}
}

func recentSongs(songs []*queue.Song) []songmeta.RecentSong {
	out := make([]songmeta.RecentSong, 0, len(songs))
	for _, s := range songs {
		out = append(out, songmeta.RecentSong{Title: s.Title, Genre: s.Genre, Lyrics: s.Lyrics})
	}
	return out
}

// failSong moves the song from its claimed status to error. The cause may be
// a provider failure or a failed store write. The write is skipped when the
// session was cancelled in the meantime.
func (m *Manager) failSong(ctx context.Context, run *stageRun, songID string, from queue.Status, cause error) {
	if ctx.Err() != nil {
		run.abandoned()
		return
	}
	run.failed(cause, logging.String("failed_status", string(from)))

	writeCtx, cancel := m.storeContext(ctx)
	ok, err := m.store.MarkError(writeCtx, songID, from, services.Message(cause))
	cancel()
	switch {
	case err != nil:
		run.logger.Warn("failed to record song error",
			logging.Error(err),
			logging.String(logging.FieldEventType, "mark_error_failed"),
		)
	case !ok:
		run.lostRace("mark error")
	}
}
