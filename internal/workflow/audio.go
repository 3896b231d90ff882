package workflow

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"songflow/internal/logging"
	"songflow/internal/metrics"
	"songflow/internal/queue"
	"songflow/internal/services"
	"songflow/internal/services/ace"
	"songflow/internal/stage"
)

// runSubmit claims the next metadata_ready song and hands it to the audio
// service. The store refuses the claim while another song of the session is
// submitting or generating.
func (m *Manager) runSubmit(ctx context.Context, audio AudioProvider, sess *queue.Session) {
	claimCtx, cancel := m.storeContext(ctx)
	song, err := m.store.ClaimNextForSubmit(claimCtx, sess.ID)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("submit claim failed",
				logging.Error(err),
				logging.String(logging.FieldSessionID, sess.ID),
				logging.String(logging.FieldEventType, "submit_claim_failed"),
			)
		}
		return
	}
	if song == nil {
		return
	}

	run := m.beginStage(ctx, stage.Submit, song)
	params := ace.Params{
		Caption:         song.Caption,
		Lyrics:          song.Lyrics,
		BPM:             song.BPM,
		KeyScale:        song.KeyScale,
		TimeSignature:   song.TimeSignature,
		DurationSeconds: song.AudioDuration,
		InferSteps:      sess.Params.InferSteps,
		LyricsLanguage:  sess.Params.LyricsLanguage,
	}
	callCtx, cancel := withTimeout(run.ctx, m.cfg.Workflow.SubmitTimeout())
	taskID, err := audio.Submit(callCtx, params)
	cancel()
	if ctx.Err() != nil {
		run.abandoned()
		return
	}
	if err != nil {
		m.failSong(ctx, run, song.ID, queue.StatusSubmittingToACE, services.WrapCall(stage.Submit, "submit audio task", err))
		return
	}

	writeCtx, cancel := m.storeContext(ctx)
	ok, err := m.store.MarkSubmitted(writeCtx, song.ID, taskID)
	cancel()
	switch {
	case err != nil:
		m.failSong(ctx, run, song.ID, queue.StatusSubmittingToACE,
			services.Wrap(services.ErrTransient, stage.Submit, "persist task id", "task "+taskID+" was not recorded", err))
	case !ok:
		run.lostRace("mark submitted")
	default:
		run.completed(logging.String("task_id", taskID))
	}
}

// runPoll checks every generating song of a session concurrently, bounded by
// workflow.poll_concurrency.
func (m *Manager) runPoll(ctx context.Context, providers ProviderSet, songs []*queue.Song) {
	var g errgroup.Group
	if limit := m.cfg.Workflow.PollConcurrency; limit > 0 {
		g.SetLimit(limit)
	}
	for _, song := range songs {
		g.Go(func() error {
			m.pollSong(ctx, providers, song)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *Manager) pollSong(ctx context.Context, providers ProviderSet, song *queue.Song) {
	if ctx.Err() != nil {
		return
	}
	if strings.TrimSpace(song.ACETaskID) == "" {
		run := m.beginStage(ctx, stage.Poll, song)
		m.failSong(ctx, run, song.ID, queue.StatusGeneratingAudio,
			services.Wrap(services.ErrValidation, stage.Poll, "poll audio task", "song has no task id", nil))
		return
	}

	callCtx, cancel := withTimeout(ctx, m.cfg.Workflow.PollTimeout())
	res, err := providers.Audio.Poll(callCtx, song.ACETaskID)
	cancel()
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		run := m.beginStage(ctx, stage.Poll, song)
		m.failSong(ctx, run, song.ID, queue.StatusGeneratingAudio, services.WrapCall(stage.Poll, "poll audio task", err))
		return
	}

	switch res.State {
	case ace.StatePending:
		return
	case ace.StateFailed:
		run := m.beginStage(ctx, stage.Poll, song)
		msg := strings.TrimSpace(res.Error)
		if msg == "" {
			msg = "audio task failed"
		}
		m.failSong(ctx, run, song.ID, queue.StatusGeneratingAudio,
			services.Wrap(services.ErrExternalTool, stage.Poll, "audio task "+song.ACETaskID, msg, nil))
	case ace.StateDone:
		m.saveSong(ctx, providers, song, res.AudioRef)
	}
}

// saveSong claims generating_audio -> saving, stores the audio and its
// sidecar in the library, and marks the song ready.
func (m *Manager) saveSong(ctx context.Context, providers ProviderSet, song *queue.Song, audioRef string) {
	claimCtx, cancel := m.storeContext(ctx)
	claimed, err := m.store.ClaimSong(claimCtx, song.ID, queue.StatusGeneratingAudio, queue.StatusSaving)
	cancel()
	if err != nil || !claimed {
		if err != nil && ctx.Err() == nil {
			m.logger.Warn("save claim failed",
				logging.Error(err),
				logging.String(logging.FieldSongID, song.ID),
				logging.String(logging.FieldEventType, "save_claim_failed"),
			)
		}
		return
	}

	run := m.beginStage(ctx, stage.Save, song)
	saveCtx, cancel := withTimeout(run.ctx, m.cfg.Workflow.SaveTimeout())
	defer cancel()

	result, err := m.storeAudio(saveCtx, providers, song, audioRef)
	if ctx.Err() != nil {
		run.abandoned()
		return
	}
	if err != nil {
		m.failSong(ctx, run, song.ID, queue.StatusSaving, err)
		return
	}

	// Pick up a cover that landed while the song was generating.
	readCtx, readCancel := m.storeContext(ctx)
	if fresh, err := m.store.GetSong(readCtx, song.ID); err == nil {
		song = fresh
	}
	readCancel()
	if _, err := providers.Library.WriteSidecar(song, result, m.now()); err != nil {
		run.logger.Warn("sidecar write failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "sidecar_failed"),
			logging.String(logging.FieldImpact, "library file has no metadata sidecar"),
		)
	}
	if ctx.Err() != nil {
		run.abandoned()
		return
	}

	writeCtx, writeCancel := m.storeContext(ctx)
	ok, err := m.store.CompleteSave(writeCtx, song.ID, result)
	writeCancel()
	switch {
	case err != nil:
		m.failSong(ctx, run, song.ID, queue.StatusSaving,
			services.Wrap(services.ErrTransient, stage.Save, "persist save", "", err))
	case !ok:
		run.lostRace("complete save")
	default:
		metrics.RecordSongReady()
		run.completed(
			logging.String("audio_url", result.AudioURL),
			logging.String("storage_path", result.StoragePath),
		)
	}
}

func (m *Manager) storeAudio(ctx context.Context, providers ProviderSet, song *queue.Song, audioRef string) (queue.SaveResult, error) {
	body, _, err := providers.Audio.Fetch(ctx, audioRef)
	if err != nil {
		return queue.SaveResult{}, services.WrapCall(stage.Save, "download audio", err)
	}
	defer body.Close()

	result, err := providers.Library.SaveAudio(ctx, song, body, providers.Audio.Format())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return queue.SaveResult{}, services.WrapCall(stage.Save, "write audio", err)
		}
		return queue.SaveResult{}, err
	}
	return result, nil
}
