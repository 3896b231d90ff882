package workflow

import (
	"context"

	"songflow/internal/logging"
	"songflow/internal/queue"
	"songflow/internal/services"
	"songflow/internal/services/imagegen"
	"songflow/internal/stage"
)

// runCover claims song's cover, renders it with the image provider selected
// in settings, and stores it in the library.
func (m *Manager) runCover(ctx context.Context, providers ProviderSet, song *queue.Song, settings queue.Settings) {
	claimCtx, cancel := m.storeContext(ctx)
	claimed, err := m.store.ClaimCover(claimCtx, song.ID)
	cancel()
	if err != nil || !claimed {
		if err != nil && ctx.Err() == nil {
			m.logger.Warn("cover claim failed",
				logging.Error(err),
				logging.String(logging.FieldSongID, song.ID),
				logging.String(logging.FieldEventType, "cover_claim_failed"),
			)
		}
		return
	}

	run := m.beginStage(ctx, stage.Cover, song)
	callCtx, cancel := withTimeout(run.ctx, m.cfg.Workflow.CoverTimeout())
	img, err := providers.Image.Generate(callCtx, imagegen.Request{
		Prompt:   song.CoverPrompt,
		Provider: settings.ImageProvider,
		Model:    settings.ImageModel,
	})
	cancel()
	if ctx.Err() != nil {
		run.abandoned()
		return
	}
	if err != nil {
		m.failCover(ctx, run, song.ID, services.WrapCall(stage.Cover, "image provider", err))
		return
	}

	link, err := providers.Library.SaveCover(song, img.Data, img.Extension())
	if err != nil {
		m.failCover(ctx, run, song.ID, err)
		return
	}
	if ctx.Err() != nil {
		run.abandoned()
		return
	}

	writeCtx, cancel := m.storeContext(ctx)
	err = m.store.SetCover(writeCtx, song.ID, link)
	cancel()
	if err != nil {
		m.failCover(ctx, run, song.ID, services.Wrap(services.ErrTransient, stage.Cover, "persist cover", "", err))
		return
	}
	run.completed(
		logging.String("cover_url", link),
		logging.String("provider", img.Provider),
		logging.String("model", img.Model),
		logging.Int("bytes", len(img.Data)),
	)
}

func (m *Manager) failCover(ctx context.Context, run *stageRun, songID string, cause error) {
	if ctx.Err() != nil {
		run.abandoned()
		return
	}
	run.failed(cause)

	writeCtx, cancel := m.storeContext(ctx)
	status, err := m.store.FailCover(writeCtx, songID, services.Message(cause))
	cancel()
	if err != nil {
		run.logger.Warn("failed to record cover failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "cover_fail_record_failed"),
			logging.String(logging.FieldImpact, "cover claim stays held until the session is reverted"),
		)
		return
	}
	run.logger.Info("cover failure recorded",
		logging.String(logging.FieldEventType, "cover_failed"),
		logging.String("song_status", string(status)),
	)
}
