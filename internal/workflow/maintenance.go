package workflow

import (
	"context"
	"errors"
	"log/slog"

	"songflow/internal/logging"
	"songflow/internal/metrics"
	"songflow/internal/queue"
	"songflow/internal/stage"
)

// keepBuffer inserts at most one pending song. Oneshot sessions get exactly
// one song ever; endless sessions get one per tick while the buffer is short.
func (m *Manager) keepBuffer(ctx context.Context, logger *slog.Logger, sess *queue.Session, wq *queue.WorkQueue) {
	kind := "buffer"
	switch sess.Mode {
	case queue.ModeOneshot:
		if wq.TotalSongs > 0 {
			return
		}
		kind = "oneshot"
	default:
		if wq.Deficit(m.cfg.Workflow.BufferTarget) <= 0 {
			return
		}
	}

	insertCtx, cancel := m.storeContext(ctx)
	song, err := m.store.InsertPendingSong(insertCtx, sess.ID, wq.NextOrderIndex())
	cancel()
	if err != nil {
		logger.Warn("queue keeper insert failed",
			logging.Error(err),
			logging.String(logging.FieldStage, stage.Keeper),
			logging.String(logging.FieldEventType, "keeper_insert_failed"),
		)
		metrics.RecordStage(stage.Keeper, "failure", 0)
		return
	}
	metrics.RecordSongCreated(kind)
	metrics.RecordStage(stage.Keeper, "success", 0)
	logger.Debug("queued pending song",
		logging.String(logging.FieldStage, stage.Keeper),
		logging.String(logging.FieldSongID, song.ID),
		logging.Float64("order_index", song.OrderIndex),
		logging.Int("buffered", wq.BufferedCount),
	)
}

// retrySongs returns every retry_pending song to the stage it failed in.
func (m *Manager) retrySongs(ctx context.Context, logger *slog.Logger, songs []*queue.Song) {
	for _, song := range songs {
		retryCtx, cancel := m.storeContext(ctx)
		target, ok, err := m.store.RevertRetry(retryCtx, song.ID)
		cancel()
		songLogger := logger.With(
			logging.String(logging.FieldSongID, song.ID),
			logging.String(logging.FieldStage, stage.Retry),
		)
		switch {
		case err != nil:
			songLogger.Warn("retry revert failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "retry_failed"),
			)
			metrics.RecordStage(stage.Retry, "failure", 0)
		case ok:
			songLogger.Info("song requeued for retry",
				logging.String(logging.FieldEventType, "retry_requeued"),
				logging.String("resume_status", string(target)),
				logging.Int("retry_count", song.RetryCount),
			)
			metrics.RecordStage(stage.Retry, "success", 0)
		}
	}
}

// cleanupStale deletes songs that sat in a transient status past the stale
// cutoff and returns the ids that are gone.
func (m *Manager) cleanupStale(ctx context.Context, providers ProviderSet, logger *slog.Logger, songs []*queue.Song) map[string]struct{} {
	deleted := make(map[string]struct{}, len(songs))
	for _, song := range songs {
		delCtx, cancel := m.storeContext(ctx)
		ok, err := m.store.DeleteSong(delCtx, song.ID)
		cancel()
		songLogger := logger.With(
			logging.String(logging.FieldSongID, song.ID),
			logging.String(logging.FieldStage, stage.Stale),
		)
		if err != nil {
			songLogger.Warn("stale song delete failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "stale_delete_failed"),
			)
			continue
		}
		if !ok {
			continue
		}
		deleted[song.ID] = struct{}{}
		if err := providers.Library.Remove(song); err != nil {
			songLogger.Debug("stale song files not removed", logging.Error(err))
		}
		logging.WarnWithContext(songLogger, "deleted stale song", "stale_deleted",
			logging.String("status", string(song.Status)),
			logging.String("title", song.DisplayTitle()),
			logging.Duration("age", m.now().Sub(song.StatusChangedAt)),
			logging.String(logging.FieldErrorHint, "provider never finished; check the provider logs"),
			logging.String(logging.FieldImpact, "song dropped from the session"),
		)
	}
	metrics.RecordStaleDeleted(len(deleted))
	return deleted
}

// advanceLifecycle applies the oneshot auto-close and closing-drained rules.
// It returns the session status after the check and whether the session is
// now closed.
func (m *Manager) advanceLifecycle(ctx context.Context, logger *slog.Logger, sess *queue.Session, wq *queue.WorkQueue) (queue.SessionStatus, bool) {
	var target queue.SessionStatus
	switch {
	case sess.Status == queue.SessionActive && sess.Mode == queue.ModeOneshot &&
		wq.TotalSongs > 0 && wq.UnfinishedCount == 0:
		target = queue.SessionClosing
	case sess.Status == queue.SessionClosing && wq.TransientCount == 0:
		target = queue.SessionClosed
	default:
		return sess.Status, false
	}

	updateCtx, cancel := m.storeContext(ctx)
	err := m.store.UpdateSessionStatus(updateCtx, sess.ID, target)
	cancel()
	if err != nil {
		event := "session_transition_failed"
		if errors.Is(err, queue.ErrInvalidTransition) {
			event = "session_transition_rejected"
		}
		logger.Warn("session lifecycle transition failed",
			logging.Error(err),
			logging.String(logging.FieldStage, stage.Lifecycle),
			logging.String(logging.FieldEventType, event),
			logging.String("to", string(target)),
		)
		return sess.Status, false
	}
	metrics.RecordSessionTransition(string(target))
	logger.Info("session status changed",
		logging.String(logging.FieldStage, stage.Lifecycle),
		logging.String(logging.FieldEventType, "session_"+string(target)),
		logging.String("from", string(sess.Status)),
		logging.String("to", string(target)),
	)
	if target == queue.SessionClosed {
		m.state.discard(sess.ID)
		return target, true
	}
	return target, false
}
