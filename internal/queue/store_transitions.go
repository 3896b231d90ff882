package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RevertTransientStatuses returns every in-flight song of a session to the
// start of its stage: generating_metadata goes back to pending, audio stages
// go back to metadata_ready with the task id cleared. Cover claims are
// released. Used when a session stops being serviced while work was running.
func (s *Store) RevertTransientStatuses(ctx context.Context, sessionID string) (int64, error) {
	var changed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.timestamp())
		res, err := tx.ExecContext(ctx,
			`UPDATE songs
             SET status = CASE status WHEN ? THEN ? ELSE ? END,
                 ace_task_id = CASE status WHEN ? THEN ace_task_id ELSE NULL END,
                 status_changed_at = ?, updated_at = ?
             WHERE session_id = ? AND status IN (?, ?, ?, ?)`,
			string(StatusGeneratingMetadata), string(StatusPending), string(StatusMetadataReady),
			string(StatusGeneratingMetadata),
			now, now, sessionID,
			string(StatusGeneratingMetadata), string(StatusSubmittingToACE), string(StatusGeneratingAudio), string(StatusSaving),
		)
		if err != nil {
			return fmt.Errorf("revert transient songs: %w", err)
		}
		changed, _ = res.RowsAffected()
		return releaseCoverClaims(ctx, tx, sessionID, now)
	})
	return changed, err
}

// RecoverFromRestart returns songs a crashed process left in flight to a
// resumable status. Audio jobs that already have a task id keep polling:
// generating_audio stays put and saving goes back to generating_audio.
// Everything else restarts its stage. Cover claims are released.
func (s *Store) RecoverFromRestart(ctx context.Context, sessionID string) (int64, error) {
	var changed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.timestamp())
		res, err := tx.ExecContext(ctx,
			`UPDATE songs
             SET status = CASE
                     WHEN status = ? THEN ?
                     WHEN status = ? AND COALESCE(ace_task_id, '') != '' THEN ?
                     ELSE ?
                 END,
                 status_changed_at = ?, updated_at = ?
             WHERE session_id = ?
               AND (status IN (?, ?, ?)
                    OR (status = ? AND COALESCE(ace_task_id, '') = ''))`,
			string(StatusGeneratingMetadata), string(StatusPending),
			string(StatusSaving), string(StatusGeneratingAudio),
			string(StatusMetadataReady),
			now, now, sessionID,
			string(StatusGeneratingMetadata), string(StatusSubmittingToACE), string(StatusSaving),
			string(StatusGeneratingAudio),
		)
		if err != nil {
			return fmt.Errorf("recover songs: %w", err)
		}
		changed, _ = res.RowsAffected()
		return releaseCoverClaims(ctx, tx, sessionID, now)
	})
	return changed, err
}

func releaseCoverClaims(ctx context.Context, tx *sql.Tx, sessionID, now string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE songs SET cover_claimed_at = NULL, updated_at = ?
         WHERE session_id = ? AND cover_claimed_at IS NOT NULL`,
		now, sessionID,
	); err != nil {
		return fmt.Errorf("release cover claims: %w", err)
	}
	return nil
}

// RequestRetry moves a failed song to retry_pending and counts the attempt.
// The scheduler picks it up on its next tick.
func (s *Store) RequestRetry(ctx context.Context, id string) (bool, error) {
	now := formatTime(s.timestamp())
	return s.conditionalUpdate(ctx,
		`UPDATE songs SET status = ?, retry_count = retry_count + 1, status_changed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(StatusRetryPending), now, now, id, string(StatusError),
	)
}

// RevertRetry moves a retry_pending song back into the pipeline at the
// status chosen by ResumeStatus, clearing the previous attempt's error,
// audio task, output locations, and cover claim. It reports false when the
// song is no longer retry_pending.
func (s *Store) RevertRetry(ctx context.Context, id string) (Status, bool, error) {
	var (
		target  Status
		claimed bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			current   string
			erroredAt sql.NullString
		)
		if err := tx.QueryRowContext(ctx,
			`SELECT status, errored_at_status FROM songs WHERE id = ?`, id,
		).Scan(&current, &erroredAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("read retry song: %w", err)
		}
		if Status(current) != StatusRetryPending {
			return nil
		}
		target = ResumeStatus(Status(erroredAt.String))
		if !ValidTransition(StatusRetryPending, target) {
			return invalidTransition(StatusRetryPending, target)
		}
		now := formatTime(s.timestamp())
		if _, err := tx.ExecContext(ctx,
			`UPDATE songs
             SET status = ?, error_message = NULL, ace_task_id = NULL, audio_url = NULL, storage_path = NULL,
                 cover_claimed_at = NULL, status_changed_at = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			string(target), now, now, id, string(StatusRetryPending),
		); err != nil {
			return fmt.Errorf("revert retry: %w", err)
		}
		claimed = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return target, claimed, nil
}
