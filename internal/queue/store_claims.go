package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ClaimNextPending claims the lowest-ordered pending song of a session for
// metadata generation. It returns nil when there is nothing to claim or when
// another song of the session is already generating metadata.
func (s *Store) ClaimNextPending(ctx context.Context, sessionID string) (*Song, error) {
	now := formatTime(s.timestamp())
	return s.claimOne(ctx,
		`UPDATE songs
         SET status = ?, status_changed_at = ?, updated_at = ?,
             generation_started_at = COALESCE(generation_started_at, ?)
         WHERE id = (SELECT id FROM songs WHERE session_id = ? AND status = ? ORDER BY order_index, created_at LIMIT 1)
           AND status = ?
           AND NOT EXISTS (SELECT 1 FROM songs WHERE session_id = ? AND status = ?)
         RETURNING `+songColumns,
		string(StatusGeneratingMetadata), now, now, now,
		sessionID, string(StatusPending),
		string(StatusPending),
		sessionID, string(StatusGeneratingMetadata),
	)
}

// ClaimNextForSubmit claims the lowest-ordered metadata_ready song of a
// session for audio submission. It returns nil when nothing is ready or when
// another song of the session is submitting or generating audio.
func (s *Store) ClaimNextForSubmit(ctx context.Context, sessionID string) (*Song, error) {
	now := formatTime(s.timestamp())
	return s.claimOne(ctx,
		`UPDATE songs
         SET status = ?, status_changed_at = ?, updated_at = ?
         WHERE id = (SELECT id FROM songs WHERE session_id = ? AND status = ? ORDER BY order_index, created_at LIMIT 1)
           AND status = ?
           AND NOT EXISTS (SELECT 1 FROM songs WHERE session_id = ? AND status IN (?, ?))
         RETURNING `+songColumns,
		string(StatusSubmittingToACE), now, now,
		sessionID, string(StatusMetadataReady),
		string(StatusMetadataReady),
		sessionID, string(StatusSubmittingToACE), string(StatusGeneratingAudio),
	)
}

func (s *Store) claimOne(ctx context.Context, query string, args ...any) (*Song, error) {
	ctx = ensureContext(ctx)
	var song *Song
	err := retryOnBusy(ctx, func() error {
		claimed, err := scanSong(s.db.QueryRowContext(ctx, query, args...))
		if err != nil {
			return err
		}
		song = claimed
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim song: %w", err)
	}
	return song, nil
}

// ClaimSong moves one song from -> to if, and only if, it is still in from.
// It reports false when another worker got there first.
func (s *Store) ClaimSong(ctx context.Context, id string, from, to Status) (bool, error) {
	if !ValidTransition(from, to) {
		return false, invalidTransition(from, to)
	}
	now := formatTime(s.timestamp())
	return s.conditionalUpdate(ctx,
		`UPDATE songs SET status = ?, status_changed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), now, now, id, string(from),
	)
}

// CompleteMetadata writes the generated metadata and moves the song from
// generating_metadata to metadata_ready in one statement.
func (s *Store) CompleteMetadata(ctx context.Context, id string, meta SongMetadata) (bool, error) {
	now := formatTime(s.timestamp())
	return s.conditionalUpdate(ctx,
		`UPDATE songs
         SET status = ?, title = ?, artist = ?, genre = ?, subgenre = ?, lyrics = ?, caption = ?,
             cover_prompt = ?, bpm = ?, key_scale = ?, time_signature = ?, audio_duration = ?,
             error_message = NULL, status_changed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(StatusMetadataReady), meta.Title, nullableString(meta.Artist), nullableString(meta.Genre),
		nullableString(meta.Subgenre), nullableString(meta.Lyrics), nullableString(meta.Caption),
		nullableString(meta.CoverPrompt), nullableInt(meta.BPM), nullableString(meta.KeyScale),
		nullableString(meta.TimeSignature), nullableInt(meta.AudioDuration),
		now, now, id, string(StatusGeneratingMetadata),
	)
}

// MarkSubmitted records the audio task id and moves the song from
// submitting_to_ace to generating_audio.
func (s *Store) MarkSubmitted(ctx context.Context, id, taskID string) (bool, error) {
	if strings.TrimSpace(taskID) == "" {
		return false, errors.New("mark submitted: task id is required")
	}
	now := formatTime(s.timestamp())
	return s.conditionalUpdate(ctx,
		`UPDATE songs SET status = ?, ace_task_id = ?, status_changed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(StatusGeneratingAudio), taskID, now, now, id, string(StatusSubmittingToACE),
	)
}

// CompleteSave moves a saving song to ready with its audio location and
// increments the session's generated count in the same transaction.
func (s *Store) CompleteSave(ctx context.Context, id string, result SaveResult) (bool, error) {
	var done bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.timestamp())
		res, err := tx.ExecContext(ctx,
			`UPDATE songs
             SET status = ?, audio_url = ?, storage_path = ?, generation_completed_at = ?,
                 error_message = NULL, status_changed_at = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			string(StatusReady), nullableString(result.AudioURL), nullableString(result.StoragePath),
			now, now, now, id, string(StatusSaving),
		)
		if err != nil {
			return fmt.Errorf("complete save: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			done = false
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET songs_generated = songs_generated + 1, updated_at = ?
             WHERE id = (SELECT session_id FROM songs WHERE id = ?)`,
			now, id,
		); err != nil {
			return fmt.Errorf("count generated song: %w", err)
		}
		done = true
		return nil
	})
	return done, err
}

// MarkError moves a song from `from` to error, remembering where it failed.
func (s *Store) MarkError(ctx context.Context, id string, from Status, message string) (bool, error) {
	if !ValidTransition(from, StatusError) {
		return false, invalidTransition(from, StatusError)
	}
	now := formatTime(s.timestamp())
	return s.conditionalUpdate(ctx,
		`UPDATE songs SET status = ?, errored_at_status = ?, error_message = ?, cover_claimed_at = NULL,
             status_changed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(StatusError), string(from), nullableString(message), now, now, id, string(from),
	)
}

// ClaimCover marks a song's cover as being generated. Only songs with a cover
// prompt, no cover, no live claim, and no previous cover failure qualify.
func (s *Store) ClaimCover(ctx context.Context, id string) (bool, error) {
	now := formatTime(s.timestamp())
	return s.conditionalUpdate(ctx,
		`UPDATE songs SET cover_claimed_at = ?, updated_at = ?
         WHERE id = ? AND cover_claimed_at IS NULL AND cover_error IS NULL
           AND COALESCE(cover_url, '') = '' AND COALESCE(cover_prompt, '') != ''`,
		now, now, id,
	)
}

// SetCover stores the cover reference and releases the cover claim.
func (s *Store) SetCover(ctx context.Context, id, coverURL string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE songs SET cover_url = ?, cover_claimed_at = NULL, updated_at = ? WHERE id = ?`,
		coverURL, formatTime(s.timestamp()), id,
	)
	if err != nil {
		return fmt.Errorf("set cover: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("song %s: %w", id, ErrNotFound)
	}
	return nil
}

// FailCover records a cover failure so the cover is not retried, releases
// the claim, and moves the song to error when its current status allows it.
// It returns the song's resulting status.
func (s *Store) FailCover(ctx context.Context, id, message string) (Status, error) {
	var result Status
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM songs WHERE id = ?`, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("song %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("read song status: %w", err)
		}
		if message == "" {
			message = "cover generation failed"
		}
		now := formatTime(s.timestamp())
		status := Status(current)
		if ValidTransition(status, StatusError) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE songs SET status = ?, errored_at_status = ?, error_message = ?, cover_error = ?,
                     cover_claimed_at = NULL, status_changed_at = ?, updated_at = ?
                 WHERE id = ?`,
				string(StatusError), current, message, message, now, now, id,
			); err != nil {
				return fmt.Errorf("fail cover: %w", err)
			}
			result = StatusError
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE songs SET cover_error = ?, cover_claimed_at = NULL, updated_at = ? WHERE id = ?`,
			message, now, id,
		); err != nil {
			return fmt.Errorf("record cover failure: %w", err)
		}
		result = status
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func (s *Store) conditionalUpdate(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
