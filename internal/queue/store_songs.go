package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InsertPendingSong appends a pending song to a session at orderIndex.
func (s *Store) InsertPendingSong(ctx context.Context, sessionID string, orderIndex float64) (*Song, error) {
	var song *Song
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		song, err = s.insertSongTx(ctx, tx, sessionID, orderIndex, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return song, nil
}

// InsertInterrupt queues a one-off song steered by prompt so it plays next:
// it lands half a slot after the most recently played song (or before the
// first song when nothing has played yet).
func (s *Store) InsertInterrupt(ctx context.Context, sessionID, prompt string) (*Song, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("insert interrupt: prompt is required")
	}
	var song *Song
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		prev, err := interruptAnchor(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		target := prev + 0.5
		var next sql.NullFloat64
		if err := tx.QueryRowContext(ctx,
			`SELECT MIN(order_index) FROM songs WHERE session_id = ? AND order_index > ?`,
			sessionID, prev,
		).Scan(&next); err != nil {
			return fmt.Errorf("read next order index: %w", err)
		}
		if next.Valid && next.Float64 <= target {
			target = (prev + next.Float64) / 2
		}
		song, err = s.insertSongTx(ctx, tx, sessionID, target, prompt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return song, nil
}

func interruptAnchor(ctx context.Context, tx *sql.Tx, sessionID string) (float64, error) {
	var played sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(order_index) FROM songs WHERE session_id = ? AND status = ?`,
		sessionID, string(StatusPlayed),
	).Scan(&played); err != nil {
		return 0, fmt.Errorf("read last played: %w", err)
	}
	if played.Valid {
		return played.Float64, nil
	}
	var first sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		`SELECT MIN(order_index) FROM songs WHERE session_id = ?`, sessionID,
	).Scan(&first); err != nil {
		return 0, fmt.Errorf("read first order index: %w", err)
	}
	if first.Valid {
		return first.Float64 - 1, nil
	}
	return 0, nil
}

func (s *Store) insertSongTx(ctx context.Context, tx *sql.Tx, sessionID string, orderIndex float64, interruptPrompt string) (*Song, error) {
	var (
		status string
		epoch  int
	)
	if err := tx.QueryRowContext(ctx,
		`SELECT status, prompt_epoch FROM sessions WHERE id = ?`, sessionID,
	).Scan(&status, &epoch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	if SessionStatus(status) == SessionClosed {
		return nil, fmt.Errorf("insert song: session %s is closed", sessionID)
	}

	id := uuid.NewString()
	now := formatTime(s.timestamp())
	row := tx.QueryRowContext(ctx,
		`INSERT INTO songs (id, session_id, order_index, status, is_interrupt, interrupt_prompt, prompt_epoch,
            status_changed_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         RETURNING `+songColumns,
		id, sessionID, orderIndex, string(StatusPending), boolToInt(interruptPrompt != ""),
		nullableString(interruptPrompt), epoch, now, now, now,
	)
	song, err := scanSong(row)
	if err != nil {
		return nil, fmt.Errorf("insert song: %w", err)
	}
	return song, nil
}

// GetSong fetches a song by id.
func (s *Store) GetSong(ctx context.Context, id string) (*Song, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("song %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get song: %w", err)
	}
	return song, nil
}

// ListSongs returns a session's songs in play order, optionally filtered by status.
func (s *Store) ListSongs(ctx context.Context, sessionID string, statuses ...Status) ([]*Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE session_id = ?`
	args := []any{sessionID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		args = append(args, statusArgs(statuses...)...)
	}
	query += ` ORDER BY order_index, created_at`
	return s.querySongs(ctx, query, args...)
}

func (s *Store) querySongs(ctx context.Context, query string, args ...any) ([]*Song, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query songs: %w", err)
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// DeleteSong removes a song. It reports false when the song was already gone.
func (s *Store) DeleteSong(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete song: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetWorkQueue snapshots one session's songs for the stage processors.
// Transient songs whose status changed before staleCutoff are reported stale.
func (s *Store) GetWorkQueue(ctx context.Context, sessionID string, staleCutoff time.Time) (*WorkQueue, error) {
	songs, err := s.ListSongs(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("work queue: %w", err)
	}
	return BuildWorkQueue(sessionID, songs, staleCutoff), nil
}

// NextPlayable returns the ready song with the lowest order index, or nil
// when nothing is ready.
func (s *Store) NextPlayable(ctx context.Context, sessionID string) (*Song, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+songColumns+` FROM songs WHERE session_id = ? AND status = ?
         ORDER BY order_index, created_at LIMIT 1`,
		sessionID, string(StatusReady),
	)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next playable: %w", err)
	}
	return song, nil
}

// MarkPlayed records that a ready song was played.
func (s *Store) MarkPlayed(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusReady, StatusPlayed)
}

// Replay returns a played song to ready.
func (s *Store) Replay(ctx context.Context, id string) error {
	return s.transition(ctx, id, StatusPlayed, StatusReady)
}

// transition applies a validated from->to change and reports ErrNotFound or
// ErrInvalidTransition when the row is missing or in another status.
func (s *Store) transition(ctx context.Context, id string, from, to Status) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM songs WHERE id = ?`, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("song %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("read song status: %w", err)
		}
		if Status(current) != from || !ValidTransition(from, to) {
			return invalidTransition(current, to)
		}
		now := formatTime(s.timestamp())
		if _, err := tx.ExecContext(ctx,
			`UPDATE songs SET status = ?, status_changed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), now, now, id, current,
		); err != nil {
			return fmt.Errorf("update song status: %w", err)
		}
		return nil
	})
}
