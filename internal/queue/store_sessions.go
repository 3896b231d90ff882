package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateSession inserts a new active session.
func (s *Store) CreateSession(ctx context.Context, in NewSession) (*Session, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, errors.New("create session: prompt is required")
	}
	mode := in.Mode
	if mode == "" {
		mode = ModeEndless
	}
	if _, ok := ParseMode(string(mode)); !ok {
		return nil, fmt.Errorf("create session: unknown mode %q", mode)
	}

	id := uuid.NewString()
	now := formatTime(s.timestamp())
	p := in.Params
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO sessions (id, prompt, llm_provider, llm_model, bpm, key_scale, time_signature,
            audio_duration, lyrics_language, infer_steps, mode, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, prompt, nullableString(in.LLMProvider), nullableString(in.LLMModel),
		nullableInt(p.BPM), nullableString(p.KeyScale), nullableString(p.TimeSignature),
		nullableInt(p.AudioDurationSeconds), nullableString(p.LyricsLanguage), nullableInt(p.InferSteps),
		string(mode), string(SessionActive), now, now,
	); err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s.GetSession(ctx, id)
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessions returns sessions, newest first, optionally filtered by status.
func (s *Store) ListSessions(ctx context.Context, statuses ...SessionStatus) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ListServicedSessions returns the sessions the scheduler works on: active
// and closing, oldest first.
func (s *Store) ListServicedSessions(ctx context.Context) ([]*Session, error) {
	sessions, err := s.ListSessions(ctx, SessionActive, SessionClosing)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	return sessions, nil
}

// UpdateSessionStatus moves a session to status. The change is validated
// against the session transition table.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status SessionStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("session %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("read session status: %w", err)
		}
		from := SessionStatus(current)
		if !ValidSessionTransition(from, status) {
			return invalidTransition(from, status)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(status), formatTime(s.timestamp()), id, current,
		); err != nil {
			return fmt.Errorf("update session status: %w", err)
		}
		return nil
	})
}

// UpdateSessionPrompt replaces the steering prompt and bumps PromptEpoch so
// consumers can tell songs generated under the old prompt apart.
func (s *Store) UpdateSessionPrompt(ctx context.Context, id, prompt string) (*Session, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("update prompt: prompt is required")
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions SET prompt = ?, prompt_epoch = prompt_epoch + 1, updated_at = ?
         WHERE id = ? AND status != ?`,
		prompt, formatTime(s.timestamp()), id, string(SessionClosed),
	)
	if err != nil {
		return nil, fmt.Errorf("update prompt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("session %s (open): %w", id, ErrNotFound)
	}
	return s.GetSession(ctx, id)
}

// GetSettings reads the shared settings table.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	defer rows.Close()

	var settings Settings
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("scan setting: %w", err)
		}
		switch key {
		case SettingImageProvider:
			settings.ImageProvider = value
		case SettingImageModel:
			settings.ImageModel = value
		}
	}
	return settings, rows.Err()
}

// PutSetting stores one shared setting. An empty value removes it.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	switch key {
	case SettingImageProvider, SettingImageModel:
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		_, err := s.execWithRetry(ctx, `DELETE FROM settings WHERE key = ?`, key)
		if err != nil {
			return fmt.Errorf("delete setting: %w", err)
		}
		return nil
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(s.timestamp()),
	); err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	return nil
}
