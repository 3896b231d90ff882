package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"songflow/internal/queue"
	"songflow/internal/services"
)

// SessionStore abstracts the state-store calls the external operations need.
type SessionStore interface {
	CreateSession(ctx context.Context, in queue.NewSession) (*queue.Session, error)
	GetSession(ctx context.Context, id string) (*queue.Session, error)
	ListSessions(ctx context.Context, statuses ...queue.SessionStatus) ([]*queue.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status queue.SessionStatus) error
	UpdateSessionPrompt(ctx context.Context, id, prompt string) (*queue.Session, error)
	InsertInterrupt(ctx context.Context, sessionID, prompt string) (*queue.Song, error)
	GetSong(ctx context.Context, id string) (*queue.Song, error)
	ListSongs(ctx context.Context, sessionID string, statuses ...queue.Status) ([]*queue.Song, error)
	NextPlayable(ctx context.Context, sessionID string) (*queue.Song, error)
	RequestRetry(ctx context.Context, id string) (bool, error)
	MarkPlayed(ctx context.Context, id string) error
	Replay(ctx context.Context, id string) error
	GetSettings(ctx context.Context) (queue.Settings, error)
	PutSetting(ctx context.Context, key, value string) error
	Stats(ctx context.Context, sessionID string) (map[queue.Status]int, error)
}

// SessionService performs session and song operations on behalf of API
// clients and returns transport DTOs.
type SessionService struct {
	store SessionStore
}

// NewSessionService constructs a SessionService around store.
func NewSessionService(store SessionStore) *SessionService {
	if store == nil {
		return nil
	}
	return &SessionService{store: store}
}

func invalid(operation, message string) error {
	return services.Wrap(services.ErrValidation, "api", operation, message, nil)
}

// HTTPStatus maps a service error onto a response code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Create validates req and inserts an active session.
func (s *SessionService) Create(ctx context.Context, req CreateSessionRequest) (Session, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Session{}, invalid("create session", "prompt is required")
	}
	mode, ok := queue.ParseMode(req.Mode)
	if !ok {
		return Session{}, invalid("create session", fmt.Sprintf("unknown mode %q", req.Mode))
	}
	p := req.Params
	if p.BPM < 0 || p.AudioDurationSeconds < 0 || p.InferSteps < 0 {
		return Session{}, invalid("create session", "numeric parameters must not be negative")
	}
	session, err := s.store.CreateSession(ctx, queue.NewSession{
		Prompt:      prompt,
		LLMProvider: strings.TrimSpace(req.LLMProvider),
		LLMModel:    strings.TrimSpace(req.LLMModel),
		Mode:        mode,
		Params: queue.GenerationParams{
			BPM:                  p.BPM,
			KeyScale:             strings.TrimSpace(p.KeyScale),
			TimeSignature:        strings.TrimSpace(p.TimeSignature),
			AudioDurationSeconds: p.AudioDurationSeconds,
			LyricsLanguage:       strings.TrimSpace(p.LyricsLanguage),
			InferSteps:           p.InferSteps,
		},
	})
	if err != nil {
		return Session{}, err
	}
	return FromSession(session), nil
}

// List returns sessions, newest first, optionally filtered by status names.
func (s *SessionService) List(ctx context.Context, statuses ...string) ([]Session, error) {
	var filter []queue.SessionStatus
	for _, raw := range statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := queue.ParseSessionStatus(raw)
		if !ok {
			return nil, invalid("list sessions", fmt.Sprintf("unknown session status %q", raw))
		}
		filter = append(filter, status)
	}
	sessions, err := s.store.ListSessions(ctx, filter...)
	if err != nil {
		return nil, err
	}
	return FromSessions(sessions), nil
}

// Describe fetches one session.
func (s *SessionService) Describe(ctx context.Context, id string) (Session, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	return FromSession(session), nil
}

// Close stops a session from producing new songs. By default an active
// session moves to closing and drains its in-flight work; immediate closes
// it right away and the scheduler reverts whatever was running.
func (s *SessionService) Close(ctx context.Context, id string, immediate bool) (Session, error) {
	target := queue.SessionClosing
	if immediate {
		target = queue.SessionClosed
	}
	if err := s.store.UpdateSessionStatus(ctx, id, target); err != nil {
		return Session{}, err
	}
	return s.Describe(ctx, id)
}

// Reopen returns a closing session to active.
func (s *SessionService) Reopen(ctx context.Context, id string) (Session, error) {
	if err := s.store.UpdateSessionStatus(ctx, id, queue.SessionActive); err != nil {
		return Session{}, err
	}
	return s.Describe(ctx, id)
}

// UpdatePrompt re-steers an open session. Songs that already have metadata
// keep it; the prompt epoch tells consumers which prompt produced a song.
func (s *SessionService) UpdatePrompt(ctx context.Context, id, prompt string) (Session, error) {
	if strings.TrimSpace(prompt) == "" {
		return Session{}, invalid("update prompt", "prompt is required")
	}
	session, err := s.store.UpdateSessionPrompt(ctx, id, prompt)
	if err != nil {
		return Session{}, err
	}
	return FromSession(session), nil
}

// Songs lists a session's songs in play order.
func (s *SessionService) Songs(ctx context.Context, sessionID string, statuses ...string) ([]Song, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var filter []queue.Status
	for _, raw := range statuses {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, invalid("list songs", fmt.Sprintf("unknown song status %q", raw))
		}
		filter = append(filter, status)
	}
	songs, err := s.store.ListSongs(ctx, sessionID, filter...)
	if err != nil {
		return nil, err
	}
	return FromSongs(songs), nil
}

// Stats returns per-status song counts, zero-filled. An empty sessionID
// counts every session.
func (s *SessionService) Stats(ctx context.Context, sessionID string) (map[string]int, error) {
	stats, err := s.store.Stats(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return MergeSongStats(stats), nil
}

// Settings returns the shared settings.
func (s *SessionService) Settings(ctx context.Context) (queue.Settings, error) {
	return s.store.GetSettings(ctx)
}

// PutSetting stores one shared setting. An empty value clears it.
func (s *SessionService) PutSetting(ctx context.Context, key, value string) error {
	switch key {
	case queue.SettingImageProvider, queue.SettingImageModel:
	default:
		return invalid("put setting", fmt.Sprintf("unknown setting %q", key))
	}
	return s.store.PutSetting(ctx, key, value)
}
