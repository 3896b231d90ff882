package api

import (
	"context"
	"fmt"
	"strings"

	"songflow/internal/queue"
)

// Interrupt queues a one-off song steered by prompt so it plays next. Only
// active sessions accept interrupts; a closing session is draining.
func (s *SessionService) Interrupt(ctx context.Context, sessionID, prompt string) (Song, error) {
	if strings.TrimSpace(prompt) == "" {
		return Song{}, invalid("interrupt", "prompt is required")
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Song{}, err
	}
	if session.Status != queue.SessionActive {
		return Song{}, fmt.Errorf("interrupt session %s: %w: session is %s", sessionID, queue.ErrInvalidTransition, session.Status)
	}
	song, err := s.store.InsertInterrupt(ctx, sessionID, prompt)
	if err != nil {
		return Song{}, err
	}
	return FromSong(song), nil
}

// Next returns the ready song that should play next, or nil when none is
// ready yet.
func (s *SessionService) Next(ctx context.Context, sessionID string) (*Song, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	song, err := s.store.NextPlayable(ctx, sessionID)
	if err != nil || song == nil {
		return nil, err
	}
	dto := FromSong(song)
	return &dto, nil
}

// Retry moves a failed song to retry_pending. The scheduler resumes it from
// the stage that failed on its next tick.
func (s *SessionService) Retry(ctx context.Context, songID string) (Song, error) {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return Song{}, err
	}
	if song.Status != queue.StatusError {
		return Song{}, fmt.Errorf("retry song %s: %w: song is %s", songID, queue.ErrInvalidTransition, song.Status)
	}
	ok, err := s.store.RequestRetry(ctx, songID)
	if err != nil {
		return Song{}, err
	}
	if !ok {
		return Song{}, fmt.Errorf("retry song %s: %w: status changed", songID, queue.ErrInvalidTransition)
	}
	return s.describeSong(ctx, songID)
}

// MarkPlayed records that a ready song was played.
func (s *SessionService) MarkPlayed(ctx context.Context, songID string) (Song, error) {
	if err := s.store.MarkPlayed(ctx, songID); err != nil {
		return Song{}, err
	}
	return s.describeSong(ctx, songID)
}

// Replay returns a played song to ready.
func (s *SessionService) Replay(ctx context.Context, songID string) (Song, error) {
	if err := s.store.Replay(ctx, songID); err != nil {
		return Song{}, err
	}
	return s.describeSong(ctx, songID)
}

func (s *SessionService) describeSong(ctx context.Context, id string) (Song, error) {
	song, err := s.store.GetSong(ctx, id)
	if err != nil {
		return Song{}, err
	}
	return FromSong(song), nil
}
