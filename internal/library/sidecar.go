package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"songflow/internal/fileutil"
	"songflow/internal/queue"
)

// Sidecar is the JSON document written next to each saved song.
type Sidecar struct {
	SongID        string    `json:"song_id"`
	SessionID     string    `json:"session_id"`
	OrderIndex    float64   `json:"order_index"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist,omitempty"`
	Genre         string    `json:"genre,omitempty"`
	Subgenre      string    `json:"subgenre,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	Lyrics        string    `json:"lyrics,omitempty"`
	BPM           int       `json:"bpm,omitempty"`
	KeyScale      string    `json:"key_scale,omitempty"`
	TimeSignature string    `json:"time_signature,omitempty"`
	DurationSecs  int       `json:"duration_seconds,omitempty"`
	Interrupt     bool      `json:"interrupt,omitempty"`
	Prompt        string    `json:"prompt,omitempty"`
	AudioURL      string    `json:"audio_url"`
	CoverURL      string    `json:"cover_url,omitempty"`
	SavedAt       time.Time `json:"saved_at"`
}

// WriteSidecar records song metadata as JSON beside the audio file.
func (l *Library) WriteSidecar(song *queue.Song, result queue.SaveResult, savedAt time.Time) (string, error) {
	doc := Sidecar{
		SongID:        song.ID,
		SessionID:     song.SessionID,
		OrderIndex:    song.OrderIndex,
		Title:         song.Title,
		Artist:        song.Artist,
		Genre:         song.Genre,
		Subgenre:      song.Subgenre,
		Caption:       song.Caption,
		Lyrics:        song.Lyrics,
		BPM:           song.BPM,
		KeyScale:      song.KeyScale,
		TimeSignature: song.TimeSignature,
		DurationSecs:  song.AudioDuration,
		Interrupt:     song.IsInterrupt,
		AudioURL:      result.AudioURL,
		CoverURL:      song.CoverURL,
		SavedAt:       savedAt.UTC(),
	}
	if song.IsInterrupt {
		doc.Prompt = song.InterruptPrompt
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode sidecar: %w", err)
	}
	dest := l.songPath(song, ".json")
	if _, err := fileutil.WriteAtomic(dest, bytes.NewReader(append(data, '\n')), 0o644); err != nil {
		return "", fmt.Errorf("write sidecar: %w", err)
	}
	return dest, nil
}
