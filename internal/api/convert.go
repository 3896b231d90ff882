package api

import (
	"sort"
	"time"

	"songflow/internal/preflight"
	"songflow/internal/queue"
	"songflow/internal/workflow"
)

// FromSession converts a queue.Session into its transport representation.
func FromSession(s *queue.Session) Session {
	if s == nil {
		return Session{}
	}
	return Session{
		ID:          s.ID,
		Prompt:      s.Prompt,
		LLMProvider: s.LLMProvider,
		LLMModel:    s.LLMModel,
		Params: GenerationParams{
			BPM:                  s.Params.BPM,
			KeyScale:             s.Params.KeyScale,
			TimeSignature:        s.Params.TimeSignature,
			AudioDurationSeconds: s.Params.AudioDurationSeconds,
			LyricsLanguage:       s.Params.LyricsLanguage,
			InferSteps:           s.Params.InferSteps,
		},
		Mode:           string(s.Mode),
		Status:         string(s.Status),
		SongsGenerated: s.SongsGenerated,
		PromptEpoch:    s.PromptEpoch,
		CreatedAt:      formatTime(s.CreatedAt),
		UpdatedAt:      formatTime(s.UpdatedAt),
	}
}

// FromSessions converts a slice, preserving order.
func FromSessions(sessions []*queue.Session) []Session {
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s == nil {
			continue
		}
		out = append(out, FromSession(s))
	}
	return out
}

// FromSong converts a queue.Song into its transport representation.
func FromSong(s *queue.Song) Song {
	if s == nil {
		return Song{}
	}
	dto := Song{
		ID:              s.ID,
		SessionID:       s.SessionID,
		OrderIndex:      s.OrderIndex,
		Status:          string(s.Status),
		Title:           s.Title,
		Artist:          s.Artist,
		Genre:           s.Genre,
		Subgenre:        s.Subgenre,
		Lyrics:          s.Lyrics,
		Caption:         s.Caption,
		BPM:             s.BPM,
		KeyScale:        s.KeyScale,
		TimeSignature:   s.TimeSignature,
		AudioDuration:   s.AudioDuration,
		AudioURL:        s.AudioURL,
		CoverURL:        s.CoverURL,
		ErrorMessage:    s.ErrorMessage,
		ErroredAt:       string(s.ErroredAtStatus),
		CoverError:      s.CoverError,
		RetryCount:      s.RetryCount,
		IsInterrupt:     s.IsInterrupt,
		InterruptPrompt: s.InterruptPrompt,
		PromptEpoch:     s.PromptEpoch,
		CreatedAt:       formatTime(s.CreatedAt),
	}
	if s.GenerationCompletedAt != nil {
		dto.CompletedAt = formatTime(*s.GenerationCompletedAt)
	}
	return dto
}

// FromSongs converts a slice, preserving play order.
func FromSongs(songs []*queue.Song) []Song {
	out := make([]Song, 0, len(songs))
	for _, s := range songs {
		if s == nil {
			continue
		}
		out = append(out, FromSong(s))
	}
	return out
}

// FromStatusSummary converts scheduler diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:   summary.Running,
		LastError: summary.LastError,
		SongStats: MergeSongStats(summary.SongStats),
		Sessions:  map[string][]string{},
	}
	if !summary.LastTick.IsZero() {
		status.LastTick = formatTime(summary.LastTick)
	}
	for id, flags := range summary.Sessions {
		status.Sessions[id] = append([]string(nil), flags...)
	}
	return status
}

// FromPreflight converts readiness results, sorted by name.
func FromPreflight(results []preflight.Result) []PreflightCheck {
	out := make([]PreflightCheck, 0, len(results))
	for _, r := range results {
		out = append(out, PreflightCheck{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MergeSongStats returns a count for every known status, zero-filled.
func MergeSongStats(stats map[queue.Status]int) map[string]int {
	merged := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		merged[string(status)] = stats[status]
	}
	return merged
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
