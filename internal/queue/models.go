package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a song.
type Status string

const (
	StatusPending            Status = "pending"
	StatusGeneratingMetadata Status = "generating_metadata"
	StatusMetadataReady      Status = "metadata_ready"
	StatusSubmittingToACE    Status = "submitting_to_ace"
	StatusGeneratingAudio    Status = "generating_audio"
	StatusSaving             Status = "saving"
	StatusReady              Status = "ready"
	StatusPlayed             Status = "played"
	StatusError              Status = "error"
	StatusRetryPending       Status = "retry_pending"
)

var allStatuses = []Status{
	StatusPending,
	StatusGeneratingMetadata,
	StatusMetadataReady,
	StatusSubmittingToACE,
	StatusGeneratingAudio,
	StatusSaving,
	StatusReady,
	StatusPlayed,
	StatusError,
	StatusRetryPending,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// SessionStatus represents the lifecycle of a generation session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionClosing SessionStatus = "closing"
	SessionClosed  SessionStatus = "closed"
)

// Serviced reports whether the scheduler works on sessions in this status.
func (s SessionStatus) Serviced() bool {
	return s == SessionActive || s == SessionClosing
}

// ParseSessionStatus converts a string into a known SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, bool) {
	switch s := SessionStatus(strings.ToLower(strings.TrimSpace(value))); s {
	case SessionActive, SessionClosing, SessionClosed:
		return s, true
	default:
		return "", false
	}
}

// Mode selects how many songs a session produces.
type Mode string

const (
	// ModeEndless keeps a buffer of upcoming songs filled indefinitely.
	ModeEndless Mode = "endless"
	// ModeOneshot produces a single song, then closes the session.
	ModeOneshot Mode = "oneshot"
)

// ParseMode converts a string into a known Mode. Empty means endless.
func ParseMode(value string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(value))); m {
	case "":
		return ModeEndless, true
	case ModeEndless, ModeOneshot:
		return m, true
	default:
		return "", false
	}
}

// GenerationParams are optional per-session musical constraints. Zero values
// let the text provider choose.
type GenerationParams struct {
	BPM                  int    `json:"bpm,omitempty"`
	KeyScale             string `json:"key_scale,omitempty"`
	TimeSignature        string `json:"time_signature,omitempty"`
	AudioDurationSeconds int    `json:"audio_duration_seconds,omitempty"`
	LyricsLanguage       string `json:"lyrics_language,omitempty"`
	InferSteps           int    `json:"infer_steps,omitempty"`
}

// Session is a generation context: a steering prompt plus parameters that
// produces an ordered stream of songs.
type Session struct {
	ID             string           `json:"id"`
	Prompt         string           `json:"prompt"`
	LLMProvider    string           `json:"llm_provider,omitempty"`
	LLMModel       string           `json:"llm_model,omitempty"`
	Params         GenerationParams `json:"params"`
	Mode           Mode             `json:"mode"`
	Status         SessionStatus    `json:"status"`
	SongsGenerated int              `json:"songs_generated"`
	PromptEpoch    int              `json:"prompt_epoch"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewSession describes a session to create.
type NewSession struct {
	Prompt      string
	LLMProvider string
	LLMModel    string
	Params      GenerationParams
	Mode        Mode
}

// Song is one unit of work: a single song progressing through the pipeline.
type Song struct {
	ID                    string     `json:"id"`
	SessionID             string     `json:"session_id"`
	OrderIndex            float64    `json:"order_index"`
	Status                Status     `json:"status"`
	Title                 string     `json:"title,omitempty"`
	Artist                string     `json:"artist,omitempty"`
	Genre                 string     `json:"genre,omitempty"`
	Subgenre              string     `json:"subgenre,omitempty"`
	Lyrics                string     `json:"lyrics,omitempty"`
	Caption               string     `json:"caption,omitempty"`
	CoverPrompt           string     `json:"cover_prompt,omitempty"`
	CoverURL              string     `json:"cover_url,omitempty"`
	BPM                   int        `json:"bpm,omitempty"`
	KeyScale              string     `json:"key_scale,omitempty"`
	TimeSignature         string     `json:"time_signature,omitempty"`
	AudioDuration         int        `json:"audio_duration,omitempty"`
	ACETaskID             string     `json:"ace_task_id,omitempty"`
	AudioURL              string     `json:"audio_url,omitempty"`
	StoragePath           string     `json:"storage_path,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	RetryCount            int        `json:"retry_count"`
	ErroredAtStatus       Status     `json:"errored_at_status,omitempty"`
	IsInterrupt           bool       `json:"is_interrupt"`
	InterruptPrompt       string     `json:"interrupt_prompt,omitempty"`
	PromptEpoch           int        `json:"prompt_epoch"`
	CoverClaimedAt        *time.Time `json:"cover_claimed_at,omitempty"`
	CoverError            string     `json:"cover_error,omitempty"`
	GenerationStartedAt   *time.Time `json:"generation_started_at,omitempty"`
	GenerationCompletedAt *time.Time `json:"generation_completed_at,omitempty"`
	StatusChangedAt       time.Time  `json:"status_changed_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// NeedsCover reports whether the song is eligible for cover generation: it
// has a cover prompt, no cover yet, no claim, and no recorded cover failure.
func (s Song) NeedsCover() bool {
	if strings.TrimSpace(s.CoverPrompt) == "" || s.CoverURL != "" || s.CoverClaimedAt != nil || s.CoverError != "" {
		return false
	}
	switch s.Status {
	case StatusPending, StatusGeneratingMetadata, StatusPlayed, StatusError, StatusRetryPending:
		return false
	}
	return true
}

// EffectivePrompt returns the interrupt prompt for interrupt songs and the
// session prompt otherwise.
func (s Song) EffectivePrompt(sessionPrompt string) string {
	if s.IsInterrupt && strings.TrimSpace(s.InterruptPrompt) != "" {
		return s.InterruptPrompt
	}
	return sessionPrompt
}

// DisplayTitle returns the title or a placeholder for songs without metadata.
func (s Song) DisplayTitle() string {
	if strings.TrimSpace(s.Title) != "" {
		return s.Title
	}
	return "(untitled)"
}

// SongMetadata is the full metadata set written when a metadata claim completes.
type SongMetadata struct {
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Genre         string `json:"genre"`
	Subgenre      string `json:"subgenre"`
	Lyrics        string `json:"lyrics"`
	Caption       string `json:"caption"`
	CoverPrompt   string `json:"cover_prompt"`
	BPM           int    `json:"bpm"`
	KeyScale      string `json:"key_scale"`
	TimeSignature string `json:"time_signature"`
	AudioDuration int    `json:"audio_duration"`
}

// SaveResult is written when a song finishes saving.
type SaveResult struct {
	AudioURL    string
	StoragePath string
}

// Settings are process-wide values read once per scheduler tick.
type Settings struct {
	ImageProvider string `json:"image_provider,omitempty"`
	ImageModel    string `json:"image_model,omitempty"`
}

const (
	SettingImageProvider = "image_provider"
	SettingImageModel    = "image_model"
)

// WorkQueue is a point-in-time snapshot of one session's songs, categorized
// for the stage processors. Lists are sorted by OrderIndex.
type WorkQueue struct {
	SessionID       string
	Pending         []*Song
	MetadataReady   []*Song
	NeedsCover      []*Song
	GeneratingAudio []*Song
	RetryPending    []*Song
	Stale           []*Song
	// Recent holds the last few songs that already have metadata, oldest
	// first. The metadata stage uses them to steer away from repeats.
	Recent []*Song

	TotalSongs int
	// TransientCount counts songs owned by an in-flight processor.
	TransientCount int
	// BufferedCount counts songs not yet played and not failed: everything in
	// the pipeline plus ready songs.
	BufferedCount int
	// ActiveAudioCount counts songs submitting to or generating on the audio service.
	ActiveAudioCount int
	// MetadataInFlight counts songs in generating_metadata.
	MetadataInFlight int
	// UnfinishedCount counts songs outside ready, played, and error.
	UnfinishedCount int
	MaxOrderIndex   float64
}

// HealthSummary describes aggregated song counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Ready      int
	Played     int
	Failed     int
}

// DatabaseHealth captures diagnostic information about the state database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	TotalSessions    int
	TotalSongs       int
	Error            string
}
