package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session describes a generation session in a transport-friendly format.
type Session struct {
	ID             string           `json:"id"`
	Prompt         string           `json:"prompt"`
	LLMProvider    string           `json:"llmProvider,omitempty"`
	LLMModel       string           `json:"llmModel,omitempty"`
	Params         GenerationParams `json:"params"`
	Mode           string           `json:"mode"`
	Status         string           `json:"status"`
	SongsGenerated int              `json:"songsGenerated"`
	PromptEpoch    int              `json:"promptEpoch"`
	CreatedAt      string           `json:"createdAt,omitempty"`
	UpdatedAt      string           `json:"updatedAt,omitempty"`
}

// GenerationParams mirrors the optional musical constraints of a session.
type GenerationParams struct {
	BPM                  int    `json:"bpm,omitempty"`
	KeyScale             string `json:"keyScale,omitempty"`
	TimeSignature        string `json:"timeSignature,omitempty"`
	AudioDurationSeconds int    `json:"audioDurationSeconds,omitempty"`
	LyricsLanguage       string `json:"lyricsLanguage,omitempty"`
	InferSteps           int    `json:"inferSteps,omitempty"`
}

// Song describes one song of a session.
type Song struct {
	ID              string  `json:"id"`
	SessionID       string  `json:"sessionId"`
	OrderIndex      float64 `json:"orderIndex"`
	Status          string  `json:"status"`
	Title           string  `json:"title,omitempty"`
	Artist          string  `json:"artist,omitempty"`
	Genre           string  `json:"genre,omitempty"`
	Subgenre        string  `json:"subgenre,omitempty"`
	Lyrics          string  `json:"lyrics,omitempty"`
	Caption         string  `json:"caption,omitempty"`
	BPM             int     `json:"bpm,omitempty"`
	KeyScale        string  `json:"keyScale,omitempty"`
	TimeSignature   string  `json:"timeSignature,omitempty"`
	AudioDuration   int     `json:"audioDuration,omitempty"`
	AudioURL        string  `json:"audioUrl,omitempty"`
	CoverURL        string  `json:"coverUrl,omitempty"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	ErroredAt       string  `json:"erroredAtStatus,omitempty"`
	CoverError      string  `json:"coverError,omitempty"`
	RetryCount      int     `json:"retryCount"`
	IsInterrupt     bool    `json:"isInterrupt"`
	InterruptPrompt string  `json:"interruptPrompt,omitempty"`
	PromptEpoch     int     `json:"promptEpoch"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	CompletedAt     string  `json:"completedAt,omitempty"`
}

// WorkflowStatus summarizes scheduler state.
type WorkflowStatus struct {
	Running   bool                `json:"running"`
	LastError string              `json:"lastError,omitempty"`
	LastTick  string              `json:"lastTick,omitempty"`
	SongStats map[string]int      `json:"songStats"`
	Sessions  map[string][]string `json:"busySessions"`
}

// PreflightCheck mirrors one startup readiness check.
type PreflightCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	DatabasePath string           `json:"databasePath"`
	LockFilePath string           `json:"lockFilePath"`
	LibraryDir   string           `json:"libraryDir"`
	Workflow     WorkflowStatus   `json:"workflow"`
	Preflight    []PreflightCheck `json:"preflight"`
}

// SessionListResponse wraps a collection of sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session Session `json:"session"`
}

// SongListResponse wraps a collection of songs.
type SongListResponse struct {
	Songs []Song `json:"songs"`
}

// SongResponse wraps a single song.
type SongResponse struct {
	Song Song `json:"song"`
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Prompt      string           `json:"prompt"`
	LLMProvider string           `json:"llmProvider,omitempty"`
	LLMModel    string           `json:"llmModel,omitempty"`
	Mode        string           `json:"mode,omitempty"`
	Params      GenerationParams `json:"params"`
}

// PromptRequest carries a prompt for re-steering or an interrupt.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// CloseRequest is the optional body of POST /api/sessions/{id}/close.
// Immediate skips the drain and closes the session right away.
type CloseRequest struct {
	Immediate bool `json:"immediate"`
}

// SettingRequest is the body of PUT /api/settings/{key}.
type SettingRequest struct {
	Value string `json:"value"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
