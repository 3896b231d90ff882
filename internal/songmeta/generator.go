package songmeta

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	xlang "golang.org/x/text/language"

	"songflow/internal/config"
	"songflow/internal/language"
	"songflow/internal/logging"
	"songflow/internal/queue"
	"songflow/internal/services"
	"songflow/internal/services/llm"
	"songflow/internal/textutil"
)

// Request describes one song to write.
type Request struct {
	SessionID string
	// Prompt is the effective steering prompt: the interrupt prompt for
	// interrupt songs, the session prompt otherwise.
	Prompt    string
	Interrupt bool
	Provider  string
	Model     string
	Params    queue.GenerationParams
	Recent    []RecentSong

	avoid string
}

// RecentSong summarizes an earlier song of the same session.
type RecentSong struct {
	Title  string
	Genre  string
	Lyrics string
}

// Completer is the text-provider surface the generator needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ClientFactory builds a Completer for a resolved provider connection.
type ClientFactory func(config.LLMConfig) Completer

// Generator writes song metadata with the configured text providers.
type Generator struct {
	cfg     *config.Config
	factory ClientFactory
	logger  *slog.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClientFactory replaces how provider clients are built.
func WithClientFactory(factory ClientFactory) Option {
	return func(g *Generator) {
		if factory != nil {
			g.factory = factory
		}
	}
}

// NewGenerator constructs a Generator. Provider clients share one HTTP client.
func NewGenerator(cfg *config.Config, logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	shared := &http.Client{Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second}
	g := &Generator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "songmeta"),
		factory: func(c config.LLMConfig) Completer {
			return llm.NewClient(llm.Config{
				Provider:       c.Provider,
				APIKey:         c.APIKey,
				BaseURL:        c.BaseURL,
				Model:          c.Model,
				Referer:        c.Referer,
				Title:          c.Title,
				TimeoutSeconds: c.TimeoutSeconds,
			}, llm.WithHTTPClient(shared))
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type draft struct {
	Title         string  `json:"title"`
	Artist        string  `json:"artist"`
	Genre         string  `json:"genre"`
	Subgenre      string  `json:"subgenre"`
	Lyrics        string  `json:"lyrics"`
	Caption       string  `json:"caption"`
	CoverPrompt   string  `json:"cover_prompt"`
	BPM           float64 `json:"bpm"`
	KeyScale      string  `json:"key_scale"`
	TimeSignature string  `json:"time_signature"`
	Duration      float64 `json:"duration"`
}

// Generate writes metadata for one song.
func (g *Generator) Generate(ctx context.Context, req Request) (queue.SongMetadata, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return queue.SongMetadata{}, services.Wrap(services.ErrValidation, "metadata", "build prompt", "steering prompt is empty", nil)
	}
	conn, err := g.cfg.ResolveLLM(req.Provider, req.Model)
	if err != nil {
		return queue.SongMetadata{}, services.Wrap(services.ErrConfiguration, "metadata", "resolve provider", "", err)
	}
	client := g.factory(conn)
	logger := logging.WithContext(ctx, g.logger).With(
		logging.String("provider", conn.Provider),
		logging.String("model", conn.Model),
	)

	recentLyrics := make([]string, 0, len(req.Recent))
	for _, song := range req.Recent {
		recentLyrics = append(recentLyrics, song.Lyrics)
	}

	const attempts = 2
	var meta queue.SongMetadata
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := client.CompleteJSON(ctx, systemPrompt, BuildUserPrompt(req))
		if err != nil {
			return queue.SongMetadata{}, services.WrapCall("metadata", "text provider", err)
		}
		var d draft
		if err := llm.DecodeJSON(content, &d); err != nil {
			return queue.SongMetadata{}, services.Wrap(services.ErrValidation, "metadata", "decode response", "", err)
		}
		meta, err = finalize(d, req.Params)
		if err != nil {
			return queue.SongMetadata{}, err
		}

		score, at := textutil.MaxSimilarity(meta.Lyrics, recentLyrics)
		if at < 0 || score < repeatThreshold || language.IsInstrumental(meta.Lyrics) {
			break
		}
		logger.Info("generated lyrics repeat a recent song",
			logging.String(logging.FieldEventType, "metadata_repeat"),
			logging.String("similar_to", req.Recent[at].Title),
			logging.Float64("similarity", score),
			logging.Int("attempt", attempt),
		)
		if ctx.Err() != nil {
			return queue.SongMetadata{}, ctx.Err()
		}
		req.avoid = req.Recent[at].Title
	}
	return meta, nil
}

var titleCaser = cases.Title(xlang.English, cases.NoLower)

func finalize(d draft, params queue.GenerationParams) (queue.SongMetadata, error) {
	meta := queue.SongMetadata{
		Title:         titleCaser.String(strings.Trim(strings.TrimSpace(d.Title), `"'`)),
		Artist:        strings.TrimSpace(d.Artist),
		Genre:         strings.TrimSpace(d.Genre),
		Subgenre:      strings.TrimSpace(d.Subgenre),
		Lyrics:        strings.TrimSpace(d.Lyrics),
		Caption:       strings.TrimSpace(d.Caption),
		CoverPrompt:   strings.TrimSpace(d.CoverPrompt),
		BPM:           int(d.BPM + 0.5),
		KeyScale:      strings.TrimSpace(d.KeyScale),
		TimeSignature: strings.TrimSpace(d.TimeSignature),
		AudioDuration: int(d.Duration + 0.5),
	}
	if meta.Title == "" {
		return queue.SongMetadata{}, services.Wrap(services.ErrValidation, "metadata", "validate response", "title is missing", nil)
	}

	instrumental := language.IsInstrumental(params.LyricsLanguage)
	switch {
	case instrumental:
		meta.Lyrics = "[instrumental]"
	case meta.Lyrics == "":
		return queue.SongMetadata{}, services.Wrap(services.ErrValidation, "metadata", "validate response", "lyrics are missing", nil)
	}
	if meta.Caption == "" {
		meta.Caption = strings.Trim(strings.Join([]string{meta.Genre, meta.Subgenre}, ", "), ", ")
	}
	if meta.Caption == "" {
		return queue.SongMetadata{}, services.Wrap(services.ErrValidation, "metadata", "validate response", "caption and genre are missing", nil)
	}

	if params.BPM > 0 {
		meta.BPM = params.BPM
	}
	if meta.BPM <= 0 {
		meta.BPM = DefaultBPM
	}
	meta.BPM = clamp(meta.BPM, minBPM, maxBPM)

	if params.KeyScale != "" {
		meta.KeyScale = params.KeyScale
	}
	if meta.KeyScale == "" {
		meta.KeyScale = DefaultKeyScale
	}

	switch {
	case params.TimeSignature != "":
		meta.TimeSignature = params.TimeSignature
	case !timeSignatures[meta.TimeSignature]:
		meta.TimeSignature = DefaultTimeSignature
	}

	if params.AudioDurationSeconds > 0 {
		meta.AudioDuration = params.AudioDurationSeconds
	}
	if meta.AudioDuration <= 0 {
		meta.AudioDuration = DefaultDuration
	}
	meta.AudioDuration = clamp(meta.AudioDuration, minDuration, maxDuration)
	return meta, nil
}
