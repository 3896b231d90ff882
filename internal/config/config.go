package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
	// PublicURL prefixes media links handed to players. Empty means
	// http://<api_bind>.
	PublicURL string `toml:"public_url"`
}

// Workflow contains scheduler timing, buffering, and per-call timeouts.
type Workflow struct {
	TickIntervalMS         int `toml:"tick_interval_ms"`
	BufferTarget           int `toml:"buffer_target"`
	StaleAfterSeconds      int `toml:"stale_after_seconds"`
	MetadataTimeoutSeconds int `toml:"metadata_timeout_seconds"`
	CoverTimeoutSeconds    int `toml:"cover_timeout_seconds"`
	SubmitTimeoutSeconds   int `toml:"submit_timeout_seconds"`
	PollTimeoutSeconds     int `toml:"poll_timeout_seconds"`
	SaveTimeoutSeconds     int `toml:"save_timeout_seconds"`
	StoreTimeoutSeconds    int `toml:"store_timeout_seconds"`
	PollConcurrency        int `toml:"poll_concurrency"`
}

// LLMProvider describes one OpenAI-compatible chat endpoint.
type LLMProvider struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// LLM contains text-generation settings. Sessions pick a provider by name;
// DefaultProvider and DefaultModel apply when a session leaves them empty.
type LLM struct {
	DefaultProvider string                 `toml:"default_provider"`
	DefaultModel    string                 `toml:"default_model"`
	Referer         string                 `toml:"referer"`
	Title           string                 `toml:"title"`
	TimeoutSeconds  int                    `toml:"timeout_seconds"`
	Providers       map[string]LLMProvider `toml:"providers"`
}

// ImageProvider describes one image-generation endpoint. Style selects the
// request shape: "openrouter" (chat completions with image output) or
// "openai" (images/generations).
type ImageProvider struct {
	Style   string `toml:"style"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// Image contains cover-art generation settings. The provider and model stored
// in the shared settings table take precedence over the defaults here.
type Image struct {
	DefaultProvider   string                   `toml:"default_provider"`
	DefaultModel      string                   `toml:"default_model"`
	RequestsPerMinute int                      `toml:"requests_per_minute"`
	Providers         map[string]ImageProvider `toml:"providers"`
}

// ACE contains settings for the ACE-Step audio synthesis service.
type ACE struct {
	BaseURL           string  `toml:"base_url"`
	InferSteps        int     `toml:"infer_steps"`
	AudioFormat       string  `toml:"audio_format"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Audio contains post-processing settings applied while saving songs.
type Audio struct {
	TrimSilence        bool    `toml:"trim_silence"`
	FFmpegBinary       string  `toml:"ffmpeg_binary"`
	SilenceThresholdDB float64 `toml:"silence_threshold_db"`
	MinSilenceSeconds  float64 `toml:"min_silence_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for songflow.
//
// Configuration sections by subsystem:
//   - Paths: state store, library, logs, and API bind address
//   - Workflow: scheduler tick, buffer target, stale cutoff, call timeouts
//   - LLM: text providers used for song metadata
//   - Image: cover-art providers
//   - ACE: audio synthesis service
//   - Audio: silence trimming on save
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Workflow Workflow `toml:"workflow"`
	LLM      LLM      `toml:"llm"`
	Image    Image    `toml:"image"`
	ACE      ACE      `toml:"ace"`
	Audio    Audio    `toml:"audio"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("songflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LibraryDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite state store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "songflow.db")
}

// LockPath returns the single-instance daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "songflow.lock")
}

func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "songflow.pid")
}

// MediaBaseURL returns the prefix used for audio and cover links.
func (c *Config) MediaBaseURL() string {
	if c.Paths.PublicURL != "" {
		return strings.TrimRight(c.Paths.PublicURL, "/")
	}
	return "http://" + c.Paths.APIBind
}

// TickInterval returns the scheduler tick period.
func (w Workflow) TickInterval() time.Duration {
	return time.Duration(w.TickIntervalMS) * time.Millisecond
}

// StaleAfter returns the age after which a transient song is deleted.
func (w Workflow) StaleAfter() time.Duration {
	return seconds(w.StaleAfterSeconds)
}

// MetadataTimeout bounds one text-generation call.
func (w Workflow) MetadataTimeout() time.Duration { return seconds(w.MetadataTimeoutSeconds) }

// CoverTimeout bounds one image-generation call.
func (w Workflow) CoverTimeout() time.Duration { return seconds(w.CoverTimeoutSeconds) }

// SubmitTimeout bounds one audio submission.
func (w Workflow) SubmitTimeout() time.Duration { return seconds(w.SubmitTimeoutSeconds) }

// PollTimeout bounds one audio status poll.
func (w Workflow) PollTimeout() time.Duration { return seconds(w.PollTimeoutSeconds) }

// SaveTimeout bounds the download, trim, and write of one finished song.
func (w Workflow) SaveTimeout() time.Duration { return seconds(w.SaveTimeoutSeconds) }

// StoreTimeout bounds the state-store calls of one session per tick.
func (w Workflow) StoreTimeout() time.Duration { return seconds(w.StoreTimeoutSeconds) }

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// An existing file is replaced atomically.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig is the resolved connection for one text provider.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// ResolveLLM returns the connection settings for provider and model, falling
// back to the configured defaults for empty values.
func (c *Config) ResolveLLM(provider, model string) (LLMConfig, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = c.LLM.DefaultProvider
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = c.LLM.DefaultModel
	}
	entry, ok := c.LLM.Providers[provider]
	if !ok {
		return LLMConfig{}, fmt.Errorf("llm provider %q is not configured", provider)
	}
	return LLMConfig{
		Provider:       provider,
		APIKey:         entry.APIKey,
		BaseURL:        entry.BaseURL,
		Model:          model,
		Referer:        c.LLM.Referer,
		Title:          c.LLM.Title,
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}, nil
}

// ImageConfig is the resolved connection for one image provider.
type ImageConfig struct {
	Provider string
	Style    string
	BaseURL  string
	APIKey   string
	Model    string
}

// ResolveImage returns the connection settings for provider and model. Empty
// values fall back to the configured defaults.
func (c *Config) ResolveImage(provider, model string) (ImageConfig, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = c.Image.DefaultProvider
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = c.Image.DefaultModel
	}
	entry, ok := c.Image.Providers[provider]
	if !ok {
		return ImageConfig{}, fmt.Errorf("image provider %q is not configured", provider)
	}
	return ImageConfig{
		Provider: provider,
		Style:    entry.Style,
		BaseURL:  entry.BaseURL,
		APIKey:   entry.APIKey,
		Model:    model,
	}, nil
}
