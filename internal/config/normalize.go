package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLLM()
	c.normalizeImage()
	c.normalizeACE()
	c.normalizeAudio()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = defaultLibraryDir
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SONGFLOW_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicURL = strings.TrimSpace(c.Paths.PublicURL)
	return nil
}

func (c *Config) normalizeWorkflow() {
	w := &c.Workflow
	defaultIfNonPositive(&w.TickIntervalMS, defaultTickIntervalMS)
	defaultIfNonPositive(&w.MetadataTimeoutSeconds, defaultMetadataTimeoutSeconds)
	defaultIfNonPositive(&w.CoverTimeoutSeconds, defaultCoverTimeoutSeconds)
	defaultIfNonPositive(&w.SubmitTimeoutSeconds, defaultSubmitTimeoutSeconds)
	defaultIfNonPositive(&w.PollTimeoutSeconds, defaultPollTimeoutSeconds)
	defaultIfNonPositive(&w.SaveTimeoutSeconds, defaultSaveTimeoutSeconds)
	defaultIfNonPositive(&w.StoreTimeoutSeconds, defaultStoreTimeoutSeconds)
	defaultIfNonPositive(&w.PollConcurrency, defaultPollConcurrency)
}

func (c *Config) normalizeLLM() {
	c.LLM.DefaultProvider = strings.ToLower(strings.TrimSpace(c.LLM.DefaultProvider))
	if c.LLM.DefaultProvider == "" {
		c.LLM.DefaultProvider = defaultLLMProvider
	}
	c.LLM.DefaultModel = strings.TrimSpace(c.LLM.DefaultModel)
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	defaultIfNonPositive(&c.LLM.TimeoutSeconds, defaultLLMTimeoutSeconds)

	envKey := lookupEnv("SONGFLOW_LLM_API_KEY")
	providers := make(map[string]LLMProvider, len(c.LLM.Providers))
	for name, entry := range c.LLM.Providers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		entry.BaseURL = strings.TrimSpace(entry.BaseURL)
		entry.APIKey = strings.TrimSpace(entry.APIKey)
		if name == c.LLM.DefaultProvider && envKey != "" {
			entry.APIKey = envKey
		}
		if entry.APIKey == "" && name == "openrouter" {
			entry.APIKey = lookupEnv("OPENROUTER_API_KEY")
		}
		providers[name] = entry
	}
	c.LLM.Providers = providers
}

func (c *Config) normalizeImage() {
	c.Image.DefaultProvider = strings.ToLower(strings.TrimSpace(c.Image.DefaultProvider))
	c.Image.DefaultModel = strings.TrimSpace(c.Image.DefaultModel)
	defaultIfNonPositive(&c.Image.RequestsPerMinute, defaultImageRequestsPerMinute)

	envKey := lookupEnv("SONGFLOW_IMAGE_API_KEY")
	providers := make(map[string]ImageProvider, len(c.Image.Providers))
	for name, entry := range c.Image.Providers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		entry.Style = strings.ToLower(strings.TrimSpace(entry.Style))
		if entry.Style == "" {
			entry.Style = name
		}
		entry.BaseURL = strings.TrimSpace(entry.BaseURL)
		entry.APIKey = strings.TrimSpace(entry.APIKey)
		if name == c.Image.DefaultProvider && envKey != "" {
			entry.APIKey = envKey
		}
		if entry.APIKey == "" {
			switch entry.Style {
			case "openrouter":
				entry.APIKey = lookupEnv("OPENROUTER_API_KEY")
			case "openai":
				entry.APIKey = lookupEnv("OPENAI_API_KEY")
			}
		}
		providers[name] = entry
	}
	c.Image.Providers = providers
}

func (c *Config) normalizeACE() {
	c.ACE.BaseURL = strings.TrimRight(strings.TrimSpace(c.ACE.BaseURL), "/")
	if c.ACE.BaseURL == "" {
		c.ACE.BaseURL = defaultACEBaseURL
	}
	defaultIfNonPositive(&c.ACE.InferSteps, defaultACEInferSteps)
	c.ACE.AudioFormat = strings.ToLower(strings.TrimSpace(c.ACE.AudioFormat))
	if c.ACE.AudioFormat == "" {
		c.ACE.AudioFormat = defaultACEAudioFormat
	}
	if c.ACE.RequestsPerSecond <= 0 {
		c.ACE.RequestsPerSecond = defaultACERequestsPerSecond
	}
	defaultIfNonPositive(&c.ACE.Burst, defaultACEBurst)
}

func (c *Config) normalizeAudio() {
	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Audio.SilenceThresholdDB == 0 {
		c.Audio.SilenceThresholdDB = defaultSilenceThresholdDB
	}
	if c.Audio.MinSilenceSeconds <= 0 {
		c.Audio.MinSilenceSeconds = defaultMinSilenceSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func defaultIfNonPositive(value *int, fallback int) {
	if *value <= 0 {
		*value = fallback
	}
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
