package config

const (
	defaultConfigPath             = "~/.config/songflow/config.toml"
	defaultDataDir                = "~/.local/share/songflow"
	defaultLibraryDir             = "~/.local/share/songflow/library"
	defaultLogDir                 = "~/.local/share/songflow/logs"
	defaultAPIBind                = "127.0.0.1:7489"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
	defaultTickIntervalMS         = 2000
	defaultBufferTarget           = 5
	defaultStaleAfterSeconds      = 1800
	defaultMetadataTimeoutSeconds = 120
	defaultCoverTimeoutSeconds    = 120
	defaultSubmitTimeoutSeconds   = 60
	defaultPollTimeoutSeconds     = 30
	defaultSaveTimeoutSeconds     = 300
	defaultStoreTimeoutSeconds    = 10
	defaultPollConcurrency        = 4
	defaultLLMProvider            = "openrouter"
	defaultLLMModel               = "google/gemini-3-flash-preview"
	defaultLLMReferer             = "https://github.com/songflow/songflow"
	defaultLLMTitle               = "songflow"
	defaultLLMTimeoutSeconds      = 90
	defaultOpenRouterChatURL      = "https://openrouter.ai/api/v1/chat/completions"
	defaultOllamaChatURL          = "http://127.0.0.1:11434/v1/chat/completions"
	defaultImageProvider          = "openrouter"
	defaultImageModel             = "google/gemini-2.5-flash-image"
	defaultOpenAIImagesURL        = "https://api.openai.com/v1/images/generations"
	defaultImageRequestsPerMinute = 20
	defaultACEBaseURL             = "http://127.0.0.1:8001"
	defaultACEInferSteps          = 8
	defaultACEAudioFormat         = "mp3"
	defaultACERequestsPerSecond   = 1.0
	defaultACEBurst               = 2
	defaultFFmpegBinary           = "ffmpeg"
	defaultSilenceThresholdDB     = -50.0
	defaultMinSilenceSeconds      = 0.5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Workflow: Workflow{
			TickIntervalMS:         defaultTickIntervalMS,
			BufferTarget:           defaultBufferTarget,
			StaleAfterSeconds:      defaultStaleAfterSeconds,
			MetadataTimeoutSeconds: defaultMetadataTimeoutSeconds,
			CoverTimeoutSeconds:    defaultCoverTimeoutSeconds,
			SubmitTimeoutSeconds:   defaultSubmitTimeoutSeconds,
			PollTimeoutSeconds:     defaultPollTimeoutSeconds,
			SaveTimeoutSeconds:     defaultSaveTimeoutSeconds,
			StoreTimeoutSeconds:    defaultStoreTimeoutSeconds,
			PollConcurrency:        defaultPollConcurrency,
		},
		LLM: LLM{
			DefaultProvider: defaultLLMProvider,
			DefaultModel:    defaultLLMModel,
			Referer:         defaultLLMReferer,
			Title:           defaultLLMTitle,
			TimeoutSeconds:  defaultLLMTimeoutSeconds,
			Providers: map[string]LLMProvider{
				"openrouter": {BaseURL: defaultOpenRouterChatURL},
				"ollama":     {BaseURL: defaultOllamaChatURL},
			},
		},
		Image: Image{
			DefaultProvider:   defaultImageProvider,
			DefaultModel:      defaultImageModel,
			RequestsPerMinute: defaultImageRequestsPerMinute,
			Providers: map[string]ImageProvider{
				"openrouter": {Style: "openrouter", BaseURL: defaultOpenRouterChatURL},
				"openai":     {Style: "openai", BaseURL: defaultOpenAIImagesURL},
			},
		},
		ACE: ACE{
			BaseURL:           defaultACEBaseURL,
			InferSteps:        defaultACEInferSteps,
			AudioFormat:       defaultACEAudioFormat,
			RequestsPerSecond: defaultACERequestsPerSecond,
			Burst:             defaultACEBurst,
		},
		Audio: Audio{
			TrimSilence:        true,
			FFmpegBinary:       defaultFFmpegBinary,
			SilenceThresholdDB: defaultSilenceThresholdDB,
			MinSilenceSeconds:  defaultMinSilenceSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
