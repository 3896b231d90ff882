package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateImage(); err != nil {
		return err
	}
	if err := c.validateACE(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.tick_interval_ms":         c.Workflow.TickIntervalMS,
		"workflow.stale_after_seconds":      c.Workflow.StaleAfterSeconds,
		"workflow.metadata_timeout_seconds": c.Workflow.MetadataTimeoutSeconds,
		"workflow.cover_timeout_seconds":    c.Workflow.CoverTimeoutSeconds,
		"workflow.submit_timeout_seconds":   c.Workflow.SubmitTimeoutSeconds,
		"workflow.poll_timeout_seconds":     c.Workflow.PollTimeoutSeconds,
		"workflow.save_timeout_seconds":     c.Workflow.SaveTimeoutSeconds,
		"workflow.store_timeout_seconds":    c.Workflow.StoreTimeoutSeconds,
		"workflow.poll_concurrency":         c.Workflow.PollConcurrency,
	}); err != nil {
		return err
	}
	if c.Workflow.BufferTarget < 1 {
		return errors.New("workflow.buffer_target must be >= 1")
	}
	maxCall := c.Workflow.SaveTimeoutSeconds
	for _, v := range []int{c.Workflow.MetadataTimeoutSeconds, c.Workflow.CoverTimeoutSeconds, c.Workflow.SubmitTimeoutSeconds} {
		if v > maxCall {
			maxCall = v
		}
	}
	if c.Workflow.StaleAfterSeconds <= maxCall {
		return errors.New("workflow.stale_after_seconds must exceed every provider timeout")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if len(c.LLM.Providers) == 0 {
		return errors.New("llm.providers must define at least one provider")
	}
	if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; !ok {
		return fmt.Errorf("llm.default_provider %q is not defined under llm.providers", c.LLM.DefaultProvider)
	}
	for name, entry := range c.LLM.Providers {
		if entry.BaseURL == "" {
			return fmt.Errorf("llm.providers.%s.base_url must be set", name)
		}
	}
	return nil
}

func (c *Config) validateImage() error {
	if c.Image.DefaultProvider != "" {
		if _, ok := c.Image.Providers[c.Image.DefaultProvider]; !ok {
			return fmt.Errorf("image.default_provider %q is not defined under image.providers", c.Image.DefaultProvider)
		}
	}
	for name, entry := range c.Image.Providers {
		switch entry.Style {
		case "openrouter", "openai":
		default:
			return fmt.Errorf("image.providers.%s.style must be openrouter or openai", name)
		}
		if entry.BaseURL == "" {
			return fmt.Errorf("image.providers.%s.base_url must be set", name)
		}
	}
	return nil
}

func (c *Config) validateACE() error {
	if !strings.HasPrefix(c.ACE.BaseURL, "http://") && !strings.HasPrefix(c.ACE.BaseURL, "https://") {
		return errors.New("ace.base_url must be an http(s) URL")
	}
	switch c.ACE.AudioFormat {
	case "mp3", "flac", "wav":
	default:
		return fmt.Errorf("ace.audio_format %q must be mp3, flac, or wav", c.ACE.AudioFormat)
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.SilenceThresholdDB > 0 {
		return errors.New("audio.silence_threshold_db must be <= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
