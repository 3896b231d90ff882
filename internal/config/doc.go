// Package config loads, normalizes, and validates songflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY. The Config type centralizes every knob the daemon and
// CLI need: where the state store lives, how often the scheduler ticks, how
// many songs to keep buffered, and how to reach the text, image, and audio
// providers.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
