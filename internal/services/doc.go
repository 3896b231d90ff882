// Package services defines shared utilities consumed by the workflow
// processors and the provider integrations beneath it.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, song IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helpers that classify provider
//     failures (timeout, invalid response, provider error) for logs, metrics,
//     and the error message stored on a failed song.
//
// Provider clients live in subpackages: llm (text), imagegen (cover art), and
// ace (audio synthesis).
package services
