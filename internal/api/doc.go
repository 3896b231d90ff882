// Package api defines wire-format types and the session/song operations shared
// by the HTTP API and the CLI. It translates internal queue models into
// transport-friendly DTOs that players and other consumers can render without
// coupling to internal types.
//
// # Key Types
//
// Session, Song: transport representations of a generation session and one of
// its songs.
//
// WorkflowStatus: scheduler running state, song stats, busy sessions.
//
// DaemonStatus: aggregated runtime information including preflight results.
//
// # Service
//
// SessionService wraps a SessionStore (normally *queue.Store) and performs
// the external operations: create, close and re-prompt sessions, queue
// interrupts, request retries, and record playback. Errors carry
// services.ErrValidation, queue.ErrNotFound or queue.ErrInvalidTransition so
// HTTPStatus can map them onto response codes.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Status, queue.SessionStatus) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds.
package api
