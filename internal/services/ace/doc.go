// Package ace is the client for an ACE-Step audio synthesis server.
//
// Synthesis is asynchronous: Submit posts a generation task and returns its
// id, Poll reports whether the task is pending, done (with an audio
// reference) or failed, and Fetch streams the finished audio. Submissions and
// polls share a token-bucket limiter so a burst of sessions cannot flood the
// server.
package ace
