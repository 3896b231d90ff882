// Package main hosts the songflow CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground and otherwise works
// directly against the SQLite state store through the shared session service
// in internal/api, so session, song, and queue commands behave the same as the
// HTTP API whether or not a daemon is running. Status output probes the
// daemon lock rather than talking to the process.
package main
