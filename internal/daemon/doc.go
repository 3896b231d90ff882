// Package daemon coordinates the long-running songflow process.
//
// It wires configuration, the state store, the scheduler, and the song
// library into a single lifecycle with flock-based locking so only one
// orchestrator works a data directory. Startup runs the preflight checks (logged,
// never fatal) and then starts the scheduler, which first recovers songs a
// previous process left in flight.
//
// The HTTP API is a chi router: session and song operations under /api,
// Prometheus metrics at /metrics, and saved media under /media/. Mutating
// API calls require the configured bearer token; all /api routes are rate
// limited per client IP.
//
// Keep orchestration logic here: individual pipeline stages live in the
// workflow package while the daemon focuses on startup, shutdown, and the
// outer surfaces.
package daemon
