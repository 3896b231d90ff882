// Package logging assembles structured slog loggers and formatting helpers used
// across songflow.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so processor code can tag log
// lines with session IDs, song IDs, stages, and correlation IDs. The package
// also provides a no-op logger for tests, per-stage level overrides, and log
// retention pruning.
package logging
