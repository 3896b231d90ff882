package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"songflow/internal/config"
)

// RunLogPattern matches the per-run daemon log files in paths.log_dir.
const RunLogPattern = "songflow-*.log"

// RunLogPath returns the log file for one daemon run.
func RunLogPath(logDir, runID string) string {
	return filepath.Join(logDir, "songflow-"+runID+".log")
}

// Options describes logger construction parameters.
type Options struct {
	Level string
	// Format is "console" (the default) or "json".
	Format string
	// OutputPaths are files to append to, or "stdout"/"stderr". Empty means
	// stdout.
	OutputPaths []string
	// Development adds file:line to every record.
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	out, err := openOutputs(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	addSource := opts.Development || level <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(newConsoleHandler(out, levelVar, addSource)), nil
	case "json":
		return slog.New(newJSONHandler(out, levelVar, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig builds the daemon logger for one run. Records go to stdout
// and to RunLogPath(paths.log_dir, runID), which is returned. A non-empty
// levelOverride replaces logging.level.
func NewFromConfig(cfg *config.Config, runID, levelOverride string, development bool) (*slog.Logger, string, error) {
	level := strings.TrimSpace(levelOverride)
	if level == "" {
		level = cfg.Logging.Level
	}
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("ensure log directory: %w", err)
	}
	path := RunLogPath(cfg.Paths.LogDir, runID)
	logger, err := New(Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", path},
		Development: development,
	})
	if err != nil {
		return nil, "", err
	}
	return logger, path, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutputs(paths []string) (io.Writer, error) {
	seen := make(map[string]bool, len(paths))
	var writers []io.Writer
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory for %s: %w", path, err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", path, err)
			}
			writers = append(writers, file)
		}
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
