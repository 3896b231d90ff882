package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names the files in Dir matching Pattern that may be pruned.
// Exclude lists paths that are never removed, such as the active run's log.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes regular files matched by targets whose modification
// time is older than retentionDays and returns how many were removed. Zero
// or negative retention disables pruning. Symlinks are skipped so the
// songflow.log pointer survives.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed := 0
	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		pattern := strings.TrimSpace(target.Pattern)
		if pattern == "" {
			pattern = "*"
		}
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		skip := make(map[string]bool, len(target.Exclude))
		for _, path := range target.Exclude {
			skip[absPath(path)] = true
		}
		for _, path := range matches {
			if skip[absPath(path)] {
				continue
			}
			info, err := os.Lstat(path)
			if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check permissions on paths.log_dir"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info("old logs pruned",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "logs_pruned"),
		)
	}
	return removed
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
