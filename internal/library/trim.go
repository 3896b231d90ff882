package library

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"songflow/internal/deps"
)

type commandRunner func(ctx context.Context, name string, args ...string) error

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func defaultFFmpegResolver(configured string) (string, error) {
	return deps.ResolveFFmpeg(configured)
}

// silenceFilter removes silence from the start, reverses, removes the new
// start (the original end), and reverses back.
func silenceFilter(thresholdDB, minSeconds float64) string {
	head := fmt.Sprintf("silenceremove=start_periods=1:start_duration=%.2f:start_threshold=%gdB", minSeconds, thresholdDB)
	return strings.Join([]string{head, "areverse", head, "areverse"}, ",")
}

func (l *Library) trimSilence(ctx context.Context, path string) error {
	binary, err := l.resolve(l.audio.FFmpegBinary)
	if err != nil {
		return err
	}
	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + ".trim" + ext
	defer os.Remove(tmp)

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-af", silenceFilter(l.audio.SilenceThresholdDB, l.audio.MinSilenceSeconds),
		tmp,
	}
	if err := l.run(ctx, binary, args...); err != nil {
		return err
	}
	info, err := os.Stat(tmp)
	if err != nil {
		return fmt.Errorf("trimmed output missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("trimmed output is empty")
	}
	return os.Rename(tmp, path)
}
