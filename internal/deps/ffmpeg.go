package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

const defaultFFmpeg = "ffmpeg"

// ResolveFFmpeg returns the executable path for the configured ffmpeg
// command, defaulting to "ffmpeg" on PATH.
func ResolveFFmpeg(configured string) (string, error) {
	command := strings.TrimSpace(configured)
	if command == "" {
		command = defaultFFmpeg
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("ffmpeg %q not found: %w", command, err)
	}
	return path, nil
}

// FFmpegRequirement describes ffmpeg for status output. It is optional
// unless silence trimming is enabled.
func FFmpegRequirement(configured string, trimEnabled bool) Requirement {
	command := strings.TrimSpace(configured)
	if command == "" {
		command = defaultFFmpeg
	}
	return Requirement{
		Name:        "FFmpeg",
		Command:     command,
		Description: "Trims leading and trailing silence from generated audio",
		Optional:    !trimEnabled,
	}
}
