package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"songflow/internal/config"
	"songflow/internal/deps"
	"songflow/internal/services/ace"
	"songflow/internal/services/llm"
)

// CheckLLM verifies that the text provider is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		Provider:       cfg.Provider,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, llm.WithBackoff(llm.Backoff{Attempts: 1}))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProviderError("LLM API", err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable (" + cfg.Model + ")"}
}

// CheckImageProvider validates the default image provider configuration.
// No request is sent: image generation is billed per call.
func CheckImageProvider(cfg *config.Config) Result {
	const name = "Image provider"
	conn, err := cfg.ResolveImage("", "")
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	label := fmt.Sprintf("%s (%s)", name, conn.Provider)
	switch {
	case strings.TrimSpace(conn.APIKey) == "":
		return Result{Name: label, Detail: "API key missing; covers will fail"}
	case strings.TrimSpace(conn.Model) == "":
		return Result{Name: label, Detail: "model not configured"}
	}
	return Result{Name: label, Passed: true, Detail: conn.Model}
}

// CheckACE verifies the audio synthesis server answers its health endpoint.
func CheckACE(ctx context.Context, cfg config.ACE) Result {
	const name = "ACE-Step"
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return Result{Name: name, Detail: "base_url not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := ace.NewClient(cfg).HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProviderError("ACE-Step server", err)}
	}
	return Result{Name: name, Passed: true, Detail: cfg.BaseURL}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the current config needs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		deps.FFmpegRequirement(cfg.Audio.FFmpegBinary, cfg.Audio.TrimSilence),
	})
}

func summarizeProviderError(what string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", what)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", what)
	}
	return err.Error()
}
