package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"songflow/internal/config"
	"songflow/internal/daemon"
	"songflow/internal/deps"
	"songflow/internal/library"
	"songflow/internal/logging"
	"songflow/internal/logs"
	"songflow/internal/queue"
	"songflow/internal/services/ace"
	"songflow/internal/services/imagegen"
	"songflow/internal/songmeta"
	"songflow/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the songflow daemon and blocks until the context is cancelled
// or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logger, logPath, err := logging.NewFromConfig(cfg, runID, opts.LogLevel, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update songflow.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logging.RunLogPattern, Exclude: []string{logPath}},
	)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}

	lib := library.New(cfg, logger)
	manager := workflow.NewManager(cfg, store, logger)
	manager.ConfigureProviders(Providers(cfg, logger, lib))

	d, err := daemon.New(cfg, store, logger, manager, lib)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the lock file, state database, and api_bind address"),
			logging.String(logging.FieldImpact, "no songs will be generated"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("songflow daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// Providers builds the production provider set.
func Providers(cfg *config.Config, logger *slog.Logger, lib *library.Library) workflow.ProviderSet {
	return workflow.ProviderSet{
		Text:    songmeta.NewGenerator(cfg, logger),
		Image:   imagegen.NewClient(cfg),
		Audio:   ace.NewClient(cfg.ACE),
		Library: lib,
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := deps.CheckBinaries([]deps.Requirement{deps.FFmpegRequirement(cfg.Audio.FFmpegBinary, cfg.Audio.TrimSilence)})[0]
	llmCfg, llmErr := cfg.ResolveLLM("", "")
	imageCfg, imageErr := cfg.ResolveImage("", "")
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("llm_configured", llmErr == nil),
		logging.String("llm_provider", llmCfg.Provider),
		logging.String("llm_model", llmCfg.Model),
		logging.Bool("llm_key_present", strings.TrimSpace(llmCfg.APIKey) != ""),
		logging.Bool("image_configured", imageErr == nil),
		logging.String("image_provider", imageCfg.Provider),
		logging.String("ace_base_url", cfg.ACE.BaseURL),
		logging.Bool("trim_silence", cfg.Audio.TrimSilence),
		logging.Bool("ffmpeg_available", ffmpeg.Available),
		logging.String("ffmpeg_binary", ffmpeg.Path),
		logging.String("api_bind", cfg.Paths.APIBind),
	)
}
