package daemon_test

import (
	"context"
	"strings"
	"testing"

	"songflow/internal/config"
	"songflow/internal/daemon"
	"songflow/internal/library"
	"songflow/internal/logging"
	"songflow/internal/preflight"
	"songflow/internal/services/ace"
	"songflow/internal/services/imagegen"
	"songflow/internal/songmeta"
	"songflow/internal/testsupport"
	"songflow/internal/workflow"
)

func stubPreflight(context.Context, *config.Config) []preflight.Result {
	return []preflight.Result{
		{Name: "Data directory", Passed: true},
		{Name: "ACE-Step", Passed: false, Detail: "connection refused"},
	}
}

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	lib := library.New(cfg, logger)
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureProviders(workflow.ProviderSet{
		Text:    songmeta.NewGenerator(cfg, logger),
		Image:   imagegen.NewClient(cfg),
		Audio:   ace.NewClient(cfg.ACE),
		Library: lib,
	})
	d, err := daemon.New(cfg, store, logger, mgr, lib, daemon.WithPreflight(stubPreflight))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon and scheduler to report running, got %+v", status)
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("LockFilePath = %q, want %q", status.LockFilePath, cfg.LockPath())
	}
	if len(status.Preflight) != 2 || status.Preflight[1].Passed {
		t.Fatalf("preflight results not recorded: %+v", status.Preflight)
	}
	if d.APIAddress() == "" {
		t.Fatal("expected api server address")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.Workflow.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.APIAddress() != "" {
		t.Fatal("expected api server to be gone after stop")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second Start error = %v, want lock contention", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
}

func TestDaemonStartFailureReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	lib := library.New(cfg, logger)
	unconfigured := workflow.NewManager(cfg, store, logger)
	broken, err := daemon.New(cfg, store, logger, unconfigured, lib, daemon.WithPreflight(stubPreflight))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	if err := broken.Start(context.Background()); err == nil {
		broken.Stop()
		t.Fatal("expected start without providers to fail")
	}

	healthy := newDaemon(t, cfg)
	if err := healthy.Start(context.Background()); err != nil {
		t.Fatalf("Start after failed start: %v", err)
	}
}
