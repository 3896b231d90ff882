package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"songflow/internal/api"
	"songflow/internal/config"
	"songflow/internal/library"
	"songflow/internal/logging"
	"songflow/internal/preflight"
	"songflow/internal/queue"
	"songflow/internal/workflow"
)

// Daemon coordinates the scheduler and the HTTP API and enforces
// single-instance execution per data directory.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	library  *library.Library
	sessions *api.SessionService
	checks   func(context.Context, *config.Config) []preflight.Result

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	apiSrv  *apiServer

	mu        sync.RWMutex
	preflight []preflight.Result
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithPreflight replaces the startup readiness checks.
func WithPreflight(fn func(context.Context, *config.Config) []preflight.Result) Option {
	return func(d *Daemon) {
		if fn != nil {
			d.checks = fn
		}
	}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
	LibraryDir   string
	Preflight    []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, lib *library.Library, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || lib == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, and library")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		library:  lib,
		sessions: api.NewSessionService(store),
		checks:   preflight.RunAll,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, runs preflight checks, starts the
// scheduler (which recovers songs left in flight by a previous process), and
// starts the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another songflow daemon instance is already running")
	}

	results := d.checks(ctx, d.cfg)
	d.mu.Lock()
	d.preflight = results
	d.mu.Unlock()
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "songs needing this provider will fail until it is reachable"),
		)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.cancel()
		_ = d.lock.Unlock()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.abortStart()
		return fmt.Errorf("create api server: %w", err)
	}
	if err := srv.start(d.ctx); err != nil {
		d.abortStart()
		return err
	}
	d.apiSrv = srv

	d.running.Store(true)
	d.logger.Info("songflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) abortStart() {
	d.cancel()
	d.workflow.Stop()
	_ = d.lock.Unlock()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.apiSrv.stop()
	d.apiSrv = nil
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("songflow daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Sessions exposes the session and song operations.
func (d *Daemon) Sessions() *api.SessionService {
	return d.sessions
}

// APIAddress returns the address the API server is listening on, or "" when
// it is not running.
func (d *Daemon) APIAddress() string {
	if d.apiSrv == nil || d.apiSrv.listener == nil {
		return ""
	}
	return d.apiSrv.listener.Addr().String()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.RLock()
	checks := append([]preflight.Result(nil), d.preflight...)
	d.mu.RUnlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		LibraryDir:   d.library.Root(),
		Preflight:    checks,
	}
}
