package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"songflow/internal/config"
	"songflow/internal/logging"
	"songflow/internal/queue"
)

// Manager runs the scheduler loop and owns the stage processors.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	state  *SchedulerState
	now    func() time.Time

	mu        sync.RWMutex
	providers ProviderSet
	running   bool
	cancel    context.CancelFunc
	loopDone  chan struct{}
	lastErr   error
	lastTick  time.Time

	inflight sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the wall clock used for stale cutoffs and save times.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a scheduler over store. Providers must be configured
// before Start or Tick.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow"),
		state:  NewSchedulerState(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConfigureProviders installs the stage collaborators.
func (m *Manager) ConfigureProviders(set ProviderSet) {
	m.mu.Lock()
	m.providers = set
	m.mu.Unlock()
}

// State exposes the scheduler's concurrency records.
func (m *Manager) State() *SchedulerState {
	return m.state
}

func (m *Manager) providerSet() ProviderSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// withTimeout bounds ctx by d; a non-positive d only adds cancellation.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (m *Manager) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, m.cfg.Workflow.StoreTimeout())
}
