package workflow

import (
	"context"
	"errors"
	"time"

	"songflow/internal/logging"
	"songflow/internal/metrics"
	"songflow/internal/queue"
)

// Start runs startup recovery and then the tick loop in the background.
// A recovery failure is returned and the loop is not started.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if !m.providers.complete() {
		m.mu.Unlock()
		return errors.New("workflow providers not configured")
	}
	m.mu.Unlock()

	if _, err := m.Recover(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.loopDone = make(chan struct{})
	go m.runLoop(runCtx, m.loopDone)
	return nil
}

// Stop ends the loop, cancels every session, and waits for in-flight
// processors to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.loopDone
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	<-done
	m.state.discardAll()
	m.inflight.Wait()
}

// WaitIdle blocks until every spawned processor has returned. It must not
// overlap a Tick: call it only when the loop is stopped or between ticks
// driven by the caller.
func (m *Manager) WaitIdle() {
	m.inflight.Wait()
}

func (m *Manager) runLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	interval := m.cfg.Workflow.TickInterval()
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one reconcile-and-dispatch pass. It never returns an error:
// failures are logged per session and the next tick starts fresh.
func (m *Manager) Tick(ctx context.Context) {
	start := m.now()
	providers := m.providerSet()
	if !providers.complete() {
		m.logger.Error("tick skipped; providers not configured",
			logging.String(logging.FieldEventType, "tick_unconfigured"))
		return
	}

	listCtx, cancel := m.storeContext(ctx)
	sessions, err := m.store.ListServicedSessions(listCtx)
	cancel()
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(m.logger, "failed to list serviced sessions", "tick_list_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state database access"),
		)
		return
	}

	m.reconcile(ctx, sessions)
	defer func() {
		metrics.RecordTick(m.now().Sub(start), len(sessions))
		m.mu.Lock()
		m.lastTick = start
		m.mu.Unlock()
	}()
	if len(sessions) == 0 {
		return
	}

	settingsCtx, cancel := m.storeContext(ctx)
	settings, err := m.store.GetSettings(settingsCtx)
	cancel()
	if err != nil {
		m.logger.Warn("failed to read settings; using configured image defaults",
			logging.Error(err),
			logging.String(logging.FieldEventType, "settings_read_failed"),
		)
		settings = queue.Settings{}
	}

	for _, sess := range sessions {
		if ctx.Err() != nil {
			return
		}
		m.tickSession(ctx, providers, sess, settings)
	}
}

// reconcile discards state for tracked sessions that are no longer serviced
// and reverts whatever they left in flight.
func (m *Manager) reconcile(ctx context.Context, sessions []*queue.Session) {
	live := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		live[s.ID] = struct{}{}
	}
	for _, id := range m.state.Tracked() {
		if _, ok := live[id]; ok {
			continue
		}
		m.state.discard(id)
		logger := m.logger.With(logging.String(logging.FieldSessionID, id))

		revertCtx, cancel := m.storeContext(ctx)
		reverted, err := m.store.RevertTransientStatuses(revertCtx, id)
		cancel()
		if err != nil {
			logger.Warn("revert after session left service failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "session_revert_failed"),
				logging.String(logging.FieldImpact, "songs stay in flight until stale cleanup or restart"),
			)
			continue
		}
		logger.Info("session no longer serviced; state discarded",
			logging.String(logging.FieldEventType, "session_untracked"),
			logging.Int64("reverted", reverted),
		)
	}
}

func (m *Manager) tickSession(ctx context.Context, providers ProviderSet, sess *queue.Session, settings queue.Settings) {
	st := m.state.ensure(ctx, sess.ID)
	logger := m.logger.With(logging.String(logging.FieldSessionID, sess.ID))

	var cutoff time.Time
	if stale := m.cfg.Workflow.StaleAfter(); stale > 0 {
		cutoff = m.now().Add(-stale)
	}
	snapCtx, cancel := m.storeContext(ctx)
	wq, err := m.store.GetWorkQueue(snapCtx, sess.ID, cutoff)
	cancel()
	if err != nil {
		logger.Warn("failed to read work queue",
			logging.Error(err),
			logging.String(logging.FieldEventType, "work_queue_failed"),
		)
		return
	}

	if len(wq.Stale) > 0 {
		deleted := m.cleanupStale(ctx, providers, logger, wq.Stale)
		wq = wq.WithoutSongs(deleted)
	}

	status, closed := m.advanceLifecycle(ctx, logger, sess, wq)
	if closed {
		return
	}

	if status == queue.SessionActive {
		m.keepBuffer(ctx, logger, sess, wq)
		m.retrySongs(ctx, logger, wq.RetryPending)
	}

	if len(wq.Pending) > 0 && wq.MetadataInFlight == 0 {
		recent := wq.Recent
		m.spawn(st, flagMetadata, func(pctx context.Context) {
			m.runMetadata(pctx, providers.Text, sess, recent)
		})
	}
	if len(wq.NeedsCover) > 0 {
		song := wq.NeedsCover[0]
		m.spawn(st, flagCover, func(pctx context.Context) {
			m.runCover(pctx, providers, song, settings)
		})
	}
	if len(wq.MetadataReady) > 0 && wq.ActiveAudioCount == 0 {
		m.spawn(st, flagSubmit, func(pctx context.Context) {
			m.runSubmit(pctx, providers.Audio, sess)
		})
	}
	if len(wq.GeneratingAudio) > 0 {
		songs := wq.GeneratingAudio
		m.spawn(st, flagPoll, func(pctx context.Context) {
			m.runPoll(pctx, providers, songs)
		})
	}
}
