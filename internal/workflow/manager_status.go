package workflow

import (
	"context"
	"time"

	"songflow/internal/logging"
	"songflow/internal/queue"
)

// StatusSummary represents lightweight scheduler diagnostics.
type StatusSummary struct {
	Running   bool                 `json:"running"`
	LastError string               `json:"last_error,omitempty"`
	LastTick  time.Time            `json:"last_tick"`
	Sessions  map[string][]string  `json:"sessions"`
	SongStats map[queue.Status]int `json:"song_stats"`
}

// Status returns the latest scheduler information. Sessions maps every
// tracked session to the busy flags it currently holds.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, LastTick: m.lastTick}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	summary.Sessions = make(map[string][]string)
	for _, id := range m.state.Tracked() {
		summary.Sessions[id] = m.state.Busy(id)
	}

	stats, err := m.store.Stats(ctx, "")
	if err != nil {
		m.logger.Warn("failed to read song stats", logging.Error(err))
	}
	summary.SongStats = stats
	return summary
}
