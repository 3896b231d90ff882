package workflow

import (
	"context"
	"fmt"

	"songflow/internal/logging"
	"songflow/internal/metrics"
	"songflow/internal/stage"
)

// Recover returns every song a previous process left in flight to a
// resumable status, for each serviced session. It must run before the first
// tick; an error means the store is unreachable and is fatal to the caller.
func (m *Manager) Recover(ctx context.Context) (int64, error) {
	sessions, err := m.store.ListServicedSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("startup recovery: list sessions: %w", err)
	}
	var total int64
	for _, sess := range sessions {
		n, err := m.store.RecoverFromRestart(ctx, sess.ID)
		if err != nil {
			return total, fmt.Errorf("startup recovery: session %s: %w", sess.ID, err)
		}
		if n > 0 {
			m.logger.Info("recovered in-flight songs",
				logging.String(logging.FieldSessionID, sess.ID),
				logging.String(logging.FieldStage, stage.Recovery),
				logging.Int64("count", n),
			)
		}
		total += n
	}
	metrics.RecordRecovered(total)
	m.logger.Info("startup recovery complete",
		logging.String(logging.FieldEventType, "recovery_complete"),
		logging.Int("sessions", len(sessions)),
		logging.Int64("recovered", total),
	)
	return total, nil
}
