package workflow

import (
	"context"

	"github.com/sourcegraph/conc/panics"

	"songflow/internal/logging"
	"songflow/internal/metrics"
)

// spawn runs fn on its own goroutine under the session context while flag f
// is held. The flag is released on every exit path, including panics. It
// reports false when the flag was already held.
func (m *Manager) spawn(st *sessionState, f busyFlag, fn func(ctx context.Context)) bool {
	if !m.state.acquire(st, f) {
		metrics.RecordBusySkip(f.String())
		return false
	}
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer m.state.release(st, f)

		var pc panics.Catcher
		pc.Try(func() { fn(st.ctx) })
		if r := pc.Recovered(); r != nil {
			m.setLastError(r.AsError())
			logging.ErrorWithContext(m.logger, "stage processor panicked", "processor_panic",
				logging.String(logging.FieldSessionID, st.id),
				logging.String(logging.FieldStage, f.String()),
				logging.String("panic", r.String()),
			)
			metrics.RecordStage(f.String(), "panic", 0)
		}
	}()
	return true
}
