package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"songflow/internal/logging"
	"songflow/internal/metrics"
	"songflow/internal/queue"
	"songflow/internal/services"
)

// stageRun carries the context, logger and timing of one processor run.
type stageRun struct {
	name   string
	ctx    context.Context
	logger *slog.Logger
	start  time.Time
}

func withStageContext(ctx context.Context, stageName string, song *queue.Song, requestID string) context.Context {
	if song != nil {
		ctx = services.WithSessionID(ctx, song.SessionID)
		ctx = services.WithSongID(ctx, song.ID)
	}
	ctx = services.WithStage(ctx, stageName)
	return services.WithRequestID(ctx, requestID)
}

func (m *Manager) beginStage(ctx context.Context, stageName string, song *queue.Song) *stageRun {
	stageCtx := withStageContext(ctx, stageName, song, uuid.NewString())
	call := services.CallFromContext(stageCtx)
	call.Stage = "" // ForStage tags the stage
	logger := logging.ForStage(m.logger, m.cfg.Logging.StageOverrides, stageName)
	run := &stageRun{
		name:   stageName,
		ctx:    stageCtx,
		logger: logger.With(logging.Args(logging.CallFields(call)...)...),
		start:  m.now(),
	}
	run.logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", song.DisplayTitle()),
		logging.Float64("order_index", song.OrderIndex),
	)
	return run
}

func (r *stageRun) elapsed() time.Duration {
	return time.Since(r.start)
}

func (r *stageRun) completed(attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", r.elapsed()),
	)
	r.logger.Info("stage completed", logging.Args(attrs...)...)
	metrics.RecordStage(r.name, "success", r.elapsed())
}

func (r *stageRun) failed(err error, attrs ...logging.Attr) {
	outcome := services.Outcome(err)
	attrs = append(attrs,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, outcome),
		logging.Duration("stage_duration", r.elapsed()),
	)
	logging.ErrorWithContext(r.logger, "stage failed", "stage_failed", attrs...)
	metrics.RecordStage(r.name, outcome, r.elapsed())
}

// abandoned records a run that stopped because its session was cancelled.
func (r *stageRun) abandoned() {
	r.logger.Info("stage abandoned; session cancelled",
		logging.String(logging.FieldEventType, "stage_abandoned"),
		logging.Duration("stage_duration", r.elapsed()),
	)
	metrics.RecordStage(r.name, "cancelled", r.elapsed())
}

// lostRace records a conditional write that found the song already moved.
func (r *stageRun) lostRace(op string) {
	r.logger.Debug("song moved by another path; result dropped",
		logging.String(logging.FieldEventType, "claim_lost"),
		logging.String("operation", op),
	)
	metrics.RecordStage(r.name, "skipped", 0)
}
