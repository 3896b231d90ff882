package logging

import (
	"context"
	"log/slog"
	"strings"
)

// stageLevelHandler drops records below min. It can only quiet a stage; the
// wrapped handler's own level still applies.
type stageLevelHandler struct {
	next slog.Handler
	min  slog.Level
}

func (h *stageLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h *stageLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *stageLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stageLevelHandler{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h *stageLevelHandler) WithGroup(name string) slog.Handler {
	return &stageLevelHandler{next: h.next.WithGroup(name), min: h.min}
}

// ForStage returns logger tagged with the stage name. A level named for the
// stage in logging.stage_overrides replaces any earlier override.
func ForStage(logger *slog.Logger, overrides map[string]string, stage string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	tagged := logger.With(String(FieldStage, stage))
	raw := strings.TrimSpace(overrides[stage])
	if raw == "" {
		return tagged
	}
	handler := tagged.Handler()
	if existing, ok := handler.(*stageLevelHandler); ok {
		handler = existing.next
	}
	return slog.New(&stageLevelHandler{next: handler, min: parseLevel(raw)})
}
