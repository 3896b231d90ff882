package logging

import (
	"context"
	"log/slog"

	"songflow/internal/services"
)

// Standard structured field keys.
const (
	FieldComponent = "component"
	FieldSessionID = "session_id"
	FieldSongID    = "song_id"
	FieldStage     = "stage"
	// FieldEventType is a stable, grep-able identifier for what happened.
	FieldEventType = "event_type"
	// FieldErrorHint tells an operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes what a warning means for playback.
	FieldImpact        = "impact"
	FieldCorrelationID = "correlation_id"
)

// CallFields returns the non-empty ids of call as log attributes. The
// request id is logged as correlation_id.
func CallFields(call services.Call) []Attr {
	var fields []Attr
	for _, f := range []struct{ key, value string }{
		{FieldSessionID, call.SessionID},
		{FieldSongID, call.SongID},
		{FieldStage, call.Stage},
		{FieldCorrelationID, call.RequestID},
	} {
		if f.value != "" {
			fields = append(fields, String(f.key, f.value))
		}
	}
	return fields
}

// ContextFields returns CallFields for the call carried by ctx.
func ContextFields(ctx context.Context) []Attr {
	return CallFields(services.CallFromContext(ctx))
}

// WithContext returns logger augmented with the ids carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
