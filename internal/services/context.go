package services

import (
	"context"
	"net/http"
)

// Call identifies one processor run: the song it works on, the stage, and a
// request id that is logged and forwarded to providers.
type Call struct {
	SessionID string
	SongID    string
	Stage     string
	RequestID string
}

type callKey struct{}

// RequestIDHeader carries Call.RequestID on outgoing provider requests.
const RequestIDHeader = "X-Request-ID"

// WithCall merges the non-empty fields of call into the Call carried by ctx.
func WithCall(ctx context.Context, call Call) context.Context {
	merged := CallFromContext(ctx)
	if call.SessionID != "" {
		merged.SessionID = call.SessionID
	}
	if call.SongID != "" {
		merged.SongID = call.SongID
	}
	if call.Stage != "" {
		merged.Stage = call.Stage
	}
	if call.RequestID != "" {
		merged.RequestID = call.RequestID
	}
	if merged == (Call{}) {
		return ctx
	}
	return context.WithValue(ctx, callKey{}, merged)
}

// CallFromContext returns the Call carried by ctx, or the zero Call.
func CallFromContext(ctx context.Context) Call {
	if ctx == nil {
		return Call{}
	}
	call, _ := ctx.Value(callKey{}).(Call)
	return call
}

// WithSessionID tags ctx with the session a call belongs to. Blank ids leave
// ctx unchanged.
func WithSessionID(ctx context.Context, id string) context.Context {
	return WithCall(ctx, Call{SessionID: id})
}

// WithSongID tags ctx with the song being processed.
func WithSongID(ctx context.Context, id string) context.Context {
	return WithCall(ctx, Call{SongID: id})
}

// WithStage tags ctx with the processor stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return WithCall(ctx, Call{Stage: stage})
}

// WithRequestID tags ctx with the id forwarded to providers in
// RequestIDHeader.
func WithRequestID(ctx context.Context, id string) context.Context {
	return WithCall(ctx, Call{RequestID: id})
}

// RequestIDFromContext reports the request id carried by ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id := CallFromContext(ctx).RequestID
	return id, id != ""
}

// SetRequestID copies the request id carried by the request's context onto
// its headers.
func SetRequestID(req *http.Request) {
	if id, ok := RequestIDFromContext(req.Context()); ok {
		req.Header.Set(RequestIDHeader, id)
	}
}
