package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// newJSONHandler writes one object per line with short keys (ts, level, msg).
// Durations are emitted in seconds.
func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) == 0 {
				switch attr.Key {
				case slog.TimeKey:
					return slog.String("ts", attr.Value.Time().UTC().Format(timestampFormat))
				case slog.LevelKey:
					return slog.String("level", strings.ToLower(attr.Value.String()))
				case slog.SourceKey:
					if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
						return slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
					}
				}
			}
			if attr.Value.Kind() == slog.KindDuration {
				return slog.Float64(attr.Key, attr.Value.Duration().Seconds())
			}
			return attr
		},
	})
}
