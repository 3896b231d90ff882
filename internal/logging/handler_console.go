package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one line per record:
//
//	2026-01-02T15:04:05Z INFO  scheduler/metadata: stage completed session_id=... song_id=... k=v
//
// The component and stage are folded into the label, and the session and
// song ids always lead the key/value list so lines for one song line up.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	attrs     []field
	group     string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: new(sync.Mutex), w: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = appendFields(append([]field(nil), h.attrs...), h.group, attrs)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.group, []slog.Attr{attr})
		return true
	})

	var component, stage string
	var lead, rest []field
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = f.value.String()
		case FieldStage:
			stage = f.value.String()
		case FieldSessionID, FieldSongID:
			lead = append(lead, f)
		default:
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	fmt.Fprintf(&buf, "%-5s ", levelLabel(record.Level))
	if label := joinLabel(component, stage); label != "" {
		buf.WriteString(label)
		buf.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}
	for _, f := range append(lead, rest...) {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(formatValue(f.value))
	}
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			dst = appendFields(dst, joinKey(prefix, attr.Key), value.Group())
			continue
		}
		dst = append(dst, field{key: joinKey(prefix, attr.Key), value: value})
	}
	return dst
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

func joinLabel(component, stage string) string {
	switch {
	case component == "":
		return stage
	case stage == "":
		return component
	default:
		return component + "/" + stage
	}
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		return v.String()
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
