package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WrapCall tags a provider call failure. Deadline overruns become ErrTimeout so
// a slow provider is reported the same way as a failing one.
func WrapCall(stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrTimeout, stage, operation, "provider call timed out", err)
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrExternalTool) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConfiguration) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrTransient) {
		return fmt.Errorf("%s: %w", buildDetail(stage, operation, ""), err)
	}
	return Wrap(ErrExternalTool, stage, operation, "", err)
}

// Outcome returns a short, stable label for err suitable for metrics labels
// and the error_hint log field.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrValidation):
		return "invalid_response"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExternalTool):
		return "provider_error"
	default:
		return "failure"
	}
}

// Message renders err for persistence on a song row. Sentinel markers are
// dropped and the text is bounded.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrExternalTool, ErrValidation, ErrConfiguration, ErrNotFound, ErrTimeout, ErrTransient} {
		msg = strings.ReplaceAll(msg, marker.Error()+": ", "")
	}
	const limit = 1000
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
