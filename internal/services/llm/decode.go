package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload marks model output that could not be decoded.
var ErrInvalidPayload = errors.New("invalid llm payload")

// DecodeJSON decodes a model response into target. It accepts bare JSON,
// fenced code blocks, and objects embedded in surrounding prose.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	extracted := extractJSON(trimmed)
	if extracted == "" || extracted == trimmed {
		return fmt.Errorf("%w: %v (payload: %s)", ErrInvalidPayload, directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w: %v (payload: %s)", ErrInvalidPayload, err, snippet(extracted))
	}
	return nil
}

func extractJSON(content string) string {
	body := stripFence(content)
	if body == "" {
		return ""
	}
	if body[0] == '{' || body[0] == '[' {
		return body
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(body, pair[0])
		end := strings.LastIndex(body, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(body[start : end+1])
		}
	}
	return body
}

func stripFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
