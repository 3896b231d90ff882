package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"songflow/internal/services"
)

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatReply `json:"message"`
		// Some providers answer with the streaming schema even when
		// stream=false.
		Delta        chatReply `json:"delta"`
		Text         string    `json:"text"`
		FinishReason string    `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatReply struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function struct {
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

func (r chatReply) text() string {
	if s := strings.TrimSpace(r.Content); s != "" {
		return s
	}
	for _, call := range r.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, snippet(e.Body))
}

type emptyContentError struct {
	op           string
	finishReason string
	refusal      string
	body         string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response=%s)",
		e.op, e.finishReason, e.refusal, snippet(e.body))
}

func (c *Client) completeOnce(ctx context.Context, payload chatRequest, op string) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	services.SetRequestID(req)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: http: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", &emptyContentError{op: op, body: string(body)}
	}

	var finish, refusal string
	for _, choice := range completion.Choices {
		if finish == "" {
			finish = choice.FinishReason
		}
		if refusal == "" {
			refusal = strings.TrimSpace(choice.Message.Refusal)
		}
		for _, candidate := range []string{choice.Message.text(), choice.Delta.text(), strings.TrimSpace(choice.Text)} {
			if candidate != "" {
				return candidate, nil
			}
		}
	}
	return "", &emptyContentError{op: op, finishReason: finish, refusal: refusal, body: string(body)}
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
