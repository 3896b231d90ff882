package ace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"songflow/internal/config"
	"songflow/internal/services"
)

// State is the lifecycle state of a synthesis task.
type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Params carries the musical inputs for one song.
type Params struct {
	Caption         string
	Lyrics          string
	BPM             int
	KeyScale        string
	TimeSignature   string
	DurationSeconds int
	InferSteps      int
	LyricsLanguage  string
}

// PollResult is the outcome of one status query.
type PollResult struct {
	State    State
	AudioRef string
	Error    string
}

// Client talks to one ACE-Step server.
type Client struct {
	baseURL    string
	format     string
	inferSteps int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter overrides the request limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// NewClient builds a client from the ace section of cfg.
func NewClient(cfg config.ACE, opts ...Option) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		format:     cfg.AudioFormat,
		inferSteps: cfg.InferSteps,
		httpClient: &http.Client{Timeout: time.Minute},
		limiter:    rate.NewLimiter(rate.Limit(rps), max(cfg.Burst, 1)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Format returns the audio container the server is asked to produce.
func (c *Client) Format() string {
	return c.format
}

type submitRequest struct {
	Prompt         string `json:"prompt"`
	Lyrics         string `json:"lyrics"`
	BPM            int    `json:"bpm,omitempty"`
	KeyScale       string `json:"key_scale,omitempty"`
	TimeSignature  string `json:"time_signature,omitempty"`
	AudioDuration  int    `json:"audio_duration,omitempty"`
	InferSteps     int    `json:"inference_steps,omitempty"`
	AudioFormat    string `json:"audio_format,omitempty"`
	VocalLanguage  string `json:"vocal_language,omitempty"`
	Instrumental   bool   `json:"instrumental,omitempty"`
	ThinkingEnable bool   `json:"thinking"`
}

type envelope struct {
	Code  int             `json:"code"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// Submit queues a synthesis task and returns its id.
func (c *Client) Submit(ctx context.Context, p Params) (string, error) {
	if strings.TrimSpace(p.Caption) == "" {
		return "", errors.New("ace submit: caption is required")
	}
	steps := p.InferSteps
	if steps <= 0 {
		steps = c.inferSteps
	}
	lyrics := strings.TrimSpace(p.Lyrics)
	req := submitRequest{
		Prompt:        p.Caption,
		Lyrics:        lyrics,
		BPM:           p.BPM,
		KeyScale:      p.KeyScale,
		TimeSignature: p.TimeSignature,
		AudioDuration: p.DurationSeconds,
		InferSteps:    steps,
		AudioFormat:   c.format,
		VocalLanguage: p.LyricsLanguage,
		Instrumental:  lyrics == "" || strings.EqualFold(lyrics, "[instrumental]"),
	}
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.call(ctx, "/release_task", req, &out); err != nil {
		return "", fmt.Errorf("ace submit: %w", err)
	}
	if strings.TrimSpace(out.TaskID) == "" {
		return "", errors.New("ace submit: response has no task id")
	}
	return out.TaskID, nil
}

type taskStatus struct {
	TaskID string          `json:"task_id"`
	Status int             `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type taskFile struct {
	File     string `json:"file"`
	URL      string `json:"url"`
	AudioURL string `json:"audio_url"`
}

// Poll queries a task's state.
func (c *Client) Poll(ctx context.Context, taskID string) (PollResult, error) {
	if strings.TrimSpace(taskID) == "" {
		return PollResult{}, errors.New("ace poll: task id is required")
	}
	var statuses []taskStatus
	body := map[string][]string{"task_id_list": {taskID}}
	if err := c.call(ctx, "/query_result", body, &statuses); err != nil {
		return PollResult{}, fmt.Errorf("ace poll: %w", err)
	}
	for _, st := range statuses {
		if st.TaskID != "" && st.TaskID != taskID {
			continue
		}
		switch st.Status {
		case 0:
			return PollResult{State: StatePending}, nil
		case 1:
			ref, err := audioRef(st.Result)
			if err != nil {
				return PollResult{}, fmt.Errorf("ace poll: %w", err)
			}
			return PollResult{State: StateDone, AudioRef: ref}, nil
		default:
			msg := strings.TrimSpace(st.Error)
			if msg == "" {
				msg = fmt.Sprintf("task failed with status %d", st.Status)
			}
			return PollResult{State: StateFailed, Error: msg}, nil
		}
	}
	return PollResult{State: StatePending}, nil
}

// audioRef digs the audio location out of a task result, which servers send
// either as a JSON array or as a string containing one.
func audioRef(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("completed task has no result")
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}
	var files []taskFile
	if err := json.Unmarshal(raw, &files); err != nil {
		var single taskFile
		if err := json.Unmarshal(raw, &single); err != nil {
			return "", fmt.Errorf("decode task result: %w", err)
		}
		files = []taskFile{single}
	}
	for _, f := range files {
		for _, candidate := range []string{f.File, f.URL, f.AudioURL} {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				return candidate, nil
			}
		}
	}
	return "", errors.New("completed task has no audio file")
}

// Fetch opens the audio for a completed task. Relative references resolve
// against the server base URL. The caller closes the body.
func (c *Client) Fetch(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("ace fetch: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("ace fetch: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("ace fetch: http %d", resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// HealthCheck verifies the server answers on /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ace health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ace health: http %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("ace fetch: empty audio reference")
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("ace fetch: parse reference: %w", err)
	}
	if parsed.IsAbs() {
		return ref, nil
	}
	if !strings.HasPrefix(ref, "/") {
		return c.baseURL + "/v1/audio?path=" + url.QueryEscape(ref), nil
	}
	return c.baseURL + ref, nil
}

func (c *Client) call(ctx context.Context, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	encoded, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	services.SetRequestID(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.Join(strings.Fields(string(body)), " "))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		if env.Error != "" || (env.Code != 0 && env.Code != http.StatusOK) {
			return fmt.Errorf("server error %d: %s", env.Code, env.Error)
		}
		body = env.Data
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
