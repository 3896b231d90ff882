package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	defaultTemperature = 0.9
	defaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
)

// Config describes one text provider connection. Referer and Title become
// the HTTP-Referer and X-Title headers OpenRouter uses for attribution.
type Config struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

func (c Config) normalized() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = strings.TrimSpace(c.Model)
	c.Referer = strings.TrimSpace(c.Referer)
	c.Title = strings.TrimSpace(c.Title)
	if c.BaseURL = strings.TrimSpace(c.BaseURL); c.BaseURL == "" {
		c.BaseURL = defaultEndpoint
	}
	return c
}

// Client issues chat completion requests for a single provider and model.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	temperature float64
	backoff     Backoff
	sleeper     func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient shares one HTTP client across provider clients.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTemperature sets the sampling temperature sent with every request.
// Negative values are ignored.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

// WithBackoff replaces DefaultBackoff.
func WithBackoff(b Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithSleeper replaces the wait between attempts; tests use it to record
// delays without sleeping.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) { c.sleeper = sleeper }
}

// NewClient constructs a client for cfg. An empty BaseURL means OpenRouter.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:         cfg.normalized(),
		httpClient:  &http.Client{Timeout: timeout},
		temperature: defaultTemperature,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Model returns the model this client talks to.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Provider returns the configured provider name.
func (c *Client) Provider() string {
	return c.cfg.Provider
}

// CompleteJSON sends the prompts and returns the JSON payload produced by the
// model.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return "", errors.New("llm complete: system prompt required")
	}
	if userPrompt == "" {
		return "", errors.New("llm complete: user prompt required")
	}
	if err := c.checkCredentials("llm complete"); err != nil {
		return "", err
	}
	if c.cfg.Model == "" {
		return "", errors.New("llm complete: model required")
	}
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    c.temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	return c.completeWithRetry(ctx, payload, "llm complete")
}

// HealthCheck issues a tiny request to verify the endpoint, key and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return err
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *Client) checkCredentials(op string) error {
	if c.cfg.APIKey != "" || isLoopbackEndpoint(c.cfg.BaseURL) {
		return nil
	}
	return errors.New(op + ": api key required")
}

func isLoopbackEndpoint(endpoint string) bool {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
