package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"songflow/internal/config"
	"songflow/internal/services"
)

const maxImageBytes = 20 << 20

// Image is a generated cover.
type Image struct {
	Data     []byte
	MIMEType string
	Provider string
	Model    string
}

// Extension returns the file extension matching the image type.
func (i Image) Extension() string {
	switch i.MIMEType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// Request asks for one cover. Empty provider or model use the configured
// defaults.
type Request struct {
	Prompt   string
	Provider string
	Model    string
}

// Client generates cover images.
type Client struct {
	cfg        *config.Config
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

// NewClient builds a client from the image section of cfg.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	rpm := max(cfg.Image.RequestsPerMinute, 1)
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate produces a cover image for req.
func (c *Client) Generate(ctx context.Context, req Request) (Image, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return Image{}, services.Wrap(services.ErrValidation, "cover", "build request", "cover prompt is empty", nil)
	}
	conn, err := c.cfg.ResolveImage(req.Provider, req.Model)
	if err != nil {
		return Image{}, services.Wrap(services.ErrConfiguration, "cover", "resolve provider", "", err)
	}
	if conn.APIKey == "" {
		return Image{}, services.Wrap(services.ErrConfiguration, "cover", "resolve provider",
			fmt.Sprintf("no api key for image provider %q", conn.Provider), nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Image{}, err
	}

	var img Image
	switch conn.Style {
	case "openai":
		img, err = c.generateOpenAI(ctx, conn, prompt)
	default:
		img, err = c.generateOpenRouter(ctx, conn, prompt)
	}
	if err != nil {
		return Image{}, err
	}
	img.Provider = conn.Provider
	img.Model = conn.Model
	return img, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, strings.Join(strings.Fields(e.body), " "))
}

func (c *Client) postJSON(ctx context.Context, conn config.ImageConfig, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+conn.APIKey)
	services.SetRequestID(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*maxImageBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &statusError{code: resp.StatusCode, body: truncate(string(body), 300)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return services.Wrap(services.ErrValidation, "cover", "decode response", "", err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, url string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, fmt.Errorf("new download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Image{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Image{}, &statusError{code: resp.StatusCode, body: "image download failed"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return Image{}, errors.New("image exceeds size limit")
	}
	return Image{Data: data, MIMEType: sniff(data, resp.Header.Get("Content-Type"))}, nil
}

// decodeDataURL parses "data:image/png;base64,....".
func decodeDataURL(value string) (Image, error) {
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return Image{}, errors.New("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return Image{}, errors.New("data url is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("decode image data: %w", err)
	}
	return Image{Data: data, MIMEType: sniff(data, strings.TrimSuffix(meta, ";base64"))}, nil
}

func sniff(data []byte, declared string) string {
	detected := http.DetectContentType(data)
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return "image/png"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
