package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Backoff is a client's retry schedule. Attempt n waits Base*2^(n-1), capped
// at Max. A Retry-After header replaces the computed wait but is also capped.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultBackoff is used when no WithBackoff option is given.
var DefaultBackoff = Backoff{Attempts: 5, Base: time.Second, Max: 10 * time.Second}

func (b Backoff) wait(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	wait := b.Base << (attempt - 1)
	if wait <= 0 || (b.Max > 0 && wait > b.Max) {
		return b.Max
	}
	return wait
}

func (b Backoff) cap(d time.Duration) time.Duration {
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

func (c *Client) completeWithRetry(ctx context.Context, payload chatRequest, op string) (string, error) {
	attempts := max(c.backoff.Attempts, 1)
	for attempt := 1; ; attempt++ {
		content, err := c.completeOnce(ctx, payload, op)
		if err == nil {
			return content, nil
		}
		wait, retryable := c.retryWait(err, attempt)
		if !retryable || attempt == attempts || ctx.Err() != nil {
			if attempt == 1 {
				return "", err
			}
			return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
		}
		if err := c.pause(ctx, wait); err != nil {
			return "", err
		}
	}
}

// retryWait reports whether err is worth another attempt and how long to
// wait first. Timeouts, 408, 429, 5xx and empty completions are retried.
func (c *Client) retryWait(err error, attempt int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var status *StatusError
	var empty *emptyContentError
	var netErr net.Error
	switch {
	case errors.As(err, &status):
		code := status.StatusCode
		if code != http.StatusRequestTimeout && code != http.StatusTooManyRequests && code < http.StatusInternalServerError {
			return 0, false
		}
		if status.RetryAfter > 0 {
			return c.backoff.cap(status.RetryAfter), true
		}
	case errors.As(err, &empty):
	case errors.As(err, &netErr) && netErr.Timeout():
	default:
		return 0, false
	}
	return c.backoff.wait(attempt), true
}

func (c *Client) pause(ctx context.Context, d time.Duration) error {
	if c.sleeper != nil {
		c.sleeper(d)
		return ctx.Err()
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d, true
		}
	}
	return 0, false
}
