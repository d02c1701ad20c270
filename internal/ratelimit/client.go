package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lok-dashboard/internal/logging"
	"github.com/lok-dashboard/internal/types"
)

// Default client configuration values.
const (
	DefaultMaxRetries    = 5
	DefaultForbiddenWait = 60 * time.Second
	DefaultTimeout       = 30 * time.Second

	// minWaitBuffer pads rate-limit waits so tokens exist when we retry.
	minWaitBuffer = 100 * time.Millisecond
)

// ErrWaitCancelled is returned when the context is cancelled while waiting
// for a token or a forbidden cooldown.
var ErrWaitCancelled = errors.New("context cancelled while waiting")

// Doer issues a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues GET requests paced by a shared token bucket. Waiting for a
// token is never an error; the call blocks until a token is available. A 403
// from upstream is treated as transient and retried a bounded number of
// times with a fixed cooldown. Every other non-2xx status and any transport
// failure is terminal.
type Client struct {
	httpClient    Doer
	bucket        *TokenBucket
	maxRetries    int
	forbiddenWait time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	logger        *logging.Logger
}

// ClientConfig holds configuration for the rate-limited client.
type ClientConfig struct {
	// Bucket is the shared token bucket. Required.
	Bucket *TokenBucket

	// HTTPClient overrides the underlying client. Defaults to an
	// http.Client with DefaultTimeout.
	HTTPClient Doer

	// MaxRetries caps the total attempts made against a persistently
	// forbidden endpoint. Default: 5.
	MaxRetries int

	// ForbiddenWait is the fixed cooldown between forbidden retries.
	// Default: 60s.
	ForbiddenWait time.Duration

	// Sleep overrides the delay function. Used by tests to avoid real
	// sleeping; defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *logging.Logger
}

// Validate checks if the configuration is valid.
func (c *ClientConfig) Validate() error {
	if c.Bucket == nil {
		return errors.New("token bucket is required")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.ForbiddenWait < 0 {
		return errors.New("forbidden wait cannot be negative")
	}
	return nil
}

// NewClient creates a rate-limited client with the given configuration.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	forbiddenWait := cfg.ForbiddenWait
	if forbiddenWait == 0 {
		forbiddenWait = DefaultForbiddenWait
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Client{
		httpClient:    httpClient,
		bucket:        cfg.Bucket,
		maxRetries:    maxRetries,
		forbiddenWait: forbiddenWait,
		sleep:         sleep,
		logger:        logger,
	}, nil
}

// Get fetches the URL and returns the response body. It blocks while the
// token bucket is empty and while cooling down after forbidden responses;
// both waits honor context cancellation.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		if err := c.waitForToken(ctx, url); err != nil {
			return nil, err
		}

		body, retryForbidden, err := c.doGet(ctx, url)
		if err == nil {
			return body, nil
		}
		if !retryForbidden {
			return nil, err
		}

		// Forbidden: terminal once the attempt budget is spent.
		if attempt >= c.maxRetries {
			c.logger.WithFields(map[string]interface{}{
				"url":      url,
				"attempts": attempt,
			}).Error("Giving up after repeated forbidden responses")
			return nil, err
		}

		c.logger.WithFields(map[string]interface{}{
			"url":     url,
			"attempt": attempt,
			"max":     c.maxRetries,
			"wait":    c.forbiddenWait.String(),
		}).Warn("Received forbidden response, retrying after cooldown")

		if err := c.sleep(ctx, c.forbiddenWait); err != nil {
			return nil, err
		}
	}
}

// waitForToken blocks until a token is withdrawn from the shared bucket.
func (c *Client) waitForToken(ctx context.Context, url string) error {
	for {
		consumed, wait := c.bucket.TryConsume()
		if consumed {
			return nil
		}

		buffer := wait / 10
		if buffer < minWaitBuffer {
			buffer = minWaitBuffer
		}

		c.logger.WithFields(map[string]interface{}{
			"url":  url,
			"wait": (wait + buffer).String(),
		}).Warn("Rate limit exhausted, waiting for refill")

		if err := c.sleep(ctx, wait+buffer); err != nil {
			return err
		}
	}
}

// doGet performs one request. retryForbidden is true only for a 403 response.
func (c *Client) doGet(ctx context.Context, url string) (body []byte, retryForbidden bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		// Drain so the connection can be reused across the cooldown.
		io.Copy(io.Discard, resp.Body)
		return nil, true, types.NewServiceError(types.ErrCodeForbiddenExhausted,
			"upstream returned forbidden after %d attempts", c.maxRetries).
			WithDetail("status", resp.StatusCode)

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, resp.Body)
		return nil, false, types.NewServiceError(types.ErrCodeUpstreamError,
			"upstream returned status %d", resp.StatusCode).
			WithDetail("status", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, false, nil
}

// sleepWithContext waits for d or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ErrWaitCancelled
	}
}
