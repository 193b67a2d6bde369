// Package fetch implements the request protocol every source adapter follows:
// ask the rate controller, respect the circuit breaker, detect blocking, and
// retry transient failures with backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/firstrung/internal/breaker"
	"github.com/amishk599/firstrung/internal/model"
	"github.com/amishk599/firstrung/internal/ratelimit"
)

// ErrPaused is returned when the source's hourly ceiling is used up. An empty
// burst bucket only lengthens the pacing delay.
var ErrPaused = errors.New("source paused by rate controller")

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

const defaultUserAgent = "firstrung/1.0 (+https://github.com/amishk599/firstrung)"

// Client issues paced, breaker-guarded GET requests on behalf of adapters.
type Client struct {
	http       *http.Client
	limiter    *ratelimit.Controller
	breakers   *breaker.Registry
	maxRetries int
	baseDelay  time.Duration
	userAgent  string
	logger     *slog.Logger
}

// NewClient wires a client. maxRetries is the number of additional attempts
// after the first failure; baseDelay is the delay before the first retry and
// doubles on each subsequent one.
func NewClient(
	httpClient *http.Client,
	limiter *ratelimit.Controller,
	breakers *breaker.Registry,
	maxRetries int,
	baseDelay time.Duration,
	logger *slog.Logger,
) *Client {
	return &Client{
		http:       httpClient,
		limiter:    limiter,
		breakers:   breakers,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		userAgent:  defaultUserAgent,
		logger:     logger,
	}
}

// Get fetches url for source and returns the body of a 200 response.
// source keys both the rate controller and the circuit breaker.
func (c *Client) Get(ctx context.Context, source, url string) ([]byte, error) {
	body, err := c.attempt(ctx, source, url)
	if err == nil {
		return body, nil
	}
	if !isRetryable(err) {
		return nil, err
	}

	lastErr := err
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		delay := c.backoffDelay(attempt, lastErr)

		c.logger.Warn("retrying after transient error",
			"source", source,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}

		body, err = c.attempt(ctx, source, url)
		if err == nil {
			return body, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// attempt runs one request through pause check, pacing delay and breaker.
func (c *Client) attempt(ctx context.Context, source, url string) ([]byte, error) {
	if c.limiter.HourlyCeilingReached(source) {
		return nil, fmt.Errorf("%s: %w", source, ErrPaused)
	}
	if err := c.limiter.Wait(ctx, source); err != nil {
		return nil, err
	}

	var body []byte
	err := c.breakers.For(source).Execute(ctx, func(ctx context.Context) error {
		b, err := c.do(ctx, source, url)
		body = b
		return err
	})
	return body, err
}

func (c *Client) do(ctx context.Context, source, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s fetch %s: %w", source, url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch %s: %w", source, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s read %s: %w", source, url, err)
	}

	// A 200 JSON payload is data, not a challenge page, and job descriptions
	// in it may mention anything. Everything else gets its body scanned.
	scanned := ""
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		scanned = string(body)
	}
	blocked := LooksBlocked(resp.StatusCode, scanned)
	c.limiter.ReportOutcome(source, blocked)

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
	if blocked {
		return nil, &model.BlockedError{
			Source:     source,
			StatusCode: resp.StatusCode,
			URL:        url,
			RetryAfter: retryAfter,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
			Err:        fmt.Errorf("%s fetch %s: unexpected status %d", source, url, resp.StatusCode),
		}
	}
	return body, nil
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// A Retry-After from the upstream takes precedence.
func (c *Client) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	var blockedErr *model.BlockedError
	if errors.As(err, &blockedErr) && blockedErr.RetryAfter > 0 {
		return blockedErr.RetryAfter
	}

	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth
// retrying. A blocked response gets retried too; the rate controller has
// already widened the delay by then.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, breaker.ErrOpen) || errors.Is(err, ErrPaused) {
		return false
	}

	var blockedErr *model.BlockedError
	if errors.As(err, &blockedErr) {
		return true
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	// Network, DNS and similar errors.
	return true
}

// parseRetryAfter parses the Retry-After header value in seconds. Returns
// zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
