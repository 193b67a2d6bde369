package model

import (
	"fmt"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// BlockedError reports a response that looked like a throttle or challenge page.
type BlockedError struct {
	Source     string
	StatusCode int
	URL        string
	RetryAfter time.Duration // from Retry-After header, zero if absent
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: response from %s looks blocked (HTTP %d)", e.Source, e.URL, e.StatusCode)
}
