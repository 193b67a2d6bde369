package adapter

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/firstrung/internal/breaker"
	"github.com/amishk599/firstrung/internal/fetch"
	"github.com/amishk599/firstrung/internal/ratelimit"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// newTestClient returns a fetch client whose requests are all redirected to srv.
func newTestClient(t *testing.T, srv *httptest.Server) *fetch.Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := ratelimit.Policy{
		RequestsPerHour: 1000,
		MinDelay:        time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BurstLimit:      100,
	}
	limiter := ratelimit.NewController(nil, logger, ratelimit.WithFallback(policy))
	breakers := breaker.NewRegistry(breaker.Settings{FailureThreshold: 3, Cooldown: time.Minute}, logger)
	httpClient := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.URL.Scheme = "http"
			req.URL.Host = srv.Listener.Addr().String()
			return http.DefaultTransport.RoundTrip(req)
		}),
	}
	return fetch.NewClient(httpClient, limiter, breakers, 0, time.Millisecond, logger)
}
