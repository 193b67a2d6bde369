package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// window is the rolling period the hourly ceiling applies to.
	window = time.Hour
	// nearCeiling is the share of the hourly ceiling at which Delay switches
	// to the maximum delay.
	nearCeiling = 0.9
	// maxThrottle caps the throttle level.
	maxThrottle = 5.0
	// throttleDecay is applied to the throttle level on every unblocked
	// outcome, so it approaches zero without ever dropping at once.
	throttleDecay = 0.8
	// throttleFloor is the level below which throttling is considered gone.
	throttleFloor = 0.01
	// jitterShare bounds the random jitter as a share of the minimum delay.
	jitterShare = 0.5
)

// Policy is the static request envelope for one source.
type Policy struct {
	RequestsPerHour int
	MinDelay        time.Duration
	MaxDelay        time.Duration
	BurstLimit      int
}

// sourceState is the per-source mutable state. All fields are guarded by mu.
type sourceState struct {
	mu       sync.Mutex
	policy   Policy
	requests []time.Time // ascending; only the last hour is kept
	throttle float64
	burst    *rate.Limiter
}

// Controller paces requests per source. It is safe for concurrent use; state
// for different sources is locked independently.
type Controller struct {
	mu       sync.Mutex
	sources  map[string]*sourceState
	policies map[string]Policy
	fallback Policy
	now      func() time.Time
	jitter   func(max time.Duration) time.Duration
	logger   *slog.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithJitter replaces the random jitter source, for tests.
func WithJitter(jitter func(max time.Duration) time.Duration) Option {
	return func(c *Controller) { c.jitter = jitter }
}

// WithFallback sets the policy used for sources missing from the table.
func WithFallback(p Policy) Option {
	return func(c *Controller) { c.fallback = p }
}

// DefaultFallback is used for unknown sources unless WithFallback is given.
var DefaultFallback = Policy{
	RequestsPerHour: 120,
	MinDelay:        2 * time.Second,
	MaxDelay:        30 * time.Second,
	BurstLimit:      3,
}

// NewController builds a controller over a static per-source policy table.
func NewController(policies map[string]Policy, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		sources:  make(map[string]*sourceState),
		policies: make(map[string]Policy, len(policies)),
		fallback: DefaultFallback,
		now:      time.Now,
		jitter:   randomJitter,
		logger:   logger,
	}
	for name, p := range policies {
		c.policies[name] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

// Policy returns the policy applied to source.
func (c *Controller) Policy(source string) Policy {
	if p, ok := c.policies[source]; ok {
		return p
	}
	return c.fallback
}

func (c *Controller) state(source string) *sourceState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.sources[source]; ok {
		return st
	}
	p := c.Policy(source)
	burst := p.BurstLimit
	if burst <= 0 {
		burst = 1
	}
	every := p.MinDelay
	if every <= 0 {
		every = time.Second
	}
	st := &sourceState{
		policy: p,
		burst:  rate.NewLimiter(rate.Every(every), burst),
	}
	c.sources[source] = st
	return st
}

// Delay returns how long the caller must wait before its next request to
// source, and records that request. The request also takes a burst token, so
// concurrent callers on one source are spread out instead of refused. It never
// fails: on any internal error it returns the minimum configured delay.
func (c *Controller) Delay(source string) (d time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			d = c.Policy(source).MinDelay
			c.logger.Error("rate controller failed open", "source", source, "panic", r)
		}
	}()

	st := c.state(source)
	now := c.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.prune(now)
	p := st.policy

	nearLimit := p.RequestsPerHour > 0 &&
		float64(len(st.requests)) >= nearCeiling*float64(p.RequestsPerHour)

	burstWait := st.record(now)

	if nearLimit {
		return max(p.MaxDelay, burstWait)
	}

	d = time.Duration(float64(p.MinDelay)*(1+0.5*st.throttle)) +
		c.jitter(time.Duration(float64(p.MinDelay)*jitterShare))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return max(d, burstWait)
}

// ShouldPause reports whether the burst or hourly ceiling for source is
// currently exceeded.
func (c *Controller) ShouldPause(source string) (pause bool) {
	defer func() {
		if r := recover(); r != nil {
			pause = false
			c.logger.Error("rate controller failed open", "source", source, "panic", r)
		}
	}()

	st := c.state(source)
	now := c.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.prune(now)
	if st.hourlyExhausted() {
		return true
	}
	return st.burst.TokensAt(now) < 1
}

// HourlyCeilingReached reports whether source has used its whole hourly
// allowance. Unlike an empty burst bucket, this does not clear within a
// request delay.
func (c *Controller) HourlyCeilingReached(source string) (reached bool) {
	defer func() {
		if r := recover(); r != nil {
			reached = false
			c.logger.Error("rate controller failed open", "source", source, "panic", r)
		}
	}()

	st := c.state(source)
	now := c.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.prune(now)
	return st.hourlyExhausted()
}

// ReportOutcome feeds back whether the last response from source looked
// blocked. A block raises the throttle level by one (capped); anything else
// decays it.
func (c *Controller) ReportOutcome(source string, wasBlocked bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("rate controller failed open", "source", source, "panic", r)
		}
	}()

	st := c.state(source)

	st.mu.Lock()
	defer st.mu.Unlock()

	if wasBlocked {
		st.throttle++
		if st.throttle > maxThrottle {
			st.throttle = maxThrottle
		}
		c.logger.Warn("source looks blocked, throttling",
			"source", source,
			"throttle_level", st.throttle,
		)
		return
	}

	st.throttle *= throttleDecay
	if st.throttle < throttleFloor {
		st.throttle = 0
	}
}

// ThrottleLevel returns the current throttle level for source.
func (c *Controller) ThrottleLevel(source string) float64 {
	st := c.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.throttle
}

// RecentRequests returns how many requests were recorded in the last hour.
func (c *Controller) RecentRequests(source string) int {
	st := c.state(source)
	now := c.now()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.prune(now)
	return len(st.requests)
}

// Wait asks for a delay and sleeps it out. It returns an error if the context
// is cancelled while waiting.
func (c *Controller) Wait(ctx context.Context, source string) error {
	d := c.Delay(source)
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", source, ctx.Err())
	case <-t.C:
		return nil
	}
}

// prune drops timestamps older than the window. Timestamps are appended in
// order, so the list stays sorted.
func (st *sourceState) prune(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(st.requests) && !st.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		st.requests = append(st.requests[:0], st.requests[i:]...)
	}
}

func (st *sourceState) hourlyExhausted() bool {
	return st.policy.RequestsPerHour > 0 && len(st.requests) >= st.policy.RequestsPerHour
}

// record appends a request and takes a burst token for it, returning how long
// until that token is available.
func (st *sourceState) record(now time.Time) time.Duration {
	// Keep the history monotonic even if the clock steps backwards.
	if n := len(st.requests); n > 0 && now.Before(st.requests[n-1]) {
		now = st.requests[n-1]
	}
	st.requests = append(st.requests, now)
	return st.burst.ReserveN(now, 1).DelayFrom(now)
}
