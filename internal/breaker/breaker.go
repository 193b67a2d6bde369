// Package breaker suspends calls to a source after repeated failures.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned, wrapped, when a call is rejected because the breaker
// is open. Callers should skip the source for the rest of the run.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Settings configure every breaker built by a Registry.
type Settings struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// Breaker guards one source.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// New returns a closed breaker.
func New(name string, settings Settings, now func() time.Time, logger *slog.Logger) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		name:     name,
		settings: settings,
		now:      now,
		logger:   logger,
	}
}

// State returns the current state, moving OPEN to HALF_OPEN once the
// cool-down has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// refresh must be called with mu held.
func (b *Breaker) refresh() {
	if b.state == Open && !b.now().Before(b.lastFailure.Add(b.settings.Cooldown)) {
		b.state = HalfOpen
		b.logger.Info("circuit half-open", "source", b.name)
	}
}

// Execute runs op unless the breaker is open, in which case it fails fast
// with an error wrapping ErrOpen and op is never invoked.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := op(ctx)
	b.record(ctx, err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	if b.state == Open {
		return fmt.Errorf("%s: %w (retry in %v)", b.name, ErrOpen, b.remaining())
	}
	return nil
}

// record counts the outcome of one call. A cancelled or expired caller
// context is not held against the source; an upstream timeout still is.
func (b *Breaker) record(ctx context.Context, err error) {
	if err != nil && ctx.Err() != nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	if err == nil {
		b.Success()
		return
	}
	b.Failure()
}

// Success closes the breaker and resets the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Closed {
		b.logger.Info("circuit closed", "source", b.name)
	}
	b.state = Closed
	b.failures = 0
}

// Failure counts one failure; the breaker opens at the threshold or on any
// failure while half-open.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()

	b.failures++
	b.lastFailure = b.now()

	if b.state == HalfOpen || (b.state == Closed && b.failures >= b.settings.FailureThreshold) {
		b.state = Open
		b.logger.Warn("circuit opened",
			"source", b.name,
			"failures", b.failures,
			"cooldown", b.settings.Cooldown.String(),
		)
	}
}

// Remaining returns how long until an open breaker lets a trial call through.
func (b *Breaker) Remaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.remaining()
}

func (b *Breaker) remaining() time.Duration {
	if b.state != Open {
		return 0
	}
	d := b.lastFailure.Add(b.settings.Cooldown).Sub(b.now())
	if d < 0 {
		return 0
	}
	return d
}

// Wait blocks until the breaker would admit a trial call or ctx is done.
func (b *Breaker) Wait(ctx context.Context) error {
	d := b.Remaining()
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s cool-down: %w", b.name, ctx.Err())
	case <-t.C:
		return nil
	}
}

// Registry hands out one breaker per source.
type Registry struct {
	settings Settings
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry builds a registry whose breakers share settings.
func NewRegistry(settings Settings, logger *slog.Logger) *Registry {
	return &Registry{
		settings: settings,
		now:      time.Now,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// WithClock replaces time.Now for breakers created afterwards, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// For returns the breaker for source, creating it closed on first use.
func (r *Registry) For(source string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[source]; ok {
		return b
	}
	b := New(source, r.settings, r.now, r.logger)
	r.breakers[source] = b
	return b
}

// Snapshot returns the state of every known breaker.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	names := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		names = append(names, b)
	}
	r.mu.Unlock()

	out := make(map[string]State, len(names))
	for _, b := range names {
		out[b.name] = b.State()
	}
	return out
}
