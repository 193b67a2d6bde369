package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var errUpstream = errors.New("upstream failed")

func failing(context.Context) error { return errUpstream }
func succeeding(context.Context) error { return nil }

func newTestBreaker(clock *fakeClock) *Breaker {
	return New("greenhouse", Settings{FailureThreshold: 3, Cooldown: time.Minute}, clock.Now, discardLogger())
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Execute(ctx, failing); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v, want upstream error", i, err)
		}
	}
	if got := b.State(); got != Open {
		t.Fatalf("State = %s, want OPEN", got)
	}

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if called {
		t.Error("guarded operation ran while breaker was open")
	}
}

func TestBreaker_HalfOpenThenClosed(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, failing)
	}
	clock.Advance(30 * time.Second)
	if got := b.State(); got != Open {
		t.Fatalf("State before cool-down = %s, want OPEN", got)
	}

	clock.Advance(31 * time.Second)
	if got := b.State(); got != HalfOpen {
		t.Fatalf("State after cool-down = %s, want HALF_OPEN", got)
	}

	if err := b.Execute(ctx, succeeding); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if got := b.State(); got != Closed {
		t.Errorf("State after success = %s, want CLOSED", got)
	}
	if b.Failures() != 0 {
		t.Errorf("Failures = %d, want 0", b.Failures())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, failing)
	}
	clock.Advance(2 * time.Minute)

	_ = b.Execute(ctx, failing)
	if got := b.State(); got != Open {
		t.Errorf("State = %s, want OPEN after half-open failure", got)
	}
	if got := b.Remaining(); got != time.Minute {
		t.Errorf("Remaining = %v, want a fresh 1m cool-down", got)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)
	ctx := context.Background()

	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, failing)
	_ = b.Execute(ctx, succeeding)
	_ = b.Execute(ctx, failing)

	if got := b.State(); got != Closed {
		t.Errorf("State = %s, want CLOSED (failures were not consecutive)", got)
	}
}

func TestBreaker_CancellationNotCounted(t *testing.T) {
	b := New("lever", Settings{FailureThreshold: 1, Cooldown: time.Minute}, nil, discardLogger())
	_ = b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	if got := b.State(); got != Closed {
		t.Errorf("State = %s, want CLOSED", got)
	}
}

func TestBreaker_CallerDeadlineNotCounted(t *testing.T) {
	b := New("lever", Settings{FailureThreshold: 2, Cooldown: time.Minute}, nil, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	for i := 0; i < 3; i++ {
		_ = b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	}
	if got := b.State(); got != Closed {
		t.Errorf("State = %s, want CLOSED", got)
	}
	if got := b.Failures(); got != 0 {
		t.Errorf("Failures = %d, want 0", got)
	}
}

func TestBreaker_UpstreamTimeoutCounted(t *testing.T) {
	b := New("lever", Settings{FailureThreshold: 1, Cooldown: time.Minute}, nil, discardLogger())
	_ = b.Execute(context.Background(), func(context.Context) error {
		return fmt.Errorf("request: %w", context.DeadlineExceeded)
	})
	if got := b.State(); got != Open {
		t.Errorf("State = %s, want OPEN", got)
	}
}

func TestBreaker_WaitHonoursContext(t *testing.T) {
	b := New("lever", Settings{FailureThreshold: 1, Cooldown: time.Hour}, nil, discardLogger())
	b.Failure()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestRegistry_PerSource(t *testing.T) {
	r := NewRegistry(Settings{FailureThreshold: 1, Cooldown: time.Minute}, discardLogger())
	r.For("greenhouse").Failure()

	if r.For("greenhouse") != r.For("greenhouse") {
		t.Error("For should return the same breaker for a source")
	}
	snap := r.Snapshot()
	if snap["greenhouse"] != Open {
		t.Errorf("greenhouse = %s, want OPEN", snap["greenhouse"])
	}
	if r.For("lever").State() != Closed {
		t.Error("lever should be unaffected")
	}
}
