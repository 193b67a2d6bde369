package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/firstrung/internal/pipeline"
	"github.com/amishk599/firstrung/internal/telemetry"
)

// ErrLocked is returned by RunOnce when another process holds the run lock.
var ErrLocked = errors.New("another run holds the lock")

// Runner executes one source-run.
type Runner interface {
	Name() string
	Run(ctx context.Context, runID string) (telemetry.Summary, error)
}

// Cleaner removes postings that stayed inactive past the retention window.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Config controls cycle timing and concurrency.
type Config struct {
	Interval   time.Duration
	RunTimeout time.Duration
	Workers    int    // sources processed concurrently
	LockFile   string // empty disables the cross-process lock
	Retention  time.Duration
	Cleaner    Cleaner // optional, used when Retention > 0
}

// Report is the outcome of one cycle.
type Report struct {
	RunID     string
	Summaries []telemetry.Summary
	Failed    int
	Skipped   int
}

// Scheduler owns the main loop: ticks on an interval and runs every source
// through a bounded pool.
type Scheduler struct {
	runners  []Runner
	cfg      Config
	newRunID func() string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler over runners.
func NewScheduler(runners []Runner, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Scheduler{
		runners:  runners,
		cfg:      cfg,
		newRunID: uuid.NewString,
		logger:   logger,
	}
}

// Run starts the polling loop. It runs one immediate cycle, then ticks on the
// configured interval. It returns nil when ctx is cancelled (graceful shutdown).
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.cfg.Interval.String(),
		"sources", len(s.runners),
		"workers", s.cfg.Workers,
	)

	s.cycle(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrLocked) {
			s.logger.Warn("skipping cycle", "reason", err)
			return
		}
		s.logger.Error("cycle failed", "error", err)
	}
}

// RunOnce runs every source once under a single run id. Per-source failures
// are logged and counted, never returned; only lock errors are.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if s.cfg.LockFile != "" {
		lock := flock.New(s.cfg.LockFile)
		locked, err := lock.TryLock()
		if err != nil {
			return Report{}, fmt.Errorf("acquiring run lock %s: %w", s.cfg.LockFile, err)
		}
		if !locked {
			return Report{}, fmt.Errorf("%s: %w", s.cfg.LockFile, ErrLocked)
		}
		defer lock.Unlock()
	}

	report := Report{RunID: s.newRunID()}
	logger := s.logger.With("run_id", report.RunID)

	runCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	logger.Info("run started", "sources", len(s.runners))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, r := range s.runners {
		r := r
		if runCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			sum, err := r.Run(runCtx, report.RunID)

			mu.Lock()
			defer mu.Unlock()
			report.Summaries = append(report.Summaries, sum)
			switch {
			case err == nil:
			case errors.Is(err, pipeline.ErrSkipped):
				report.Skipped++
				logger.Warn("source skipped", "source", r.Name(), "error", err)
			default:
				report.Failed++
				logger.Error("source run failed", "source", r.Name(), "error", err)
			}
			return nil
		})
	}
	g.Wait()

	if s.cfg.Retention > 0 && s.cfg.Cleaner != nil {
		n, err := s.cfg.Cleaner.Cleanup(context.WithoutCancel(ctx), s.cfg.Retention)
		if err != nil {
			logger.Error("cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("removed expired postings", "count", n)
		}
	}

	logger.Info("run finished",
		"sources", len(report.Summaries),
		"failed", report.Failed,
		"skipped", report.Skipped,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	return report, nil
}
