package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/firstrung/internal/breaker"
	"github.com/amishk599/firstrung/internal/fetch"
	"github.com/amishk599/firstrung/internal/model"
	"github.com/amishk599/firstrung/internal/telemetry"
	"github.com/amishk599/firstrung/internal/upsert"
)

// ErrSkipped marks a source that was not fetched this run because its breaker
// is open or its rate ceiling is used up.
var ErrSkipped = errors.New("source skipped for this run")

// Notifier delivers funnel alarms to operators.
type Notifier interface {
	Notify(ctx context.Context, alarms []telemetry.Alarm) error
}

// InactiveMarker flags postings a complete run of a source no longer saw.
type InactiveMarker interface {
	MarkInactive(ctx context.Context, source, runID string) (int64, error)
}

// RunnerConfig wires a SourceRunner.
type RunnerConfig struct {
	Source      model.Source
	Processor   *Processor
	Coordinator *upsert.Coordinator
	Marker      InactiveMarker // optional
	Notifier    Notifier       // optional
	Thresholds  telemetry.Thresholds
	Metrics     *telemetry.Metrics // optional
	Workers     int
	BatchSize   int
	Now         func() time.Time
	Logger      *slog.Logger
}

// SourceRunner owns the full pipeline for one source:
// fetch → gate and tag → batch upsert → funnel log → alarms.
type SourceRunner struct {
	cfg RunnerConfig
}

// NewSourceRunner creates a runner, filling unset numeric fields with defaults.
func NewSourceRunner(cfg RunnerConfig) *SourceRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Processor == nil {
		cfg.Processor = NewProcessor(0)
	}
	return &SourceRunner{cfg: cfg}
}

// Name returns the source name.
func (r *SourceRunner) Name() string { return r.cfg.Source.Name() }

// Run executes one source-run. Cancelling ctx stops fetching, but records
// already fetched are still processed and written. The funnel is logged on
// every path and its summary returned.
func (r *SourceRunner) Run(ctx context.Context, runID string) (telemetry.Summary, error) {
	name := r.cfg.Source.Name()
	logger := r.cfg.Logger.With("source", name, "run_id", runID)
	funnel := telemetry.NewFunnel(name, runID, r.cfg.Metrics)
	writeCtx := context.WithoutCancel(ctx)

	records, fetchErr := r.cfg.Source.Fetch(ctx)
	if fetchErr != nil {
		funnel.RecordError(fmt.Sprintf("fetch: %v", fetchErr))
		if errors.Is(fetchErr, breaker.ErrOpen) || errors.Is(fetchErr, fetch.ErrPaused) {
			logger.Warn("skipping source", "reason", fetchErr)
			fetchErr = fmt.Errorf("%s: %w: %w", name, ErrSkipped, fetchErr)
		}
		return r.finish(writeCtx, funnel, logger), fetchErr
	}

	postings := r.process(records, runID, funnel)

	clean := true
	for start := 0; start < len(postings); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(postings))
		res := r.cfg.Coordinator.Upsert(writeCtx, postings[start:end])
		funnel.RecordUpsert(res.Inserted, res.Updated, res.Errors)
		if len(res.Errors) > 0 {
			clean = false
		}
	}

	// Only a complete, error-free run may retire postings it did not see.
	if r.cfg.Marker != nil && clean && ctx.Err() == nil {
		n, err := r.cfg.Marker.MarkInactive(writeCtx, name, runID)
		if err != nil {
			logger.Error("marking postings inactive", "error", err)
			funnel.RecordError(err.Error())
		} else if n > 0 {
			logger.Info("postings no longer listed", "count", n)
		}
	}

	var runErr error
	if err := ctx.Err(); err != nil {
		runErr = fmt.Errorf("%s: run interrupted: %w", name, err)
	}
	return r.finish(writeCtx, funnel, logger), runErr
}

// process runs every fetched record through the processor on a bounded pool
// and returns accepted postings in fetch order. It ignores cancellation.
func (r *SourceRunner) process(records []model.CandidateRecord, runID string, funnel *telemetry.Funnel) []model.Posting {
	now := r.cfg.Now()
	results := make([]model.Posting, len(records))
	accepted := make([]bool, len(records))

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i := range records {
		i := i
		g.Go(func() error {
			p, outcome := r.cfg.Processor.Process(records[i], runID, now, funnel)
			if outcome == Accepted {
				results[i] = p
				accepted[i] = true
			}
			return nil
		})
	}
	g.Wait()

	postings := make([]model.Posting, 0, len(records))
	for i, ok := range accepted {
		if ok {
			postings = append(postings, results[i])
		}
	}
	return postings
}

func (r *SourceRunner) finish(ctx context.Context, funnel *telemetry.Funnel, logger *slog.Logger) telemetry.Summary {
	alarms := funnel.Log(r.cfg.Logger, r.cfg.Thresholds)
	if len(alarms) > 0 && r.cfg.Notifier != nil {
		if err := r.cfg.Notifier.Notify(ctx, alarms); err != nil {
			logger.Error("sending funnel alarms", "error", err)
		}
	}
	return funnel.Snapshot()
}
