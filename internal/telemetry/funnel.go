// Package telemetry tracks the per-run, per-source ingestion funnel and
// checks it against advisory thresholds.
package telemetry

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// maxSamples bounds the sample-title list.
const maxSamples = 5

// Summary is an immutable copy of a funnel's counters.
type Summary struct {
	Source         string
	RunID          string
	Raw            int
	Eligible       int
	CareerTagged   int
	LocationTagged int
	Inserted       int
	Updated        int
	Errors         []string
	SampleTitles   []string
}

// EligibleRatio is eligible/raw, or 0 when nothing was fetched.
func (s Summary) EligibleRatio() float64 {
	if s.Raw == 0 {
		return 0
	}
	return float64(s.Eligible) / float64(s.Raw)
}

// UnknownLocationRatio is the share of eligible records left at loc:unknown.
func (s Summary) UnknownLocationRatio() float64 {
	if s.Eligible == 0 {
		return 0
	}
	return float64(s.Eligible-s.LocationTagged) / float64(s.Eligible)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

// Funnel accumulates counters for one source during one run. It is safe for
// concurrent use. After Close every Record call is ignored.
type Funnel struct {
	source  string
	mu      sync.Mutex
	sum     Summary
	closed  bool
	metrics *Metrics
}

// NewFunnel opens a funnel for source in run runID. metrics may be nil.
func NewFunnel(source, runID string, metrics *Metrics) *Funnel {
	return &Funnel{
		source:  source,
		sum:     Summary{Source: source, RunID: runID},
		metrics: metrics,
	}
}

// update applies fn under the lock unless the funnel is closed.
func (f *Funnel) update(fn func(s *Summary)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	fn(&f.sum)
	return true
}

// RecordRaw counts one fetched candidate.
func (f *Funnel) RecordRaw() {
	if f.update(func(s *Summary) { s.Raw++ }) {
		f.metrics.stage(f.source, StageRaw)
	}
}

// RecordEligible counts a candidate that passed the gate and keeps its title
// as a sample while there is room.
func (f *Funnel) RecordEligible(title string) {
	ok := f.update(func(s *Summary) {
		s.Eligible++
		if len(s.SampleTitles) < maxSamples && title != "" {
			s.SampleTitles = append(s.SampleTitles, title)
		}
	})
	if ok {
		f.metrics.stage(f.source, StageEligible)
	}
}

// RecordCareerTagged counts a posting with a specific (non-general) career path.
func (f *Funnel) RecordCareerTagged() {
	if f.update(func(s *Summary) { s.CareerTagged++ }) {
		f.metrics.stage(f.source, StageCareerTagged)
	}
}

// RecordLocationTagged counts a posting whose location resolved to a known tag.
func (f *Funnel) RecordLocationTagged() {
	if f.update(func(s *Summary) { s.LocationTagged++ }) {
		f.metrics.stage(f.source, StageLocationTagged)
	}
}

// RecordUpsert adds the outcome of one upsert batch.
func (f *Funnel) RecordUpsert(inserted, updated int, errs []string) {
	ok := f.update(func(s *Summary) {
		s.Inserted += inserted
		s.Updated += updated
		s.Errors = append(s.Errors, errs...)
	})
	if ok {
		f.metrics.upserts(f.source, inserted, updated, len(errs))
	}
}

// RecordError adds a failure that happened outside the store.
func (f *Funnel) RecordError(msg string) {
	if f.update(func(s *Summary) { s.Errors = append(s.Errors, msg) }) {
		f.metrics.upserts(f.source, 0, 0, 1)
	}
}

// Snapshot returns a copy of the current counters.
func (f *Funnel) Snapshot() Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sum.clone()
}

// Close finalizes the funnel and returns its summary.
func (f *Funnel) Close() Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.sum.clone()
}

// Closed reports whether the funnel has been finalized.
func (f *Funnel) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (s Summary) clone() Summary {
	c := s
	c.Errors = append([]string(nil), s.Errors...)
	c.SampleTitles = append([]string(nil), s.SampleTitles...)
	return c
}

// Log closes the funnel, writes the one-line summary for its source and
// evaluates the thresholds. Breaches are logged as warnings and returned;
// they never fail the run.
func (f *Funnel) Log(logger *slog.Logger, th Thresholds) []Alarm {
	sum := f.Close()

	logger.Info("funnel",
		"source", sum.Source,
		"run_id", sum.RunID,
		"raw", sum.Raw,
		"eligible", sum.Eligible,
		"eligible_pct", fmt.Sprintf("%.1f", percent(sum.Eligible, sum.Raw)),
		"career", sum.CareerTagged,
		"career_pct", fmt.Sprintf("%.1f", percent(sum.CareerTagged, sum.Eligible)),
		"location", sum.LocationTagged,
		"location_pct", fmt.Sprintf("%.1f", percent(sum.LocationTagged, sum.Eligible)),
		"inserted", sum.Inserted,
		"updated", sum.Updated,
		"errors", len(sum.Errors),
		"samples", strings.Join(sum.SampleTitles, "; "),
	)

	alarms := Evaluate(sum, th)
	for _, a := range alarms {
		logger.Warn("funnel threshold breached",
			"source", a.Source,
			"run_id", a.RunID,
			"kind", string(a.Kind),
			"ratio", fmt.Sprintf("%.2f", a.Ratio),
			"threshold", fmt.Sprintf("%.2f", a.Threshold),
		)
		f.metrics.alarm(a.Source, a.Kind)
	}
	return alarms
}
