package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amishk599/firstrung/internal/breaker"
	"github.com/amishk599/firstrung/internal/model"
	"github.com/amishk599/firstrung/internal/store"
	"github.com/amishk599/firstrung/internal/telemetry"
	"github.com/amishk599/firstrung/internal/upsert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource returns canned records or an error.
type fakeSource struct {
	name    string
	records []model.CandidateRecord
	err     error
	// cancel, when set, is called during Fetch to simulate a run timeout.
	cancel context.CancelFunc
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) ATS() string  { return "greenhouse" }
func (f *fakeSource) Fetch(ctx context.Context) ([]model.CandidateRecord, error) {
	if f.cancel != nil {
		f.cancel()
	}
	return f.records, f.err
}

// recordingNotifier records every alarm batch.
type recordingNotifier struct {
	mu     sync.Mutex
	alarms []telemetry.Alarm
}

func (n *recordingNotifier) Notify(_ context.Context, alarms []telemetry.Alarm) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alarms = append(n.alarms, alarms...)
	return nil
}

func newSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() []model.CandidateRecord {
	return []model.CandidateRecord{
		{Title: "Marketing Intern", Company: "Acme", Location: "Madrid, Spain", Source: "acme", JobURL: "https://acme.example/jobs/1"},
		{Title: "Graduate Software Engineer", Company: "Acme", Location: "Berlin, Germany", Source: "acme", JobURL: "https://acme.example/jobs/2"},
		{Title: "Senior Director of Engineering", Company: "Acme", Location: "Berlin", Source: "acme", JobURL: "https://acme.example/jobs/3"},
		{Title: "", Company: "Acme", Source: "acme"},
	}
}

func newRunner(src model.Source, s *store.SQLiteStore, n Notifier, th telemetry.Thresholds) *SourceRunner {
	return NewSourceRunner(RunnerConfig{
		Source:      src,
		Coordinator: upsert.NewCoordinator(s, discardLogger()),
		Marker:      s,
		Notifier:    n,
		Thresholds:  th,
		Workers:     2,
		BatchSize:   1,
		Now:         func() time.Time { return testNow },
		Logger:      discardLogger(),
	})
}

func TestRun_EndToEnd(t *testing.T) {
	s := newSQLite(t)
	notifier := &recordingNotifier{}
	r := newRunner(&fakeSource{name: "acme", records: sampleRecords()}, s, notifier, telemetry.Thresholds{MinEligibleRatio: 0.4})

	sum, err := r.Run(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Raw != 4 || sum.Eligible != 2 || sum.Inserted != 2 || sum.Updated != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if len(notifier.alarms) != 0 {
		t.Errorf("unexpected alarms: %v", notifier.alarms)
	}

	list, err := s.ListPostings(context.Background(), "acme", 0)
	if err != nil {
		t.Fatalf("ListPostings: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("stored %d postings, want 2", len(list))
	}

	// A second run over the same listings only updates.
	sum, err = r.Run(context.Background(), "run-2")
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum.Inserted != 0 || sum.Updated != 2 {
		t.Errorf("second summary = %+v, want 0 inserted 2 updated", sum)
	}
}

func TestRun_AlarmsForwarded(t *testing.T) {
	s := newSQLite(t)
	notifier := &recordingNotifier{}
	r := newRunner(&fakeSource{name: "acme", records: sampleRecords()}, s, notifier, telemetry.Thresholds{MinEligibleRatio: 0.9})

	if _, err := r.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.alarms) != 1 || notifier.alarms[0].Kind != telemetry.AlarmLowEligible {
		t.Errorf("alarms = %v, want one low eligible alarm", notifier.alarms)
	}
}

func TestRun_MarksUnseenPostingsInactive(t *testing.T) {
	s := newSQLite(t)
	src := &fakeSource{name: "acme", records: sampleRecords()}
	r := newRunner(src, s, nil, telemetry.Thresholds{})

	if _, err := r.Run(context.Background(), "run-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	src.records = src.records[:1]
	if _, err := r.Run(context.Background(), "run-2"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	list, err := s.ListPostings(context.Background(), "acme", 0)
	if err != nil {
		t.Fatalf("ListPostings: %v", err)
	}
	active := 0
	for _, p := range list {
		if p.IsActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("active postings = %d, want 1", active)
	}
}

func TestRun_BreakerOpenSkipsSource(t *testing.T) {
	s := newSQLite(t)
	src := &fakeSource{name: "acme", err: fmt.Errorf("greenhouse fetch for acme: %w", breaker.ErrOpen)}
	r := newRunner(src, s, nil, telemetry.Thresholds{})

	sum, err := r.Run(context.Background(), "run-1")
	if !errors.Is(err, ErrSkipped) || !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("err = %v, want ErrSkipped wrapping ErrOpen", err)
	}
	if sum.Raw != 0 || len(sum.Errors) != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_FetchErrorReturned(t *testing.T) {
	s := newSQLite(t)
	src := &fakeSource{name: "acme", err: errors.New("connection refused")}
	r := newRunner(src, s, nil, telemetry.Thresholds{})

	_, err := r.Run(context.Background(), "run-1")
	if err == nil || errors.Is(err, ErrSkipped) {
		t.Fatalf("err = %v, want plain fetch error", err)
	}
}

// cancellingStore cancels the run on its first write.
type cancellingStore struct {
	model.PostingStore
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingStore) UpsertPosting(ctx context.Context, p model.Posting) (bool, error) {
	c.once.Do(c.cancel)
	return c.PostingStore.UpsertPosting(ctx, p)
}

func TestRun_CancelledRunStillWritesGatheredPostings(t *testing.T) {
	s := newSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewSourceRunner(RunnerConfig{
		Source:      &fakeSource{name: "acme", records: sampleRecords()},
		Coordinator: upsert.NewCoordinator(&cancellingStore{PostingStore: s, cancel: cancel}, discardLogger()),
		Marker:      s,
		BatchSize:   1,
		Now:         func() time.Time { return testNow },
		Logger:      discardLogger(),
	})

	sum, err := r.Run(ctx, "run-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sum.Inserted != 2 || len(sum.Errors) != 0 {
		t.Errorf("summary = %+v, gathered postings must all be written", sum)
	}
}

func TestRun_CancelledDuringFetchKeepsFetchedRecords(t *testing.T) {
	s := newSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newRunner(&fakeSource{name: "acme", records: sampleRecords(), cancel: cancel}, s, nil, telemetry.Thresholds{})

	sum, err := r.Run(ctx, "run-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sum.Raw != 4 || sum.Eligible != 2 || sum.Inserted != 2 {
		t.Errorf("summary = %+v, want 4 raw, 2 eligible, 2 inserted", sum)
	}

	list, err := s.ListPostings(context.Background(), "acme", 0)
	if err != nil {
		t.Fatalf("ListPostings: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("stored %d postings, want 2", len(list))
	}
}
