package telemetry

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFunnel_Counters(t *testing.T) {
	f := NewFunnel("acme", "run-1", nil)
	for i := 0; i < 10; i++ {
		f.RecordRaw()
	}
	for i := 0; i < 7; i++ {
		f.RecordEligible(fmt.Sprintf("Intern %d", i))
	}
	for i := 0; i < 4; i++ {
		f.RecordCareerTagged()
	}
	for i := 0; i < 6; i++ {
		f.RecordLocationTagged()
	}
	f.RecordUpsert(5, 1, []string{"hash abc: constraint failed"})

	sum := f.Snapshot()
	want := Summary{
		Source:         "acme",
		RunID:          "run-1",
		Raw:            10,
		Eligible:       7,
		CareerTagged:   4,
		LocationTagged: 6,
		Inserted:       5,
		Updated:        1,
		Errors:         []string{"hash abc: constraint failed"},
		SampleTitles:   []string{"Intern 0", "Intern 1", "Intern 2", "Intern 3", "Intern 4"},
	}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestFunnel_ImmutableAfterClose(t *testing.T) {
	f := NewFunnel("acme", "run-1", nil)
	f.RecordRaw()
	closed := f.Close()

	f.RecordRaw()
	f.RecordEligible("late")
	f.RecordUpsert(1, 0, nil)
	f.RecordError("late error")

	if !f.Closed() {
		t.Fatal("Closed() = false after Close")
	}
	if diff := cmp.Diff(closed, f.Snapshot()); diff != "" {
		t.Errorf("funnel changed after close (-closed +now):\n%s", diff)
	}
}

func TestFunnel_SnapshotIsCopy(t *testing.T) {
	f := NewFunnel("acme", "run-1", nil)
	f.RecordEligible("Graduate Engineer")
	snap := f.Snapshot()
	snap.SampleTitles[0] = "mutated"

	if got := f.Snapshot().SampleTitles[0]; got != "Graduate Engineer" {
		t.Errorf("SampleTitles[0] = %q, snapshot aliases funnel state", got)
	}
}

func TestFunnel_ConcurrentRecords(t *testing.T) {
	f := NewFunnel("acme", "run-1", nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.RecordRaw()
			f.RecordEligible("t")
		}()
	}
	wg.Wait()

	sum := f.Close()
	if sum.Raw != 50 || sum.Eligible != 50 {
		t.Errorf("Raw/Eligible = %d/%d, want 50/50", sum.Raw, sum.Eligible)
	}
	if len(sum.SampleTitles) != maxSamples {
		t.Errorf("len(SampleTitles) = %d, want %d", len(sum.SampleTitles), maxSamples)
	}
}

func TestFunnel_LogWritesSummaryAndWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	f := NewFunnel("acme", "run-1", nil)
	for i := 0; i < 10; i++ {
		f.RecordRaw()
	}
	for i := 0; i < 4; i++ {
		f.RecordEligible("Junior Analyst")
	}
	f.RecordLocationTagged()

	alarms := f.Log(logger, Thresholds{MinEligibleRatio: 0.5, MaxUnknownLocationRatio: 0.4})
	if len(alarms) != 2 {
		t.Fatalf("expected 2 alarms, got %d: %v", len(alarms), alarms)
	}
	if !f.Closed() {
		t.Error("Log should close the funnel")
	}

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 1 summary line and 2 warnings, got %d lines:\n%s", len(lines), out)
	}
	for _, want := range []string{"msg=funnel", "source=acme", "raw=10", "eligible=4", "eligible_pct=40.0", "errors=0"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("summary line missing %q: %s", want, lines[0])
		}
	}
	if !strings.Contains(lines[1], "level=WARN") || !strings.Contains(lines[1], "kind=low_eligible_ratio") {
		t.Errorf("unexpected first warning: %s", lines[1])
	}
	if !strings.Contains(lines[2], "kind=high_unknown_location_ratio") {
		t.Errorf("unexpected second warning: %s", lines[2])
	}
}

func TestFunnel_MetricsExported(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	f := NewFunnel("acme", "run-1", m)
	f.RecordRaw()
	f.RecordRaw()
	f.RecordEligible("Intern")
	f.RecordUpsert(1, 0, []string{"boom"})
	f.Log(discardLogger(), Thresholds{MinEligibleRatio: 0.9})

	if got := testutil.ToFloat64(m.records.WithLabelValues("acme", StageRaw)); got != 2 {
		t.Errorf("raw counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues("acme", "inserted")); got != 1 {
		t.Errorf("inserted counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.writes.WithLabelValues("acme", "error")); got != 1 {
		t.Errorf("error counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.alarms.WithLabelValues("acme", string(AlarmLowEligible))); got != 1 {
		t.Errorf("alarm counter = %v, want 1", got)
	}
}
