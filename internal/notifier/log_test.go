package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/amishk599/firstrung/internal/telemetry"
)

func TestLogNotifier_Notify_zeroAlarms(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Errorf("Notify(nil) = %v, want nil", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLogNotifier_Notify_logsEachAlarm(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	alarms := []telemetry.Alarm{
		{Source: "acme", RunID: "r1", Kind: telemetry.AlarmLowEligible, Ratio: 0.3, Threshold: 0.5},
		{Source: "acme", RunID: "r1", Kind: telemetry.AlarmUnknownLocations, Ratio: 0.6, Threshold: 0.4},
	}
	if err := n.Notify(context.Background(), alarms); err != nil {
		t.Fatalf("Notify = %v, want nil", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "level=WARN") || !strings.Contains(lines[0], "kind=low_eligible_ratio") {
		t.Errorf("unexpected line: %s", lines[0])
	}
}
