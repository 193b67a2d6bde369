package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/firstrung/internal/telemetry"
)

// Notifier delivers funnel alarms to operators.
type Notifier interface {
	Notify(ctx context.Context, alarms []telemetry.Alarm) error
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*SlackNotifier)(nil)
)

// LogNotifier writes funnel alarms to the given logger as structured warnings.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each alarm via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each alarm. Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, alarms []telemetry.Alarm) error {
	for _, a := range alarms {
		n.logger.Warn("funnel alarm",
			"source", a.Source,
			"run_id", a.RunID,
			"kind", string(a.Kind),
			"ratio", a.Ratio,
			"threshold", a.Threshold,
			"detail", a.String(),
		)
	}
	return nil
}
