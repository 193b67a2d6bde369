package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/amishk599/firstrung/internal/telemetry"
)

// SlackNotifier sends funnel alarms to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier returns a notifier that posts alarms to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify sends one Block Kit message per source covering all of its alarms.
// Returns an error only if ALL messages fail. Individual failures are logged.
func (s *SlackNotifier) Notify(ctx context.Context, alarms []telemetry.Alarm) error {
	if len(alarms) == 0 {
		return nil
	}

	groups := groupBySource(alarms)
	failures := 0
	for i, g := range groups {
		if i > 0 {
			if err := sleep(ctx, 500*time.Millisecond); err != nil {
				return err
			}
		}

		if err := s.sendMessage(ctx, buildPayload(g)); err != nil {
			s.logger.Error("slack notification failed", "source", g[0].Source, "error", err)
			failures++
		}
	}

	if failures == len(groups) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete", "sent", len(groups)-failures, "failed", failures)
	return nil
}

func (s *SlackNotifier) sendMessage(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		if err := sleep(ctx, time.Duration(secs)*time.Second); err != nil {
			return err
		}

		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (status int, retryAfter string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// groupBySource keeps first-seen source order.
func groupBySource(alarms []telemetry.Alarm) [][]telemetry.Alarm {
	index := make(map[string]int)
	var groups [][]telemetry.Alarm
	for _, a := range alarms {
		i, ok := index[a.Source]
		if !ok {
			i = len(groups)
			index[a.Source] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], a)
	}
	return groups
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendTestMessage sends a sample alarm to verify the integration works.
func SendTestMessage(ctx context.Context, n Notifier) error {
	return n.Notify(ctx, []telemetry.Alarm{{
		Source:    "firstrung-test",
		RunID:     "test-run",
		Kind:      telemetry.AlarmLowEligible,
		Ratio:     0.42,
		Threshold: 0.5,
	}})
}

func buildPayload(alarms []telemetry.Alarm) slackPayload {
	source := alarms[0].Source
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: "⚠️ Funnel alarm: " + source},
		},
	}

	for _, a := range alarms {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Check:*\n" + string(a.Kind)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Observed:*\n%.0f%% (limit %.0f%%)", a.Ratio*100, a.Threshold*100)},
			},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: "Run `" + alarms[0].RunID + "`"}},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
