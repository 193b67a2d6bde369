package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/firstrung/internal/notifier"
	"github.com/amishk599/firstrung/internal/telemetry"
)

var alarmSource string

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Funnel alarm delivery",
	Long: `Funnel alarms fire when a source-run's eligible ratio drops below its
minimum or its unknown-location ratio rises above its maximum. They are
delivered through the notification channel in the config (log or slack).`,
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Deliver a sample funnel alarm through the configured channel",
	Long: `Delivers a sample funnel alarm through the configured channel.

With --source, one alarm per check is built from that source's funnel
thresholds, so the message matches what a failing run would send.`,
	RunE: runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
	notifyTestCmd.Flags().StringVar(&alarmSource, "source", "", "build alarms from this source's funnel thresholds")
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	n := setupNotifier(cfg, newHTTPClient(), logger)
	if alarmSource == "" {
		err = notifier.SendTestMessage(cmd.Context(), n)
	} else {
		err = n.Notify(cmd.Context(), sampleAlarms(funnelPolicy(cfg), alarmSource))
	}
	if err != nil {
		logger.Error("funnel alarm delivery failed", "error", err)
		return err
	}
	logger.Info("sample funnel alarm delivered", "channel", cfg.Notification.Type)
	return nil
}

// sampleAlarms builds one breach per enabled check, each ten points past the
// source's threshold.
func sampleAlarms(policy telemetry.Policy, source string) []telemetry.Alarm {
	th := policy.For(source)
	runID := fmt.Sprintf("notify-test-%s", source)

	var alarms []telemetry.Alarm
	if th.MinEligibleRatio > 0 {
		alarms = append(alarms, telemetry.Alarm{
			Source: source, RunID: runID, Kind: telemetry.AlarmLowEligible,
			Ratio: max(th.MinEligibleRatio-0.1, 0), Threshold: th.MinEligibleRatio,
		})
	}
	if th.MaxUnknownLocationRatio > 0 {
		alarms = append(alarms, telemetry.Alarm{
			Source: source, RunID: runID, Kind: telemetry.AlarmUnknownLocations,
			Ratio: min(th.MaxUnknownLocationRatio+0.1, 1), Threshold: th.MaxUnknownLocationRatio,
		})
	}
	return alarms
}
