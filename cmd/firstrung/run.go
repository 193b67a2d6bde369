package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/firstrung/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every source once and exit",
	Long:  "One-shot cycle: ingests every enabled source once into the configured store, then exits. Honors the run lock.",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}
	logConfig(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer st.Close()

	deps := newPipelineDeps(cfg, st, nil, newHTTPClient(), logger)
	runners := buildRunners(cfg, deps, logger)
	if len(runners) == 0 {
		return errors.New("no sources to ingest")
	}

	sched := scheduler.NewScheduler(runners, scheduler.Config{
		RunTimeout: cfg.RunTimeout,
		Workers:    cfg.SourceWorkers,
		LockFile:   cfg.LockFile,
		Retention:  cfg.Retention,
		Cleaner:    st,
	}, logger)
	report, err := sched.RunOnce(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}
