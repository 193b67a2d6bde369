package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/amishk599/firstrung/internal/adapter"
	"github.com/amishk599/firstrung/internal/breaker"
	"github.com/amishk599/firstrung/internal/config"
	"github.com/amishk599/firstrung/internal/fetch"
	"github.com/amishk599/firstrung/internal/model"
	"github.com/amishk599/firstrung/internal/notifier"
	"github.com/amishk599/firstrung/internal/pipeline"
	"github.com/amishk599/firstrung/internal/ratelimit"
	"github.com/amishk599/firstrung/internal/scheduler"
	"github.com/amishk599/firstrung/internal/store"
	"github.com/amishk599/firstrung/internal/telemetry"
	"github.com/amishk599/firstrung/internal/upsert"
)

const httpTimeout = 30 * time.Second

// postingStore is everything the daemon needs from a durable store.
type postingStore interface {
	model.PostingStore
	model.PostingLister
	pipeline.InactiveMarker
	scheduler.Cleaner
	Close() error
}

var (
	_ postingStore = (*store.SQLiteStore)(nil)
	_ postingStore = (*store.PostgresStore)(nil)
)

// writeStore is the subset used by source runners. Dry runs pass a NopStore.
type writeStore interface {
	model.PostingStore
	pipeline.InactiveMarker
}

func openStore(ctx context.Context, db config.DatabaseConfig) (postingStore, error) {
	switch db.Driver {
	case "postgres":
		st, err := store.NewPostgresStore(ctx, db.DSN, db.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, nil
	case "sqlite", "":
		st, err := store.NewSQLiteStore(db.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

func ratePolicies(cfg *config.Config) map[string]ratelimit.Policy {
	policies := make(map[string]ratelimit.Policy, len(cfg.RateLimits))
	for ats, p := range cfg.RateLimits {
		policies[ats] = ratelimit.Policy{
			RequestsPerHour: p.RequestsPerHour,
			MinDelay:        p.MinDelay,
			MaxDelay:        p.MaxDelay,
			BurstLimit:      p.BurstLimit,
		}
	}
	return policies
}

func funnelPolicy(cfg *config.Config) telemetry.Policy {
	toThresholds := func(th config.FunnelThresholds) telemetry.Thresholds {
		return telemetry.Thresholds{
			MinEligibleRatio:        th.MinEligibleRatio,
			MaxUnknownLocationRatio: th.MaxUnknownLocationRatio,
		}
	}
	p := telemetry.Policy{
		Default:   toThresholds(cfg.Funnel.Default),
		Overrides: make(map[string]telemetry.Thresholds, len(cfg.Funnel.Overrides)),
	}
	for name, th := range cfg.Funnel.Overrides {
		p.Overrides[name] = toThresholds(th)
	}
	return p
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) notifier.Notifier {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func createSource(sc config.SourceConfig, client *fetch.Client, logger *slog.Logger) (model.Source, bool) {
	board := adapter.Board{
		Name:       sc.Name,
		Company:    sc.Company,
		Token:      sc.BoardToken,
		CareersURL: sc.CareersURL,
	}
	switch sc.ATS {
	case "greenhouse":
		return adapter.NewGreenhouseAdapter(board, client), true
	case "lever":
		return adapter.NewLeverAdapter(board, client), true
	case "ashby":
		return adapter.NewAshbyAdapter(board, client), true
	default:
		logger.Warn("unsupported ATS, skipping", "source", sc.Name, "ats", sc.ATS)
		return nil, false
	}
}

// pipelineDeps are the shared pieces every source runner is built from.
type pipelineDeps struct {
	store    writeStore
	notifier notifier.Notifier
	metrics  *telemetry.Metrics
	limiter  *ratelimit.Controller
	breakers *breaker.Registry
	client   *fetch.Client
}

func newPipelineDeps(cfg *config.Config, st writeStore, reg prometheus.Registerer, httpClient *http.Client, logger *slog.Logger) pipelineDeps {
	limiter := ratelimit.NewController(ratePolicies(cfg), logger)
	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		Cooldown:         cfg.CircuitBreaker.Cooldown,
	}, logger)
	var metrics *telemetry.Metrics
	if reg != nil {
		metrics = telemetry.NewMetrics(reg)
	}
	return pipelineDeps{
		store:    st,
		notifier: setupNotifier(cfg, httpClient, logger),
		metrics:  metrics,
		limiter:  limiter,
		breakers: breakers,
		client:   fetch.NewClient(httpClient, limiter, breakers, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, logger),
	}
}

func buildRunners(cfg *config.Config, deps pipelineDeps, logger *slog.Logger) []scheduler.Runner {
	processor := pipeline.NewProcessor(cfg.DescriptionMaxLen)
	coordinator := upsert.NewCoordinator(deps.store, logger)
	thresholds := funnelPolicy(cfg)

	var runners []scheduler.Runner
	for _, sc := range cfg.EnabledSources() {
		src, ok := createSource(sc, deps.client, logger)
		if !ok {
			continue
		}
		runners = append(runners, pipeline.NewSourceRunner(pipeline.RunnerConfig{
			Source:      src,
			Processor:   processor,
			Coordinator: coordinator,
			Marker:      deps.store,
			Notifier:    deps.notifier,
			Thresholds:  thresholds.For(sc.Name),
			Metrics:     deps.metrics,
			Workers:     cfg.CandidateWorkers,
			BatchSize:   cfg.Database.BatchSize,
			Logger:      logger,
		}))
		logger.Info("registered source", "name", sc.Name, "ats", sc.ATS)
	}
	return runners
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}
