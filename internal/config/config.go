package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// SupportedATS lists the upstream backends a source may use.
var SupportedATS = map[string]bool{
	"greenhouse": true,
	"lever":      true,
	"ashby":      true,
}

// Config is the root configuration for the firstrung ingester.
type Config struct {
	PollingInterval   time.Duration
	RunTimeout        time.Duration
	SourceWorkers     int
	CandidateWorkers  int
	DescriptionMaxLen int
	LockFile          string
	MetricsAddr       string        // empty disables the metrics endpoint
	Retention         time.Duration // zero keeps inactive postings forever

	Database       DatabaseConfig
	RateLimits     map[string]RatePolicy // keyed by ATS
	CircuitBreaker BreakerConfig
	Retry          RetryConfig
	Funnel         FunnelConfig
	Notification   NotificationConfig
	Sources        []SourceConfig
}

// DatabaseConfig selects and configures the posting store.
type DatabaseConfig struct {
	Driver    string // "sqlite" or "postgres"
	Path      string // sqlite file
	DSN       string // postgres connection string, expanded from env by Load
	BatchSize int
	MaxConns  int
}

// RatePolicy is the static request envelope for one upstream.
type RatePolicy struct {
	RequestsPerHour int
	MinDelay        time.Duration
	MaxDelay        time.Duration
	BurstLimit      int
}

// BreakerConfig controls the per-upstream circuit breakers.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// RetryConfig controls retries of transient fetch failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// FunnelThresholds are the advisory ratios checked after each source-run.
type FunnelThresholds struct {
	MinEligibleRatio        float64 `yaml:"min_eligible_ratio"`
	MaxUnknownLocationRatio float64 `yaml:"max_unknown_location_ratio"`
}

// FunnelConfig holds default thresholds and per-source overrides.
type FunnelConfig struct {
	Default   FunnelThresholds
	Overrides map[string]FunnelThresholds
}

// NotificationConfig controls where funnel alarms go.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// SourceConfig describes a single company board to ingest.
type SourceConfig struct {
	Name       string `yaml:"name"`
	ATS        string `yaml:"ats"`
	BoardToken string `yaml:"board_token"`
	Company    string `yaml:"company"`     // display name, defaults to Name
	CareersURL string `yaml:"careers_url"` // fallback locator
	Enabled    bool   `yaml:"enabled"`
}

// EnabledSources returns the sources with enabled set.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// ThresholdsFor returns the funnel thresholds for a source.
func (f FunnelConfig) ThresholdsFor(source string) FunnelThresholds {
	if th, ok := f.Overrides[source]; ok {
		return th
	}
	return f.Default
}

const (
	defaultPollingInterval   = time.Hour
	defaultRunTimeout        = 30 * time.Minute
	defaultSourceWorkers     = 4
	defaultCandidateWorkers  = 8
	defaultDescriptionMaxLen = 2000
	defaultLockFile          = "firstrung.lock"
	defaultDBPath            = "firstrung.db"
	defaultBatchSize         = 50
	defaultFailureThreshold  = 5
	defaultCooldown          = 5 * time.Minute
	defaultMaxRetries        = 3
	defaultBaseDelay         = 2 * time.Second
	defaultMinEligible       = 0.5
	defaultMaxUnknown        = 0.4
	slackWebhookPrefix       = "https://hooks.slack.com/"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	PollingInterval   string                   `yaml:"polling_interval"`
	RunTimeout        string                   `yaml:"run_timeout"`
	SourceWorkers     int                      `yaml:"source_workers"`
	CandidateWorkers  int                      `yaml:"candidate_workers"`
	DescriptionMaxLen int                      `yaml:"description_max_len"`
	LockFile          string                   `yaml:"lock_file"`
	MetricsAddr       string                   `yaml:"metrics_addr"`
	Retention         string                   `yaml:"retention"`
	Database          rawDatabaseConfig        `yaml:"database"`
	RateLimits        map[string]rawRatePolicy `yaml:"rate_limits"`
	CircuitBreaker    rawBreakerConfig         `yaml:"circuit_breaker"`
	Retry             rawRetryConfig           `yaml:"retry"`
	Funnel            rawFunnelConfig          `yaml:"funnel"`
	Notification      NotificationConfig       `yaml:"notification"`
	Sources           []SourceConfig           `yaml:"sources"`
}

type rawDatabaseConfig struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	DSN       string `yaml:"dsn"`
	BatchSize int    `yaml:"batch_size"`
	MaxConns  int    `yaml:"max_conns"`
}

type rawRatePolicy struct {
	RequestsPerHour int `yaml:"requests_per_hour"`
	MinDelayMs      int `yaml:"min_delay_ms"`
	MaxDelayMs      int `yaml:"max_delay_ms"`
	BurstLimit      int `yaml:"burst_limit"`
}

type rawBreakerConfig struct {
	FailureThreshold int    `yaml:"failure_threshold"`
	Cooldown         string `yaml:"cooldown"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

type rawFunnelConfig struct {
	Default   *FunnelThresholds           `yaml:"default"`
	Overrides map[string]FunnelThresholds `yaml:"overrides"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes. Environment variables are expanded
// first; unset fields take defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var errs *multierror.Error
	duration := func(field, value string, def time.Duration) time.Duration {
		if value == "" {
			return def
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("parse %s %q: %w", field, value, err))
			return def
		}
		return d
	}

	cfg := &Config{
		PollingInterval:   duration("polling_interval", raw.PollingInterval, defaultPollingInterval),
		RunTimeout:        duration("run_timeout", raw.RunTimeout, defaultRunTimeout),
		SourceWorkers:     orDefault(raw.SourceWorkers, defaultSourceWorkers),
		CandidateWorkers:  orDefault(raw.CandidateWorkers, defaultCandidateWorkers),
		DescriptionMaxLen: orDefault(raw.DescriptionMaxLen, defaultDescriptionMaxLen),
		LockFile:          raw.LockFile,
		MetricsAddr:       raw.MetricsAddr,
		Retention:         duration("retention", raw.Retention, 0),
		Database: DatabaseConfig{
			Driver:    strings.ToLower(raw.Database.Driver),
			Path:      raw.Database.Path,
			DSN:       raw.Database.DSN,
			BatchSize: orDefault(raw.Database.BatchSize, defaultBatchSize),
			MaxConns:  raw.Database.MaxConns,
		},
		RateLimits: make(map[string]RatePolicy, len(raw.RateLimits)),
		CircuitBreaker: BreakerConfig{
			FailureThreshold: orDefault(raw.CircuitBreaker.FailureThreshold, defaultFailureThreshold),
			Cooldown:         duration("circuit_breaker.cooldown", raw.CircuitBreaker.Cooldown, defaultCooldown),
		},
		Retry: RetryConfig{
			MaxRetries: defaultMaxRetries,
			BaseDelay:  duration("retry.base_delay", raw.Retry.BaseDelay, defaultBaseDelay),
		},
		Funnel: FunnelConfig{
			Default:   FunnelThresholds{MinEligibleRatio: defaultMinEligible, MaxUnknownLocationRatio: defaultMaxUnknown},
			Overrides: raw.Funnel.Overrides,
		},
		Notification: raw.Notification,
		Sources:      raw.Sources,
	}

	if cfg.LockFile == "" {
		cfg.LockFile = defaultLockFile
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = defaultDBPath
	}
	if raw.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *raw.Retry.MaxRetries
	}
	if raw.Funnel.Default != nil {
		cfg.Funnel.Default = *raw.Funnel.Default
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}
	for ats, p := range raw.RateLimits {
		cfg.RateLimits[strings.ToLower(ats)] = RatePolicy{
			RequestsPerHour: p.RequestsPerHour,
			MinDelay:        time.Duration(p.MinDelayMs) * time.Millisecond,
			MaxDelay:        time.Duration(p.MaxDelayMs) * time.Millisecond,
			BurstLimit:      p.BurstLimit,
		}
	}
	for i := range cfg.Sources {
		cfg.Sources[i].ATS = strings.ToLower(cfg.Sources[i].ATS)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// validate reports every problem at once.
func validate(cfg *Config) error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	if cfg.PollingInterval <= 0 {
		add("polling_interval must be positive, got %v", cfg.PollingInterval)
	}
	if cfg.RunTimeout <= 0 {
		add("run_timeout must be positive, got %v", cfg.RunTimeout)
	}
	if cfg.Retention < 0 {
		add("retention must not be negative, got %v", cfg.Retention)
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			add("database.path is required for sqlite")
		}
	case "postgres":
		if cfg.Database.DSN == "" {
			add("database.dsn is required for postgres")
		}
	default:
		add("database.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Database.Driver)
	}

	for ats, p := range cfg.RateLimits {
		if p.RequestsPerHour <= 0 {
			add("rate_limits[%q].requests_per_hour must be positive", ats)
		}
		if p.MinDelay <= 0 {
			add("rate_limits[%q].min_delay_ms must be positive", ats)
		}
		if p.MaxDelay < p.MinDelay {
			add("rate_limits[%q].max_delay_ms must be at least min_delay_ms", ats)
		}
		if p.BurstLimit <= 0 {
			add("rate_limits[%q].burst_limit must be positive", ats)
		}
	}

	if cfg.CircuitBreaker.Cooldown <= 0 {
		add("circuit_breaker.cooldown must be positive, got %v", cfg.CircuitBreaker.Cooldown)
	}
	if cfg.Retry.MaxRetries < 0 {
		add("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}

	checkRatios := func(field string, th FunnelThresholds) {
		if th.MinEligibleRatio < 0 || th.MinEligibleRatio > 1 {
			add("%s.min_eligible_ratio must be within [0, 1], got %v", field, th.MinEligibleRatio)
		}
		if th.MaxUnknownLocationRatio < 0 || th.MaxUnknownLocationRatio > 1 {
			add("%s.max_unknown_location_ratio must be within [0, 1], got %v", field, th.MaxUnknownLocationRatio)
		}
	}
	checkRatios("funnel.default", cfg.Funnel.Default)
	for name, th := range cfg.Funnel.Overrides {
		checkRatios(fmt.Sprintf("funnel.overrides[%q]", name), th)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			add("notification.webhook_url is required when type is \"slack\"")
		} else if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			add("notification.webhook_url must start with %s", slackWebhookPrefix)
		}
	default:
		add("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	names := make(map[string]bool)
	enabled := 0
	for i, s := range cfg.Sources {
		if s.Name == "" {
			add("sources[%d].name is required", i)
		} else if names[s.Name] {
			add("sources[%d].name %q is duplicated", i, s.Name)
		}
		names[s.Name] = true

		if !SupportedATS[s.ATS] {
			add("sources[%d] (%s): unsupported ats %q", i, s.Name, s.ATS)
		}
		if s.BoardToken == "" {
			add("sources[%d] (%s): board_token is required", i, s.Name)
		}
		if !s.Enabled {
			continue
		}
		enabled++
		// Every upstream that will be contacted needs an explicit policy.
		if _, ok := cfg.RateLimits[s.ATS]; !ok && SupportedATS[s.ATS] {
			add("sources[%d] (%s): no rate_limits entry for ats %q", i, s.Name, s.ATS)
		}
	}
	if enabled == 0 {
		errs = multierror.Append(errs, errors.New("at least one source must be enabled"))
	}

	return errs.ErrorOrNil()
}
