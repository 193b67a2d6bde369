package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/firstrung/internal/config"
	"github.com/amishk599/firstrung/internal/ratelimit"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "Show the effective per-ATS rate policies",
	Long:  "Prints the rate envelope, breaker and funnel thresholds each enabled source runs under.",
	RunE:  runPolicies,
}

func init() {
	rootCmd.AddCommand(policiesCmd)
}

func runPolicies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	printPolicies(cmd.OutOrStdout(), cfg)
	return nil
}

func printPolicies(w io.Writer, cfg *config.Config) {
	limiter := ratelimit.NewController(ratePolicies(cfg), newLogger(io.Discard, false))
	thresholds := funnelPolicy(cfg)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers("Source", "ATS", "Req/h", "Delay", "Burst", "Min eligible", "Max unknown loc")

	sources := cfg.EnabledSources()
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	for _, s := range sources {
		p := limiter.Policy(s.ATS)
		th := thresholds.For(s.Name)
		t.Row(
			s.Name,
			s.ATS,
			fmt.Sprint(p.RequestsPerHour),
			fmt.Sprintf("%s-%s", p.MinDelay, p.MaxDelay),
			fmt.Sprint(p.BurstLimit),
			fmt.Sprintf("%.0f%%", th.MinEligibleRatio*100),
			fmt.Sprintf("%.0f%%", th.MaxUnknownLocationRatio*100),
		)
	}

	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "circuit breaker: %d failures, %s cooldown; retries: %d from %s\n",
		cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.Cooldown,
		cfg.Retry.MaxRetries, cfg.Retry.BaseDelay)
}
