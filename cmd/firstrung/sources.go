package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/firstrung/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List all configured sources",
	Long:  "Reads the config and prints a table of all configured sources.",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	printSources(cmd.OutOrStdout(), cfg.Sources)
	return nil
}

func printSources(w io.Writer, sources []config.SourceConfig) {
	fmt.Fprintf(w, "%-25s %-12s %-25s %s\n", "Source", "ATS", "Board", "Status")
	fmt.Fprintln(w, strings.Repeat("─", 72))

	enabled, disabled := 0, 0
	for _, s := range sources {
		status := "enabled"
		if !s.Enabled {
			status = "disabled"
			disabled++
		} else {
			enabled++
		}
		fmt.Fprintf(w, "%-25s %-12s %-25s %s\n", s.Name, s.ATS, s.BoardToken, status)
	}

	fmt.Fprintf(w, "\nTotal: %d sources (%d enabled, %d disabled)\n", len(sources), enabled, disabled)
}
