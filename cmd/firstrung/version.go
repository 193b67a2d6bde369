package main

import (
	"fmt"
	"runtime"
	rdebug "runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version, commit and Go runtime",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString(version, buildCommit(), runtime.Version()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildCommit prefers the ldflags value and falls back to the VCS revision
// stamped by the go tool.
func buildCommit() string {
	if commit != "" {
		return commit
	}
	info, ok := rdebug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func versionString(version, commit, goVersion string) string {
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit == "" {
		commit = "unknown"
	}
	return fmt.Sprintf("firstrung %s (commit %s, %s)", version, commit, goVersion)
}
