package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/firstrung/internal/audit"
	"github.com/amishk599/firstrung/internal/config"
	"github.com/amishk599/firstrung/internal/model"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse stored postings interactively (TUI)",
	Long:  "Shows the source picker TUI, then a split-pane view of stored postings and the ones whose tags need review.",
	RunE:  runAuditCmd,
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 500, "maximum postings to load per source (0 = all)")
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	// No logger here: any log output before the alt-screen starts corrupts the display.
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	return runAudit(ctx, cfg, st)
}

func runAudit(ctx context.Context, cfg *config.Config, lister model.PostingLister) error {
	stored, err := lister.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	var configured []audit.SourceChoice
	for _, s := range cfg.Sources {
		configured = append(configured, audit.SourceChoice{Name: s.Name, ATS: s.ATS})
	}
	choices := audit.MergeSources(configured, stored)
	if len(choices) == 0 {
		fmt.Println("No sources configured or stored.")
		return nil
	}

	for {
		choice, err := audit.RunSourcePicker(choices)
		if err != nil {
			return fmt.Errorf("picker: %w", err)
		}
		if choice < 0 {
			return nil
		}
		source := choices[choice].Name

		postings, err := audit.RunLoader(source, func(ctx context.Context) ([]model.Posting, error) {
			return lister.ListPostings(ctx, source, auditLimit)
		})
		if err != nil {
			fmt.Printf("Error loading postings: %v\n", err)
			continue
		}

		wantQuit, err := audit.RunAuditTUI(postings)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → back to picker
	}
}
