package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/a11yscan/a11yscan/internal/config"
	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/dedup"
	"github.com/a11yscan/a11yscan/internal/log"
	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/score"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [scan-id]",
		Short: "Render a stored scan without scanning again",
		Long: `Report re-renders a previously stored scan from the local database.

Without a scan id it renders the most recent scan. With --reanalyze it
re-runs deduplication over the stored findings first, which is useful
after changing --threshold.

Examples:
  # Render the latest scan as text
  a11yscan report

  # Render a specific scan as JSON
  a11yscan report --json 4f8b1c2e-...

  # Regroup the stored findings with a different threshold
  a11yscan report --reanalyze --threshold 0.3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReportCmd,
	}

	cmd.Flags().Bool("reanalyze", false,
		"Re-run deduplication over the stored findings before rendering")
	cmd.Flags().Float64("threshold", 0,
		"Shared-component threshold for --reanalyze (0 keeps the scan's stored value)")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()

	var err error
	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}
	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}
	reanalyze, err := cmd.Flags().GetBool("reanalyze")
	if err != nil {
		return err
	}
	threshold, err := cmd.Flags().GetFloat64("threshold")
	if err != nil {
		return err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	logger := log.NewLogger(os.Stderr, cfg.Verbose)

	var scanID string
	if len(args) == 1 {
		scanID = args[0]
	}

	return runReport(cmd.Context(), cfg, scanID, reanalyze, threshold, logger)
}

// runReport loads the stored scan, optionally regroups its findings,
// and renders the summary.
func runReport(ctx context.Context, cfg *config.Config, scanID string, reanalyze bool, threshold float64, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	loaded, err := loadScan(ctx, store, scanID)
	if err != nil {
		return err
	}

	pages, err := store.PagesByScan(ctx, loaded.ID)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}
	issues, err := store.IssuesByScan(ctx, loaded.ID)
	if err != nil {
		return fmt.Errorf("failed to load issues: %w", err)
	}
	groups, err := store.GroupsByScan(ctx, loaded.ID)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}

	if reanalyze {
		if threshold > 0 {
			loaded.Config.SharedThreshold = threshold
		}
		engine := dedup.New(
			dedup.WithThreshold(loaded.Config.SharedThreshold),
			dedup.WithLogger(logger),
		)
		groups = engine.Deduplicate(loaded, pages, issues)

		if err := store.DeleteGroups(ctx, loaded.ID); err != nil {
			return fmt.Errorf("failed to clear previous groups: %w", err)
		}
		if err := store.InsertGroups(ctx, groups); err != nil {
			return fmt.Errorf("failed to persist groups: %w", err)
		}
		if err := store.UpdateIssueGroups(ctx, issues); err != nil {
			return fmt.Errorf("failed to persist issue grouping: %w", err)
		}
	}

	summary := score.Summarize(loaded, issues, groups)

	if reanalyze {
		loaded.Score = summary.Score
		if err := store.UpdateScan(ctx, loaded); err != nil {
			return fmt.Errorf("failed to persist reanalyzed scan: %w", err)
		}
	}

	return outputReport(cfg, summary)
}

// loadScan fetches the requested scan, or the latest one when no id
// was given.
func loadScan(ctx context.Context, store *database.Store, scanID string) (*model.Scan, error) {
	if scanID != "" {
		s, err := store.GetScan(ctx, scanID)
		if err != nil {
			return nil, fmt.Errorf("scan %s not found: %w", scanID, err)
		}
		return s, nil
	}
	s, err := store.LatestScan(ctx)
	if err != nil {
		return nil, fmt.Errorf("no stored scans: %w", err)
	}
	return s, nil
}
