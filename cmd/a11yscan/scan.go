package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/a11yscan/a11yscan/internal/config"
	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/log"
	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/pipeline"
	"github.com/a11yscan/a11yscan/internal/progress"
	"github.com/a11yscan/a11yscan/internal/render"
	"github.com/a11yscan/a11yscan/internal/report"
	"github.com/a11yscan/a11yscan/internal/urlutil"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Crawl a website and audit it for accessibility issues",
		Long: `Scan crawls a website breadth-first, evaluates accessibility rules
on every page, and deduplicates findings into site-wide component
groups before scoring.

The crawl stays within the root URL's origin. Results are saved to a
local database so reports can be re-rendered later with 'a11yscan
report'.

Examples:
  # Scan a single site
  a11yscan scan https://example.com

  # Scan several sites concurrently
  a11yscan scan --batch 3 https://a.example https://b.example https://c.example

  # Limit crawl size and output a Markdown report
  a11yscan scan --max-pages 50 --markdown -o report.md https://example.com

  # Use a custom configuration file
  a11yscan scan -c myconfig.yaml https://example.com

Configuration file (.a11yscan) example:
  defaults:
    excludePatterns:
      - "*/logout*"
  sites:
    intranet.example.com:
      cookie: "session_id=abc123"
      maxDepth: 5`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per site")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from the root URL")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Pages processed in parallel within one batch")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Pause between crawl and scan batches")
	cmd.Flags().Float64("rate", 0,
		"Maximum page fetches per second (0 disables limiting)")
	cmd.Flags().StringSlice("exclude", nil,
		"Wildcard URL patterns to skip (repeatable)")
	cmd.Flags().StringSlice("follow", nil,
		"Restrict the crawl to URLs matching these wildcard patterns (repeatable)")

	// Analysis flags
	cmd.Flags().Float64("threshold", config.DefaultSharedThreshold,
		"Fraction of pages a component must span to count as shared (0..1]")
	cmd.Flags().StringSlice("tags", nil,
		"Restrict rules to these guideline tags (e.g. wcag2a)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultEvaluatorTimeout,
		"Rule evaluation timeout per page")
	cmd.Flags().Duration("settle", config.DefaultSettleDelay,
		"Quiescence window between navigation and evaluation")

	// Batch scanning flags
	cmd.Flags().IntP("batch", "b", 1,
		"Number of sites scanned concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .a11yscan in current or home directory)")

	// Storage flags
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no root URL provided (specify one or more site URLs as arguments)")
	}

	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	batch, err := cmd.Flags().GetInt("batch")
	if err != nil {
		return err
	}

	return runScan(ctx, cfg, args, batch, logger)
}

// buildConfig creates a Config from cobra command flags. The first
// positional argument becomes the root URL so Validate can check it;
// remaining targets are validated per scan.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.RootURL = args[0]

	var err error

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}
	cfg.MaxDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}
	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}
	cfg.Delay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}
	cfg.RateLimit, err = cmd.Flags().GetFloat64("rate")
	if err != nil {
		return nil, err
	}
	cfg.ExcludePatterns, err = cmd.Flags().GetStringSlice("exclude")
	if err != nil {
		return nil, err
	}
	cfg.FollowPatterns, err = cmd.Flags().GetStringSlice("follow")
	if err != nil {
		return nil, err
	}
	cfg.SharedThreshold, err = cmd.Flags().GetFloat64("threshold")
	if err != nil {
		return nil, err
	}
	cfg.Tags, err = cmd.Flags().GetStringSlice("tags")
	if err != nil {
		return nil, err
	}
	cfg.EvaluatorTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	cfg.SettleDelay, err = cmd.Flags().GetDuration("settle")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg.DBDir, err = cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}
	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// Load per-site overrides from the config file. An explicitly
	// named file must exist; the default search may come up empty.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		cfg.Sites, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	} else {
		cfg.Sites = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runScan opens the store and dispatches to sequential or batch
// scanning.
func runScan(ctx context.Context, cfg *config.Config, targets []string, batch int, logger *slog.Logger) error {
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	logger.Info("database opened", slog.String("dir", cfg.DBDir))

	if len(targets) > 1 && batch > 1 {
		return runBatchScan(ctx, cfg, targets, batch, store, logger)
	}
	return runSequentialScan(ctx, cfg, targets, store, logger)
}

// runSequentialScan scans targets one at a time, applying per-site
// configuration overrides.
func runSequentialScan(ctx context.Context, cfg *config.Config, targets []string, store *database.Store, logger *slog.Logger) error {
	for _, target := range targets {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sc, err := newScanContext(ctx, cfg, store, target)
		if err != nil {
			return err
		}

		fmt.Printf("Scanning %s...\n", sc.Scan.RootURL)
		startTime := time.Now()

		p := pipelineForTarget(cfg, siteOverrides(cfg, sc.Scan.RootURL), store, logger)
		if err := p.Execute(ctx, sc); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error("scan failed",
				slog.String("target", target),
				slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "Scan error for %s: %v\n", target, err)
			continue
		}

		elapsed := time.Since(startTime)
		fmt.Printf("Scan completed in %s\n\n", elapsed.Round(time.Millisecond))

		if err := outputReport(cfg, sc.Summary); err != nil {
			logger.Error("report failed",
				slog.String("target", target),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// runBatchScan scans multiple sites concurrently using BatchProcessor.
//
// Batch mode applies the config file's defaults only; per-site
// overrides need per-target renderers and are sequential-only.
func runBatchScan(ctx context.Context, cfg *config.Config, targets []string, batch int, store *database.Store, logger *slog.Logger) error {
	fmt.Printf("Starting batch scan of %d sites (concurrency: %d)...\n\n", len(targets), batch)

	if cfg.Sites != nil && len(cfg.Sites.Sites) > 0 {
		logger.Warn("batch mode ignores site-specific overrides; use --batch 1 to apply them",
			slog.Int("site_count", len(cfg.Sites.Sites)))
		fmt.Fprintf(os.Stderr, "Warning: Site-specific configurations are ignored in batch mode. Use sequential mode (--batch 1) to apply per-site settings.\n\n")
	}

	startTime := time.Now()

	var defaults config.SiteConfig
	if cfg.Sites != nil {
		defaults = cfg.Sites.Defaults
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipelineForTarget(cfg, defaults, store, logger)
		},
		func(ctx context.Context, rootURL string) (*pipeline.ScanContext, error) {
			return newScanContext(ctx, cfg, store, rootURL)
		},
		pipeline.WithConcurrency(batch),
		pipeline.WithBatchLogger(logger),
	)

	results, err := bp.ProcessBatch(ctx, targets)

	for i, sc := range results {
		fmt.Printf("[%d/%d] %s: %s\n", i+1, len(results), sc.Scan.RootURL, sc.Scan.Status)
		if sc.Summary == nil {
			continue
		}
		if reportErr := outputReport(cfg, sc.Summary); reportErr != nil {
			logger.Error("report failed",
				slog.String("target", sc.Scan.RootURL),
				slog.String("error", reportErr.Error()))
		}
	}

	fmt.Printf("\nBatch scan completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	return err
}

// newScanContext validates one target, merges its site overrides into
// the scan parameters, and registers the new scan in the store.
func newScanContext(ctx context.Context, cfg *config.Config, store *database.Store, target string) (*pipeline.ScanContext, error) {
	rootURL, err := urlutil.Normalize(target)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL %q: %w", target, err)
	}

	scanCfg := cfg.ScanConfig()
	site := siteOverrides(cfg, rootURL)
	if site.MaxDepth > 0 {
		scanCfg.MaxDepth = site.MaxDepth
	}
	if site.MaxPages > 0 {
		scanCfg.MaxPages = site.MaxPages
	}
	if len(site.ExcludePatterns) > 0 {
		scanCfg.ExcludePatterns = append(append([]string{}, scanCfg.ExcludePatterns...), site.ExcludePatterns...)
	}
	if len(site.FollowPatterns) > 0 {
		scanCfg.FollowPatterns = site.FollowPatterns
	}

	scan := model.NewScan(rootURL, scanCfg)
	if err := store.CreateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to register scan: %w", err)
	}
	return pipeline.NewScanContext(scan, store), nil
}

// siteOverrides returns the merged site configuration for a target URL.
func siteOverrides(cfg *config.Config, rawURL string) config.SiteConfig {
	if cfg.Sites == nil {
		return config.SiteConfig{}
	}
	host, err := urlutil.Host(rawURL)
	if err != nil {
		return cfg.Sites.Defaults
	}
	return cfg.Sites.SiteConfig(host)
}

// pipelineForTarget assembles the crawl → scan → analyze pipeline for
// one site. Each phase acquires its own renderer carrying the site's
// request headers.
func pipelineForTarget(cfg *config.Config, site config.SiteConfig, store *database.Store, logger *slog.Logger) *pipeline.Pipeline {
	renderers := func() (render.Renderer, error) {
		opts := []render.HTTPOption{
			render.WithRateLimit(cfg.RateLimit),
		}
		if headers := site.RequestHeaders(); headers != nil {
			opts = append(opts, render.WithHeaders(headers))
		}
		return render.NewHTTPRenderer(opts...), nil
	}

	sink := progress.NewSlogSink(logger)

	scanStep := pipeline.NewScanStep(renderers, store, sink, logger)
	scanStep.EvaluatorTimeout = cfg.EvaluatorTimeout
	scanStep.FingerprintTimeout = cfg.FingerprintTimeout
	scanStep.SettleDelay = cfg.SettleDelay
	scanStep.TagFilter = cfg.Tags

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(
		pipeline.NewCrawlStep(renderers, store, sink, logger),
		scanStep,
		pipeline.NewAnalyzeStep(store, sink, logger),
	)
	return p
}

// outputReport renders the summary in the requested format to the
// configured destination.
func outputReport(cfg *config.Config, summary *model.Summary) error {
	if summary == nil {
		return errors.New("no summary to report")
	}

	var output *os.File
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}

	_, err := writer.Write(summary)
	return err
}
