package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/urlutil"
)

// Default configuration values.
const (
	// DefaultMaxPages caps crawl size per site. Most templated sites
	// expose their full set of distinct layouts well within 100 pages.
	DefaultMaxPages = 100

	// DefaultMaxDepth is the link distance from the root URL.
	// Depth 3 reaches everything linked from section pages without
	// descending into deep archives.
	DefaultMaxDepth = 3

	// DefaultConcurrency is the number of pages processed in parallel
	// within one crawl or scan batch.
	DefaultConcurrency = 5

	// DefaultDelay is the politeness pause between batches.
	DefaultDelay = 500 * time.Millisecond

	// DefaultSharedThreshold is the fraction of a site's pages a region
	// fingerprint must span to count as a shared component. The 50%
	// majority rule is a policy choice, not a measured optimum; it is
	// kept configurable for that reason.
	DefaultSharedThreshold = 0.5

	// DefaultPatternCap limits visits to URLs sharing a path template
	// (e.g. /news?id=N). Three instances are enough to confirm a
	// template and feed deduplication.
	DefaultPatternCap = 3

	// DefaultEvaluatorTimeout bounds one rule-evaluation pass. The
	// evaluator has no intrinsic timeout, so an unbounded hang must be
	// converted to a recorded page error.
	DefaultEvaluatorTimeout = 60 * time.Second

	// DefaultFingerprintTimeout bounds one fingerprint-extraction pass,
	// independent of the evaluator's budget.
	DefaultFingerprintTimeout = 10 * time.Second

	// DefaultSettleDelay is the fixed quiescence window after
	// navigation before evaluation starts. A fixed window is used
	// instead of a network-idle policy, which is slow and unreliable
	// on dynamic sites.
	DefaultSettleDelay = 1 * time.Second

	// DefaultViewportWidth and DefaultViewportHeight describe the
	// rendering viewport.
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800

	// AppName is used for XDG directory paths.
	AppName = "a11yscan"
)

// Config holds all options for a scanner run. It is populated from CLI
// flags and the optional config file, then passed by value through the
// pipeline; there is no global state.
type Config struct {
	// RootURL is the starting URL of the scan. Required.
	RootURL string

	// MaxPages caps the number of pages discovered by the crawl.
	MaxPages int

	// MaxDepth caps the link distance from the root.
	MaxDepth int

	// Concurrency is the batch width for crawl and scan phases.
	Concurrency int

	// Delay is the pause between batches.
	Delay time.Duration

	// SharedThreshold is the shared-component page fraction (0..1].
	SharedThreshold float64

	// PatternCap limits same-template URL visits. Zero disables the cap.
	PatternCap int

	// ExcludePatterns are wildcard URL path patterns the crawler skips.
	ExcludePatterns []string

	// FollowPatterns, when non-empty, restrict the crawl to matching
	// URLs. The root URL is always visited.
	FollowPatterns []string

	// EvaluatorTimeout bounds one rule-evaluation pass per page.
	EvaluatorTimeout time.Duration

	// FingerprintTimeout bounds one fingerprint pass per page.
	FingerprintTimeout time.Duration

	// SettleDelay is the post-navigation quiescence window.
	SettleDelay time.Duration

	// ViewportWidth and ViewportHeight describe the rendering viewport.
	ViewportWidth  int
	ViewportHeight int

	// Tags filters the rule set by guideline tag (e.g. "wcag2a").
	// Empty runs every rule.
	Tags []string

	// RateLimit caps page fetches per second across a scan. Zero
	// disables limiting; the batch delay still applies.
	RateLimit float64

	// Verbose enables debug-level logging.
	Verbose bool

	// JSONReport and MarkdownReport select the output format.
	// Mutually exclusive; neither means the plain text report.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir is the directory for the SQLite database. Empty means the
	// XDG data directory.
	DBDir string

	// ConfigFilePath is an explicit config file path. Empty triggers
	// the default search (.a11yscan in cwd, then home).
	ConfigFilePath string

	// Sites holds per-site overrides loaded from the config file.
	Sites *File
}

// NewConfig returns a Config with all defaults applied.
func NewConfig() *Config {
	return &Config{
		MaxPages:           DefaultMaxPages,
		MaxDepth:           DefaultMaxDepth,
		Concurrency:        DefaultConcurrency,
		Delay:              DefaultDelay,
		SharedThreshold:    DefaultSharedThreshold,
		PatternCap:         DefaultPatternCap,
		EvaluatorTimeout:   DefaultEvaluatorTimeout,
		FingerprintTimeout: DefaultFingerprintTimeout,
		SettleDelay:        DefaultSettleDelay,
		ViewportWidth:      DefaultViewportWidth,
		ViewportHeight:     DefaultViewportHeight,
	}
}

// Validate checks the configuration synchronously, before any phase
// starts. It returns the first problem found as a sentinel error,
// optionally wrapped with context.
func (c *Config) Validate() error {
	if c.RootURL == "" {
		return ErrNoRootURL
	}
	if _, err := urlutil.Normalize(c.RootURL); err != nil {
		return ErrInvalidRootURL
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.SharedThreshold <= 0 || c.SharedThreshold > 1 {
		return ErrInvalidThreshold
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// ScanConfig converts the validated Config into the persisted per-scan
// parameter set.
func (c *Config) ScanConfig() model.ScanConfig {
	return model.ScanConfig{
		MaxPages:        c.MaxPages,
		MaxDepth:        c.MaxDepth,
		Concurrency:     c.Concurrency,
		Delay:           c.Delay,
		ExcludePatterns: c.ExcludePatterns,
		FollowPatterns:  c.FollowPatterns,
		SharedThreshold: c.SharedThreshold,
		PatternCap:      c.PatternCap,
		ViewportWidth:   c.ViewportWidth,
		ViewportHeight:  c.ViewportHeight,
	}
}

// XDGDataDir returns the XDG data directory for a11yscan
// (~/.local/share/a11yscan on Linux).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}
