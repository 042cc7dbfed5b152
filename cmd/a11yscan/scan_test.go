package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/a11yscan/a11yscan/internal/config"
	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/model"
)

// TestNewScanCmd tests the scan command creation.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "scan [url...]" {
			t.Errorf("expected use 'scan [url...]', got %q", cmd.Use)
		}
	})

	t.Run("has short description", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
	})

	t.Run("has long description", func(t *testing.T) {
		t.Parallel()
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	flagTests := []struct {
		name      string
		shorthand string
	}{
		{name: "max-pages", shorthand: "p"},
		{name: "depth", shorthand: "d"},
		{name: "concurrency", shorthand: "n"},
		{name: "delay", shorthand: ""},
		{name: "rate", shorthand: ""},
		{name: "exclude", shorthand: ""},
		{name: "follow", shorthand: ""},
		{name: "threshold", shorthand: ""},
		{name: "tags", shorthand: ""},
		{name: "timeout", shorthand: "t"},
		{name: "settle", shorthand: ""},
		{name: "batch", shorthand: "b"},
		{name: "config", shorthand: "c"},
		{name: "db-dir", shorthand: ""},
		{name: "json", shorthand: "j"},
		{name: "markdown", shorthand: "m"},
		{name: "output", shorthand: "o"},
	}
	for _, tt := range flagTests {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
		})
	}
}

// TestBuildConfig tests flag-to-config mapping.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults applied", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("ParseFlags() error = %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.RootURL != "https://example.com" {
			t.Errorf("root URL = %q, want https://example.com", cfg.RootURL)
		}
		if cfg.MaxPages != config.DefaultMaxPages {
			t.Errorf("max pages = %d, want %d", cfg.MaxPages, config.DefaultMaxPages)
		}
		if cfg.SharedThreshold != config.DefaultSharedThreshold {
			t.Errorf("threshold = %v, want %v", cfg.SharedThreshold, config.DefaultSharedThreshold)
		}
		if cfg.DBDir == "" {
			t.Error("expected default database directory")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		err := cmd.ParseFlags([]string{
			"--max-pages", "7",
			"--depth", "1",
			"--threshold", "0.3",
			"--exclude", "*/logout*",
			"--json",
			"--output", "out.json",
		})
		if err != nil {
			t.Fatalf("ParseFlags() error = %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"https://example.com"})
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.MaxPages != 7 {
			t.Errorf("max pages = %d, want 7", cfg.MaxPages)
		}
		if cfg.MaxDepth != 1 {
			t.Errorf("max depth = %d, want 1", cfg.MaxDepth)
		}
		if cfg.SharedThreshold != 0.3 {
			t.Errorf("threshold = %v, want 0.3", cfg.SharedThreshold)
		}
		if len(cfg.ExcludePatterns) != 1 || cfg.ExcludePatterns[0] != "*/logout*" {
			t.Errorf("exclude patterns = %v, want [*/logout*]", cfg.ExcludePatterns)
		}
		if !cfg.JSONReport {
			t.Error("expected JSON report enabled")
		}
		if cfg.ReportFile != "out.json" {
			t.Errorf("report file = %q, want out.json", cfg.ReportFile)
		}
	})

	t.Run("missing explicit config file rejected", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"--config", "/nonexistent/.a11yscan"}); err != nil {
			t.Fatalf("ParseFlags() error = %v", err)
		}

		if _, err := buildConfig(cmd, []string{"https://example.com"}); err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})
}

func TestSiteOverrides(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Sites = &config.File{
		Defaults: config.SiteConfig{MaxDepth: 2},
		Sites: map[string]config.SiteConfig{
			"intranet.example.com": {Cookie: "session=abc", MaxPages: 9},
		},
	}

	t.Run("known host merges overrides", func(t *testing.T) {
		t.Parallel()
		site := siteOverrides(cfg, "https://intranet.example.com/start")
		if site.Cookie != "session=abc" {
			t.Errorf("cookie = %q, want session=abc", site.Cookie)
		}
		if site.MaxPages != 9 {
			t.Errorf("max pages = %d, want 9", site.MaxPages)
		}
		if site.MaxDepth != 2 {
			t.Errorf("max depth = %d, want 2 (inherited default)", site.MaxDepth)
		}
	})

	t.Run("unknown host falls back to defaults", func(t *testing.T) {
		t.Parallel()
		site := siteOverrides(cfg, "https://other.example.com/")
		if site.Cookie != "" {
			t.Errorf("cookie = %q, want empty", site.Cookie)
		}
		if site.MaxDepth != 2 {
			t.Errorf("max depth = %d, want 2", site.MaxDepth)
		}
	})
}

// testSite serves a two-page site whose shared header carries an
// unlabeled image.
func testSite(t *testing.T) *httptest.Server {
	t.Helper()

	const tmpl = `<html lang="en"><head><title>%s</title></head><body>
<header><img src="/logo.png"><nav><a href="/about">About</a></nav></header>
<main>%s</main>
</body></html>`

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, tmpl, "Home", "<p>welcome</p>")
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, tmpl, "About", "<p>about us</p>")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestRunScanEndToEnd drives a full scan against a local test server,
// then re-renders it through the report path.
func TestRunScanEndToEnd(t *testing.T) {
	t.Parallel()

	server := testSite(t)
	tmp := t.TempDir()

	cfg := config.NewConfig()
	cfg.RootURL = server.URL
	cfg.MaxPages = 10
	cfg.Concurrency = 2
	cfg.Delay = 0
	cfg.SettleDelay = 0
	cfg.EvaluatorTimeout = 10 * time.Second
	cfg.DBDir = tmp
	cfg.JSONReport = true
	cfg.ReportFile = filepath.Join(tmp, "report.json")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runScan(context.Background(), cfg, []string{server.URL}, 1, logger); err != nil {
		t.Fatalf("runScan() error = %v", err)
	}

	// The stored scan must be complete with both pages recorded.
	store, err := database.Open(tmp, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer store.Close()

	scan, err := store.LatestScan(context.Background())
	if err != nil {
		t.Fatalf("LatestScan() error = %v", err)
	}
	if scan.Status != model.ScanStatusComplete {
		t.Errorf("scan status = %s (%s), want complete", scan.Status, scan.ErrorMessage)
	}
	if scan.TotalPages != 2 {
		t.Errorf("total pages = %d, want 2", scan.TotalPages)
	}
	if scan.PagesScanned != 2 {
		t.Errorf("pages scanned = %d, want 2", scan.PagesScanned)
	}
	if scan.TotalIssuesRaw == 0 {
		t.Error("expected raw issues from the unlabeled header image")
	}

	// The JSON report envelope must be well-formed.
	data, err := os.ReadFile(cfg.ReportFile)
	if err != nil {
		t.Fatalf("failed to read report file: %v", err)
	}
	var out struct {
		Version string         `json:"version"`
		Summary *model.Summary `json:"summary"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if out.Summary == nil || out.Summary.ScanID != scan.ID {
		t.Errorf("report summary scan id mismatch: %+v", out.Summary)
	}

	// Re-rendering with reanalysis must succeed against the same store.
	reportCfg := config.NewConfig()
	reportCfg.DBDir = tmp
	reportCfg.ReportFile = filepath.Join(tmp, "report.txt")
	if err := runReport(context.Background(), reportCfg, scan.ID, true, 0.5, logger); err != nil {
		t.Fatalf("runReport() error = %v", err)
	}
	if _, err := os.Stat(reportCfg.ReportFile); err != nil {
		t.Errorf("report file not written: %v", err)
	}
}
