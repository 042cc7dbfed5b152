package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestValidate tests synchronous configuration rejection.
func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		c := NewConfig()
		c.RootURL = "https://example.com"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid config", func(_ *Config) {}, nil},
		{"missing root URL", func(c *Config) { c.RootURL = "" }, ErrNoRootURL},
		{"relative root URL", func(c *Config) { c.RootURL = "/path" }, ErrInvalidRootURL},
		{"ftp root URL", func(c *Config) { c.RootURL = "ftp://example.com" }, ErrInvalidRootURL},
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }, ErrInvalidMaxPages},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }, ErrInvalidMaxDepth},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative delay", func(c *Config) { c.Delay = -1 }, ErrInvalidDelay},
		{"zero threshold", func(c *Config) { c.SharedThreshold = 0 }, ErrInvalidThreshold},
		{"threshold above one", func(c *Config) { c.SharedThreshold = 1.5 }, ErrInvalidThreshold},
		{"conflicting formats", func(c *Config) { c.JSONReport = true; c.MarkdownReport = true }, ErrConflictingReportFormats},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestSiteConfigMerge tests defaults overlay.
func TestSiteConfigMerge(t *testing.T) {
	t.Parallel()

	f := &File{
		Defaults: SiteConfig{
			Headers:         map[string]string{"X-Scanner": "a11yscan"},
			ExcludePatterns: []string{"/logout*"},
			FollowPatterns:  []string{"/docs/*"},
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				Cookie:          "session=abc",
				MaxDepth:        5,
				Headers:         map[string]string{"Authorization": "Bearer t"},
				ExcludePatterns: []string{"/admin/*"},
				FollowPatterns:  []string{"/api/*", "/guide/*"},
			},
		},
	}

	merged := f.SiteConfig("example.com")
	if merged.Cookie != "session=abc" {
		t.Errorf("expected site cookie, got %q", merged.Cookie)
	}
	if merged.MaxDepth != 5 {
		t.Errorf("expected overridden depth 5, got %d", merged.MaxDepth)
	}
	if merged.Headers["X-Scanner"] != "a11yscan" || merged.Headers["Authorization"] != "Bearer t" {
		t.Errorf("expected merged headers, got %v", merged.Headers)
	}
	if len(merged.ExcludePatterns) != 2 {
		t.Errorf("expected appended exclude patterns, got %v", merged.ExcludePatterns)
	}
	if len(merged.FollowPatterns) != 2 || merged.FollowPatterns[0] != "/api/*" {
		t.Errorf("expected site follow patterns to replace defaults, got %v", merged.FollowPatterns)
	}

	// Unknown host gets defaults only.
	fallback := f.SiteConfig("other.com")
	if fallback.Cookie != "" || len(fallback.ExcludePatterns) != 1 {
		t.Errorf("expected plain defaults for unknown host, got %+v", fallback)
	}
}

// TestRequestHeaders tests the cookie/header flattening.
func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	s := SiteConfig{Cookie: "a=1", Headers: map[string]string{"X-Test": "y"}}
	h := s.RequestHeaders()
	if h["Cookie"] != "a=1" || h["X-Test"] != "y" {
		t.Errorf("unexpected headers: %v", h)
	}

	if (SiteConfig{}).RequestHeaders() != nil {
		t.Error("empty site config should produce nil headers")
	}
}

// TestLoadConfigFile tests YAML parsing and the not-found sentinel.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".a11yscan")
	content := `
sites:
  example.com:
    cookie: "session=abc"
    maxDepth: 4
    excludePatterns:
      - "/admin/*"
defaults:
  headers:
    X-Scanner: a11yscan
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	f, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	site := f.SiteConfig("example.com")
	if site.Cookie != "session=abc" || site.MaxDepth != 4 {
		t.Errorf("unexpected site config: %+v", site)
	}

	if _, err := LoadConfigFile(filepath.Join(dir, "missing")); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}
