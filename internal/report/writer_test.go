package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/a11yscan/a11yscan/internal/model"
)

func sampleSummary() *model.Summary {
	return &model.Summary{
		ScanID:                  "scan-1",
		RootURL:                 "https://example.com/",
		Status:                  model.ScanStatusComplete,
		CreatedAt:               time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		TotalPages:              12,
		PagesScanned:            10,
		PagesErrored:            2,
		TotalIssuesRaw:          40,
		TotalIssuesDeduplicated: 7,
		IssuesBySeverity: map[string]int{
			"critical": 2,
			"serious":  3,
			"moderate": 1,
			"minor":    1,
		},
		GroupCount: 2,
		Groups: []*model.ComponentGroup{
			{
				ID: "g1", ScanID: "scan-1", Kind: "header",
				Fingerprint: "abc", Label: "Shared header",
				PageCount: 10, IssueCount: 2,
				PageURLs: []string{"https://example.com/", "https://example.com/about"},
			},
			{
				ID: "g2", ScanID: "scan-1", Kind: model.GroupKindDuplicatePage,
				Fingerprint: "def", Label: "Duplicate pages: /faq, /faq.action",
				PageCount: 2, IssueCount: 1,
				PageURLs: []string{"https://example.com/faq", "https://example.com/faq.action"},
			},
		},
		Score: 72.5,
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("renders all sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(sampleSummary())
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if n != buf.Len() {
			t.Errorf("Write() returned %d bytes, buffer has %d", n, buf.Len())
		}

		out := buf.String()
		for _, want := range []string{
			"ACCESSIBILITY SCAN REPORT",
			"https://example.com/",
			"10 of 12 discovered (2 errored)",
			"Score:          72.5 / 100",
			"CRITICAL: 2",
			"SERIOUS:  3",
			"7 issues (40 raw occurrences)",
			"Shared header",
			"Duplicate pages: /faq, /faq.action",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q", want)
			}
		}
	})

	t.Run("verbose lists group pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(sampleSummary()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "- https://example.com/about") {
			t.Error("verbose output missing group page URLs")
		}
	})

	t.Run("failed scan shows error", func(t *testing.T) {
		t.Parallel()

		summary := sampleSummary()
		summary.Status = model.ScanStatusFailed
		summary.ErrorMessage = "renderer crashed"

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(summary); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "FAILED - renderer crashed") {
			t.Error("output missing failure status")
		}
	})

	t.Run("ungrouped result flagged", func(t *testing.T) {
		t.Parallel()

		summary := sampleSummary()
		summary.GroupCount = 0
		summary.Groups = nil
		summary.TotalIssuesDeduplicated = summary.TotalIssuesRaw - 1

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(summary); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "deduplication did not run") {
			t.Error("output missing ungrouped-result note")
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("round trips", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithVersion("1.2.3")).Write(sampleSummary()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		var decoded struct {
			Version string         `json:"version"`
			Summary *model.Summary `json:"summary"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded.Version != "1.2.3" {
			t.Errorf("version = %q, want 1.2.3", decoded.Version)
		}
		if decoded.Summary.TotalIssuesDeduplicated != 7 {
			t.Errorf("unique issue count = %d, want 7", decoded.Summary.TotalIssuesDeduplicated)
		}
		if len(decoded.Summary.Groups) != 2 {
			t.Errorf("groups = %d, want 2", len(decoded.Summary.Groups))
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(sampleSummary()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"summary\"") {
			t.Error("pretty-printed output is not indented")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewMarkdownWriter(&buf).Write(sampleSummary()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# Accessibility Scan Report",
		"## Issue Summary",
		"## Shared Components",
		"🔴 Critical",
		"Shared header",
		"pie",
		"**72.5 / 100**",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown output missing %q", want)
		}
	}
}

// failWriter always errors, for MultiWriter error propagation.
type failWriter struct{}

func (failWriter) Write(*model.Summary) (int, error) {
	return 0, errors.New("boom")
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var a, b bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))
		if _, err := mw.Write(sampleSummary()); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if a.Len() == 0 || b.Len() == 0 {
			t.Error("MultiWriter did not write to all destinations")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		mw := NewMultiWriter(failWriter{}, NewSimpleWriter(&buf))
		if _, err := mw.Write(sampleSummary()); err == nil {
			t.Fatal("Write() should propagate writer errors")
		}
		if buf.Len() != 0 {
			t.Error("MultiWriter continued after an error")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{in: "short", maxLen: 10, want: "short"},
		{in: "exactly-ten", maxLen: 11, want: "exactly-ten"},
		{in: "much longer than allowed", maxLen: 10, want: "much lo..."},
		{in: "abc", maxLen: 2, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}
