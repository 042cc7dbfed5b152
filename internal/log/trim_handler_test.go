package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestTrimHandlerTruncatesLongValues tests that oversized string
// attributes are cut.
func TestTrimHandlerTruncatesLongValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	huge := strings.Repeat("<div>", 500)
	logger.Info("issue recorded", "html", huge)

	out := buf.String()
	if !strings.Contains(out, "truncated") {
		t.Error("expected truncation marker in output")
	}
	if strings.Contains(out, huge) {
		t.Error("full oversized value leaked into log output")
	}
}

// TestTrimHandlerKeepsShortValues tests that normal attributes pass
// through untouched.
func TestTrimHandlerKeepsShortValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	logger.Info("page scanned", "url", "https://example.com/about", "issues", 3)

	out := buf.String()
	if !strings.Contains(out, "https://example.com/about") {
		t.Error("short value should pass through unmodified")
	}
	if strings.Contains(out, "truncated") {
		t.Error("short values must not be marked as truncated")
	}
}

// TestTrimHandlerGroups tests recursion into attribute groups.
func TestTrimHandlerGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, true)

	logger.Info("grouped",
		slog.Group("node",
			"selector", strings.Repeat("div > ", 100),
			"rule", "image-alt",
		),
	)

	out := buf.String()
	if !strings.Contains(out, "truncated") {
		t.Error("expected truncation inside group")
	}
	if !strings.Contains(out, "image-alt") {
		t.Error("short group member must survive")
	}
}

// TestNewLoggerLevels tests the verbose switch.
func TestNewLoggerLevels(t *testing.T) {
	t.Parallel()

	var quiet bytes.Buffer
	NewLogger(&quiet, false).Info("hidden")
	if quiet.Len() != 0 {
		t.Error("info should be suppressed when not verbose")
	}

	var loud bytes.Buffer
	NewLogger(&loud, true).Debug("visible")
	if loud.Len() == 0 {
		t.Error("debug should be emitted when verbose")
	}
}
