package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/a11yscan/a11yscan/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
//  1. It works in all terminals without compatibility issues
//  2. It's easier to pipe to files or other tools
//  3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no findings are shown.
	showEmpty bool

	// verbose enables per-group page URL listings.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with per-group page listings.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeSeverities(&sb, summary)
	w.writeGroups(&sb, summary)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with scan information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      ACCESSIBILITY SCAN REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Site:           %s\n", summary.RootURL))
	sb.WriteString(fmt.Sprintf("Scan Date:      %s\n", summary.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Pages Scanned:  %d of %d discovered (%d errored)\n",
		summary.PagesScanned, summary.TotalPages, summary.PagesErrored))

	if summary.Status == model.ScanStatusFailed {
		sb.WriteString(fmt.Sprintf("Status:         FAILED - %s\n", summary.ErrorMessage))
	} else {
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString(fmt.Sprintf("Score:          %.1f / 100\n", summary.Score))

	sb.WriteString("\n")
}

// writeSeverities writes the severity summary section.
func (w *SimpleWriter) writeSeverities(sb *strings.Builder, summary *model.Summary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("ISSUE SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, severity := range severityOrder {
		sb.WriteString(fmt.Sprintf("  %-9s %d\n",
			strings.ToUpper(severity.String())+":",
			summary.IssuesBySeverity[severity.String()]))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("  UNIQUE:   %d issues (%d raw occurrences)\n",
		summary.TotalIssuesDeduplicated, summary.TotalIssuesRaw))
	if summary.GroupCount == 0 && summary.TotalIssuesRaw != summary.TotalIssuesDeduplicated {
		sb.WriteString("  NOTE:     results are ungrouped; deduplication did not run\n")
	}
	sb.WriteString("\n")
}

// writeGroups writes the shared-component group section.
func (w *SimpleWriter) writeGroups(sb *strings.Builder, summary *model.Summary) {
	if len(summary.Groups) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SHARED COMPONENTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(summary.Groups) == 0 {
		sb.WriteString("  No shared components detected\n\n")
		return
	}

	for _, g := range summary.Groups {
		sb.WriteString(fmt.Sprintf("  [%s] %s\n", g.Kind, g.Label))
		sb.WriteString(fmt.Sprintf("    Pages: %d, unique issues: %d\n", g.PageCount, g.IssueCount))
		if w.verbose {
			for _, url := range g.PageURLs {
				sb.WriteString(fmt.Sprintf("      - %s\n", url))
			}
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by a11yscan\n")
	sb.WriteString("https://github.com/a11yscan/a11yscan\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
