package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/a11yscan/a11yscan/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent
// markdown generation which provides:
//  1. Type-safe markdown generation
//  2. Support for tables, lists, and code blocks
//  3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeSeverities(md, summary)
	w.writeGroups(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with scan information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.Summary) {
	md.H1("Accessibility Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + summary.RootURL + "`"},
			{"Scan Date", summary.CreatedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages Scanned", fmt.Sprintf("%d of %d discovered", summary.PagesScanned, summary.TotalPages)},
			{"Pages Errored", strconv.Itoa(summary.PagesErrored)},
			{"Status", w.statusText(summary)},
			{"Score", fmt.Sprintf("**%.1f / 100**", summary.Score)},
		},
	})
	md.PlainText("")
}

// statusText returns the status cell based on the scan outcome.
func (w *MarkdownWriter) statusText(summary *model.Summary) string {
	if summary.Status == model.ScanStatusFailed {
		return "❌ Failed - " + summary.ErrorMessage
	}
	return "✅ Complete"
}

// writeSeverities writes the severity summary section.
func (w *MarkdownWriter) writeSeverities(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Issue Summary")
	md.PlainText("")

	icons := map[model.Severity]string{
		model.SeverityCritical: "🔴 Critical",
		model.SeveritySerious:  "🟠 Serious",
		model.SeverityModerate: "🟡 Moderate",
		model.SeverityMinor:    "🔵 Minor",
	}

	rows := make([][]string, 0, len(severityOrder)+1)
	for _, severity := range severityOrder {
		rows = append(rows, []string{
			icons[severity],
			strconv.Itoa(summary.IssuesBySeverity[severity.String()]),
		})
	}
	rows = append(rows, []string{"**Unique total**",
		fmt.Sprintf("**%d** (%d raw occurrences)",
			summary.TotalIssuesDeduplicated, summary.TotalIssuesRaw)})

	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if summary.TotalIssuesDeduplicated > 0 {
		w.writePieChart(md, summary)
	}
	w.writeAlert(md, summary)
}

// writePieChart writes a mermaid pie chart for severity distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Issue Severity Distribution"),
		piechart.WithShowData(true),
	)

	for _, severity := range severityOrder {
		if count := summary.IssuesBySeverity[severity.String()]; count > 0 {
			label := strings.ToUpper(severity.String()[:1]) + severity.String()[1:]
			chart.LabelAndIntValue(label, uint64(count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on severity counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, summary *model.Summary) {
	critical := summary.IssuesBySeverity[model.SeverityCritical.String()]
	serious := summary.IssuesBySeverity[model.SeveritySerious.String()]
	moderate := summary.IssuesBySeverity[model.SeverityModerate.String()]

	switch {
	case critical > 0:
		md.Cautionf(
			"Critical accessibility barriers detected! %d critical issue(s) block assistive technology users.",
			critical,
		)
	case serious > 0:
		md.Warningf(
			"Serious accessibility issues detected. %d serious issue(s) should be addressed.",
			serious,
		)
	case moderate > 0:
		md.Importantf(
			"Moderate accessibility issues found. %d issue(s) degrade the experience for some users.",
			moderate,
		)
	case summary.TotalIssuesDeduplicated > 0:
		md.Note("Only minor accessibility issues detected.")
	default:
		md.Tip("No accessibility issues detected.")
	}
	md.PlainText("")
}

// writeGroups writes the shared-component group section.
func (w *MarkdownWriter) writeGroups(md *markdown.Markdown, summary *model.Summary) {
	md.H2("Shared Components")
	md.PlainText("")

	if len(summary.Groups) == 0 {
		md.PlainText("No shared components detected.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(summary.Groups))
	for i, g := range summary.Groups {
		rows[i] = []string{
			g.Label,
			g.Kind,
			strconv.Itoa(g.PageCount),
			strconv.Itoa(g.IssueCount),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Component", "Kind", "Pages", "Unique Issues"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, g := range summary.Groups {
		if len(g.PageURLs) > 0 {
			md.Details(g.Label, truncateString(strings.Join(g.PageURLs, ", "), 500))
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [a11yscan](https://github.com/a11yscan/a11yscan)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
