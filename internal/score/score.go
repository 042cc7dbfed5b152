// Package score turns a scan's deduplicated findings into the
// report-facing summary and the 0-100 site score.
package score

import (
	"math"

	"github.com/a11yscan/a11yscan/internal/model"
)

// Summarize aggregates a scan's results. The severity breakdown and the
// score are computed over the deduplicated issue set: one entry per
// ungrouped issue plus one entry per distinct (rule, selector) key
// within each group, so a header defect repeated on fifty pages weighs
// once.
func Summarize(scan *model.Scan, issues []*model.Issue, groups []*model.ComponentGroup) *model.Summary {
	summary := &model.Summary{
		ScanID:                  scan.ID,
		RootURL:                 scan.RootURL,
		Status:                  scan.Status,
		CreatedAt:               scan.CreatedAt,
		FinishedAt:              scan.FinishedAt,
		TotalPages:              scan.TotalPages,
		PagesScanned:            scan.PagesScanned,
		PagesErrored:            scan.PagesErrored,
		TotalIssuesRaw:          scan.TotalIssuesRaw,
		TotalIssuesDeduplicated: scan.TotalIssuesDeduplicated,
		GroupCount:              scan.GroupCount,
		Groups:                  groups,
		IssuesBySeverity:        make(map[string]int),
		ErrorMessage:            scan.ErrorMessage,
	}

	unique := deduplicated(issues)
	for _, issue := range unique {
		summary.IssuesBySeverity[issue.Severity.String()]++
	}
	summary.Score = Score(unique, scan.PagesScanned)

	return summary
}

// deduplicated reduces raw issues to the unique set: all ungrouped
// issues plus the first occurrence of each (group, rule, selector) key.
func deduplicated(issues []*model.Issue) []*model.Issue {
	seen := make(map[string]bool)
	unique := make([]*model.Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Grouped {
			key := issue.GroupID + "|" + issue.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		unique = append(unique, issue)
	}
	return unique
}

// Score computes the 0-100 accessibility score: the severity weights of
// the unique issues are summed, averaged over the scanned pages, and
// deducted from 100. A site with no scanned pages scores zero rather
// than dividing by zero; a clean site scores 100.
func Score(unique []*model.Issue, pagesScanned int) float64 {
	if pagesScanned == 0 {
		return 0
	}

	var weight float64
	for _, issue := range unique {
		weight += issue.Severity.Weight()
	}

	score := 100 - weight*10/float64(pagesScanned)
	if score < 0 {
		return 0
	}
	return math.Round(score*10) / 10
}
