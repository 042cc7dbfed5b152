package model

import "time"

// Summary is the report-facing aggregate of a completed scan.
//
// The raw and deduplicated issue counts are both first-class fields:
// when deduplication was skipped or failed, the two are equal and
// GroupCount is zero, which is how observers can tell the issue set is
// ungrouped.
type Summary struct {
	// ScanID identifies the scan the summary describes.
	ScanID string `json:"scan_id"`

	// RootURL is the scanned site's root.
	RootURL string `json:"root_url"`

	// Status is the scan's terminal status.
	Status ScanStatus `json:"status"`

	// CreatedAt and FinishedAt bound the scan run.
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// TotalPages, PagesScanned, PagesErrored describe crawl/scan
	// coverage.
	TotalPages   int `json:"total_pages"`
	PagesScanned int `json:"pages_scanned"`
	PagesErrored int `json:"pages_errored"`

	// TotalIssuesRaw is the per-page occurrence count.
	TotalIssuesRaw int `json:"total_issues_raw"`

	// TotalIssuesDeduplicated is the unique issue count after
	// cross-page grouping.
	TotalIssuesDeduplicated int `json:"total_issues_deduplicated"`

	// IssuesBySeverity counts deduplicated issues per severity name.
	IssuesBySeverity map[string]int `json:"issues_by_severity"`

	// GroupCount is the number of shared-component groups.
	GroupCount int `json:"group_count"`

	// Groups lists the groups for detailed rendering.
	Groups []*ComponentGroup `json:"groups,omitempty"`

	// Score is the 0-100 accessibility score.
	Score float64 `json:"score"`

	// ErrorMessage is set when the scan failed.
	ErrorMessage string `json:"error_message,omitempty"`
}
