package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus represents the lifecycle state of a scan.
//
// The state machine is strictly linear:
//
//	pending → crawling → scanning → analyzing → complete
//
// with `failed` reachable from any non-terminal state. A cancelled scan
// finishes as `failed` with an explanatory error message rather than
// introducing a separate terminal state.
type ScanStatus string

const (
	// ScanStatusPending means the scan has been created but no phase
	// has started yet.
	ScanStatusPending ScanStatus = "pending"

	// ScanStatusCrawling means page discovery is in progress.
	ScanStatusCrawling ScanStatus = "crawling"

	// ScanStatusScanning means accessibility evaluation is in progress.
	ScanStatusScanning ScanStatus = "scanning"

	// ScanStatusAnalyzing means cross-page deduplication is in progress.
	ScanStatusAnalyzing ScanStatus = "analyzing"

	// ScanStatusComplete is the successful terminal state.
	ScanStatusComplete ScanStatus = "complete"

	// ScanStatusFailed is the unsuccessful terminal state. Failed scans
	// are never retried automatically; the user must submit a new scan.
	ScanStatusFailed ScanStatus = "failed"
)

// validTransitions lists the permitted status transitions.
// Every non-terminal state may also transition to failed.
var validTransitions = map[ScanStatus][]ScanStatus{
	ScanStatusPending:   {ScanStatusCrawling, ScanStatusFailed},
	ScanStatusCrawling:  {ScanStatusScanning, ScanStatusFailed},
	ScanStatusScanning:  {ScanStatusAnalyzing, ScanStatusFailed},
	ScanStatusAnalyzing: {ScanStatusComplete, ScanStatusFailed},
}

// CanTransition reports whether a scan may move from its current status
// to the target status.
func (s ScanStatus) CanTransition(target ScanStatus) bool {
	for _, next := range validTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is a final state.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusComplete || s == ScanStatusFailed
}

// ScanConfig holds the per-scan tunables. It is persisted with the scan
// so a stored scan can be re-analyzed or re-rendered with the exact
// parameters it originally ran with.
type ScanConfig struct {
	// MaxPages caps the total number of pages discovered by the crawl.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// MaxDepth caps the link distance from the root URL.
	// Depth 0 means only the root page itself.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Concurrency is the number of pages processed in parallel within
	// a crawl or scan batch.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Delay is the politeness pause between consecutive batches.
	Delay time.Duration `json:"delay" yaml:"delay"`

	// ExcludePatterns are wildcard URL path patterns that the crawler
	// skips (e.g. "/logout*", "*.pdf").
	ExcludePatterns []string `json:"exclude_patterns,omitempty" yaml:"exclude_patterns,omitempty"`

	// FollowPatterns, when non-empty, restrict the crawl to URLs
	// matching at least one pattern. The root URL is always visited.
	FollowPatterns []string `json:"follow_patterns,omitempty" yaml:"follow_patterns,omitempty"`

	// SharedThreshold is the fraction of total pages a region
	// fingerprint must span to qualify as a shared component.
	// The qualifying page count is ceil(totalPages * SharedThreshold).
	SharedThreshold float64 `json:"shared_threshold" yaml:"shared_threshold"`

	// PatternCap limits how many URLs matching the same path template
	// (e.g. "/news?id=N") the crawler visits. This is a crawl-budget
	// heuristic, not a correctness requirement.
	PatternCap int `json:"pattern_cap" yaml:"pattern_cap"`

	// ViewportWidth and ViewportHeight describe the rendering viewport.
	ViewportWidth  int `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int `json:"viewport_height" yaml:"viewport_height"`
}

// Scan represents one crawl+scan+dedup run against a single root URL.
// A scan exclusively owns its pages, issues, and groups: deleting a
// scan cascades to all of them.
type Scan struct {
	// ID is the scan's unique identifier (UUID).
	ID string `json:"id"`

	// RootURL is the normalized starting URL of the crawl.
	RootURL string `json:"root_url"`

	// Status is the scan's position in the lifecycle state machine.
	Status ScanStatus `json:"status"`

	// Config holds the parameters the scan ran with.
	Config ScanConfig `json:"config"`

	// CreatedAt is when the scan was submitted.
	CreatedAt time.Time `json:"created_at"`

	// FinishedAt is when the scan reached a terminal state.
	// Zero until then.
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// TotalPages is the number of pages discovered by the crawl.
	TotalPages int `json:"total_pages"`

	// PagesScanned is the number of pages that completed evaluation.
	PagesScanned int `json:"pages_scanned"`

	// PagesErrored is the number of pages that failed to load or
	// evaluate.
	PagesErrored int `json:"pages_errored"`

	// TotalIssuesRaw is the per-page occurrence count before
	// deduplication.
	TotalIssuesRaw int `json:"total_issues_raw"`

	// TotalIssuesDeduplicated is the unique issue count after
	// deduplication. When deduplication is skipped or fails, this
	// equals TotalIssuesRaw; the mismatch with GroupCount == 0 is the
	// user-visible signal that results are ungrouped.
	TotalIssuesDeduplicated int `json:"total_issues_deduplicated"`

	// GroupCount is the number of shared-component groups produced.
	GroupCount int `json:"group_count"`

	// Score is the 0-100 accessibility score computed from the
	// deduplicated issue set.
	Score float64 `json:"score"`

	// ErrorMessage describes why the scan failed. Empty on success.
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewScan creates a pending scan for the given root URL.
func NewScan(rootURL string, cfg ScanConfig) *Scan {
	return &Scan{
		ID:        uuid.NewString(),
		RootURL:   rootURL,
		Status:    ScanStatusPending,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
}

// Transition moves the scan to the target status if the transition is
// valid. It returns false and leaves the scan untouched otherwise.
func (s *Scan) Transition(target ScanStatus) bool {
	if !s.Status.CanTransition(target) {
		return false
	}
	s.Status = target
	if target.IsTerminal() {
		s.FinishedAt = time.Now().UTC()
	}
	return true
}

// Fail marks the scan failed with the given message. Failing is allowed
// from any non-terminal state.
func (s *Scan) Fail(msg string) {
	if s.Status.IsTerminal() {
		return
	}
	s.Status = ScanStatusFailed
	s.ErrorMessage = msg
	s.FinishedAt = time.Now().UTC()
}
