package model

import "github.com/google/uuid"

// Group kind values for groups that are not tied to a single landmark
// region. Landmark-backed groups use the region name itself
// ("header", "nav", "footer", "aside") as their kind.
const (
	// GroupKindRepeatedElement marks a group formed from the same
	// (rule, selector) pair recurring across pages outside any
	// landmark region.
	GroupKindRepeatedElement = "repeated-element"

	// GroupKindDuplicatePage marks a group formed from issues shared
	// by pages serving content-identical documents under different
	// URLs.
	GroupKindDuplicatePage = "duplicate-page"
)

// ComponentGroup is the deduplication engine's unit of output: a set of
// issues that represent one reportable, page-spanning problem.
//
// Groups do not hold their issues; membership is recorded on each issue
// via Issue.GroupID, and the group's IssueCount is recomputed once after
// membership settles. Apart from that single recount, a group is
// immutable after creation.
type ComponentGroup struct {
	// ID is the group's unique identifier (UUID).
	ID string `json:"id"`

	// ScanID identifies the owning scan.
	ScanID string `json:"scan_id"`

	// Kind classifies the group: a landmark region name,
	// GroupKindRepeatedElement, or GroupKindDuplicatePage.
	Kind string `json:"kind"`

	// Fingerprint is the structural digest or signature string the
	// group was keyed on.
	Fingerprint string `json:"fingerprint"`

	// Label is the human-readable name shown in reports.
	Label string `json:"label"`

	// PageCount is the number of pages the group spans.
	PageCount int `json:"page_count"`

	// IssueCount is the number of unique issues in the group, counted
	// as distinct (rule id, selector) keys rather than raw occurrences.
	IssueCount int `json:"issue_count"`

	// PageURLs lists the URLs of the pages the group spans.
	PageURLs []string `json:"page_urls"`
}

// NewComponentGroup creates a group for the given scan.
func NewComponentGroup(scanID, kind, fingerprint, label string) *ComponentGroup {
	return &ComponentGroup{
		ID:          uuid.NewString(),
		ScanID:      scanID,
		Kind:        kind,
		Fingerprint: fingerprint,
		Label:       label,
	}
}
