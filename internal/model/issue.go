package model

import "github.com/google/uuid"

// Issue represents one rule violation on one DOM node of one page.
//
// Issues are the raw unit the deduplication engine consumes. Two issues
// with the same DedupKey on pages that share a template region describe
// the same underlying defect; the engine collapses them into a group
// and marks all but the first occurrence as grouped duplicates.
type Issue struct {
	// ID is the issue's unique identifier (UUID).
	ID string `json:"id"`

	// ScanID identifies the owning scan.
	ScanID string `json:"scan_id"`

	// PageID identifies the page the violation was observed on.
	// This is a back-reference, not ownership: the scan owns the issue.
	PageID string `json:"page_id"`

	// RuleID is the identifier of the violated rule (e.g. "image-alt").
	RuleID string `json:"rule_id"`

	// Description is the human-readable explanation of the rule.
	Description string `json:"description"`

	// HelpURL links to remediation documentation.
	HelpURL string `json:"help_url,omitempty"`

	// Severity is the four-tier impact classification.
	Severity Severity `json:"severity"`

	// Target is the CSS selector locating the violating node.
	Target string `json:"target"`

	// HTML is the normalized outer HTML snippet of the violating node.
	HTML string `json:"html,omitempty"`

	// Tags are the guideline tags attached by the rule engine
	// (e.g. "wcag2a", "wcag111").
	Tags []string `json:"tags,omitempty"`

	// FailureSummary explains what failed for this specific node.
	FailureSummary string `json:"failure_summary,omitempty"`

	// Region is the landmark region the target selector was classified
	// into, empty when the node sits outside every landmark.
	Region Region `json:"region,omitempty"`

	// Fingerprint is the digest of that region on the issue's page,
	// empty when Region is empty or the page has no digest for it.
	// The (Region, Fingerprint) pair is the key for shared-component
	// grouping.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Grouped reports whether the deduplication engine assigned the
	// issue to a group. Once set, GroupID never changes within the
	// same scan.
	Grouped bool `json:"grouped"`

	// GroupID identifies the owning group. Empty when ungrouped.
	GroupID string `json:"group_id,omitempty"`
}

// NewIssue creates an ungrouped issue for the given scan and page.
func NewIssue(scanID, pageID string) *Issue {
	return &Issue{
		ID:     uuid.NewString(),
		ScanID: scanID,
		PageID: pageID,
	}
}

// DedupKey returns the identity key used to collapse occurrences of the
// same defect: rule id plus target selector.
func (i *Issue) DedupKey() string {
	return i.RuleID + "|" + i.Target
}

// AssignGroup records the issue's group membership. Assignment is
// append-only: an issue already in a group keeps it.
func (i *Issue) AssignGroup(groupID string) bool {
	if i.Grouped {
		return false
	}
	i.Grouped = true
	i.GroupID = groupID
	return true
}
