package model

import (
	"time"

	"github.com/google/uuid"
)

// Region names a landmark area of a page. Regions are the unit of
// structural comparison: each page carries at most one fingerprint per
// region.
type Region string

const (
	// RegionHeader is the page banner (<header> or role="banner").
	RegionHeader Region = "header"

	// RegionNav is the navigation landmark (<nav> or role="navigation").
	RegionNav Region = "nav"

	// RegionFooter is the content footer (<footer> or role="contentinfo").
	RegionFooter Region = "footer"

	// RegionAside is complementary content (<aside> or role="complementary").
	RegionAside Region = "aside"

	// RegionMain is the main content landmark (<main> or role="main").
	RegionMain Region = "main"

	// RegionBody is the whole document body, used as the fallback when
	// a page has no <main> landmark.
	RegionBody Region = "body"
)

// Regions returns all landmark regions in a fixed order.
func Regions() []Region {
	return []Region{RegionHeader, RegionNav, RegionFooter, RegionAside, RegionMain, RegionBody}
}

// SharedRegions returns the regions eligible for shared-component
// grouping. Main and body are excluded: identical main content across
// pages indicates duplicate pages, not a shared template region, and is
// handled by the duplicate-page layer instead.
func SharedRegions() []Region {
	return []Region{RegionHeader, RegionNav, RegionFooter, RegionAside}
}

// PageStatus represents the per-page lifecycle within a scan.
type PageStatus string

const (
	// PageStatusPending means the page was discovered but not yet scanned.
	PageStatusPending PageStatus = "pending"

	// PageStatusScanning means evaluation is in progress.
	PageStatusScanning PageStatus = "scanning"

	// PageStatusComplete means evaluation finished successfully.
	// A complete page's fingerprint map is immutable from this point on.
	PageStatusComplete PageStatus = "complete"

	// PageStatusError means the page failed to load or evaluate.
	// Errored pages stay recorded so the crawler never re-queues them,
	// but they contribute no links and no issues.
	PageStatusError PageStatus = "error"
)

// IsTerminal reports whether the page reached a final state.
func (s PageStatus) IsTerminal() bool {
	return s == PageStatusComplete || s == PageStatusError
}

// Page represents one discovered URL within a scan.
type Page struct {
	// ID is the page's unique identifier (UUID).
	ID string `json:"id"`

	// ScanID identifies the owning scan.
	ScanID string `json:"scan_id"`

	// URL is the normalized URL of the page.
	URL string `json:"url"`

	// Title is the page title, extracted during scanning.
	Title string `json:"title,omitempty"`

	// Status is the page's position in its lifecycle.
	Status PageStatus `json:"status"`

	// HTTPStatus is the response status code of the final navigation.
	HTTPStatus int `json:"http_status,omitempty"`

	// LoadTime is how long navigation took.
	LoadTime time.Duration `json:"load_time,omitempty"`

	// Depth is the link distance from the root URL.
	Depth int `json:"depth"`

	// Fingerprints maps each landmark region present on the page to
	// its structural digest. A region absent from the page has no
	// entry. The map is fixed once Status reaches complete.
	Fingerprints map[Region]string `json:"fingerprints,omitempty"`

	// ErrorMessage describes why the page errored. Empty otherwise.
	ErrorMessage string `json:"error_message,omitempty"`
}

// NewPage creates a pending page for the given normalized URL.
func NewPage(scanID, url string, depth int) *Page {
	return &Page{
		ID:     uuid.NewString(),
		ScanID: scanID,
		URL:    url,
		Status: PageStatusPending,
		Depth:  depth,
	}
}

// ContentFingerprint returns the digest used for duplicate-page
// comparison: the main region's digest when the page has a <main>
// landmark, otherwise the body digest. The body fallback is what makes
// pages without a <main> element comparable at all; it applies only
// when main is absent, never when main is present but empty.
func (p *Page) ContentFingerprint() string {
	if fp, ok := p.Fingerprints[RegionMain]; ok {
		return fp
	}
	return p.Fingerprints[RegionBody]
}
