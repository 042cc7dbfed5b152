// Package dedup collapses per-page accessibility findings into
// cross-page component groups.
//
// A site built from templates repeats the same defect on every page
// that shares the template: one missing-alt logo in the header becomes
// fifty raw issues on a fifty-page crawl. The engine reduces such
// repetition in four ordered layers, each consuming only the issues the
// previous layers left ungrouped:
//
//  1. Region fingerprints: issues inside a landmark region whose
//     structural digest is shared by enough pages collapse into one
//     group per (region, digest).
//  2. Repeated selectors: the same (rule, selector) pair recurring
//     across enough pages collapses even outside any landmark.
//  3. Duplicate pages: pages serving content-identical documents under
//     different URLs (main-region digest, body fallback) have their
//     common issues collapsed.
//  4. Title plus issue signature: a safety net for near-duplicate pages
//     whose structural digests diverged.
//
// Design decision: the layers form a pure pipeline, where each takes
// the ungrouped subset and returns new groups plus the remainder,
// rather than sharing a mutable grouped flag, so each layer is
// independently testable and the whole run is deterministic.
//
// Deduplication never fails a scan. A panic inside the engine is
// recovered, all partial assignments are rolled back, and the scan
// finishes with its raw, ungrouped issue set; the raw-versus-unique
// count mismatch in the summary is the visible signal.
package dedup
