// Package scanner evaluates accessibility rules against crawled pages.
//
// The scanner re-renders each pending page, waits for a short settle
// delay, then runs two independent extractions: the rule evaluation
// that yields issues, and the region fingerprinting that yields the
// structural digests deduplication keys on. The two are deliberately
// decoupled: a fingerprinting failure degrades deduplication quality
// but never loses issues, and a rule-evaluation timeout marks the page
// errored without touching other pages.
//
// Pages are processed in batches of the scan's configured concurrency.
// Each batch settles at a barrier where issues are persisted in one
// transaction and progress counts are emitted, so observers see
// consistent completed/total numbers.
package scanner
