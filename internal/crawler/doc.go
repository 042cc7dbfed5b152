// Package crawler discovers the pages of a site by breadth-first
// traversal from a root URL.
//
// # Architecture
//
// The crawler package is designed around the Crawler type, which walks
// same-origin links in batches. Each batch navigates up to the
// configured concurrency of URLs in parallel, then settles at a barrier
// where results are recorded, new links enqueued, and progress emitted.
//
// Design decision: We implement our own traversal rather than using a
// third-party crawling library because:
//  1. Discovery must run against an already-configured page renderer
//  2. URL identity is defined by our normalization rules, not the
//     library's
//  3. Batch barriers keep persistence transactional and progress
//     deterministic
//
// # Deduplication
//
// Two URLs are the same page when their normalized forms are equal.
// Redirects are deduplicated against the visited set by final URL, so a
// page reachable through several redirecting aliases is recorded once.
// URLs sharing a path template (digit runs and query values collapsed)
// are capped to avoid drowning the crawl budget in paginated archives.
//
// # Politeness
//
//   - Delay between batches (configurable)
//   - Bounded concurrency within a batch
//   - Hard caps on page count and depth
//
// # Usage
//
//	c := crawler.New(renderer, crawler.WithStore(store))
//	pages, err := c.Crawl(ctx, scan)
package crawler
