// Package pipeline executes the phases of a scan in sequence.
//
// A scan moves through three phases: crawl (page discovery), scan
// (accessibility evaluation), and analyze (cross-page deduplication and
// scoring). Each phase is implemented as a Step that receives the
// per-scan ScanContext and advances the scan's state machine.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
//  1. It allows easy addition/removal of steps without modifying core logic
//  2. It provides consistent error handling and logging across steps
//  3. It supports cancellation via context for long-running scans
//
// Phases run strictly sequentially: the crawl fully completes before
// scanning starts, and deduplication runs only after every page reached
// a terminal state. This bounds peak resource usage: each phase's
// renderer is released before the next phase acquires its own. A fault
// escaping a phase marks the scan failed and terminal; per-page faults
// never do.
//
// The pipeline supports both individual scans and batch processing of
// multiple root URLs with concurrency control using errgroup.
package pipeline
