// Package render defines the page-renderer collaborator the pipeline
// drives, plus the shipped HTTP implementation.
//
// The crawl and scan phases each acquire their own renderer and release
// it before the next phase starts, so peak resource usage is bounded by
// one renderer at a time. A renderer is safe for concurrent Navigate
// calls up to the configured parallelism; each call returns an isolated
// Page handle.
package render
