package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Sentinel errors let callers branch with errors.Is while keeping
// human-readable messages.
var (
	// ErrNoRootURL is returned when no root URL was provided.
	ErrNoRootURL = errors.New("no root URL specified")

	// ErrInvalidRootURL is returned when the root URL cannot be
	// normalized (relative, unparseable, or non-http scheme).
	ErrInvalidRootURL = errors.New("invalid root URL: must be an absolute http(s) URL")

	// ErrInvalidMaxPages is returned when the page cap is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxDepth is returned when the depth cap is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidConcurrency is returned when the batch width is not
	// positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidDelay is returned when the batch delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidThreshold is returned when the shared-component
	// threshold is outside (0, 1].
	ErrInvalidThreshold = errors.New("invalid shared threshold: must be in (0, 1]")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are requested.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
