// Package log provides logging helpers built on the standard slog
// package.
//
// The scan pipeline logs page URLs, selectors, and HTML snippets as
// structured attributes. Raw page markup can run to megabytes, so the
// TrimHandler truncates oversized attribute values before they reach
// the underlying handler, keeping log output readable and log storage
// bounded no matter what the scanned site serves.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Info("issue recorded",
//	    "rule", "image-alt",
//	    "html", hugeSnippet, // truncated automatically
//	)
package log
