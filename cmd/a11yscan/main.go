// Package main provides the entry point for the a11yscan CLI.
//
// a11yscan crawls a website, evaluates accessibility rules on every
// page, and deduplicates the findings into site-wide component groups
// so a shared header defect reads as one problem, not one per page.
//
// Usage:
//
//	a11yscan scan <url>
//	a11yscan report [scan-id]
//
// See --help for all available options.
package main

// main is the entry point for a11yscan.
func main() {
	Execute()
}
