// Package urlutil canonicalizes URLs for identity and origin checks.
//
// Every comparison the crawler and deduplication engine make (visited
// sets, redirect detection, duplicate-page candidates) goes through
// Normalize first so that URLs differing only in fragment, query
// parameter order, trailing slash, or host case are treated as the same
// page.
package urlutil
