// Package fingerprint computes stable structural signatures for the
// landmark regions of a rendered page.
//
// A fingerprint is a SHA-256 digest of a region's markup after all
// volatile content has been stripped: text nodes, ids, inline styles,
// link targets, and data-* attributes. Two pages rendering the same
// template region produce the same digest even when the text, links,
// and ids inside it differ; any structural change in the markup
// produces a different digest.
package fingerprint
