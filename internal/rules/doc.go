// Package rules implements the built-in accessibility rule evaluator.
//
// The scan orchestrator treats the evaluator as a black box returning
// structured violations per page; this package provides the default
// implementation: a set of WCAG checks evaluated over the parsed
// document. Each violation carries the rule metadata plus one entry per
// offending DOM node with a CSS selector that stays stable across pages
// rendered from the same template, which is what makes cross-page
// deduplication by (rule, selector) possible.
package rules
