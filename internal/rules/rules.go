package rules

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Violation is one rule failure with all offending nodes on a page.
type Violation struct {
	// RuleID identifies the failed rule (e.g. "image-alt").
	RuleID string

	// Description explains the rule requirement.
	Description string

	// HelpURL links to remediation guidance.
	HelpURL string

	// Impact is the severity tier name: minor, moderate, serious,
	// or critical.
	Impact string

	// Tags are the WCAG guideline tags the rule maps to.
	Tags []string

	// Nodes lists the offending DOM nodes.
	Nodes []Node
}

// Node locates one offending element.
type Node struct {
	// Target is a CSS selector for the element. Selectors are built
	// from id when available, otherwise from the tag path with
	// :nth-of-type qualifiers, so structurally identical templates
	// yield identical selectors.
	Target string

	// HTML is the element's opening tag, normalized.
	HTML string

	// FailureSummary describes what failed for this element.
	FailureSummary string
}

// rule pairs rule metadata with its node-matching check.
type rule struct {
	id          string
	description string
	helpURL     string
	impact      string
	tags        []string
	check       func(doc *goquery.Document) []match
}

// match is one offending element with its failure explanation.
type match struct {
	sel     *goquery.Selection
	failure string
}

// Evaluator runs the built-in rule set over parsed documents.
type Evaluator struct {
	rules []rule
}

// NewEvaluator creates an evaluator with the full built-in rule set.
func NewEvaluator() *Evaluator {
	return &Evaluator{rules: builtinRules()}
}

// Evaluate runs every rule whose tags intersect tagFilter (all rules
// when tagFilter is empty) and returns the violations found.
func (e *Evaluator) Evaluate(doc *goquery.Document, tagFilter []string) []Violation {
	violations := make([]Violation, 0)
	for _, r := range e.rules {
		if !tagsMatch(r.tags, tagFilter) {
			continue
		}
		matches := r.check(doc)
		if len(matches) == 0 {
			continue
		}
		v := Violation{
			RuleID:      r.id,
			Description: r.description,
			HelpURL:     r.helpURL,
			Impact:      r.impact,
			Tags:        r.tags,
			Nodes:       make([]Node, 0, len(matches)),
		}
		for _, m := range matches {
			v.Nodes = append(v.Nodes, Node{
				Target:         Selector(m.sel),
				HTML:           openingTag(m.sel),
				FailureSummary: m.failure,
			})
		}
		violations = append(violations, v)
	}
	return violations
}

// tagsMatch reports whether any rule tag is in the filter.
func tagsMatch(ruleTags, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		for _, t := range ruleTags {
			if t == f {
				return true
			}
		}
	}
	return false
}

// builtinRules returns the WCAG checks shipped with the scanner.
func builtinRules() []rule {
	return []rule{
		{
			id:          "image-alt",
			description: "Images must have alternate text",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H37",
			impact:      "critical",
			tags:        []string{"wcag2a", "wcag111"},
			check: func(doc *goquery.Document) []match {
				var out []match
				doc.Find("img").Each(func(_ int, s *goquery.Selection) {
					if _, ok := s.Attr("alt"); ok {
						return
					}
					if role, _ := s.Attr("role"); role == "presentation" || role == "none" {
						return
					}
					out = append(out, match{sel: s, failure: "Element does not have an alt attribute"})
				})
				return out
			},
		},
		{
			id:          "html-has-lang",
			description: "The html element must have a lang attribute",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H57",
			impact:      "serious",
			tags:        []string{"wcag2a", "wcag311"},
			check: func(doc *goquery.Document) []match {
				var out []match
				doc.Find("html").Each(func(_ int, s *goquery.Selection) {
					if lang, ok := s.Attr("lang"); !ok || strings.TrimSpace(lang) == "" {
						out = append(out, match{sel: s, failure: "The html element does not have a lang attribute"})
					}
				})
				return out
			},
		},
		{
			id:          "document-title",
			description: "Documents must have a title element to aid navigation",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H25",
			impact:      "serious",
			tags:        []string{"wcag2a", "wcag242"},
			check: func(doc *goquery.Document) []match {
				title := doc.Find("head title")
				if title.Length() > 0 && strings.TrimSpace(title.First().Text()) != "" {
					return nil
				}
				html := doc.Find("html")
				if html.Length() == 0 {
					return nil
				}
				return []match{{sel: html.First(), failure: "Document does not have a non-empty title element"}}
			},
		},
		{
			id:          "link-name",
			description: "Links must have discernible text",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H30",
			impact:      "serious",
			tags:        []string{"wcag2a", "wcag244", "wcag412"},
			check: func(doc *goquery.Document) []match {
				var out []match
				doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
					if hasAccessibleName(s) {
						return
					}
					out = append(out, match{sel: s, failure: "Element does not have text that is visible to screen readers"})
				})
				return out
			},
		},
		{
			id:          "button-name",
			description: "Buttons must have discernible text",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H91",
			impact:      "critical",
			tags:        []string{"wcag2a", "wcag412"},
			check: func(doc *goquery.Document) []match {
				var out []match
				doc.Find("button").Each(func(_ int, s *goquery.Selection) {
					if hasAccessibleName(s) {
						return
					}
					out = append(out, match{sel: s, failure: "Element does not have inner text, aria-label, or title"})
				})
				return out
			},
		},
		{
			id:          "label",
			description: "Form elements must have labels",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H44",
			impact:      "critical",
			tags:        []string{"wcag2a", "wcag412", "wcag131"},
			check: func(doc *goquery.Document) []match {
				labelled := make(map[string]bool)
				doc.Find("label[for]").Each(func(_ int, s *goquery.Selection) {
					if forID, _ := s.Attr("for"); forID != "" {
						labelled[forID] = true
					}
				})
				var out []match
				doc.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
					if typ, _ := s.Attr("type"); typ == "hidden" || typ == "submit" || typ == "button" || typ == "image" || typ == "reset" {
						return
					}
					if id, ok := s.Attr("id"); ok && labelled[id] {
						return
					}
					if _, ok := s.Attr("aria-label"); ok {
						return
					}
					if _, ok := s.Attr("aria-labelledby"); ok {
						return
					}
					if _, ok := s.Attr("title"); ok {
						return
					}
					if s.ParentsFiltered("label").Length() > 0 {
						return
					}
					out = append(out, match{sel: s, failure: "Form element does not have an associated label"})
				})
				return out
			},
		},
		{
			id:          "duplicate-id",
			description: "id attribute values must be unique",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H93",
			impact:      "minor",
			tags:        []string{"wcag2a", "wcag411"},
			check: func(doc *goquery.Document) []match {
				seen := make(map[string]int)
				doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
					id, _ := s.Attr("id")
					seen[id]++
				})
				var out []match
				reported := make(map[string]bool)
				doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
					id, _ := s.Attr("id")
					if seen[id] > 1 && !reported[id] {
						reported[id] = true
						out = append(out, match{sel: s, failure: fmt.Sprintf("Document has multiple elements with id %q", id)})
					}
				})
				return out
			},
		},
		{
			id:          "meta-viewport",
			description: "Zooming and scaling must not be disabled",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Understanding/reflow",
			impact:      "moderate",
			tags:        []string{"wcag2aa", "wcag144"},
			check: func(doc *goquery.Document) []match {
				var out []match
				doc.Find(`meta[name="viewport"]`).Each(func(_ int, s *goquery.Selection) {
					content, _ := s.Attr("content")
					lower := strings.ToLower(content)
					if strings.Contains(lower, "user-scalable=no") || strings.Contains(lower, "maximum-scale=1.0") || strings.Contains(lower, "maximum-scale=1,") || strings.HasSuffix(lower, "maximum-scale=1") {
						out = append(out, match{sel: s, failure: "Viewport meta tag disables zooming"})
					}
				})
				return out
			},
		},
		{
			id:          "empty-heading",
			description: "Headings must not be empty",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H42",
			impact:      "minor",
			tags:        []string{"wcag2a", "wcag131"},
			check: func(doc *goquery.Document) []match {
				var out []match
				doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
					if strings.TrimSpace(s.Text()) == "" && s.Find("img[alt]").Length() == 0 {
						out = append(out, match{sel: s, failure: "Heading has no text content"})
					}
				})
				return out
			},
		},
		{
			id:          "frame-title",
			description: "Frames must have a title attribute",
			helpURL:     "https://www.w3.org/WAI/WCAG22/Techniques/html/H64",
			impact:      "serious",
			tags:        []string{"wcag2a", "wcag412"},
			check: func(doc *goquery.Document) []match {
				var out []match
				doc.Find("iframe, frame").Each(func(_ int, s *goquery.Selection) {
					if title, ok := s.Attr("title"); !ok || strings.TrimSpace(title) == "" {
						out = append(out, match{sel: s, failure: "Frame does not have a title attribute"})
					}
				})
				return out
			},
		},
	}
}

// hasAccessibleName reports whether an interactive element exposes a
// name to assistive technology: inner text, aria-label,
// aria-labelledby, title, or image alt text.
func hasAccessibleName(s *goquery.Selection) bool {
	if strings.TrimSpace(s.Text()) != "" {
		return true
	}
	for _, attr := range []string{"aria-label", "aria-labelledby", "title"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return s.Find("img").FilterFunction(func(_ int, img *goquery.Selection) bool {
		alt, ok := img.Attr("alt")
		return ok && strings.TrimSpace(alt) != ""
	}).Length() > 0
}

// Selector builds a CSS selector for the selection's first node.
// Elements with an id resolve to "#id"; otherwise the selector is the
// tag path from the nearest id-bearing ancestor (or the root) with
// :nth-of-type qualifiers wherever siblings share a tag.
func Selector(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var parts []string
	for n := s.Nodes[0]; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if id := attrValue(n, "id"); id != "" {
			parts = append(parts, "#"+id)
			break
		}
		parts = append(parts, segment(n))
	}
	// Reverse into document order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// segment renders one path element, adding :nth-of-type when the node
// has same-tag siblings.
func segment(n *html.Node) string {
	tag := strings.ToLower(n.Data)
	if n.Parent == nil {
		return tag
	}
	index, total := 0, 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || !strings.EqualFold(c.Data, n.Data) {
			continue
		}
		total++
		if c == n {
			index = total
		}
	}
	if total <= 1 {
		return tag
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", tag, index)
}

// attrValue returns a node attribute by name, empty when absent.
func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// openingTag renders the element's opening tag for the issue snippet.
// Attribute values longer than a screenful are truncated.
func openingTag(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	n := s.Nodes[0]
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(strings.ToLower(n.Data))
	for _, a := range n.Attr {
		val := a.Val
		if len(val) > 80 {
			cut := 80
			// Never cut in the middle of a multi-byte rune.
			for cut > 0 && !utf8.RuneStart(val[cut]) {
				cut--
			}
			val = val[:cut] + "…"
		}
		fmt.Fprintf(&b, " %s=%q", strings.ToLower(a.Key), val)
	}
	b.WriteString(">")
	return b.String()
}
