package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/timeout"
)

// DefaultTimeout bounds a full region-extraction pass over one page.
// Fingerprinting is best-effort: when the budget is exceeded the page
// simply gets an empty fingerprint map, never a failed scan.
const DefaultTimeout = 10 * time.Second

// regionSelectors maps each landmark region to the CSS selector that
// locates it. Both the HTML5 element and the equivalent ARIA role are
// matched; the first match on the page wins.
var regionSelectors = map[model.Region]string{
	model.RegionHeader: `header, [role="banner"]`,
	model.RegionNav:    `nav, [role="navigation"]`,
	model.RegionFooter: `footer, [role="contentinfo"]`,
	model.RegionAside:  `aside, [role="complementary"]`,
	model.RegionMain:   `main, [role="main"]`,
	model.RegionBody:   `body`,
}

// strippedAttrs are attributes removed during normalization because
// they vary between otherwise-identical template instances without
// affecting structure.
var strippedAttrs = map[string]bool{
	"id":     true,
	"style":  true,
	"value":  true,
	"action": true,
	"href":   true,
	"src":    true,
}

// Engine computes region fingerprints for rendered pages.
type Engine struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides the per-page extraction budget.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates a fingerprint engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Compute returns the fingerprint map for a rendered document: one
// digest per landmark region present on the page. Regions absent from
// the page get no entry.
//
// Compute never returns an error. If extraction panics or exceeds the
// time budget the result is an empty map, so fingerprint degradation
// can never block issue collection on the page.
func (e *Engine) Compute(ctx context.Context, doc *goquery.Document) map[model.Region]string {
	fps, err := timeout.Do(ctx, e.timeout, func(_ context.Context) (map[model.Region]string, error) {
		return e.extract(doc), nil
	})
	if err != nil {
		e.logger.Warn("fingerprint extraction degraded", "error", err)
		return map[model.Region]string{}
	}
	return fps
}

// extract walks all six regions and digests each one found.
func (e *Engine) extract(doc *goquery.Document) map[model.Region]string {
	defer func() {
		// A malformed document must degrade, not crash the scan.
		_ = recover()
	}()

	fps := make(map[model.Region]string, len(regionSelectors))
	for _, region := range model.Regions() {
		sel := doc.Find(regionSelectors[region]).First()
		if sel.Length() == 0 {
			continue
		}
		fps[region] = Digest(sel.Nodes[0])
	}
	return fps
}

// Digest returns the SHA-256 hex digest of a subtree's canonical form.
func Digest(n *html.Node) string {
	var b strings.Builder
	canonicalize(&b, n)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// canonicalize renders the structural skeleton of a subtree:
//
//   - text and comment nodes are dropped entirely
//   - stripped attributes and all data-* attributes are removed
//   - class tokens are sorted alphabetically
//   - tag and attribute names are lowercased
//   - remaining attributes are ordered by name so serialization order
//     cannot influence the digest
//
// Because text nodes are dropped there is no inter-tag whitespace left
// to collapse; the output is a single unbroken string of tags.
func canonicalize(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		b.WriteString("<")
		b.WriteString(tag)
		writeAttrs(b, n.Attr)
		b.WriteString(">")
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			canonicalize(b, c)
		}
		b.WriteString("</")
		b.WriteString(tag)
		b.WriteString(">")
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			canonicalize(b, c)
		}
	default:
		// Text, comments, and doctype carry no structure.
	}
}

// writeAttrs appends the kept attributes in name order.
func writeAttrs(b *strings.Builder, attrs []html.Attribute) {
	kept := make([]html.Attribute, 0, len(attrs))
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strippedAttrs[key] || strings.HasPrefix(key, "data-") {
			continue
		}
		val := a.Val
		if key == "class" {
			val = sortClassTokens(val)
		}
		kept = append(kept, html.Attribute{Key: key, Val: val})
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })
	for _, a := range kept {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(a.Val)
		b.WriteString(`"`)
	}
}

// sortClassTokens alphabetizes the tokens of a class attribute.
// Class ordering carries no semantics, so "b a" and "a b" must digest
// identically.
func sortClassTokens(val string) string {
	tokens := strings.Fields(val)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
