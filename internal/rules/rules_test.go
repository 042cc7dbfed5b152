package rules

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// evaluate parses HTML and runs the full rule set.
func evaluate(t *testing.T, html string) []Violation {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse test HTML: %v", err)
	}
	return NewEvaluator().Evaluate(doc, nil)
}

// findViolation returns the violation for a rule id, nil when absent.
func findViolation(violations []Violation, ruleID string) *Violation {
	for i := range violations {
		if violations[i].RuleID == ruleID {
			return &violations[i]
		}
	}
	return nil
}

// TestImageAlt tests the image-alt rule.
func TestImageAlt(t *testing.T) {
	t.Parallel()

	t.Run("missing alt is reported", func(t *testing.T) {
		t.Parallel()

		v := findViolation(evaluate(t, `<html lang="en"><head><title>t</title></head>
			<body><img src="/a.png"><img src="/b.png" alt="ok"></body></html>`), "image-alt")
		if v == nil {
			t.Fatal("expected image-alt violation")
		}
		if len(v.Nodes) != 1 {
			t.Errorf("expected 1 node, got %d", len(v.Nodes))
		}
	})

	t.Run("empty alt is decorative and allowed", func(t *testing.T) {
		t.Parallel()

		v := findViolation(evaluate(t, `<html lang="en"><head><title>t</title></head>
			<body><img src="/a.png" alt=""></body></html>`), "image-alt")
		if v != nil {
			t.Error("alt=\"\" should not be reported")
		}
	})

	t.Run("presentation role is allowed", func(t *testing.T) {
		t.Parallel()

		v := findViolation(evaluate(t, `<html lang="en"><head><title>t</title></head>
			<body><img src="/a.png" role="presentation"></body></html>`), "image-alt")
		if v != nil {
			t.Error("role=presentation should not be reported")
		}
	})
}

// TestSnippetTruncatesOnRuneBoundary tests that long attribute values
// in issue snippets stay valid UTF-8 after truncation.
func TestSnippetTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	// 40 three-byte runes: the 80-byte cut lands mid-rune.
	title := strings.Repeat("世", 40)
	v := findViolation(evaluate(t, `<html lang="en"><head><title>t</title></head>
		<body><img src="/a.png" title="`+title+`"></body></html>`), "image-alt")
	if v == nil {
		t.Fatal("expected image-alt violation")
	}

	snippet := v.Nodes[0].HTML
	if !utf8.ValidString(snippet) {
		t.Errorf("snippet is not valid UTF-8: %q", snippet)
	}
	// A mid-rune cut leaves stray bytes that quoting renders as \xNN.
	if strings.Contains(snippet, `\x`) {
		t.Errorf("snippet carries split-rune escapes: %q", snippet)
	}
	if !strings.Contains(snippet, "…") {
		t.Errorf("long attribute value was not truncated: %q", snippet)
	}
	if strings.Contains(snippet, title) {
		t.Errorf("attribute value was not shortened: %q", snippet)
	}
}

// TestDocumentLevelRules tests html-has-lang and document-title.
func TestDocumentLevelRules(t *testing.T) {
	t.Parallel()

	violations := evaluate(t, `<html><head></head><body><p>hello</p></body></html>`)

	if findViolation(violations, "html-has-lang") == nil {
		t.Error("expected html-has-lang violation")
	}
	if findViolation(violations, "document-title") == nil {
		t.Error("expected document-title violation")
	}

	clean := evaluate(t, `<html lang="en"><head><title>Fine</title></head><body><p>hello</p></body></html>`)
	if findViolation(clean, "html-has-lang") != nil {
		t.Error("lang attribute present, no violation expected")
	}
	if findViolation(clean, "document-title") != nil {
		t.Error("title present, no violation expected")
	}
}

// TestLinkAndButtonName tests discernible-text rules.
func TestLinkAndButtonName(t *testing.T) {
	t.Parallel()

	violations := evaluate(t, `<html lang="en"><head><title>t</title></head><body>
		<a href="/empty"></a>
		<a href="/ok">Fine</a>
		<a href="/icon" aria-label="Search"></a>
		<a href="/img"><img src="/i.png" alt="Home"></a>
		<button></button>
		<button>Go</button>
	</body></html>`)

	link := findViolation(violations, "link-name")
	if link == nil || len(link.Nodes) != 1 {
		t.Errorf("expected exactly 1 link-name node, got %+v", link)
	}
	button := findViolation(violations, "button-name")
	if button == nil || len(button.Nodes) != 1 {
		t.Errorf("expected exactly 1 button-name node, got %+v", button)
	}
}

// TestLabelRule tests form label association paths.
func TestLabelRule(t *testing.T) {
	t.Parallel()

	violations := evaluate(t, `<html lang="en"><head><title>t</title></head><body><form>
		<label for="a">A</label><input type="text" id="a">
		<label>B<input type="text" name="b"></label>
		<input type="text" aria-label="C">
		<input type="text" name="naked">
		<input type="hidden" name="csrf">
		<input type="submit" value="Send">
	</form></body></html>`)

	v := findViolation(violations, "label")
	if v == nil {
		t.Fatal("expected label violation")
	}
	if len(v.Nodes) != 1 {
		t.Errorf("expected exactly 1 unlabelled control, got %d", len(v.Nodes))
	}
}

// TestDuplicateID tests that each duplicated id is reported once.
func TestDuplicateID(t *testing.T) {
	t.Parallel()

	v := findViolation(evaluate(t, `<html lang="en"><head><title>t</title></head><body>
		<div id="x"></div><span id="x"></span><span id="x"></span><div id="y"></div>
	</body></html>`), "duplicate-id")
	if v == nil {
		t.Fatal("expected duplicate-id violation")
	}
	if len(v.Nodes) != 1 {
		t.Errorf("expected 1 reported id, got %d", len(v.Nodes))
	}
}

// TestSelectorStability verifies that identical structures on different
// pages produce identical target selectors.
func TestSelectorStability(t *testing.T) {
	t.Parallel()

	page := `<html lang="en"><head><title>%s</title></head><body>
		<header><img src="/logo.png"></header>
		<main><p>different text each page</p></main>
	</body></html>`

	a := findViolation(evaluate(t, strings.ReplaceAll(page, "%s", "One")), "image-alt")
	b := findViolation(evaluate(t, strings.ReplaceAll(page, "%s", "Two")), "image-alt")
	if a == nil || b == nil {
		t.Fatal("expected image-alt violations on both pages")
	}
	if a.Nodes[0].Target != b.Nodes[0].Target {
		t.Errorf("selectors differ across identical templates: %q vs %q", a.Nodes[0].Target, b.Nodes[0].Target)
	}
}

// TestSelectorPrefersID verifies id-based selectors.
func TestSelectorPrefersID(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div id="wrap"><button class="x"></button></div></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	got := Selector(doc.Find("button"))
	if !strings.HasPrefix(got, "#wrap") {
		t.Errorf("expected selector rooted at #wrap, got %q", got)
	}
}

// TestTagFilter verifies that filtering by guideline tag skips
// non-matching rules.
func TestTagFilter(t *testing.T) {
	t.Parallel()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head></head><body><img src="/a.png"></body></html>`))
	if err != nil {
		t.Fatal(err)
	}

	violations := NewEvaluator().Evaluate(doc, []string{"wcag111"})
	if findViolation(violations, "image-alt") == nil {
		t.Error("image-alt carries wcag111 and should run")
	}
	if findViolation(violations, "html-has-lang") != nil {
		t.Error("html-has-lang does not carry wcag111 and should be skipped")
	}
}
