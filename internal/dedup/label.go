package dedup

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	idToken    = regexp.MustCompile(`#([A-Za-z][\w-]*)`)
	classToken = regexp.MustCompile(`\.([A-Za-z][\w-]*)`)
	digitRuns  = regexp.MustCompile(`(\d+)`)

	titler = cases.Title(language.English)
)

// labelFromSelector derives a human-readable group label from a CSS
// selector: the id when present, else the first class, else the tag
// name of the last path segment. Kebab and snake case and embedded
// digits become Title Case words, so "#search-button2" labels as
// "Search Button 2".
func labelFromSelector(selector string) string {
	if m := idToken.FindStringSubmatch(selector); m != nil {
		return titleWords(m[1])
	}
	if m := classToken.FindStringSubmatch(selector); m != nil {
		return titleWords(m[1])
	}

	segment := selector
	if i := strings.LastIndex(segment, ">"); i >= 0 {
		segment = segment[i+1:]
	}
	segment = strings.TrimSpace(segment)
	if i := strings.IndexAny(segment, ":[."); i >= 0 {
		segment = segment[:i]
	}
	if segment == "" {
		return "Repeated element"
	}
	return titleWords(segment)
}

// titleWords splits kebab/snake case and digit runs into words and
// Title Cases them.
func titleWords(token string) string {
	token = strings.NewReplacer("-", " ", "_", " ").Replace(token)
	token = digitRuns.ReplaceAllString(token, " $1")
	return titler.String(strings.Join(strings.Fields(token), " "))
}

// labelFromPaths builds a duplicate-page label from the URL paths
// involved, e.g. "Duplicate pages: /faq, /faq.action".
func labelFromPaths(urls []string) string {
	paths := make([]string, 0, len(urls))
	for _, raw := range urls {
		if u, err := url.Parse(raw); err == nil && u.Path != "" {
			paths = append(paths, u.Path)
			continue
		}
		paths = append(paths, raw)
	}
	return "Duplicate pages: " + strings.Join(paths, ", ")
}
