package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Normalize returns the canonical form of a URL:
//
//   - fragment stripped
//   - scheme and host lowercased
//   - query parameters sorted lexicographically by key
//   - trailing slash stripped, except for the bare root path
//
// Normalize is idempotent: Normalize(Normalize(u)) == Normalize(u).
// It returns an error for unparseable or non-absolute URLs.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("URL %q is not absolute", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL %q has unsupported scheme %q", raw, u.Scheme)
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Sort query parameters so ?b=2&a=1 and ?a=1&b=2 compare equal.
	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.Query())
	}

	// Empty path and "/" are the same page; deeper paths drop the
	// trailing slash.
	switch {
	case u.Path == "" || u.Path == "/":
		u.Path = "/"
	case strings.HasSuffix(u.Path, "/"):
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// sortQuery re-encodes query values with keys in lexicographic order.
// url.Values.Encode already sorts keys; we keep this explicit wrapper so
// the normalization contract is visible in one place.
func sortQuery(values url.Values) string {
	return values.Encode()
}

// Host extracts the lowercase host of an absolute URL.
func Host(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}
	return strings.ToLower(u.Host), nil
}

// SameOrigin reports whether the target URL belongs to the same site as
// the given host. The comparison uses the host only: redirects between
// http and https on the same host are common enough that a scheme-exact
// origin check would split a site in two.
func SameOrigin(host, target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

// MatchAny reports whether the URL's path matches any of the wildcard
// patterns. Patterns support "*" (any run of characters) and "?" (any
// single character); everything else matches literally.
func MatchAny(patterns []string, rawURL string) bool {
	if len(patterns) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	for _, p := range patterns {
		re, err := wildcardToRegexp(p)
		if err != nil {
			continue
		}
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// wildcardToRegexp converts a wildcard pattern to an anchored regexp.
func wildcardToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// digitRuns matches consecutive decimal digits in a path segment.
var digitRuns = regexp.MustCompile(`\d+`)

// PatternKey reduces a normalized URL to its path template so the
// crawler can cap visits to obviously parametrized pages. Digit runs in
// the path collapse to "N" and query values are dropped, keeping only
// the sorted key names:
//
//	/news?id=1   → example.com/news?id
//	/news?id=2   → example.com/news?id
//	/item/41/buy → example.com/item/N/buy
func PatternKey(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return normalized
	}
	key := u.Host + digitRuns.ReplaceAllString(u.Path, "N")
	if u.RawQuery != "" {
		keys := make([]string, 0, len(u.Query()))
		for k := range u.Query() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		key += "?" + strings.Join(keys, "&")
	}
	return key
}
