package render

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is a handle to one rendered page. All accessors are read-only
// snapshots taken at navigation time.
type Page interface {
	// FinalURL is the URL after all redirects resolved.
	FinalURL() string

	// StatusCode is the HTTP status of the final response.
	StatusCode() int

	// LoadTime is how long navigation took.
	LoadTime() time.Duration

	// Title is the document title, empty for non-HTML responses.
	Title() string

	// Links returns all absolute same-scheme outbound link URLs found
	// on the page. Relative hrefs are resolved against the final URL.
	Links() []string

	// Document returns the parsed DOM for rule evaluation and
	// fingerprint extraction. Nil for non-HTML responses.
	Document() *goquery.Document
}

// Renderer navigates URLs and produces Page handles.
type Renderer interface {
	// Navigate fetches and renders the URL. Navigation failures
	// (network errors, unparseable responses) return an error; HTTP
	// error statuses do not; the caller inspects StatusCode.
	Navigate(ctx context.Context, url string) (Page, error)

	// Close releases the renderer's resources. The renderer must not
	// be used after Close.
	Close() error
}
