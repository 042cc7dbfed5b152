package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// Defaults for the HTTP renderer.
const (
	// DefaultNavigateTimeout bounds a single page fetch.
	DefaultNavigateTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	// Pages larger than this are truncated before parsing.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent identifies the scanner in request logs.
	DefaultUserAgent = "a11yscan/1.0 (+https://github.com/a11yscan/a11yscan)"
)

// HTTPRenderer renders pages by fetching and parsing their HTML over
// plain HTTP. It does not execute scripts; sites that require a full
// browser engine can plug a different Renderer into the pipeline.
type HTTPRenderer struct {
	client      *http.Client
	limiter     *rate.Limiter
	userAgent   string
	headers     map[string]string
	maxBodySize int64
}

// HTTPOption configures an HTTPRenderer.
type HTTPOption func(*HTTPRenderer)

// WithClient sets a custom HTTP client, e.g. for proxying in tests.
func WithClient(client *http.Client) HTTPOption {
	return func(r *HTTPRenderer) {
		r.client = client
	}
}

// WithRateLimit caps navigations per second across all concurrent
// callers. Zero or negative disables limiting.
func WithRateLimit(perSecond float64) HTTPOption {
	return func(r *HTTPRenderer) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(r *HTTPRenderer) {
		r.userAgent = ua
	}
}

// WithHeaders sets extra request headers, e.g. per-site auth cookies
// from the config file.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(r *HTTPRenderer) {
		r.headers = headers
	}
}

// WithMaxBodySize overrides the response body read cap.
func WithMaxBodySize(size int64) HTTPOption {
	return func(r *HTTPRenderer) {
		r.maxBodySize = size
	}
}

// NewHTTPRenderer creates an HTTP renderer.
func NewHTTPRenderer(opts ...HTTPOption) *HTTPRenderer {
	r := &HTTPRenderer{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: DefaultNavigateTimeout}
	}
	return r
}

// Navigate fetches the URL, following redirects, and parses the body.
func (r *HTTPRenderer) Navigate(ctx context.Context, pageURL string) (Page, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %q: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("navigation to %q failed: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %q failed: %w", pageURL, err)
	}
	loadTime := time.Since(start)

	p := &httpPage{
		finalURL:   resp.Request.URL.String(),
		statusCode: resp.StatusCode,
		loadTime:   loadTime,
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") || contentType == "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
		if err == nil {
			p.doc = doc
			p.title = strings.TrimSpace(doc.Find("head title").First().Text())
			p.links = extractLinks(doc, resp.Request.URL)
		}
	}

	return p, nil
}

// Close releases idle connections.
func (r *HTTPRenderer) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// extractLinks resolves every a[href] on the page to an absolute
// http(s) URL.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		links = append(links, abs.String())
	})
	return links
}

// httpPage is the Page implementation backing HTTPRenderer.
type httpPage struct {
	finalURL   string
	statusCode int
	loadTime   time.Duration
	title      string
	links      []string
	doc        *goquery.Document
}

func (p *httpPage) FinalURL() string            { return p.finalURL }
func (p *httpPage) StatusCode() int             { return p.statusCode }
func (p *httpPage) LoadTime() time.Duration     { return p.loadTime }
func (p *httpPage) Title() string               { return p.title }
func (p *httpPage) Links() []string             { return p.links }
func (p *httpPage) Document() *goquery.Document { return p.doc }
