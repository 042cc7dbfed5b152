package crawler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/progress"
	"github.com/a11yscan/a11yscan/internal/render"
)

// stubPage implements render.Page from fixed values.
type stubPage struct {
	finalURL string
	status   int
	title    string
	links    []string
	doc      *goquery.Document
}

func (p *stubPage) FinalURL() string            { return p.finalURL }
func (p *stubPage) StatusCode() int             { return p.status }
func (p *stubPage) LoadTime() time.Duration     { return 5 * time.Millisecond }
func (p *stubPage) Title() string               { return p.title }
func (p *stubPage) Links() []string             { return p.links }
func (p *stubPage) Document() *goquery.Document { return p.doc }

// stubRenderer serves canned pages keyed by requested URL.
type stubRenderer struct {
	pages map[string]*stubPage
	errs  map[string]error
}

func (r *stubRenderer) Navigate(_ context.Context, url string) (render.Page, error) {
	if err, ok := r.errs[url]; ok {
		return nil, err
	}
	page, ok := r.pages[url]
	if !ok {
		return nil, errors.New("no such page: " + url)
	}
	return page, nil
}

func (r *stubRenderer) Close() error { return nil }

func htmlDoc(t *testing.T) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><p>ok</p></body></html>"))
	if err != nil {
		t.Fatalf("failed to parse test document: %v", err)
	}
	return doc
}

// page builds a stub page whose final URL equals the requested URL.
func page(t *testing.T, url string, links ...string) *stubPage {
	t.Helper()
	return &stubPage{finalURL: url, status: 200, title: "t", links: links, doc: htmlDoc(t)}
}

func testScan(cfg model.ScanConfig) *model.Scan {
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 50
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 2
	}
	return model.NewScan("https://example.com/", cfg)
}

func urls(pages []*model.Page) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.URL)
	}
	return out
}

func TestCrawlBreadthFirst(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]*stubPage{
		"https://example.com/":  page(t, "https://example.com/", "https://example.com/a", "https://example.com/b"),
		"https://example.com/a": page(t, "https://example.com/a", "https://example.com/c"),
		"https://example.com/b": page(t, "https://example.com/b"),
		"https://example.com/c": page(t, "https://example.com/c"),
	}}

	c := New(r)
	pages, err := c.Crawl(context.Background(), testScan(model.ScanConfig{MaxDepth: 3}))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	want := []string{"https://example.com/", "https://example.com/a", "https://example.com/b", "https://example.com/c"}
	got := urls(pages)
	if len(got) != len(want) {
		t.Fatalf("Crawl() pages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pages[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	for _, p := range pages {
		if p.Status != model.PageStatusPending {
			t.Errorf("page %s status = %s, want pending", p.URL, p.Status)
		}
	}
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]*stubPage{
		"https://example.com/":  page(t, "https://example.com/", "https://example.com/a", "https://example.com/b", "https://example.com/c"),
		"https://example.com/a": page(t, "https://example.com/a"),
		"https://example.com/b": page(t, "https://example.com/b"),
		"https://example.com/c": page(t, "https://example.com/c"),
	}}

	c := New(r)
	pages, err := c.Crawl(context.Background(), testScan(model.ScanConfig{MaxPages: 2, MaxDepth: 3, Concurrency: 1}))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("Crawl() recorded %d pages, want 2", len(pages))
	}
}

func TestCrawlRespectsMaxDepth(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]*stubPage{
		"https://example.com/": page(t, "https://example.com/", "https://example.com/a"),
	}}

	c := New(r)
	pages, err := c.Crawl(context.Background(), testScan(model.ScanConfig{MaxDepth: 0}))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(pages) != 1 {
		t.Errorf("Crawl() recorded %d pages at depth 0, want 1", len(pages))
	}
}

func TestCrawlDeduplicatesRedirects(t *testing.T) {
	t.Parallel()

	// /alias redirects onto /a, which is also linked directly.
	r := &stubRenderer{pages: map[string]*stubPage{
		"https://example.com/":      page(t, "https://example.com/", "https://example.com/a", "https://example.com/alias"),
		"https://example.com/a":     page(t, "https://example.com/a"),
		"https://example.com/alias": page(t, "https://example.com/a"),
	}}

	c := New(r)
	pages, err := c.Crawl(context.Background(), testScan(model.ScanConfig{MaxDepth: 2, Concurrency: 1}))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	seen := map[string]int{}
	for _, p := range pages {
		seen[p.URL]++
	}
	if seen["https://example.com/a"] != 1 {
		t.Errorf("redirect target recorded %d times, want 1", seen["https://example.com/a"])
	}
	if len(pages) != 2 {
		t.Errorf("Crawl() recorded %d pages, want 2 (root and /a)", len(pages))
	}
}

func TestCrawlRedirectOntoQueuedURL(t *testing.T) {
	t.Parallel()

	// /b is linked directly and is also the redirect target of /a. Its
	// queued entry must be discarded once the redirect records it,
	// whether /a lands in an earlier batch or the same one.
	tests := []struct {
		name        string
		concurrency int
	}{
		{"earlier batch", 1},
		{"same batch", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &stubRenderer{pages: map[string]*stubPage{
				"https://example.com/":  page(t, "https://example.com/", "https://example.com/a", "https://example.com/b"),
				"https://example.com/a": page(t, "https://example.com/b"),
				"https://example.com/b": page(t, "https://example.com/b"),
			}}

			c := New(r)
			pages, err := c.Crawl(context.Background(), testScan(model.ScanConfig{MaxDepth: 2, Concurrency: tt.concurrency}))
			if err != nil {
				t.Fatalf("Crawl() error = %v", err)
			}

			seen := map[string]int{}
			for _, p := range pages {
				seen[p.URL]++
			}
			if seen["https://example.com/b"] != 1 {
				t.Errorf("page https://example.com/b recorded %d times, want 1 (urls: %v)", seen["https://example.com/b"], urls(pages))
			}
			if len(pages) != 2 {
				t.Errorf("Crawl() recorded %d pages, want 2 (root and /b)", len(pages))
			}
		})
	}
}

func TestCrawlSkipsExcludedAndForeignLinks(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]*stubPage{
		"https://example.com/": page(t, "https://example.com/",
			"https://example.com/logout?next=home",
			"https://other.example.org/page",
			"https://example.com/keep"),
		"https://example.com/keep": page(t, "https://example.com/keep"),
	}}

	c := New(r)
	scan := testScan(model.ScanConfig{MaxDepth: 2, ExcludePatterns: []string{"/logout*"}})
	pages, err := c.Crawl(context.Background(), scan)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	got := urls(pages)
	if len(got) != 2 {
		t.Fatalf("Crawl() pages = %v, want root and /keep only", got)
	}
	if got[1] != "https://example.com/keep" {
		t.Errorf("pages[1] = %s, want https://example.com/keep", got[1])
	}
}

func TestCrawlFollowsOnlyMatchingPatterns(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]*stubPage{
		"https://example.com/": page(t, "https://example.com/",
			"https://example.com/docs/intro",
			"https://example.com/blog/post-1"),
		"https://example.com/docs/intro": page(t, "https://example.com/docs/intro"),
	}}

	c := New(r)
	scan := testScan(model.ScanConfig{MaxDepth: 2, FollowPatterns: []string{"/docs/*"}})
	pages, err := c.Crawl(context.Background(), scan)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	got := urls(pages)
	if len(got) != 2 {
		t.Fatalf("Crawl() pages = %v, want root and /docs/intro only", got)
	}
	if got[0] != "https://example.com/" {
		t.Errorf("pages[0] = %s, root must always be visited", got[0])
	}
	if got[1] != "https://example.com/docs/intro" {
		t.Errorf("pages[1] = %s, want https://example.com/docs/intro", got[1])
	}
}

func TestCrawlCapsRepeatedPathTemplates(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]*stubPage{
		"https://example.com/": page(t, "https://example.com/",
			"https://example.com/news?id=1",
			"https://example.com/news?id=2",
			"https://example.com/news?id=3",
			"https://example.com/news?id=4"),
		"https://example.com/news?id=1": page(t, "https://example.com/news?id=1"),
		"https://example.com/news?id=2": page(t, "https://example.com/news?id=2"),
		"https://example.com/news?id=3": page(t, "https://example.com/news?id=3"),
		"https://example.com/news?id=4": page(t, "https://example.com/news?id=4"),
	}}

	c := New(r)
	scan := testScan(model.ScanConfig{MaxDepth: 2, PatternCap: 2})
	pages, err := c.Crawl(context.Background(), scan)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	// Root plus two /news?id=N pages.
	if len(pages) != 3 {
		t.Errorf("Crawl() recorded %d pages, want 3: %v", len(pages), urls(pages))
	}
}

func TestCrawlRecordsErrorPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pages   map[string]*stubPage
		errs    map[string]error
		wantMsg string
	}{
		{
			name: "network failure",
			pages: map[string]*stubPage{
				"https://example.com/": page(t, "https://example.com/", "https://example.com/broken"),
			},
			errs:    map[string]error{"https://example.com/broken": errors.New("connection refused")},
			wantMsg: "connection refused",
		},
		{
			name: "http error status",
			pages: map[string]*stubPage{
				"https://example.com/": page(t, "https://example.com/", "https://example.com/broken"),
				"https://example.com/broken": {
					finalURL: "https://example.com/broken",
					status:   404,
					doc:      htmlDoc(t),
					links:    []string{"https://example.com/hidden"},
				},
			},
			wantMsg: "HTTP 404",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New(&stubRenderer{pages: tt.pages, errs: tt.errs})
			pages, err := c.Crawl(context.Background(), testScan(model.ScanConfig{MaxDepth: 3}))
			if err != nil {
				t.Fatalf("Crawl() error = %v", err)
			}

			var broken *model.Page
			for _, p := range pages {
				if p.URL == "https://example.com/broken" {
					broken = p
				}
				if p.URL == "https://example.com/hidden" {
					t.Error("links from error pages must not be followed")
				}
			}
			if broken == nil {
				t.Fatal("error page was not recorded")
			}
			if broken.Status != model.PageStatusError {
				t.Errorf("status = %s, want error", broken.Status)
			}
			if broken.ErrorMessage != tt.wantMsg {
				t.Errorf("error message = %q, want %q", broken.ErrorMessage, tt.wantMsg)
			}
		})
	}
}

func TestCrawlEmitsProgress(t *testing.T) {
	t.Parallel()

	r := &stubRenderer{pages: map[string]*stubPage{
		"https://example.com/":  page(t, "https://example.com/", "https://example.com/a"),
		"https://example.com/a": page(t, "https://example.com/a"),
	}}

	sink := progress.NewCollectSink()
	c := New(r, WithSink(sink))
	if _, err := c.Crawl(context.Background(), testScan(model.ScanConfig{MaxDepth: 1})); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	discovered := sink.OfType(progress.EventPageDiscovered)
	if len(discovered) != 2 {
		t.Errorf("page-discovered events = %d, want 2", len(discovered))
	}
	batches := sink.OfType(progress.EventBatchProgress)
	if len(batches) == 0 {
		t.Fatal("no batch-progress events emitted")
	}
	last := batches[len(batches)-1]
	if last.Completed != 2 {
		t.Errorf("final batch progress completed = %d, want 2", last.Completed)
	}
}

func TestCrawlStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(&stubRenderer{})
	pages, err := c.Crawl(ctx, testScan(model.ScanConfig{}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Crawl() error = %v, want context.Canceled", err)
	}
	if len(pages) != 0 {
		t.Errorf("Crawl() recorded %d pages after cancellation, want 0", len(pages))
	}
}

func TestCrawlRejectsInvalidRoot(t *testing.T) {
	t.Parallel()

	c := New(&stubRenderer{})
	scan := testScan(model.ScanConfig{})
	scan.RootURL = "ftp://example.com/"
	if _, err := c.Crawl(context.Background(), scan); err == nil {
		t.Error("Crawl() with non-HTTP root should fail")
	}
}
