package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/progress"
	"github.com/a11yscan/a11yscan/internal/render"
	"github.com/a11yscan/a11yscan/internal/urlutil"
)

// Crawler walks a site breadth-first from a scan's root URL, recording
// one page per unique normalized URL.
//
// A Crawler holds no per-scan state and may run scans sequentially; all
// traversal state lives in the crawl created by each [Crawler.Crawl]
// call.
type Crawler struct {
	// renderer navigates URLs and produces rendered pages.
	renderer render.Renderer

	// store persists discovered pages batch by batch. Nil means pages
	// are only returned to the caller, which tests rely on.
	store *database.Store

	// sink receives page-discovered and batch-progress events.
	sink progress.Sink

	// logger records per-page failures at debug level.
	logger *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithStore sets the store that receives discovered pages. Each crawl
// batch is persisted in one transaction.
func WithStore(store *database.Store) Option {
	return func(c *Crawler) {
		c.store = store
	}
}

// WithSink sets the progress sink.
func WithSink(sink progress.Sink) Option {
	return func(c *Crawler) {
		c.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler using the given renderer.
//
// Design decision: We require an external renderer because:
//  1. Renderer configuration (headers, rate limits, viewport) is the
//     render package's concern
//  2. The scan phase reuses the same renderer, so both phases see the
//     same view of the site
//  3. Tests can substitute a stub without network access
func New(renderer render.Renderer, opts ...Option) *Crawler {
	c := &Crawler{
		renderer: renderer,
		sink:     progress.NopSink{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// crawl holds the traversal state of one Crawl call.
type crawl struct {
	scan     *model.Scan
	rootHost string

	// queue is the BFS frontier.
	queue []queueItem

	// visited holds normalized URLs whose content has been recorded,
	// including redirect targets.
	visited map[string]bool

	// queued holds every normalized URL ever enqueued, so a URL linked
	// from many pages enters the frontier once.
	queued map[string]bool

	// patterns counts visits per path template for the pattern cap.
	patterns map[string]int

	pages []*model.Page
}

// queueItem is one frontier entry.
type queueItem struct {
	url   string
	depth int
}

// navResult pairs a frontier entry with its navigation outcome.
type navResult struct {
	item queueItem
	page render.Page
	err  error
}

// Crawl discovers pages starting from the scan's root URL and returns
// them in discovery order. Error pages (network failures, HTTP error
// statuses, non-HTML responses) are recorded with status error so they
// are never re-queued, but contribute no links.
//
// Cancellation is checked at batch boundaries: a cancelled crawl
// returns the pages recorded so far together with the context error.
func (c *Crawler) Crawl(ctx context.Context, scan *model.Scan) ([]*model.Page, error) {
	root, err := urlutil.Normalize(scan.RootURL)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}

	host, err := urlutil.Host(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root URL: %w", err)
	}

	st := &crawl{
		scan:     scan,
		rootHost: host,
		queue:    []queueItem{{url: root, depth: 0}},
		visited:  make(map[string]bool),
		queued:   map[string]bool{root: true},
		patterns: map[string]int{urlutil.PatternKey(root): 1},
	}

	for len(st.queue) > 0 && len(st.pages) < c.maxPages(scan) {
		if err := ctx.Err(); err != nil {
			return st.pages, err
		}

		batch := c.takeBatch(st)
		results := c.navigateBatch(ctx, batch)

		recorded := make([]*model.Page, 0, len(results))
		for _, res := range results {
			if page := c.record(st, res); page != nil {
				recorded = append(recorded, page)
			}
		}

		if c.store != nil {
			if err := c.store.BulkInsertPages(ctx, recorded); err != nil {
				return st.pages, fmt.Errorf("failed to persist crawl batch: %w", err)
			}
		}

		for _, page := range recorded {
			c.sink.Emit(progress.Event{
				Type:   progress.EventPageDiscovered,
				ScanID: scan.ID,
				URL:    page.URL,
			})
		}
		c.sink.Emit(progress.Event{
			Type:      progress.EventBatchProgress,
			ScanID:    scan.ID,
			Completed: len(st.pages),
			Total:     c.maxPages(scan),
		})

		if delay := scan.Config.Delay; delay > 0 && len(st.queue) > 0 {
			select {
			case <-ctx.Done():
				return st.pages, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return st.pages, nil
}

// maxPages returns the effective page cap. Ceiling at one keeps a
// misconfigured scan from looping forever.
func (c *Crawler) maxPages(scan *model.Scan) int {
	if scan.Config.MaxPages < 1 {
		return 1
	}
	return scan.Config.MaxPages
}

// takeBatch pops up to one batch of frontier entries. The batch is
// bounded by both the concurrency setting and the remaining page
// budget, so a crawl never navigates pages it cannot record.
func (c *Crawler) takeBatch(st *crawl) []queueItem {
	width := st.scan.Config.Concurrency
	if width < 1 {
		width = 1
	}
	if remaining := c.maxPages(st.scan) - len(st.pages); width > remaining {
		width = remaining
	}
	if width > len(st.queue) {
		width = len(st.queue)
	}

	batch := st.queue[:width]
	st.queue = st.queue[width:]
	return batch
}

// navigateBatch fetches one batch of URLs in parallel. Navigation
// errors are carried in the results rather than aborting the batch.
func (c *Crawler) navigateBatch(ctx context.Context, batch []queueItem) []navResult {
	results := make([]navResult, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(batch))
	for i, item := range batch {
		g.Go(func() error {
			page, err := c.renderer.Navigate(gctx, item.url)
			results[i] = navResult{item: item, page: page, err: err}
			return nil
		})
	}
	// Workers never return errors; Wait is a barrier.
	_ = g.Wait()

	return results
}

// record turns one navigation result into a page record and enqueues
// its links. It returns nil when the result resolves to an already
// visited page.
func (c *Crawler) record(st *crawl, res navResult) *model.Page {
	// A queued URL can become visited before its own navigation
	// completes when a sibling URL redirects onto it. Such a result
	// carries the same content as the recorded redirect target.
	if st.visited[res.item.url] {
		return nil
	}
	st.visited[res.item.url] = true

	if res.err != nil {
		c.logger.Debug("page failed to load",
			slog.String("url", res.item.url),
			slog.String("error", res.err.Error()))
		page := model.NewPage(st.scan.ID, res.item.url, res.item.depth)
		page.Status = model.PageStatusError
		page.ErrorMessage = res.err.Error()
		st.pages = append(st.pages, page)
		return page
	}

	// Redirects collapse onto their target: if the final URL was
	// already recorded under another alias, this entry adds nothing.
	final := res.item.url
	if normalized, err := urlutil.Normalize(res.page.FinalURL()); err == nil {
		final = normalized
	}
	if final != res.item.url {
		if st.visited[final] {
			return nil
		}
		st.visited[final] = true
	}

	page := model.NewPage(st.scan.ID, final, res.item.depth)
	page.Title = res.page.Title()
	page.HTTPStatus = res.page.StatusCode()
	page.LoadTime = res.page.LoadTime()

	switch {
	case res.page.StatusCode() >= 400:
		page.Status = model.PageStatusError
		page.ErrorMessage = fmt.Sprintf("HTTP %d", res.page.StatusCode())
	case res.page.Document() == nil:
		page.Status = model.PageStatusError
		page.ErrorMessage = "not an HTML document"
	default:
		if res.item.depth < st.scan.Config.MaxDepth {
			c.enqueueLinks(st, res.page.Links(), res.item.depth+1)
		}
	}

	st.pages = append(st.pages, page)
	return page
}

// enqueueLinks adds a page's outbound links to the frontier, applying
// the same-origin, exclude/follow-pattern, dedup, and pattern-cap
// filters.
func (c *Crawler) enqueueLinks(st *crawl, links []string, depth int) {
	for _, link := range links {
		normalized, err := urlutil.Normalize(link)
		if err != nil {
			continue
		}
		if !urlutil.SameOrigin(st.rootHost, normalized) {
			continue
		}
		if urlutil.MatchAny(st.scan.Config.ExcludePatterns, normalized) {
			continue
		}
		if follow := st.scan.Config.FollowPatterns; len(follow) > 0 && !urlutil.MatchAny(follow, normalized) {
			continue
		}
		if st.queued[normalized] || st.visited[normalized] {
			continue
		}

		if limit := st.scan.Config.PatternCap; limit > 0 {
			key := urlutil.PatternKey(normalized)
			if st.patterns[key] >= limit {
				continue
			}
			st.patterns[key]++
		}

		st.queued[normalized] = true
		st.queue = append(st.queue, queueItem{url: normalized, depth: depth})
	}
}
