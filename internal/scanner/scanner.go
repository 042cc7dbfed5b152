package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/fingerprint"
	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/progress"
	"github.com/a11yscan/a11yscan/internal/render"
	"github.com/a11yscan/a11yscan/internal/rules"
	"github.com/a11yscan/a11yscan/internal/timeout"
)

const (
	// DefaultEvaluatorTimeout bounds rule evaluation per page.
	DefaultEvaluatorTimeout = 60 * time.Second

	// DefaultSettleDelay is the pause between navigation and
	// evaluation, giving late-loading content a chance to appear.
	DefaultSettleDelay = 1 * time.Second
)

// Scanner evaluates accessibility rules on pages discovered by the
// crawl. It holds no per-scan state.
type Scanner struct {
	renderer  render.Renderer
	evaluator *rules.Evaluator
	engine    *fingerprint.Engine

	// store persists issues and page updates at batch barriers.
	// Nil means results are only returned to the caller.
	store *database.Store

	sink   progress.Sink
	logger *slog.Logger

	// tagFilter restricts evaluation to rules carrying at least one of
	// these guideline tags. Empty runs every rule.
	tagFilter []string

	evaluatorTimeout time.Duration
	settleDelay      time.Duration
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithStore sets the store that receives issues and page updates.
func WithStore(store *database.Store) Option {
	return func(s *Scanner) {
		s.store = store
	}
}

// WithSink sets the progress sink.
func WithSink(sink progress.Sink) Option {
	return func(s *Scanner) {
		s.sink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithTagFilter restricts evaluation to rules tagged with any of the
// given guideline tags (e.g. "wcag2a").
func WithTagFilter(tags []string) Option {
	return func(s *Scanner) {
		s.tagFilter = tags
	}
}

// WithEvaluatorTimeout bounds rule evaluation per page. A page whose
// evaluation exceeds the bound is marked errored.
func WithEvaluatorTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		s.evaluatorTimeout = d
	}
}

// WithSettleDelay sets the pause between navigation and evaluation.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Scanner) {
		s.settleDelay = d
	}
}

// WithFingerprintTimeout bounds region fingerprinting per page. A page
// whose extraction exceeds the bound keeps an empty fingerprint map.
func WithFingerprintTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.engine = fingerprint.New(fingerprint.WithTimeout(d))
		}
	}
}

// New creates a Scanner using the given renderer. The renderer should
// be the same one the crawl ran with so both phases see the same view
// of the site.
func New(renderer render.Renderer, opts ...Option) *Scanner {
	s := &Scanner{
		renderer:         renderer,
		evaluator:        rules.NewEvaluator(),
		engine:           fingerprint.New(),
		sink:             progress.NopSink{},
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		evaluatorTimeout: DefaultEvaluatorTimeout,
		settleDelay:      DefaultSettleDelay,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scan evaluates every pending page and returns the raw issues found.
// Pages are mutated in place: status, title, timing, and fingerprints
// are filled in as each page completes. The scan's page and issue
// counters are updated before returning.
//
// Per-page failures (navigation errors, evaluation timeouts) mark the
// page errored and move on; only persistence failures and cancellation
// abort the phase.
func (s *Scanner) Scan(ctx context.Context, scan *model.Scan, pages []*model.Page) ([]*model.Issue, error) {
	pending := make([]*model.Page, 0, len(pages))
	for _, p := range pages {
		if p.Status == model.PageStatusPending {
			pending = append(pending, p)
		}
	}
	total := len(pending)

	width := scan.Config.Concurrency
	if width < 1 {
		width = 1
	}

	var issues []*model.Issue
	completed := 0
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return issues, err
		}

		batch := pending
		if len(batch) > width {
			batch = batch[:width]
		}
		pending = pending[len(batch):]

		batchIssues := make([][]*model.Issue, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(width)
		for i, page := range batch {
			g.Go(func() error {
				batchIssues[i] = s.scanPage(gctx, scan, page)
				return nil
			})
		}
		// Workers record failures on their page; Wait is a barrier.
		_ = g.Wait()

		flat := make([]*model.Issue, 0)
		for _, pageIssues := range batchIssues {
			flat = append(flat, pageIssues...)
		}
		issues = append(issues, flat...)

		if s.store != nil {
			if err := s.store.BulkInsertIssues(ctx, flat); err != nil {
				return issues, fmt.Errorf("failed to persist issue batch: %w", err)
			}
			for _, page := range batch {
				if err := s.store.UpdatePage(ctx, page); err != nil {
					return issues, fmt.Errorf("failed to persist page update: %w", err)
				}
			}
		}

		completed += len(batch)
		for _, page := range batch {
			s.sink.Emit(progress.Event{
				Type:   progress.EventPageScanned,
				ScanID: scan.ID,
				URL:    page.URL,
			})
		}
		s.sink.Emit(progress.Event{
			Type:      progress.EventBatchProgress,
			ScanID:    scan.ID,
			Completed: completed,
			Total:     total,
		})

		if delay := scan.Config.Delay; delay > 0 && len(pending) > 0 {
			select {
			case <-ctx.Done():
				return issues, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	scanned, errored := 0, 0
	for _, p := range pages {
		switch p.Status {
		case model.PageStatusComplete:
			scanned++
		case model.PageStatusError:
			errored++
		}
	}
	scan.PagesScanned = scanned
	scan.PagesErrored = errored
	scan.TotalIssuesRaw = len(issues)

	return issues, nil
}

// scanPage renders and evaluates one page, mutating it in place, and
// returns the issues found. A nil return with status error means the
// page failed; a nil return with status complete means a clean page.
func (s *Scanner) scanPage(ctx context.Context, scan *model.Scan, page *model.Page) []*model.Issue {
	page.Status = model.PageStatusScanning

	rendered, err := s.renderer.Navigate(ctx, page.URL)
	if err != nil {
		s.failPage(page, fmt.Sprintf("navigation failed: %v", err))
		return nil
	}
	if rendered.StatusCode() >= 400 {
		s.failPage(page, fmt.Sprintf("HTTP %d", rendered.StatusCode()))
		return nil
	}
	doc := rendered.Document()
	if doc == nil {
		s.failPage(page, "not an HTML document")
		return nil
	}

	page.Title = rendered.Title()
	page.HTTPStatus = rendered.StatusCode()
	page.LoadTime = rendered.LoadTime()

	if s.settleDelay > 0 {
		select {
		case <-ctx.Done():
			s.failPage(page, ctx.Err().Error())
			return nil
		case <-time.After(s.settleDelay):
		}
	}

	violations, err := timeout.Do(ctx, s.evaluatorTimeout, func(context.Context) ([]rules.Violation, error) {
		return s.evaluator.Evaluate(doc, s.tagFilter), nil
	})
	if err != nil {
		s.failPage(page, fmt.Sprintf("rule evaluation failed: %v", err))
		return nil
	}

	// Fingerprinting is independent of rule evaluation: it degrades to
	// an empty map on timeout rather than failing the page.
	page.Fingerprints = s.engine.Compute(ctx, doc)

	issues := make([]*model.Issue, 0)
	for _, v := range violations {
		for _, node := range v.Nodes {
			issue := model.NewIssue(scan.ID, page.ID)
			issue.RuleID = v.RuleID
			issue.Description = v.Description
			issue.HelpURL = v.HelpURL
			issue.Severity = model.ParseSeverity(v.Impact)
			issue.Tags = v.Tags
			issue.Target = node.Target
			issue.HTML = node.HTML
			issue.FailureSummary = node.FailureSummary
			if region := classifyRegion(doc, node.Target); region != "" {
				issue.Region = region
				issue.Fingerprint = page.Fingerprints[region]
			}
			issues = append(issues, issue)
		}
	}

	page.Status = model.PageStatusComplete
	return issues
}

// failPage marks a page errored with the given message.
func (s *Scanner) failPage(page *model.Page, msg string) {
	s.logger.Debug("page scan failed",
		slog.String("url", page.URL),
		slog.String("error", msg))
	page.Status = model.PageStatusError
	page.ErrorMessage = msg
}
