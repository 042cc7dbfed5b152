package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/a11yscan/a11yscan/internal/crawler"
	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/dedup"
	"github.com/a11yscan/a11yscan/internal/fingerprint"
	"github.com/a11yscan/a11yscan/internal/model"
	"github.com/a11yscan/a11yscan/internal/progress"
	"github.com/a11yscan/a11yscan/internal/render"
	"github.com/a11yscan/a11yscan/internal/scanner"
	"github.com/a11yscan/a11yscan/internal/score"
)

// RendererFactory produces a renderer for one phase. The crawl and scan
// steps each acquire their own renderer and release it when the phase
// ends, so no two phases share rendering resources.
type RendererFactory func() (render.Renderer, error)

// stepBase carries the collaborators every step shares.
type stepBase struct {
	store  *database.Store
	sink   progress.Sink
	logger *slog.Logger
}

func newStepBase(store *database.Store, sink progress.Sink, logger *slog.Logger) stepBase {
	b := stepBase{store: store, sink: sink, logger: logger}
	if b.sink == nil {
		b.sink = progress.NopSink{}
	}
	if b.logger == nil {
		b.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return b
}

// transition advances the scan's state machine and announces the new
// phase. An invalid transition is a programming error surfaced as a
// phase fault.
func (b stepBase) transition(ctx context.Context, sc *ScanContext, target model.ScanStatus) error {
	if !sc.Scan.Transition(target) {
		return fmt.Errorf("invalid scan transition from %s to %s", sc.Scan.Status, target)
	}
	b.sink.Emit(progress.Event{
		Type:   progress.EventPhaseChanged,
		ScanID: sc.Scan.ID,
		Phase:  string(target),
	})
	return sc.persistScan(ctx)
}

// CrawlStep discovers the scan's pages. It owns the crawling phase.
type CrawlStep struct {
	stepBase
	renderers RendererFactory
}

// NewCrawlStep creates the crawl step.
func NewCrawlStep(renderers RendererFactory, store *database.Store, sink progress.Sink, logger *slog.Logger) *CrawlStep {
	return &CrawlStep{
		stepBase:  newStepBase(store, sink, logger),
		renderers: renderers,
	}
}

// Name returns the step's name.
func (s *CrawlStep) Name() string { return "crawl" }

// Do runs the breadth-first crawl and records the discovered pages.
func (s *CrawlStep) Do(ctx context.Context, sc *ScanContext) error {
	if err := s.transition(ctx, sc, model.ScanStatusCrawling); err != nil {
		return err
	}

	renderer, err := s.renderers()
	if err != nil {
		return fmt.Errorf("failed to acquire crawl renderer: %w", err)
	}
	defer renderer.Close()

	c := crawler.New(renderer,
		crawler.WithStore(s.store),
		crawler.WithSink(s.sink),
		crawler.WithLogger(s.logger),
	)

	pages, err := c.Crawl(ctx, sc.Scan)
	sc.Pages = pages
	sc.Scan.TotalPages = len(pages)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	return sc.persistScan(ctx)
}

// ScanStep evaluates accessibility rules on the crawled pages. It owns
// the scanning phase.
type ScanStep struct {
	stepBase
	renderers RendererFactory

	// EvaluatorTimeout, FingerprintTimeout, SettleDelay, and TagFilter
	// tune per-page evaluation. They are pre-filled with the scanner
	// defaults and may be overridden before the pipeline runs; zero is
	// a valid settle delay.
	EvaluatorTimeout   time.Duration
	FingerprintTimeout time.Duration
	SettleDelay        time.Duration
	TagFilter          []string
}

// NewScanStep creates the scan step.
func NewScanStep(renderers RendererFactory, store *database.Store, sink progress.Sink, logger *slog.Logger) *ScanStep {
	return &ScanStep{
		stepBase:           newStepBase(store, sink, logger),
		renderers:          renderers,
		EvaluatorTimeout:   scanner.DefaultEvaluatorTimeout,
		FingerprintTimeout: fingerprint.DefaultTimeout,
		SettleDelay:        scanner.DefaultSettleDelay,
	}
}

// Name returns the step's name.
func (s *ScanStep) Name() string { return "scan" }

// Do evaluates every pending page and collects the raw issues.
func (s *ScanStep) Do(ctx context.Context, sc *ScanContext) error {
	if err := s.transition(ctx, sc, model.ScanStatusScanning); err != nil {
		return err
	}

	renderer, err := s.renderers()
	if err != nil {
		return fmt.Errorf("failed to acquire scan renderer: %w", err)
	}
	defer renderer.Close()

	issues, err := scanner.New(renderer,
		scanner.WithStore(s.store),
		scanner.WithSink(s.sink),
		scanner.WithLogger(s.logger),
		scanner.WithTagFilter(s.TagFilter),
		scanner.WithEvaluatorTimeout(s.EvaluatorTimeout),
		scanner.WithFingerprintTimeout(s.FingerprintTimeout),
		scanner.WithSettleDelay(s.SettleDelay),
	).Scan(ctx, sc.Scan, sc.Pages)
	sc.Issues = issues
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	return sc.persistScan(ctx)
}

// AnalyzeStep deduplicates the raw findings, computes the score, and
// completes the scan. It owns the analyzing phase.
type AnalyzeStep struct {
	stepBase
}

// NewAnalyzeStep creates the analyze step.
func NewAnalyzeStep(store *database.Store, sink progress.Sink, logger *slog.Logger) *AnalyzeStep {
	return &AnalyzeStep{stepBase: newStepBase(store, sink, logger)}
}

// Name returns the step's name.
func (s *AnalyzeStep) Name() string { return "analyze" }

// Do groups the scan's issues, aggregates the summary, and transitions
// the scan to complete. Deduplication itself never fails the scan; only
// state persistence can.
func (s *AnalyzeStep) Do(ctx context.Context, sc *ScanContext) error {
	if err := s.transition(ctx, sc, model.ScanStatusAnalyzing); err != nil {
		return err
	}

	engine := dedup.New(
		dedup.WithThreshold(sc.Scan.Config.SharedThreshold),
		dedup.WithLogger(s.logger),
	)
	sc.Groups = engine.Deduplicate(sc.Scan, sc.Pages, sc.Issues)

	if s.store != nil {
		// Re-analysis replaces any earlier grouping wholesale.
		if err := s.store.DeleteGroups(ctx, sc.Scan.ID); err != nil {
			return fmt.Errorf("failed to clear previous groups: %w", err)
		}
		if err := s.store.InsertGroups(ctx, sc.Groups); err != nil {
			return fmt.Errorf("failed to persist groups: %w", err)
		}
		if err := s.store.UpdateIssueGroups(ctx, sc.Issues); err != nil {
			return fmt.Errorf("failed to persist issue grouping: %w", err)
		}
	}

	sc.Summary = score.Summarize(sc.Scan, sc.Issues, sc.Groups)
	sc.Scan.Score = sc.Summary.Score

	if err := s.transition(ctx, sc, model.ScanStatusComplete); err != nil {
		return err
	}
	sc.Summary.Status = sc.Scan.Status
	sc.Summary.FinishedAt = sc.Scan.FinishedAt

	return nil
}
