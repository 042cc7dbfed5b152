package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchProcessor runs pipelines for multiple root URLs concurrently.
// It uses errgroup to manage goroutines and respect concurrency limits.
//
// Design decision: We use a separate BatchProcessor rather than adding
// batch functionality to Pipeline because:
//  1. It keeps the Pipeline focused on single-scan execution
//  2. It allows different batch strategies (e.g., rate limiting, retries)
//  3. It provides cleaner separation of concerns
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each scan.
	// We use a factory to ensure each scan gets a fresh pipeline instance.
	pipelineFactory func() *Pipeline

	// contextFactory creates the per-scan context for one root URL.
	// Creation errors (invalid URL, store failures) surface as a
	// failed scan context, not a batch abort.
	contextFactory func(ctx context.Context, rootURL string) (*ScanContext, error)

	// concurrency is the maximum number of concurrent scans.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed scan contexts.
	// Access is synchronized via mutex.
	results []*ScanContext
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Default is 2 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The factories are called once per root URL so that pipeline and scan
// state never leak between targets.
func NewBatchProcessor(
	pipelineFactory func() *Pipeline,
	contextFactory func(ctx context.Context, rootURL string) (*ScanContext, error),
	opts ...BatchOption,
) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		contextFactory:  contextFactory,
		concurrency:     2,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans multiple root URLs concurrently. It respects the
// configured concurrency limit and context cancellation.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because it's simpler and errgroup handles the concurrency correctly.
// Each target gets its own goroutine, but only 'concurrency' goroutines
// run simultaneously.
//
// Returns all scan contexts collected, even for targets that failed;
// a failed target's error lives on its scan record. The error return
// indicates batch-level cancellation only.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, rootURLs []string) ([]*ScanContext, error) {
	bp.logger.Info("starting batch processing",
		slog.Int("total_targets", len(rootURLs)),
		slog.Int("concurrency", bp.concurrency))

	startTime := time.Now()

	// Pre-allocate results slice to maintain input order.
	bp.results = make([]*ScanContext, len(rootURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, rootURL := range rootURLs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			bp.logger.Info("scanning target",
				slog.String("root_url", rootURL),
				slog.Int("index", i+1),
				slog.Int("total", len(rootURLs)))

			sc, err := bp.contextFactory(gctx, rootURL)
			if err != nil {
				bp.logger.Warn("failed to prepare scan",
					slog.String("root_url", rootURL),
					slog.String("error", err.Error()))
				return nil
			}

			bp.mu.Lock()
			bp.results[i] = sc
			bp.mu.Unlock()

			// A failed scan records its error on the scan itself; we
			// keep processing the other targets.
			if err := bp.pipelineFactory().Execute(gctx, sc); err != nil {
				bp.logger.Warn("scan failed",
					slog.String("root_url", rootURL),
					slog.String("error", err.Error()))
				return nil
			}

			bp.logger.Info("scan completed",
				slog.String("root_url", rootURL),
				slog.Float64("score", sc.Scan.Score))
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		slog.Int("total_targets", len(rootURLs)),
		slog.Duration("elapsed", time.Since(startTime)))

	results := make([]*ScanContext, 0, len(rootURLs))
	for _, sc := range bp.results {
		if sc != nil {
			results = append(results, sc)
		}
	}
	return results, err
}
