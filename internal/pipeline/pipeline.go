package pipeline

import (
	"context"
	"log/slog"

	"github.com/a11yscan/a11yscan/internal/database"
	"github.com/a11yscan/a11yscan/internal/model"
)

// ScanContext carries one scan's state through the pipeline. All
// traversal and evaluation state lives here rather than on long-lived
// coordinator objects, so concurrent scans stay fully isolated.
type ScanContext struct {
	// Scan is the scan record, mutated by each step.
	Scan *model.Scan

	// Store persists scan state between steps. Nil runs the pipeline
	// purely in memory, which tests rely on.
	Store *database.Store

	// Pages is filled by the crawl step.
	Pages []*model.Page

	// Issues is filled by the scan step.
	Issues []*model.Issue

	// Groups is filled by the analyze step.
	Groups []*model.ComponentGroup

	// Summary is the report-facing aggregate, filled by the analyze step.
	Summary *model.Summary
}

// NewScanContext creates a pipeline context for the given scan.
func NewScanContext(scan *model.Scan, store *database.Store) *ScanContext {
	return &ScanContext{Scan: scan, Store: store}
}

// persistScan writes the scan record through the store, if any.
func (sc *ScanContext) persistScan(ctx context.Context) error {
	if sc.Store == nil {
		return nil
	}
	return sc.Store.UpdateScan(ctx, sc.Scan)
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the accumulated scan
// context from previous steps.
//
// Design decision: We use an interface rather than function types because:
//  1. It allows steps to carry configuration state
//  2. It provides a Name() method for logging and debugging
//  3. It's more extensible for future features
type Step interface {
	// Do executes the pipeline step. It returns an error only for
	// phase-level faults; per-page faults are recorded on the pages
	// and never abort the phase.
	Do(ctx context.Context, sc *ScanContext) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, a default logger is created.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence. A step error is a phase
// fault: the scan is marked failed (terminal, never retried
// automatically) and execution stops.
//
// Design decision: We check context.Done() before each step rather than
// during, because steps handle their own cancellation at batch
// boundaries. This allows in-flight page operations to settle between
// steps while still respecting cancellation.
func (p *Pipeline) Execute(ctx context.Context, sc *ScanContext) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				slog.String("step", step.Name()),
				slog.String("scan_id", sc.Scan.ID),
				slog.Any("reason", ctx.Err()))
			p.fail(ctx, sc, "scan cancelled: "+ctx.Err().Error())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			slog.String("step", step.Name()),
			slog.String("scan_id", sc.Scan.ID),
			slog.String("root_url", sc.Scan.RootURL))

		if err := step.Do(ctx, sc); err != nil {
			p.logger.Error("step failed",
				slog.String("step", step.Name()),
				slog.String("scan_id", sc.Scan.ID),
				slog.String("error", err.Error()))
			p.fail(ctx, sc, err.Error())
			return err
		}

		p.logger.Debug("step completed",
			slog.String("step", step.Name()),
			slog.String("scan_id", sc.Scan.ID))
	}

	return nil
}

// fail marks the scan failed and persists it on a best-effort basis.
// Persistence uses a fresh context so a cancelled scan still records
// its terminal state.
func (p *Pipeline) fail(ctx context.Context, sc *ScanContext, msg string) {
	sc.Scan.Fail(msg)
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := sc.persistScan(ctx); err != nil {
		p.logger.Error("failed to persist failed scan",
			slog.String("scan_id", sc.Scan.ID),
			slog.String("error", err.Error()))
	}
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
