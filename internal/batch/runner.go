// Package batch runs the extraction engine over many documents at once.
package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/extraction"
	"github.com/a3tai/docfields/internal/templates"
)

// Tracker is told when a document enters and leaves the runner.
type Tracker interface {
	StartDocument()
	FinishDocument(err error)
}

// Outcome is the result of one document. Result is set whenever extraction
// ran, including when no template matched.
type Outcome struct {
	JobID   string             `json:"job_id"`
	Path    string             `json:"path"`
	Result  *extraction.Result `json:"result,omitempty"`
	Error   string             `json:"error,omitempty"`
	Err     error              `json:"-"`
	Elapsed time.Duration      `json:"-"`
}

// Matched reports whether a template matched the document.
func (o Outcome) Matched() bool {
	if o.Result == nil {
		return false
	}
	_, ok := o.Result.MatchedTemplate()
	return ok
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers bounds the number of documents processed concurrently.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracker reports document lifecycles to t.
func WithTracker(t Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithLoader replaces the default document loader.
func WithLoader(l *Loader) Option {
	return func(r *Runner) {
		if l != nil {
			r.loader = l
		}
	}
}

// Runner fans documents out to a shared engine. It is safe for concurrent
// use.
type Runner struct {
	engine  *extraction.Engine
	loader  *Loader
	workers int
	logger  *slog.Logger
	tracker Tracker
}

// NewRunner creates a Runner over engine.
func NewRunner(engine *extraction.Engine, opts ...Option) *Runner {
	r := &Runner{
		engine:  engine,
		loader:  NewLoader(nil),
		workers: runtime.NumCPU(),
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the templates of the underlying engine.
func (r *Runner) Registry() *templates.Registry { return r.engine.Registry() }

// Run extracts every path and returns the outcomes in input order. A
// document that fails to load or matches no template is reported in its
// outcome and never stops the batch; only cancellation of ctx does.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.one(gctx, path)
			if isCancel(outcomes[i].Err) {
				return outcomes[i].Err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (r *Runner) one(ctx context.Context, path string) Outcome {
	return r.process(ctx, path, func() (*document.Document, error) {
		return r.loader.Load(ctx, path)
	})
}

// Extract runs a single in-memory document through the engine. label stands
// in for the path in the outcome and the logs.
func (r *Runner) Extract(ctx context.Context, label string, doc *document.Document) Outcome {
	return r.process(ctx, label, func() (*document.Document, error) { return doc, nil })
}

func (r *Runner) process(ctx context.Context, path string, load func() (*document.Document, error)) Outcome {
	start := time.Now()
	out := Outcome{JobID: uuid.NewString(), Path: path}
	if r.tracker != nil {
		r.tracker.StartDocument()
	}

	doc, err := load()
	if err == nil {
		out.Result, err = r.engine.Extract(ctx, doc)
	}
	out.Elapsed = time.Since(start)
	if err != nil {
		out.Err, out.Error = err, err.Error()
	}

	if r.tracker != nil {
		// Extraction errors are counted by the engine observer.
		if out.Result != nil {
			r.tracker.FinishDocument(nil)
		} else {
			r.tracker.FinishDocument(err)
		}
	}

	switch {
	case err == nil:
		name, _ := out.Result.MatchedTemplate()
		r.logger.InfoContext(ctx, "extract.ok",
			"job_id", out.JobID,
			"path", path,
			"matched_template", name,
			"overall_confidence", out.Result.OverallConfidence(),
			"warnings", len(out.Result.Warnings()),
			"duration_ms", out.Elapsed.Milliseconds(),
		)
	case errors.Is(err, extraction.ErrNotMatched):
		r.logger.WarnContext(ctx, "extract.not_matched",
			"job_id", out.JobID,
			"path", path,
			"error", err,
		)
	default:
		r.logger.ErrorContext(ctx, "extract.failed",
			"job_id", out.JobID,
			"path", path,
			"error", err,
		)
	}
	return out
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
