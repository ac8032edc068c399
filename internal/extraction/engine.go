// Package extraction turns a document's text and spans into a structured
// record of named fields. The pipeline runs template matching, positional
// extraction, reconciliation, normalisation and confidence scoring in that
// order. An Engine holds no per-document state and may be shared by
// concurrent callers.
package extraction

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/templates"
	"github.com/a3tai/docfields/internal/textnorm"
)

// Observer receives one call per finished extraction.
type Observer interface {
	ObserveExtraction(res *Result, err error, elapsed time.Duration)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-document debug events.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPositionalConfig overrides the proximity search limits.
func WithPositionalConfig(cfg PositionalConfig) Option {
	return func(e *Engine) { e.positional = NewPositional(cfg) }
}

// WithMinPlausibleRunes sets the shortest template capture accepted without
// a positional alternative.
func WithMinPlausibleRunes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minRunes = n
		}
	}
}

// WithObserver reports every extraction to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine runs the extraction pipeline against a fixed template registry.
type Engine struct {
	reg        *templates.Registry
	matcher    *Matcher
	positional *Positional
	minRunes   int
	logger     *slog.Logger
	observer   Observer
}

// NewEngine returns an Engine over reg.
func NewEngine(reg *templates.Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:        reg,
		matcher:    NewMatcher(reg),
		positional: NewPositional(DefaultPositionalConfig()),
		minRunes:   DefaultMinPlausibleRunes,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the templates the engine matches against.
func (e *Engine) Registry() *templates.Registry { return e.reg }

// Extract runs the pipeline on doc. A result is returned whenever the
// context was not cancelled; when no template matched it comes with a
// *NotMatchedError and holds the positional fields only.
func (e *Engine) Extract(ctx context.Context, doc *document.Document) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &document.Document{}
	}

	tm, ok := e.matcher.Match(doc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pr := e.positional.Extract(doc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := merge(tm, pr, e.minRunes)
	norm := normalize(rec)
	overall := score(rec, norm)

	res := &Result{
		fields:   rec.fields,
		overall:  overall,
		warnings: rec.warnings,
	}
	var err error
	if ok {
		res.matched, res.matchedTemplate = true, tm.Template.Issuer
	} else {
		err = &NotMatchedError{Closest: closestKeywords(e.reg, textnorm.RepairGlyphs(doc.RawText))}
	}

	elapsed := time.Since(start)
	e.logger.DebugContext(ctx, "extract.done",
		"matched_template", res.matchedTemplate,
		"fields", len(res.fields),
		"warnings", len(res.warnings),
		"overall_confidence", res.overall,
		"duration_ms", elapsed.Milliseconds(),
	)
	if e.observer != nil {
		e.observer.ObserveExtraction(res, err, elapsed)
	}
	return res, err
}
