// Package textlayer turns the text layer of a PDF into a document.Document:
// the plain text of every page and the positioned spans built from its glyphs.
package textlayer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/a3tai/docfields/internal/document"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrInvalidFile marks a path that cannot be read as a PDF.
var ErrInvalidFile = errors.New("invalid pdf file")

// DefaultMaxFileSize bounds the files ReadFile accepts.
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// Reader extracts document text layers from PDF files.
type Reader struct {
	maxFileSize int64
}

// NewReader creates a Reader. A non-positive limit selects DefaultMaxFileSize.
func NewReader(maxFileSize int64) *Reader {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Reader{maxFileSize: maxFileSize}
}

// IsPDF reports whether path names a PDF by extension.
func IsPDF(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

// ReadFile validates path, preflights the file and returns its text layer.
// Scanned pages without a text layer yield no spans and an empty page text.
func (r *Reader) ReadFile(ctx context.Context, path string) (*document.Document, error) {
	if err := r.validate(path); err != nil {
		return nil, err
	}

	pages, err := preflight(path)
	if err != nil {
		return nil, err
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	defer f.Close()

	if n := reader.NumPage(); n < pages {
		pages = n
	}

	doc := &document.Document{}
	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, spans, err := readPage(reader.Page(i), uint32(i))
		if err != nil {
			return nil, fmt.Errorf("read page %d of %s: %w", i, path, err)
		}
		texts = append(texts, text)
		doc.Spans = append(doc.Spans, spans...)
	}
	doc.RawText = strings.Join(texts, "\n")
	return doc, nil
}

func (r *Reader) validate(path string) error {
	if path == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidFile)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: file does not exist: %s", ErrInvalidFile, path)
	}
	if err != nil {
		return fmt.Errorf("%w: cannot access file: %w", ErrInvalidFile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: path is a directory, not a file: %s", ErrInvalidFile, path)
	}
	if !IsPDF(path) {
		return fmt.Errorf("%w: file is not a PDF: %s", ErrInvalidFile, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: file is empty: %s", ErrInvalidFile, path)
	}
	if info.Size() > r.maxFileSize {
		return fmt.Errorf("%w: file too large: %d bytes (max: %d bytes)",
			ErrInvalidFile, info.Size(), r.maxFileSize)
	}
	return nil
}

// preflight parses the cross-reference structure with relaxed validation and
// returns the page count.
func preflight(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pctx, err := api.ReadContext(f, conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if err := pctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("%w: page count: %w", ErrInvalidFile, err)
	}
	return pctx.PageCount, nil
}

// readPage recovers from content-stream panics inside the pdf package so one
// broken page fails the document instead of the process.
func readPage(p pdf.Page, page uint32) (text string, spans []document.Span, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed content stream: %v", rec)
		}
	}()
	if p.V.IsNull() {
		return "", nil, nil
	}

	content := p.Content()
	glyphs := make([]glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, glyph{s: t.S, x: t.X, y: t.Y, w: t.W, size: t.FontSize})
	}
	spans = mergeGlyphs(glyphs, page, pageTop(p))

	text, perr := p.GetPlainText(nil)
	if perr != nil {
		text = spanText(spans)
	}
	return strings.TrimRight(text, "\n"), spans, nil
}

// pageTop reads the upper edge of the inheritable MediaBox; A4 portrait when
// absent.
func pageTop(p pdf.Page) float64 {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			return box.Index(3).Float64()
		}
	}
	return 842
}
