package batch

import (
	"context"

	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/textlayer"
)

// Loader turns an input path into a document: PDFs through their text
// layer, anything else as the JSON document contract.
type Loader struct {
	pdf *textlayer.Reader
}

// NewLoader returns a Loader reading PDFs with r. A nil r uses the default
// size limit.
func NewLoader(r *textlayer.Reader) *Loader {
	if r == nil {
		r = textlayer.NewReader(0)
	}
	return &Loader{pdf: r}
}

// Load reads the document at path.
func (l *Loader) Load(ctx context.Context, path string) (*document.Document, error) {
	if textlayer.IsPDF(path) {
		return l.pdf.ReadFile(ctx, path)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return document.LoadFile(path)
}
