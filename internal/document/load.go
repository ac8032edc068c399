package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// ErrInvalidDocument marks input that does not satisfy the document contract.
var ErrInvalidDocument = errors.New("invalid document")

// Decode reads a Document in the JSON input contract from r.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads a JSON document from path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// Validate checks span geometry. Empty documents are valid.
func (d *Document) Validate() error {
	for i, s := range d.Spans {
		if !s.BBox.Valid() {
			return fmt.Errorf("%w: span %d has malformed bbox", ErrInvalidDocument, i)
		}
	}
	return nil
}

// ReadingOrder returns the indexes of spans sorted by page, then top to
// bottom, then left to right. The input slice is not modified.
func ReadingOrder(spans []Span) []int {
	idx := make([]int, len(spans))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := spans[idx[a]], spans[idx[b]]
		if sa.Page != sb.Page {
			return sa.Page < sb.Page
		}
		if sa.BBox.Y0 != sb.BBox.Y0 {
			return sa.BBox.Y0 < sb.BBox.Y0
		}
		return sa.BBox.X0 < sb.BBox.X0
	})
	return idx
}
