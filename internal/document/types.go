// Package document holds the read-only input model of the extraction engine:
// a document's full text plus optional positioned text spans.
package document

import (
	"encoding/json"
	"fmt"
	"math"
)

// BBox is an axis-aligned box in page space. The origin is the top-left
// corner of the page and Y grows downward.
type BBox struct {
	X0 float64
	Y0 float64
	X1 float64
	Y1 float64
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// Center returns the midpoint of the box.
func (b BBox) Center() (float64, float64) {
	return (b.X0 + b.X1) / 2, (b.Y0 + b.Y1) / 2
}

// Expand grows the box by dx horizontally and dy vertically on every side.
func (b BBox) Expand(dx, dy float64) BBox {
	return BBox{X0: b.X0 - dx, Y0: b.Y0 - dy, X1: b.X1 + dx, Y1: b.Y1 + dy}
}

// Distance is the Euclidean distance between the centers of two boxes.
func (b BBox) Distance(o BBox) float64 {
	ax, ay := b.Center()
	bx, by := o.Center()
	return math.Hypot(ax-bx, ay-by)
}

// Gap is the shortest edge-to-edge distance between two boxes, zero when
// they overlap or touch.
func (b BBox) Gap(o BBox) float64 {
	dx := math.Max(0, math.Max(o.X0-b.X1, b.X0-o.X1))
	dy := math.Max(0, math.Max(o.Y0-b.Y1, b.Y0-o.Y1))
	return math.Hypot(dx, dy)
}

// HOverlap returns the length of the horizontal overlap of two boxes.
func (b BBox) HOverlap(o BBox) float64 {
	return math.Max(0, math.Min(b.X1, o.X1)-math.Max(b.X0, o.X0))
}

// VOverlap returns the length of the vertical overlap of two boxes.
func (b BBox) VOverlap(o BBox) float64 {
	return math.Max(0, math.Min(b.Y1, o.Y1)-math.Max(b.Y0, o.Y0))
}

// Intersects reports whether the boxes share any point.
func (b BBox) Intersects(o BBox) bool {
	return b.X0 <= o.X1 && o.X0 <= b.X1 && b.Y0 <= o.Y1 && o.Y0 <= b.Y1
}

// Union returns the smallest box containing both boxes.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0: math.Min(b.X0, o.X0),
		Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
	}
}

// Valid reports whether the coordinates are finite and ordered.
func (b BBox) Valid() bool {
	for _, v := range [4]float64{b.X0, b.Y0, b.X1, b.Y1} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 >= b.X0 && b.Y1 >= b.Y0
}

// MarshalJSON encodes the box as [x0, y0, x1, y1].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X0, b.Y0, b.X1, b.Y1})
}

// UnmarshalJSON decodes a box from [x0, y0, x1, y1].
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox: expected 4 coordinates, got %d", len(v))
	}
	*b = BBox{X0: v[0], Y0: v[1], X1: v[2], Y1: v[3]}
	return nil
}

// Span is an atomic run of text with its page number and bounding box, as
// produced by the text-acquisition step.
type Span struct {
	Text string `json:"text"`
	Page uint32 `json:"page"`
	BBox BBox   `json:"bbox"`
}

// Document is one input to the extraction pipeline. Pages in RawText are
// joined by a single newline. Spans are optional.
type Document struct {
	RawText string `json:"raw_text"`
	Spans   []Span `json:"spans,omitempty"`
}

// HasSpans reports whether positional extraction can run on the document.
func (d *Document) HasSpans() bool {
	return d != nil && len(d.Spans) > 0
}
