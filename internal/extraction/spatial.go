package extraction

import (
	"sort"

	"github.com/tidwall/rtree"

	"github.com/a3tai/docfields/internal/document"
)

// spanIndex is a per-page R-tree over a subset of a document's spans.
type spanIndex struct {
	pages map[uint32]*rtree.RTreeG[int]
}

func newSpanIndex(spans []document.Span, include func(int) bool) *spanIndex {
	x := &spanIndex{pages: make(map[uint32]*rtree.RTreeG[int])}
	for i, s := range spans {
		if !include(i) {
			continue
		}
		tr, ok := x.pages[s.Page]
		if !ok {
			tr = &rtree.RTreeG[int]{}
			x.pages[s.Page] = tr
		}
		tr.Insert([2]float64{s.BBox.X0, s.BBox.Y0}, [2]float64{s.BBox.X1, s.BBox.Y1}, i)
	}
	return x
}

// within returns, in ascending index order, the spans on page whose boxes
// intersect box.
func (x *spanIndex) within(page uint32, box document.BBox) []int {
	tr, ok := x.pages[page]
	if !ok {
		return nil
	}
	var out []int
	tr.Search([2]float64{box.X0, box.Y0}, [2]float64{box.X1, box.Y1},
		func(_, _ [2]float64, i int) bool {
			out = append(out, i)
			return true
		})
	sort.Ints(out)
	return out
}
