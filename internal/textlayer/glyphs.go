package textlayer

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/textnorm"
)

const (
	defaultFontSize = 12.0
	ascent          = 0.8
	descent         = 0.2
	// baselineTolerance and maxGlyphGap are fractions of the font size.
	baselineTolerance = 0.25
	maxGlyphGap       = 0.5
)

// glyph is one positioned text show in PDF user space: origin bottom-left,
// y on the baseline.
type glyph struct {
	s    string
	x, y float64
	w    float64
	size float64
}

func (g glyph) fontSize() float64 {
	if g.size <= 0 {
		return defaultFontSize
	}
	return g.size
}

func (g glyph) width() float64 {
	if g.w > 0 {
		return g.w
	}
	var w float64
	for _, r := range g.s {
		if textnorm.IsCJK(r) {
			w += g.fontSize()
		} else {
			w += g.fontSize() / 2
		}
	}
	return w
}

type run struct {
	text     strings.Builder
	x0, x1   float64
	baseline float64
	size     float64
}

func (r *run) accepts(g glyph) bool {
	size := math.Max(r.size, g.fontSize())
	if math.Abs(g.y-r.baseline) > baselineTolerance*size {
		return false
	}
	return g.x >= r.x1-baselineTolerance*size && g.x-r.x1 <= maxGlyphGap*size
}

func (r *run) add(g glyph) {
	r.text.WriteString(g.s)
	r.x1 = math.Max(r.x1, g.x+g.width())
	r.size = math.Max(r.size, g.fontSize())
}

// span converts the run to page space with the origin at top.
func (r *run) span(page uint32, top float64) document.Span {
	return document.Span{
		Text: r.text.String(),
		Page: page,
		BBox: document.BBox{
			X0: r.x0,
			Y0: top - (r.baseline + ascent*r.size),
			X1: r.x1,
			Y1: top - (r.baseline - descent*r.size),
		},
	}
}

// mergeGlyphs joins consecutive glyphs that share a baseline and sit close
// together into spans. Whitespace glyphs always end a span.
func mergeGlyphs(glyphs []glyph, page uint32, top float64) []document.Span {
	var (
		spans []document.Span
		cur   *run
	)
	flush := func() {
		if cur != nil && cur.text.Len() > 0 {
			spans = append(spans, cur.span(page, top))
		}
		cur = nil
	}

	for _, g := range glyphs {
		if blank(g.s) {
			flush()
			continue
		}
		if cur != nil && cur.accepts(g) {
			cur.add(g)
			continue
		}
		flush()
		cur = &run{x0: g.x, x1: g.x, baseline: g.y, size: g.fontSize()}
		cur.add(g)
	}
	flush()
	return spans
}

func blank(s string) bool {
	if s == "" {
		return true
	}
	for len(s) > 0 {
		r, n := utf8.DecodeRuneInString(s)
		if !unicode.IsSpace(r) {
			return false
		}
		s = s[n:]
	}
	return true
}

// spanText rebuilds page text from spans when the plain-text pass fails:
// spans on one line are joined by a space, lines by a newline.
func spanText(spans []document.Span) string {
	var (
		b    strings.Builder
		prev *document.Span
	)
	for _, i := range document.ReadingOrder(spans) {
		s := spans[i]
		if prev != nil {
			if prev.BBox.VOverlap(s.BBox) > 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(s.Text)
		prev = &spans[i]
	}
	return b.String()
}
