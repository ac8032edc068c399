package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// View is a whitespace-collapsed rendering of a source string that keeps a
// byte-level mapping back to the source.
type View struct {
	Text   string
	source string
	start  []int // source offset of the rune that produced each view byte
	end    []int // source offset just past that rune
}

// Source maps the view byte range [start, end) back to the source text.
func (v View) Source(start, end int) string {
	if start >= end || start < 0 || end > len(v.start) {
		return ""
	}
	return v.source[v.start[start]:v.end[end-1]]
}

// IsCJK reports whether r is a Han ideograph, CJK punctuation or a
// full-width form.
func IsCJK(r rune) bool {
	switch {
	case unicode.Is(unicode.Han, r):
		return true
	case r >= 0x3000 && r <= 0x303F:
		return r != '\u3000'
	case r >= 0xFF00 && r <= 0xFFEF:
		return true
	}
	return false
}

func isHorizontalSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\u3000' || r == '\u00a0'
}

// CollapseLabelSpaces removes runs of horizontal whitespace that sit between
// two CJK runes ("发 票 号 码" becomes "发票号码"). Newlines and whitespace
// next to non-CJK text are kept.
func CollapseLabelSpaces(s string) View {
	v := View{source: s}
	var b strings.Builder
	b.Grow(len(s))
	v.start = make([]int, 0, len(s))
	v.end = make([]int, 0, len(s))

	emit := func(from, to int) {
		b.WriteString(s[from:to])
		for i := from; i < to; i++ {
			v.start = append(v.start, from)
			v.end = append(v.end, to)
		}
	}

	var prev rune
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if isHorizontalSpace(r) && IsCJK(prev) {
			j := i
			for j < len(s) {
				rr, sz := utf8.DecodeRuneInString(s[j:])
				if !isHorizontalSpace(rr) {
					break
				}
				j += sz
			}
			if j < len(s) {
				next, _ := utf8.DecodeRuneInString(s[j:])
				if IsCJK(next) {
					i = j
					continue
				}
			}
			emit(i, j)
			prev = ' '
			i = j
			continue
		}
		emit(i, i+size)
		prev = r
		i += size
	}
	v.Text = b.String()
	return v
}

// LabelKey is the canonical form of a label used for label and keyword
// comparison: glyph-repaired, all whitespace removed, trailing colon trimmed.
func LabelKey(s string) string {
	return strings.TrimRight(StripSpaces(RepairGlyphs(s)), ":：")
}

// StripSpaces removes every whitespace rune from s.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
