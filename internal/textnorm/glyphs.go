// Package textnorm repairs text-acquisition artifacts in CJK documents:
// ideographic variant codepoints and whitespace injected between glyphs.
package textnorm

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// supplementRadicals covers CJK Radicals Supplement codepoints that some
// text layers emit for simplified characters. They carry no Unicode
// decomposition, so they are listed explicitly.
var supplementRadicals = map[rune]rune{
	'⺠': '民',
	'⻄': '西',
	'⻅': '见',
	'⻉': '贝',
	'⻋': '车',
	'⻓': '长',
	'⻔': '门',
	'⻘': '青',
	'⻚': '页',
	'⻛': '风',
	'⻜': '飞',
	'⻢': '马',
	'⻥': '鱼',
	'⻩': '黄',
}

var variantRanges = [][2]rune{
	{0x2F00, 0x2FDF},   // Kangxi radicals
	{0xF900, 0xFAFF},   // CJK compatibility ideographs
	{0x2F800, 0x2FA1F}, // CJK compatibility ideographs supplement
}

var glyphTable = buildGlyphTable()

func buildGlyphTable() map[rune]rune {
	table := make(map[rune]rune, 1024)
	for _, rg := range variantRanges {
		for r := rg[0]; r <= rg[1]; r++ {
			mapped := norm.NFKC.String(string(r))
			if utf8.RuneCountInString(mapped) != 1 {
				continue
			}
			if m, _ := utf8.DecodeRuneInString(mapped); m != r {
				table[r] = m
			}
		}
	}
	for from, to := range supplementRadicals {
		table[from] = to
	}
	return table
}

// RepairGlyphs maps known ideographic variant codepoints to their canonical
// form. All other runes pass through unchanged.
func RepairGlyphs(s string) string {
	if !hasVariant(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if m, ok := glyphTable[r]; ok {
			r = m
		}
		b.WriteRune(r)
	}
	return b.String()
}

func hasVariant(s string) bool {
	for _, r := range s {
		if _, ok := glyphTable[r]; ok {
			return true
		}
	}
	return false
}

// FoldWidth converts full-width ASCII variants (digits, letters, punctuation)
// to their narrow forms. Used before numeric parsing only.
func FoldWidth(s string) string {
	return norm.NFKC.String(s)
}
