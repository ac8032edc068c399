package textlayer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/docfields/internal/document"
)

func TestMergeGlyphs_SameBaseline(t *testing.T) {
	glyphs := []glyph{
		{s: "发", x: 100, y: 700, w: 10, size: 10},
		{s: "票", x: 110, y: 700, w: 10, size: 10},
		{s: "号", x: 120, y: 700.5, w: 10, size: 10},
		{s: "码", x: 130, y: 700, w: 10, size: 10},
	}

	spans := mergeGlyphs(glyphs, 1, 800)
	require.Len(t, spans, 1)
	assert.Equal(t, "发票号码", spans[0].Text)
	assert.Equal(t, uint32(1), spans[0].Page)
	assert.InDelta(t, 100, spans[0].BBox.X0, 1e-9)
	assert.InDelta(t, 140, spans[0].BBox.X1, 1e-9)
	// top-left origin: baseline 700 on an 800pt page sits 100pt from the top
	assert.InDelta(t, 92, spans[0].BBox.Y0, 1e-9)
	assert.InDelta(t, 102, spans[0].BBox.Y1, 1e-9)
}

func TestMergeGlyphs_Breaks(t *testing.T) {
	glyphs := []glyph{
		{s: "金", x: 10, y: 500, w: 10, size: 10},
		{s: "额", x: 20, y: 500, w: 10, size: 10},
		{s: " ", x: 30, y: 500, w: 5, size: 10},
		{s: "1", x: 35, y: 500, w: 5, size: 10},
		{s: "2", x: 40, y: 500, w: 5, size: 10},
		// wide gap
		{s: "元", x: 80, y: 500, w: 10, size: 10},
		// next line
		{s: "税", x: 10, y: 480, w: 10, size: 10},
		// jump backwards on the same line
		{s: "额", x: 0, y: 480, w: 10, size: 10},
	}

	spans := mergeGlyphs(glyphs, 2, 600)
	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
	}
	assert.Equal(t, []string{"金额", "12", "元", "税", "额"}, texts)
	for _, s := range spans {
		assert.Equal(t, uint32(2), s.Page)
		assert.True(t, s.BBox.Valid())
	}
}

func TestMergeGlyphs_DefaultsForMissingMetrics(t *testing.T) {
	spans := mergeGlyphs([]glyph{
		{s: "公司", x: 0, y: 100},
		{s: "AB", x: 24, y: 100},
	}, 1, 200)

	require.Len(t, spans, 1)
	assert.Equal(t, "公司AB", spans[0].Text)
	// two CJK runes at full width plus two Latin at half width
	assert.InDelta(t, 36, spans[0].BBox.X1, 1e-9)
}

func TestMergeGlyphs_Empty(t *testing.T) {
	assert.Empty(t, mergeGlyphs(nil, 1, 842))
	assert.Empty(t, mergeGlyphs([]glyph{{s: " "}, {s: "\t"}}, 1, 842))
}

func TestSpanText(t *testing.T) {
	spans := []document.Span{
		{Text: "税额", Page: 1, BBox: document.BBox{X0: 0, Y0: 30, X1: 20, Y1: 40}},
		{Text: "金额", Page: 1, BBox: document.BBox{X0: 0, Y0: 10, X1: 20, Y1: 20}},
		{Text: "100.00", Page: 1, BBox: document.BBox{X0: 40, Y0: 11, X1: 80, Y1: 19}},
	}
	assert.Equal(t, "金额 100.00\n税额", spanText(spans))
}
