package document

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{
		"raw_text": "发票号码：12345678\n第二页",
		"spans": [{"text": "发票号码", "page": 1, "bbox": [10, 20, 60, 32]}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "发票号码：12345678\n第二页", doc.RawText)
	require.Len(t, doc.Spans, 1)
	assert.Equal(t, Span{Text: "发票号码", Page: 1, BBox: BBox{X0: 10, Y0: 20, X1: 60, Y1: 32}}, doc.Spans[0])
	assert.True(t, doc.HasSpans())
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `raw_text`},
		{"bbox too short", `{"raw_text": "", "spans": [{"text": "a", "page": 1, "bbox": [1, 2, 3]}]}`},
		{"bbox inverted", `{"raw_text": "", "spans": [{"text": "a", "page": 1, "bbox": [5, 5, 1, 1]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDocument))
		})
	}
}

func TestEmptyDocumentIsValid(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"raw_text": ""}`))
	require.NoError(t, err)
	assert.False(t, doc.HasSpans())

	var nilDoc *Document
	assert.False(t, nilDoc.HasSpans())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"raw_text": "hi"}`), 0o600))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hi", doc.RawText)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidDocument))
}

func TestBBoxGeometry(t *testing.T) {
	a := BBox{X0: 0, Y0: 0, X1: 10, Y1: 10}
	b := BBox{X0: 13, Y0: 14, X1: 20, Y1: 20}

	assert.Equal(t, 10.0, a.Width())
	assert.Equal(t, 10.0, a.Height())
	assert.InDelta(t, 5.0, a.Gap(b), 1e-9)
	assert.InDelta(t, math.Hypot(11.5, 12), a.Distance(b), 1e-9)
	assert.Zero(t, a.HOverlap(b))
	assert.Equal(t, BBox{X0: 0, Y0: 0, X1: 20, Y1: 20}, a.Union(b))
	assert.False(t, a.Intersects(b))
	assert.True(t, a.Expand(3, 4).Intersects(b))
	assert.Equal(t, 4.0, a.VOverlap(BBox{X0: 50, Y0: 6, X1: 60, Y1: 30}))

	assert.True(t, a.Valid())
	assert.False(t, BBox{X0: math.NaN()}.Valid())
	assert.False(t, BBox{X0: 0, Y0: 0, X1: math.Inf(1), Y1: 1}.Valid())
}

func TestBBoxJSON(t *testing.T) {
	data, err := json.Marshal(BBox{X0: 1, Y0: 2.5, X1: 3, Y1: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `[1, 2.5, 3, 4]`, string(data))
}

func TestReadingOrder(t *testing.T) {
	spans := []Span{
		{Text: "p2", Page: 2, BBox: BBox{X0: 0, Y0: 0, X1: 1, Y1: 1}},
		{Text: "right", Page: 1, BBox: BBox{X0: 50, Y0: 10, X1: 60, Y1: 20}},
		{Text: "left", Page: 1, BBox: BBox{X0: 0, Y0: 10, X1: 10, Y1: 20}},
		{Text: "top", Page: 1, BBox: BBox{X0: 90, Y0: 0, X1: 99, Y1: 5}},
	}
	order := ReadingOrder(spans)

	got := make([]string, len(order))
	for i, idx := range order {
		got[i] = spans[idx].Text
	}
	assert.Equal(t, []string{"top", "left", "right", "p2"}, got)
	assert.Equal(t, "p2", spans[0].Text)
}
