package textnorm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairGlyphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "kangxi radical sun", in: "开票⽇期", want: "开票日期"},
		{name: "supplement radical yellow", in: "⻩山", want: "黄山"},
		{name: "supplement radical leaf", in: "第1⻚", want: "第1页"},
		{name: "plain text untouched", in: "发票号码：12345", want: "发票号码：12345"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairGlyphs(tt.in))
		})
	}
}

func TestRepairGlyphs_KeepsFullWidthPunctuation(t *testing.T) {
	// Only variant ideographs are rewritten; the full-width colon stays.
	assert.Equal(t, "金额：１００", RepairGlyphs("金额：１００"))
}

func TestFoldWidth(t *testing.T) {
	assert.Equal(t, "100.50", FoldWidth("１００.５０"))
}

func TestCollapseLabelSpaces(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "spaced label", in: "发 票 号 码：12345", want: "发票号码：12345"},
		{name: "space before full-width colon", in: "发票号码 ：12345", want: "发票号码：12345"},
		{name: "ideographic space", in: "购　买　方", want: "购买方"},
		{name: "latin spaces kept", in: "No. 123 456", want: "No. 123 456"},
		{name: "mixed boundary kept", in: "金额 100", want: "金额 100"},
		{name: "newline kept", in: "名称\n杭州", want: "名称\n杭州"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CollapseLabelSpaces(tt.in).Text)
		})
	}
}

func TestViewSourceMapsBack(t *testing.T) {
	src := "发 票 号 码：A 12 345"
	v := CollapseLabelSpaces(src)

	start := strings.Index(v.Text, "A")
	assert.GreaterOrEqual(t, start, 0)
	assert.Equal(t, "A 12 345", v.Source(start, len(v.Text)))
	assert.Equal(t, "发 票", v.Source(0, len("发票")))
	assert.Equal(t, "", v.Source(3, 3))
}

func TestLabelKey(t *testing.T) {
	assert.Equal(t, "发票号码", LabelKey("发 票 号 码："))
	assert.Equal(t, "购买方", LabelKey(" 购买方 "))
	assert.Equal(t, "开票日期", LabelKey("开票⽇期:"))
}
