package extraction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/templates"
)

func mustRegistry(t *testing.T, defs ...templates.Definition) *templates.Registry {
	t.Helper()
	reg, err := templates.NewRegistry(defs...)
	require.NoError(t, err)
	return reg
}

func field(name, regex string) templates.FieldDefinition {
	return templates.FieldDefinition{Name: name, Regex: regex}
}

func typed(name, regex, typ string) templates.FieldDefinition {
	return templates.FieldDefinition{Name: name, Regex: regex, Type: typ}
}

func span(text string, x0, y0, x1, y1 float64) document.Span {
	return document.Span{Text: text, Page: 1, BBox: document.BBox{X0: x0, Y0: y0, X1: x1, Y1: y1}}
}

// vatDefinition is a typical electronic VAT invoice template.
func vatDefinition() templates.Definition {
	return templates.Definition{
		Issuer:   "vat-electronic",
		Priority: 10,
		Keywords: []string{"电子发票"},
		Fields: templates.FieldDefinitions{
			field("invoice_number", `发票号码[:：]\s*(\d+)`),
			typed("invoice_date", `开票日期[:：]\s*(\S+)`, "date"),
			typed("pretax_amount", `不含税金额[:：]\s*([\d.,]+)`, "money"),
			typed("tax_amount", `税额[:：]\s*([\d.,]+)`, "money"),
			typed("total_amount", `价税合计[:：]\s*([\d.,]+)`, "money"),
			field("buyer_name", `购买方名称[:：]\s*(\S+)`),
		},
		RequiredFields: []string{"invoice_number", "total_amount"},
	}
}
