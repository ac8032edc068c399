package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/extraction"
	"github.com/a3tai/docfields/internal/templates"
)

func scrape(t *testing.T, m *ExtractionMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveExtraction(t *testing.T) {
	reg, err := templates.NewRegistry(templates.Definition{
		Issuer:         "vat",
		Keywords:       []string{"电子发票"},
		Fields:         templates.FieldDefinitions{{Name: "invoice_number", Regex: `发票号码[:：](\d+)`}},
		RequiredFields: []string{"invoice_number"},
	})
	require.NoError(t, err)

	m := NewExtractionMetrics("test")
	engine := extraction.NewEngine(reg, extraction.WithObserver(m))

	_, err = engine.Extract(context.Background(), &document.Document{RawText: "电子发票 发票号码：12345"})
	require.NoError(t, err)
	_, err = engine.Extract(context.Background(), &document.Document{RawText: "电子发票"})
	require.NoError(t, err)
	_, err = engine.Extract(context.Background(), &document.Document{RawText: "receipt"})
	require.ErrorIs(t, err, extraction.ErrNotMatched)

	body := scrape(t, m)
	assert.Contains(t, body, `docfields_extract_documents_total{service="test",status="matched"} 2`)
	assert.Contains(t, body, `docfields_extract_documents_total{service="test",status="not_matched"} 1`)
	assert.Contains(t, body, `docfields_extract_fields_total{service="test",source="template"} 1`)
	assert.Contains(t, body, `docfields_extract_warnings_total{kind="missing_required_field",service="test"} 1`)
	assert.Contains(t, body, `docfields_extract_overall_confidence_count{service="test"} 3`)
}

func TestInFlightAndErrors(t *testing.T) {
	m := NewExtractionMetrics("test")

	m.StartDocument()
	m.StartDocument()
	assert.Contains(t, scrape(t, m), `docfields_extract_documents_in_flight{service="test"} 2`)

	m.FinishDocument(nil)
	m.FinishDocument(errors.New("unreadable pdf"))
	body := scrape(t, m)
	assert.Contains(t, body, `docfields_extract_documents_in_flight{service="test"} 0`)
	assert.Contains(t, body, `docfields_extract_documents_total{service="test",status="error"} 1`)
}
