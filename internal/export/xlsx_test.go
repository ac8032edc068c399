package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/a3tai/docfields/internal/batch"
	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/extraction"
	"github.com/a3tai/docfields/internal/templates"
)

func extract(t *testing.T, text string) (*extraction.Result, error) {
	t.Helper()
	reg, err := templates.NewRegistry(templates.Definition{
		Issuer:   "acme",
		Priority: 1,
		Keywords: []string{"ACME INVOICE"},
		Fields: templates.FieldDefinitions{
			{Name: "invoice_number", Regex: `No\.\s*(\d+)`},
			{Name: "total_amount", Regex: `Total:\s*([\d.]+)`, Type: "money"},
		},
	})
	require.NoError(t, err)
	return extraction.NewEngine(reg).Extract(context.Background(), &document.Document{RawText: text})
}

func TestWriteXLSX(t *testing.T) {
	matched, err := extract(t, "ACME INVOICE No. 1001 Total: 12.5")
	require.NoError(t, err)
	unmatched, notMatched := extract(t, "something else")
	require.Error(t, notMatched)

	loadErr := errors.New("open document: no such file")
	outcomes := []batch.Outcome{
		{JobID: "job-1", Path: "a.json", Result: matched},
		{JobID: "job-2", Path: "b.json", Result: unmatched, Err: notMatched, Error: notMatched.Error()},
		{JobID: "job-3", Path: "c.json", Err: loadErr, Error: loadErr.Error()},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, outcomes))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{DocumentsSheet, FieldsSheet}, f.GetSheetList())

	docs, err := f.GetRows(DocumentsSheet)
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, []string{"Job ID", "Path", "Matched Template", "Overall Confidence", "Warnings", "Error"}, docs[0])
	assert.Equal(t, "job-1", docs[1][0])
	assert.Equal(t, "acme", docs[1][2])
	assert.Equal(t, "job-2", docs[2][0])
	assert.Equal(t, "", docs[2][2])
	assert.Contains(t, docs[2][5], "no template matched")
	assert.Equal(t, "job-3", docs[3][0])
	assert.Equal(t, loadErr.Error(), docs[3][5])

	fields, err := f.GetRows(FieldsSheet)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, []string{"Job ID", "Path", "Field", "Raw", "Normalized", "Source", "Confidence"}, fields[0])
	assert.Equal(t, []string{"job-1", "a.json", "invoice_number", "1001", "1001", "template"}, fields[1][:6])
	assert.Equal(t, []string{"job-1", "a.json", "total_amount", "12.5", "12.50", "template"}, fields[2][:6])
}

func TestWriteXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(FieldsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
