package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const vatTemplate = `issuer: vat-electronic
priority: 10
keywords: ["电子发票"]
fields:
  invoice_number:
    regex: '发票号码[:：]\s*(\d+)'
    required: true
  total_amount:
    regex: '价税合计[:：]\s*([\d.,]+)'
    type: money
`

func setup(t *testing.T) (tplDir, docDir string) {
	t.Helper()
	tplDir, docDir = t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tplDir, "vat.yaml"), []byte(vatTemplate), 0o600))
	return tplDir, docDir
}

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_JSONToStdout(t *testing.T) {
	tplDir, docDir := setup(t)
	a := writeDoc(t, docDir, "a.json", `{"raw_text": "电子发票\n发票号码：20240001\n价税合计：1,130.00"}`)
	b := writeDoc(t, docDir, "b.json", `{"raw_text": "收据"}`)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--templates", tplDir, "--workers", "2", a, b}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var outcomes []struct {
		Path   string `json:"path"`
		Error  string `json:"error"`
		Result struct {
			MatchedTemplate *string `json:"matched_template"`
			Fields          map[string]struct {
				Normalized any `json:"normalized"`
			} `json:"fields"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &outcomes))
	require.Len(t, outcomes, 2)

	assert.Equal(t, a, outcomes[0].Path)
	require.NotNil(t, outcomes[0].Result.MatchedTemplate)
	assert.Equal(t, "vat-electronic", *outcomes[0].Result.MatchedTemplate)
	assert.Equal(t, 1130.0, outcomes[0].Result.Fields["total_amount"].Normalized)

	assert.Equal(t, b, outcomes[1].Path)
	assert.Nil(t, outcomes[1].Result.MatchedTemplate)
	assert.Contains(t, outcomes[1].Error, "no template matched")

	assert.Contains(t, stderr.String(), `"msg":"batch.done"`)
}

func TestRun_XLSXToFile(t *testing.T) {
	tplDir, docDir := setup(t)
	a := writeDoc(t, docDir, "a.json", `{"raw_text": "电子发票 发票号码：20240001"}`)
	out := filepath.Join(t.TempDir(), "review.xlsx")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--templates", tplDir, "--format", "xlsx", "-o", out, a}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())
	assert.Zero(t, stdout.Len())

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Documents")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, a, rows[1][1])
}

func TestRun_UnreadableInput(t *testing.T) {
	tplDir, docDir := setup(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--templates", tplDir, filepath.Join(docDir, "missing.json")}, &stdout, &stderr)
	assert.Equal(t, exitUnreadable, code)
	assert.Contains(t, stdout.String(), "no such file")
}

func TestRun_Usage(t *testing.T) {
	tplDir, _ := setup(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"version", []string{"--version"}, exitOK, "Version:", ""},
		{"help", []string{"--help"}, exitOK, "", "Usage of docfields"},
		{"no inputs", []string{"--templates", tplDir}, exitFailure, "", "No input documents"},
		{"bad format", []string{"--templates", tplDir, "--format", "csv", "x.json"}, exitFailure, "", "invalid format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code)
			assert.True(t, strings.Contains(stdout.String(), tt.wantOut), stdout.String())
			assert.True(t, strings.Contains(stderr.String(), tt.wantErr), stderr.String())
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	tplDir, docDir := setup(t)
	a := writeDoc(t, docDir, "a.json", `{"raw_text": "电子发票"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitFailure, run(ctx, []string{"--templates", tplDir, a}, &stdout, &stderr))
}
