// Package export writes extraction outcomes as a review workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/docfields/internal/batch"
)

// Sheet names of the review workbook.
const (
	DocumentsSheet = "Documents"
	FieldsSheet    = "Fields"
)

var (
	documentHeaders = []any{"Job ID", "Path", "Matched Template", "Overall Confidence", "Warnings", "Error"}
	fieldHeaders    = []any{"Job ID", "Path", "Field", "Raw", "Normalized", "Source", "Confidence"}
)

// WriteXLSX writes one row per document to the Documents sheet and one row
// per extracted field to the Fields sheet.
func WriteXLSX(w io.Writer, outcomes []batch.Outcome) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DocumentsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if _, err := f.NewSheet(FieldsSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	docs := &sheetWriter{f: f, sheet: DocumentsSheet, style: header}
	fields := &sheetWriter{f: f, sheet: FieldsSheet, style: header}
	docs.header(documentHeaders)
	fields.header(fieldHeaders)

	for _, out := range outcomes {
		var (
			tpl      string
			overall  any
			warnings string
		)
		if out.Result != nil {
			tpl, _ = out.Result.MatchedTemplate()
			overall = out.Result.OverallConfidence()
			warnings = strings.Join(out.Result.Warnings(), "; ")
		}
		docs.row(out.JobID, out.Path, tpl, overall, warnings, out.Error)

		if out.Result == nil {
			continue
		}
		for _, name := range out.Result.FieldNames() {
			fv, _ := out.Result.Field(name)
			normalized := ""
			if fv.Normalized != nil {
				normalized = fv.Normalized.String()
			}
			fields.row(out.JobID, out.Path, name, fv.Raw, normalized, fv.Source.String(), fv.Confidence)
		}
	}
	if err := docs.finish([]float64{38, 48, 22, 18, 60, 40}); err != nil {
		return err
	}
	if err := fields.finish([]float64{38, 48, 18, 32, 20, 10, 12}); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	style int
	next  int
	cols  int
	err   error
}

func (s *sheetWriter) header(cells []any) {
	s.cols = len(cells)
	s.row(cells...)
	if s.err != nil {
		return
	}
	last, _ := excelize.CoordinatesToCellName(s.cols, 1)
	s.err = s.f.SetCellStyle(s.sheet, "A1", last, s.style)
}

func (s *sheetWriter) row(cells ...any) {
	if s.err != nil {
		return
	}
	s.next++
	cell, _ := excelize.CoordinatesToCellName(1, s.next)
	if err := s.f.SetSheetRow(s.sheet, cell, &cells); err != nil {
		s.err = fmt.Errorf("xlsx %s row %d: %w", s.sheet, s.next, err)
	}
}

func (s *sheetWriter) finish(widths []float64) error {
	if s.err != nil {
		return s.err
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := s.f.SetColWidth(s.sheet, col, col, w); err != nil {
			return fmt.Errorf("xlsx %s width: %w", s.sheet, err)
		}
	}
	return s.f.SetPanes(s.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
