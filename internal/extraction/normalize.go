package extraction

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/a3tai/docfields/internal/templates"
	"github.com/a3tai/docfields/internal/textnorm"
)

// DefaultDateFormats are tried after the template's own formats.
var DefaultDateFormats = []string{
	"2006-01-02",
	"2006年01月02日",
	"2006年1月2日",
	"2006/01/02",
	"20060102",
	"2006.01.02",
}

var amountEpsilon = decimal.New(1, -2)

var currencyMarks = []string{"RMB", "CNY", "¥", "$", "€", "£", "元"}

var errEmptyAmount = errors.New("empty amount")

// fieldType returns the declared type of a field, or the built-in type of a
// positional field when the template does not declare it.
func fieldType(tpl *templates.Template, name string) (templates.ValueType, string) {
	if tpl != nil {
		if f, ok := tpl.Field(name); ok {
			return f.Type, f.DateFormat
		}
	}
	switch name {
	case FieldInvoiceDate:
		return templates.TypeDate, ""
	case FieldPretaxAmount, FieldTaxAmount, FieldTotalAmount:
		return templates.TypeMoney, ""
	}
	return templates.TypeText, ""
}

// normalized reports whether a monetary cross-check failed.
type normalized struct {
	mismatch bool
}

// normalize types every field of rec in key order, then derives or checks
// the monetary split.
func normalize(rec *record) normalized {
	var opts templates.Options
	if rec.tpl != nil {
		opts = rec.tpl.Options
	}
	sep := opts.DecimalSeparator
	if sep == "" {
		sep = templates.DefaultDecimalSeparator
	}

	for _, name := range rec.keys {
		fv, ok := rec.get(name)
		if !ok {
			continue
		}
		if fv.Source != SourceTemplate {
			fv.Raw = textnorm.RepairGlyphs(fv.Raw)
		}

		vt, layout := fieldType(rec.tpl, name)
		switch vt {
		case templates.TypeDate:
			if t, ok := ParseDate(fv.Raw, dateLayouts(layout, opts.DateFormats)); ok {
				fv.Normalized = DateValue(t)
			} else {
				rec.warnings.add(WarnUnparsableDate(name))
			}
		case templates.TypeMoney:
			if d, err := ParseMoney(fv.Raw, sep); err == nil {
				fv.Normalized = MoneyValue(d)
			} else {
				rec.warnings.add(WarnUnparsableMoney(name))
			}
		case templates.TypeInteger:
			if n, err := parseInteger(fv.Raw); err == nil {
				fv.Normalized = IntegerValue(n)
			} else {
				rec.warnings.add(WarnUnparsableInteger(name))
			}
		default:
			fv.Normalized = TextValue(strings.TrimSpace(fv.Raw))
		}
		rec.set(name, fv)
	}

	return normalized{mismatch: splitAmounts(rec)}
}

func dateLayouts(fieldFormat string, templateFormats []string) []string {
	var out []string
	if fieldFormat != "" {
		out = append(out, GoLayout(fieldFormat))
	}
	for _, f := range templateFormats {
		out = append(out, GoLayout(f))
	}
	return append(out, DefaultDateFormats...)
}

var strftime = strings.NewReplacer(
	"%Y", "2006", "%y", "06", "%m", "01", "%d", "02",
	"%H", "15", "%M", "04", "%S", "05", "%%", "%",
)

// GoLayout converts a strftime-style format ("%Y-%m-%d") to a Go time
// layout. Formats without a % are returned unchanged.
func GoLayout(format string) string {
	if !strings.Contains(format, "%") {
		return format
	}
	return strftime.Replace(format)
}

// ParseDate tries each layout in order and returns the first success as a
// UTC calendar date.
func ParseDate(raw string, layouts []string) (time.Time, bool) {
	s := strings.TrimSpace(textnorm.FoldWidth(raw))
	if s == "" {
		return time.Time{}, false
	}
	inputs := []string{s}
	if compacted := textnorm.StripSpaces(s); compacted != s {
		inputs = append(inputs, compacted)
	}
	for _, layout := range layouts {
		for _, in := range inputs {
			if t, err := time.Parse(layout, in); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

// ParseMoney parses an amount written with the given decimal separator into
// a fixed-point value rounded to cents. Currency marks and grouping
// separators are ignored.
func ParseMoney(raw, decimalSep string) (decimal.Decimal, error) {
	s := textnorm.StripSpaces(textnorm.FoldWidth(raw))
	for _, m := range currencyMarks {
		s = strings.ReplaceAll(s, m, "")
	}
	if s == "" {
		return decimal.Zero, errEmptyAmount
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case string(r) == decimalSep:
			b.WriteByte('.')
		case r == ',' || r == '.' || r == '\'':
		default:
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}

func parseInteger(raw string) (int64, error) {
	s := textnorm.StripSpaces(textnorm.FoldWidth(raw))
	s = strings.NewReplacer(",", "", "'", "").Replace(s)
	return strconv.ParseInt(s, 10, 64)
}

const (
	derivedConfidenceFactor = 0.9
	mismatchDemotion        = 0.7
)

// splitAmounts derives the missing member of pretax, tax and total when the
// other two are known, or checks pretax + tax == total when all three are.
// It reports whether the check failed.
func splitAmounts(rec *record) bool {
	names := [3]string{FieldPretaxAmount, FieldTaxAmount, FieldTotalAmount}
	var (
		vals  [3]decimal.Decimal
		fvs   [3]FieldValue
		have  [3]bool
		count int
	)
	for i, name := range names {
		fv, ok := rec.get(name)
		if !ok || fv.Normalized == nil || fv.Normalized.Kind != KindMoney {
			continue
		}
		fvs[i], vals[i], have[i] = fv, fv.Normalized.Money, true
		count++
	}

	switch count {
	case 3:
		diff := vals[0].Add(vals[1]).Sub(vals[2]).Abs()
		if diff.LessThanOrEqual(amountEpsilon) {
			return false
		}
		rec.warnings.add(WarnAmountMismatch)
		for i, name := range names {
			fv := fvs[i]
			fv.Confidence *= mismatchDemotion
			rec.set(name, fv)
		}
		return true
	case 2:
		missing := 0
		for i := range have {
			if !have[i] {
				missing = i
			}
		}
		if _, extracted := rec.get(names[missing]); extracted {
			return false
		}
		var d decimal.Decimal
		switch missing {
		case 0:
			d = vals[2].Sub(vals[1])
		case 1:
			d = vals[2].Sub(vals[0])
		case 2:
			d = vals[0].Add(vals[1])
		}
		if d.IsNegative() {
			return false
		}
		conf := 1.0
		for i := range fvs {
			if have[i] {
				conf = min(conf, fvs[i].Confidence)
			}
		}
		rec.set(names[missing], FieldValue{
			Raw:        d.StringFixed(2),
			Normalized: MoneyValue(d),
			Source:     SourceMerged,
			Confidence: derivedConfidenceFactor * conf,
		})
	}
	return false
}
