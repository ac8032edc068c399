package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Source records which strategy produced a field value.
type Source int

const (
	SourceTemplate Source = iota + 1
	SourcePositional
	SourceMerged
)

func (s Source) String() string {
	switch s {
	case SourceTemplate:
		return "template"
	case SourcePositional:
		return "positional"
	case SourceMerged:
		return "merged"
	}
	return "unknown"
}

// MarshalJSON encodes the source as its lower-case name.
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a source name.
func (s *Source) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "template":
		*s = SourceTemplate
	case "positional":
		*s = SourcePositional
	case "merged":
		*s = SourceMerged
	default:
		return fmt.Errorf("unknown source %q", name)
	}
	return nil
}

// Kind is the type of a normalized value.
type Kind int

const (
	KindText Kind = iota
	KindDate
	KindMoney
	KindInteger
)

// Value is a normalized, typed field value. Only the member matching Kind
// is meaningful.
type Value struct {
	Kind  Kind
	Text  string
	Date  time.Time
	Money decimal.Decimal
	Int   int64
}

// TextValue wraps a string.
func TextValue(s string) *Value { return &Value{Kind: KindText, Text: s} }

// DateValue wraps a calendar date.
func DateValue(t time.Time) *Value { return &Value{Kind: KindDate, Date: t} }

// MoneyValue wraps a fixed-point amount.
func MoneyValue(d decimal.Decimal) *Value { return &Value{Kind: KindMoney, Money: d} }

// IntegerValue wraps an integer.
func IntegerValue(n int64) *Value { return &Value{Kind: KindInteger, Int: n} }

// String renders the value in its canonical text form.
func (v *Value) String() string {
	if v == nil {
		return ""
	}
	switch v.Kind {
	case KindDate:
		return v.Date.Format(time.DateOnly)
	case KindMoney:
		return v.Money.StringFixed(2)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Text
}

// MarshalJSON encodes dates as "YYYY-MM-DD", money as a number with two
// decimals, integers as numbers and text as strings.
func (v *Value) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	switch v.Kind {
	case KindMoney, KindInteger:
		return []byte(v.String()), nil
	}
	return json.Marshal(v.String())
}

// FieldValue is one extracted field with its provenance.
type FieldValue struct {
	Raw        string  `json:"raw"`
	Normalized *Value  `json:"normalized"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Result is the final output of one extraction. It is not modified after
// Extract returns; accessors hand out copies.
type Result struct {
	matchedTemplate string
	matched         bool
	fields          map[string]FieldValue
	overall         float64
	warnings        []string
}

// MatchedTemplate returns the issuer of the selected template.
func (r *Result) MatchedTemplate() (string, bool) {
	return r.matchedTemplate, r.matched
}

// Field returns one field.
func (r *Result) Field(name string) (FieldValue, bool) {
	fv, ok := r.fields[name]
	return fv, ok
}

// Fields returns a copy of the field map.
func (r *Result) Fields() map[string]FieldValue {
	out := make(map[string]FieldValue, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// FieldNames returns field names in lexical order.
func (r *Result) FieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for k := range r.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OverallConfidence is the aggregate confidence of the record.
func (r *Result) OverallConfidence() float64 { return r.overall }

// Warnings returns a copy of the warnings in emission order.
func (r *Result) Warnings() []string { return slices.Clone(r.warnings) }

// HasWarning reports whether w was emitted.
func (r *Result) HasWarning(w string) bool { return slices.Contains(r.warnings, w) }

type resultJSON struct {
	MatchedTemplate   *string               `json:"matched_template"`
	Fields            map[string]FieldValue `json:"fields"`
	OverallConfidence float64               `json:"overall_confidence"`
	Warnings          []string              `json:"warnings"`
}

// MarshalJSON encodes the result in the output contract. Map keys are
// sorted by encoding/json so equal results encode identically.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Fields:            r.fields,
		OverallConfidence: r.overall,
		Warnings:          r.warnings,
	}
	if r.matched {
		name := r.matchedTemplate
		out.MatchedTemplate = &name
	}
	if out.Fields == nil {
		out.Fields = map[string]FieldValue{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return json.Marshal(out)
}

// clamp01 bounds a confidence and rounds it to four places.
func clamp01(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return math.Round(c*1e4) / 1e4
}
