package extraction

import (
	"strings"
	"unicode/utf8"

	"github.com/a3tai/docfields/internal/templates"
)

// DefaultMinPlausibleRunes is the shortest template capture trusted without
// corroboration.
const DefaultMinPlausibleRunes = 2

// record is the mutable field set built during one extraction. Its key set
// is closed: the matched template's fields plus the positional fields.
type record struct {
	tpl      *templates.Template
	keys     []string
	allowed  map[string]bool
	fields   map[string]FieldValue
	warnings warnings
}

func newRecord(tpl *templates.Template) *record {
	r := &record{tpl: tpl, allowed: map[string]bool{}, fields: map[string]FieldValue{}}
	if tpl != nil {
		for _, name := range tpl.FieldNames() {
			r.allow(name)
		}
	}
	for _, name := range PositionalFields() {
		r.allow(name)
	}
	return r
}

func (r *record) allow(name string) {
	if !r.allowed[name] {
		r.allowed[name] = true
		r.keys = append(r.keys, name)
	}
}

// set stores a value for a key of the closed set and reports whether the
// key was accepted.
func (r *record) set(name string, fv FieldValue) bool {
	if !r.allowed[name] {
		return false
	}
	fv.Confidence = clamp01(fv.Confidence)
	r.fields[name] = fv
	return true
}

func (r *record) get(name string) (FieldValue, bool) {
	fv, ok := r.fields[name]
	return fv, ok
}

func (r *record) required(name string) bool {
	if r.tpl == nil {
		return false
	}
	f, ok := r.tpl.Field(name)
	return ok && f.Required
}

func sameValue(a, b string) bool {
	return compact(a) == compact(b)
}

// merge reconciles the two partial results into one record. Either input
// may be nil.
func merge(tm *TemplateMatch, pr *PositionalResult, minRunes int) *record {
	var (
		tpl       *templates.Template
		fromTpl   map[string]FieldValue
		fromSpans map[string]FieldValue
	)
	if tm != nil {
		tpl, fromTpl = tm.Template, tm.Fields
	}
	rec := newRecord(tpl)
	if tm != nil {
		for _, w := range tm.Warnings {
			if !strings.HasPrefix(w, WarnMissingRequired("")) {
				rec.warnings.add(w)
			}
		}
	}
	if pr != nil {
		fromSpans = pr.Fields
		rec.warnings.add(pr.Warnings...)
	}

	for _, name := range rec.keys {
		t, hasT := fromTpl[name]
		p, hasP := fromSpans[name]
		plausible := hasT && utf8.RuneCountInString(t.Raw) >= minRunes

		switch {
		case plausible && hasP && sameValue(t.Raw, p.Raw):
			rec.set(name, FieldValue{
				Raw:        t.Raw,
				Source:     SourceMerged,
				Confidence: max(t.Confidence, p.Confidence) + 0.05,
			})
		case plausible && hasP:
			win, lose := t, p
			if p.Confidence > t.Confidence {
				win, lose = p, t
			}
			rec.set(name, win)
			rec.warnings.add(WarnDiscarded(name, lose.Source, lose.Raw))
		case plausible:
			rec.set(name, t)
		case hasP:
			rec.set(name, p)
			if hasT {
				rec.warnings.add(WarnDiscarded(name, t.Source, t.Raw))
			}
		case hasT:
			rec.warnings.add(WarnImplausible(name))
		}

		if _, ok := rec.get(name); !ok && rec.required(name) {
			rec.warnings.add(WarnMissingRequired(name))
		}
	}
	return rec
}
