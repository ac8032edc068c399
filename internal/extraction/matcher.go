package extraction

import (
	"regexp"
	"regexp/syntax"
	"strings"
	"unicode/utf8"

	"github.com/a3tai/docfields/internal/document"
	"github.com/a3tai/docfields/internal/templates"
	"github.com/a3tai/docfields/internal/textnorm"
)

// TemplateMatch is the Template Matcher's partial result.
type TemplateMatch struct {
	Template *templates.Template
	Fields   map[string]FieldValue
	Warnings []string
}

// Matcher selects the first template whose keywords occur in a document and
// applies its field patterns.
type Matcher struct {
	reg *templates.Registry
}

// NewMatcher returns a Matcher over reg.
func NewMatcher(reg *templates.Registry) *Matcher {
	return &Matcher{reg: reg}
}

// textViews caches the two renderings of a document's text used for
// matching. The collapsed view is built on first use.
type textViews struct {
	repaired  string
	collapsed *textnorm.View
}

func (tv *textViews) forPolicy(p templates.WhitespacePolicy) (string, func(start, end int) string) {
	if p == templates.WhitespacePreserve {
		return tv.repaired, func(start, end int) string { return tv.repaired[start:end] }
	}
	if tv.collapsed == nil {
		v := textnorm.CollapseLabelSpaces(tv.repaired)
		tv.collapsed = &v
	}
	return tv.collapsed.Text, tv.collapsed.Source
}

// Match returns the partial result of the first candidate template in
// registry order, or false when no template keyword occurs in the text.
func (m *Matcher) Match(doc *document.Document) (*TemplateMatch, bool) {
	views := &textViews{repaired: textnorm.RepairGlyphs(doc.RawText)}

	for _, tpl := range m.reg.Templates() {
		text, source := views.forPolicy(tpl.Options.WhitespacePolicy)
		if !hasKeyword(tpl, text) {
			continue
		}
		return applyTemplate(tpl, text, source), true
	}
	return nil, false
}

func hasKeyword(tpl *templates.Template, text string) bool {
	for _, kw := range tpl.Keywords {
		kw = textnorm.RepairGlyphs(kw)
		if tpl.Options.WhitespacePolicy != templates.WhitespacePreserve {
			kw = textnorm.CollapseLabelSpaces(kw).Text
		}
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

type patternState int

const (
	unattempted patternState = iota
	attemptedNoMatch
	matched
)

// fieldRun walks the ordered candidate patterns of one field and stops at
// the first match.
type fieldRun struct {
	field *templates.FieldPattern
	state patternState
	next  int
	raw   string
	hit   int
}

func (r *fieldRun) step(text string, source func(int, int) string) {
	if r.state == matched || r.next >= len(r.field.Patterns) {
		return
	}
	re := r.field.Patterns[r.next]
	r.next++
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil || loc[2] < 0 {
		r.state = attemptedNoMatch
		return
	}
	r.state = matched
	r.hit = r.next - 1
	r.raw = strings.TrimSpace(source(loc[2], loc[3]))
}

func (r *fieldRun) run(text string, source func(int, int) string) {
	for r.state != matched && r.next < len(r.field.Patterns) {
		r.step(text, source)
	}
}

func applyTemplate(tpl *templates.Template, text string, source func(int, int) string) *TemplateMatch {
	tm := &TemplateMatch{
		Template: tpl,
		Fields:   make(map[string]FieldValue, len(tpl.Fields)),
	}
	for _, f := range tpl.Fields {
		fr := &fieldRun{field: f}
		fr.run(text, source)
		if fr.state != matched {
			if f.Required {
				tm.Warnings = append(tm.Warnings, WarnMissingRequired(f.Name))
			}
			continue
		}
		tm.Fields[f.Name] = FieldValue{
			Raw:        fr.raw,
			Source:     SourceTemplate,
			Confidence: patternConfidence(f.Patterns[fr.hit], fr.hit),
		}
	}
	return tm
}

const (
	baseConfidence       = 0.55
	labelBonus           = 0.20
	anchorBonus          = 0.05
	maxLengthBonus       = 0.10
	fallbackPenalty      = 0.05
	lengthBonusRunes     = 40
	minPatternConfidence = 0.05
	maxPatternConfidence = 0.95
)

// patternConfidence derives the provisional confidence of a capture from
// the specificity of the pattern that produced it.
func patternConfidence(re *regexp.Regexp, position int) float64 {
	expr := re.String()
	c := baseConfidence

	tree, err := syntax.Parse(expr, syntax.Perl)
	if err == nil {
		tree = tree.Simplify()
		if literalBeforeCapture(tree) {
			c += labelBonus
		}
		if anchored(tree) {
			c += anchorBonus
		}
	}

	n := utf8.RuneCountInString(strings.TrimPrefix(expr, "(?ms)"))
	c += maxLengthBonus * min(1, float64(n)/lengthBonusRunes)
	c -= fallbackPenalty * float64(position)

	return clamp01(max(minPatternConfidence, min(maxPatternConfidence, c)))
}

func literalBeforeCapture(re *syntax.Regexp) bool {
	if re.Op != syntax.OpConcat {
		return false
	}
	for _, sub := range re.Sub {
		switch sub.Op {
		case syntax.OpCapture:
			return false
		case syntax.OpLiteral:
			if len(sub.Rune) > 0 {
				return true
			}
		}
	}
	return false
}

func anchored(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary:
		return true
	}
	for _, sub := range re.Sub {
		if anchored(sub) {
			return true
		}
	}
	return false
}
