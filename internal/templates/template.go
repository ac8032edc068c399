// Package templates loads, validates and orders issuer-specific extraction
// templates. A Registry is immutable once built and safe for concurrent use.
package templates

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValueType is the declared type of a field value.
type ValueType int

const (
	TypeText ValueType = iota
	TypeDate
	TypeMoney
	TypeInteger
)

// String returns the definition-file spelling of the type.
func (t ValueType) String() string {
	switch t {
	case TypeDate:
		return "date"
	case TypeMoney:
		return "money"
	case TypeInteger:
		return "integer"
	default:
		return "text"
	}
}

// ParseValueType maps a definition-file type name to a ValueType. An empty
// name means text.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return TypeText, nil
	case "date":
		return TypeDate, nil
	case "money":
		return TypeMoney, nil
	case "integer", "int":
		return TypeInteger, nil
	}
	return TypeText, fmt.Errorf("unknown field type %q", s)
}

// WhitespacePolicy controls whether CJK label whitespace is collapsed before
// keyword and pattern matching.
type WhitespacePolicy string

const (
	WhitespaceCollapse WhitespacePolicy = "collapse"
	WhitespacePreserve WhitespacePolicy = "preserve"
)

// DefaultDecimalSeparator is used when a template declares none.
const DefaultDecimalSeparator = "."

// Options are per-template normalisation settings.
type Options struct {
	DateFormats      []string
	DecimalSeparator string
	WhitespacePolicy WhitespacePolicy
}

// FieldPattern is one named field of a template. Patterns are the ordered
// candidates tried against the text; the first that matches wins.
type FieldPattern struct {
	Name       string
	Patterns   []*regexp.Regexp
	Type       ValueType
	DateFormat string
	Required   bool
}

// Regex returns the primary pattern.
func (f *FieldPattern) Regex() *regexp.Regexp {
	return f.Patterns[0]
}

// Template is a validated, compiled issuer template.
type Template struct {
	Issuer   string
	Priority int
	Keywords []string
	Fields   []*FieldPattern
	Options  Options
	Source   string

	byName map[string]*FieldPattern
	order  int
}

// Field returns the named field pattern.
func (t *Template) Field(name string) (*FieldPattern, bool) {
	f, ok := t.byName[name]
	return f, ok
}

// Declares reports whether the template has a field with the given name.
func (t *Template) Declares(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// FieldNames returns field names in declaration order.
func (t *Template) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// RequiredFields returns the names of required fields in declaration order.
func (t *Template) RequiredFields() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// DeclarationOrder is the position of the template in load order.
func (t *Template) DeclarationOrder() int {
	return t.order
}

// compile validates a definition and builds the Template. Problems are
// appended to errs; a nil Template is returned when any were found.
func compile(def Definition, order int, errs *problems) *Template {
	before := len(*errs)
	src, issuer := def.Source, strings.TrimSpace(def.Issuer)

	if issuer == "" {
		errs.add(src, "", "", "issuer is required")
	}

	keywords := make([]string, 0, len(def.Keywords))
	for _, kw := range def.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if len(keywords) == 0 {
		errs.add(src, issuer, "", "template has no keywords")
	}
	if len(def.Fields) == 0 {
		errs.add(src, issuer, "", "template declares no fields")
	}

	opts := Options{
		DateFormats:      append([]string(nil), def.Options.DateFormats...),
		DecimalSeparator: def.Options.DecimalSeparator,
		WhitespacePolicy: WhitespacePolicy(def.Options.WhitespacePolicy),
	}
	if opts.DecimalSeparator == "" {
		opts.DecimalSeparator = DefaultDecimalSeparator
	}
	if utf8.RuneCountInString(opts.DecimalSeparator) != 1 || strings.ContainsAny(opts.DecimalSeparator, "0123456789") {
		errs.add(src, issuer, "", "decimal_separator must be a single non-digit character, got %q", opts.DecimalSeparator)
	}
	switch opts.WhitespacePolicy {
	case "":
		opts.WhitespacePolicy = WhitespaceCollapse
	case WhitespaceCollapse, WhitespacePreserve:
	default:
		errs.add(src, issuer, "", "unknown whitespace_policy %q", opts.WhitespacePolicy)
	}

	t := &Template{
		Issuer:   issuer,
		Priority: def.Priority,
		Keywords: keywords,
		Options:  opts,
		Source:   src,
		byName:   make(map[string]*FieldPattern, len(def.Fields)),
		order:    order,
	}

	for _, fd := range def.Fields {
		name := strings.TrimSpace(fd.Name)
		if name == "" {
			errs.add(src, issuer, "", "field with empty name")
			continue
		}
		if _, dup := t.byName[name]; dup {
			errs.add(src, issuer, name, "duplicate field name")
			continue
		}
		fp := compileField(fd, name, src, issuer, errs)
		if fp == nil {
			continue
		}
		t.byName[name] = fp
		t.Fields = append(t.Fields, fp)
	}

	for _, name := range def.RequiredFields {
		fp, ok := t.byName[name]
		if !ok {
			errs.add(src, issuer, name, "required field is not declared")
			continue
		}
		fp.Required = true
	}

	if len(*errs) > before {
		return nil
	}
	return t
}

func compileField(fd FieldDefinition, name, src, issuer string, errs *problems) *FieldPattern {
	before := len(*errs)

	vt, err := ParseValueType(fd.Type)
	if err != nil {
		errs.add(src, issuer, name, "%v", err)
	}
	if fd.DateFormat != "" && vt != TypeDate {
		errs.add(src, issuer, name, "date_format is only valid for type date")
	}

	sources := make([]string, 0, 1+len(fd.Patterns))
	if fd.Regex != "" {
		sources = append(sources, fd.Regex)
	}
	sources = append(sources, fd.Patterns...)
	if len(sources) == 0 {
		errs.add(src, issuer, name, "field has no regex")
	}

	patterns := make([]*regexp.Regexp, 0, len(sources))
	for _, expr := range sources {
		re, err := CompilePattern(expr)
		if err != nil {
			errs.add(src, issuer, name, "%v", err)
			continue
		}
		patterns = append(patterns, re)
	}

	if len(*errs) > before {
		return nil
	}
	return &FieldPattern{
		Name:       name,
		Patterns:   patterns,
		Type:       vt,
		DateFormat: fd.DateFormat,
		Required:   fd.Required,
	}
}

// CompilePattern compiles a field regex with multi-line and dot-all
// semantics and checks that it has exactly one capture group.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?ms)" + expr)
	if err != nil {
		return nil, fmt.Errorf("regex %q does not compile: %w", expr, err)
	}
	if n := re.NumSubexp(); n != 1 {
		return nil, fmt.Errorf("regex %q must contain exactly one capture group, has %d", expr, n)
	}
	return re, nil
}
