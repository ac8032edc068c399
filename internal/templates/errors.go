package templates

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateValidation is the kind shared by every template load failure.
var ErrTemplateValidation = errors.New("template validation failed")

// Problem describes one defect found in a template definition.
type Problem struct {
	Source string `json:"source,omitempty"`
	Issuer string `json:"issuer,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (p Problem) String() string {
	var b strings.Builder
	if p.Source != "" {
		b.WriteString(p.Source)
		b.WriteString(": ")
	}
	if p.Issuer != "" {
		fmt.Fprintf(&b, "issuer %q: ", p.Issuer)
	}
	if p.Field != "" {
		fmt.Fprintf(&b, "field %q: ", p.Field)
	}
	b.WriteString(p.Reason)
	return b.String()
}

// TemplateValidationError is returned by Load and NewRegistry when one or
// more definitions are malformed. It is fatal to startup.
type TemplateValidationError struct {
	Problems []Problem
}

func (e *TemplateValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return ErrTemplateValidation.Error()
	case 1:
		return fmt.Sprintf("%s: %s", ErrTemplateValidation, e.Problems[0])
	}
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s (%d problems): %s", ErrTemplateValidation, len(e.Problems), strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrTemplateValidation) match.
func (e *TemplateValidationError) Is(target error) bool {
	return target == ErrTemplateValidation
}

type problems []Problem

func (ps *problems) add(source, issuer, field, format string, args ...any) {
	*ps = append(*ps, Problem{
		Source: source,
		Issuer: issuer,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	})
}

func (ps problems) err() error {
	if len(ps) == 0 {
		return nil
	}
	return &TemplateValidationError{Problems: ps}
}
