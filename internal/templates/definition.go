package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Definition is the file form of a template, before validation.
type Definition struct {
	Issuer         string            `yaml:"issuer"`
	Priority       int               `yaml:"priority"`
	Keywords       []string          `yaml:"keywords"`
	Fields         FieldDefinitions  `yaml:"fields"`
	RequiredFields []string          `yaml:"required_fields,omitempty"`
	Options        OptionsDefinition `yaml:"options,omitempty"`

	// Source names the file the definition came from, for error messages.
	Source string `yaml:"-"`
}

// FieldDefinition declares how one named field is captured.
type FieldDefinition struct {
	Name       string   `yaml:"-"`
	Regex      string   `yaml:"regex,omitempty"`
	Patterns   []string `yaml:"patterns,omitempty"`
	Type       string   `yaml:"type,omitempty"`
	DateFormat string   `yaml:"date_format,omitempty"`
	Required   bool     `yaml:"required,omitempty"`
}

// FieldDefinitions keeps the declaration order of the YAML fields mapping.
type FieldDefinitions []FieldDefinition

// UnmarshalYAML decodes a mapping of name to field while preserving order.
// Duplicate names are kept so validation can report them.
func (fd *FieldDefinitions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}
	out := make(FieldDefinitions, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var def FieldDefinition
		if err := node.Content[i+1].Decode(&def); err != nil {
			return fmt.Errorf("field %q: %w", node.Content[i].Value, err)
		}
		def.Name = node.Content[i].Value
		out = append(out, def)
	}
	*fd = out
	return nil
}

// OptionsDefinition carries per-template normalisation options.
type OptionsDefinition struct {
	DecimalSeparator string   `yaml:"decimal_separator,omitempty"`
	DateFormats      []string `yaml:"date_formats,omitempty"`
	WhitespacePolicy string   `yaml:"whitespace_policy,omitempty"`
}

// ParseDefinitions decodes every YAML document in data. Each document is
// checked against the template schema before it is decoded.
func ParseDefinitions(data []byte, source string) ([]Definition, error) {
	var (
		defs []Definition
		errs problems
	)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for n := 0; ; n++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs.add(source, "", "", "yaml: %v", err)
			break
		}
		if len(node.Content) == 0 {
			continue
		}

		where := source
		if n > 0 {
			where = fmt.Sprintf("%s#%d", source, n)
		}
		if err := checkSchema(&node); err != nil {
			errs.add(where, "", "", "%v", err)
			continue
		}

		var def Definition
		if err := node.Decode(&def); err != nil {
			errs.add(where, "", "", "decode: %v", err)
			continue
		}
		def.Source = where
		defs = append(defs, def)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return defs, nil
}

// toJSONValue converts a decoded YAML document into the value shape the
// schema validator expects (numbers as float64, objects as map[string]any).
func toJSONValue(node *yaml.Node) (any, error) {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
