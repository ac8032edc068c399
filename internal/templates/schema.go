package templates

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const definitionSchema = `{
  "type": "object",
  "required": ["issuer", "keywords", "fields"],
  "additionalProperties": false,
  "properties": {
    "issuer": {"type": "string"},
    "priority": {"type": "integer"},
    "keywords": {"type": "array", "items": {"type": "string"}},
    "required_fields": {"type": "array", "items": {"type": "string"}},
    "fields": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"$ref": "#/$defs/field"}
    },
    "options": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "decimal_separator": {"type": "string"},
        "date_formats": {"type": "array", "items": {"type": "string"}},
        "whitespace_policy": {"enum": ["collapse", "preserve"]}
      }
    }
  },
  "$defs": {
    "field": {
      "type": "object",
      "additionalProperties": false,
      "anyOf": [{"required": ["regex"]}, {"required": ["patterns"]}],
      "properties": {
        "regex": {"type": "string", "minLength": 1},
        "patterns": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
        "type": {"type": "string"},
        "date_format": {"type": "string"},
        "required": {"type": "boolean"}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("template.schema.json", definitionSchema)

func checkSchema(node *yaml.Node) error {
	v, err := toJSONValue(node)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
