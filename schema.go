package digest

import (
	"encoding/json"
	"strings"

	"github.com/zoobzio/sentinel"
)

func init() {
	// sentinel only extracts tags it has been told about.
	sentinel.Tag("enum")
}

// Schema builds a JSON Schema for struct type T from its sentinel metadata.
//
// Tags read per field:
//
//	json:"name,omitempty"  property name; omitempty makes it optional; "-" skips it
//	desc:"..."             property description
//	enum:"a|b|c"           allowed string values
func Schema[T any]() string {
	metadata := sentinel.Inspect[T]()

	properties := make(map[string]any)
	required := make([]string, 0, len(metadata.Fields))
	for _, field := range metadata.Fields {
		name, optional := jsonName(field)
		if name == "-" {
			continue
		}
		properties[name] = property(field)
		if !optional {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

func property(field sentinel.FieldMetadata) map[string]any {
	prop := map[string]any{"type": jsonType(field.Type)}
	if desc, ok := field.Tags["desc"]; ok && desc != "" {
		prop["description"] = desc
	}
	if enum, ok := field.Tags["enum"]; ok && enum != "" {
		prop["enum"] = strings.Split(enum, "|")
	}
	return prop
}

// jsonName returns the property name and whether the field is optional.
func jsonName(field sentinel.FieldMetadata) (string, bool) {
	tag := field.Tags["json"]
	parts := strings.Split(tag, ",")
	optional := strings.Contains(tag, "omitempty")
	if parts[0] != "" {
		return parts[0], optional
	}
	return strings.ToLower(field.Name[:1]) + field.Name[1:], optional
}

// jsonType maps a Go type name to a JSON Schema type.
func jsonType(goType string) string {
	goType = strings.TrimPrefix(goType, "*")
	switch {
	case strings.HasPrefix(goType, "string"):
		return "string"
	case strings.HasPrefix(goType, "int"), strings.HasPrefix(goType, "uint"):
		return "integer"
	case strings.HasPrefix(goType, "float"):
		return "number"
	case strings.HasPrefix(goType, "bool"):
		return "boolean"
	case strings.HasPrefix(goType, "[]"):
		return "array"
	default:
		return "object"
	}
}
