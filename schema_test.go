package digest

import (
	"encoding/json"
	"testing"
)

type schemaSample struct {
	Text     string   `json:"text" desc:"Document to summarize"`
	Style    string   `json:"style,omitempty" enum:"brief|detailed|bullet_points"`
	Count    int      `json:"count"`
	Ratio    float64  `json:"ratio"`
	Tags     []string `json:"tags,omitempty"`
	Enabled  bool     `json:"enabled"`
	Optional *string  `json:"optional,omitempty"`
	Ignored  string   `json:"-"`
}

func decodeSchema(t *testing.T, raw string) map[string]any {
	t.Helper()
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		t.Fatalf("Schema is not valid JSON: %v", err)
	}
	return parsed
}

func TestSchema(t *testing.T) {
	parsed := decodeSchema(t, Schema[schemaSample]())

	if parsed["type"] != "object" {
		t.Errorf("Expected type=object, got %v", parsed["type"])
	}
	if parsed["additionalProperties"] != false {
		t.Error("Expected additionalProperties=false")
	}

	props, ok := parsed["properties"].(map[string]any)
	if !ok {
		t.Fatal("Expected properties object")
	}
	if _, ok := props["Ignored"]; ok {
		t.Error("json:\"-\" field should be skipped")
	}
	if len(props) != 7 {
		t.Errorf("Expected 7 properties, got %d", len(props))
	}

	types := map[string]string{
		"text":     "string",
		"count":    "integer",
		"ratio":    "number",
		"tags":     "array",
		"enabled":  "boolean",
		"optional": "string",
	}
	for name, want := range types {
		prop, _ := props[name].(map[string]any)
		if prop["type"] != want {
			t.Errorf("Property %s: expected type %s, got %v", name, want, prop["type"])
		}
	}

	text, _ := props["text"].(map[string]any)
	if text["description"] != "Document to summarize" {
		t.Errorf("Expected description from desc tag, got %v", text["description"])
	}

	style, _ := props["style"].(map[string]any)
	enum, _ := style["enum"].([]any)
	if len(enum) != 3 || enum[2] != "bullet_points" {
		t.Errorf("Expected enum from enum tag, got %v", style["enum"])
	}
}

func TestSchema_Required(t *testing.T) {
	parsed := decodeSchema(t, Schema[schemaSample]())

	required := make(map[string]bool)
	list, _ := parsed["required"].([]any)
	for _, name := range list {
		required[name.(string)] = true
	}
	for _, name := range []string{"text", "count", "ratio", "enabled"} {
		if !required[name] {
			t.Errorf("Expected %s to be required", name)
		}
	}
	for _, name := range []string{"style", "tags", "optional"} {
		if required[name] {
			t.Errorf("Expected %s to be optional", name)
		}
	}
}
