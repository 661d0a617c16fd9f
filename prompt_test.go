package digest

import (
	"errors"
	"reflect"
	"testing"
)

func stateWith(t *testing.T, fields map[string]string) *State {
	t.Helper()
	s := NewState()
	for k, v := range fields {
		if err := s.Set(k, v); err != nil {
			t.Fatalf("Set(%s) failed: %v", k, err)
		}
	}
	return s
}

func TestTemplate_Render(t *testing.T) {
	t.Run("input", func(t *testing.T) {
		state := stateWith(t, map[string]string{FieldRawText: "doc body", FieldStyle: "brief"})
		got, err := InputTemplate.Render(state)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		want := "You are a summarization assistant.\nDocument: doc body\nStyle: brief\nFormat it properly for summarization."
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	})

	t.Run("summary", func(t *testing.T) {
		state := stateWith(t, map[string]string{FieldCleanedText: "clean", FieldStyle: "detailed"})
		got, err := SummaryTemplate.Render(state)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if got != "Summarize the following text in detailed style:\n\nclean" {
			t.Errorf("Unexpected render %q", got)
		}
	})

	t.Run("output", func(t *testing.T) {
		state := stateWith(t, map[string]string{FieldSummary: "short"})
		got, err := OutputTemplate.Render(state)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if got != "Format this summary nicely for display:\n\nshort" {
			t.Errorf("Unexpected render %q", got)
		}
	})
}

func TestTemplate_RenderMissingField(t *testing.T) {
	state := stateWith(t, map[string]string{FieldStyle: "brief"})
	_, err := SummaryTemplate.Render(state)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("Expected ErrMissingField, got %v", err)
	}
}

func TestTemplate_RenderValuesWithBraces(t *testing.T) {
	state := stateWith(t, map[string]string{FieldSummary: "code: {summary} and { not a field }"})
	got, err := OutputTemplate.Render(state)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got != "Format this summary nicely for display:\n\ncode: {summary} and { not a field }" {
		t.Errorf("Field values must be copied verbatim, got %q", got)
	}
}

func TestTemplate_RenderLiteralBraces(t *testing.T) {
	tmpl := Template{Name: "literal", Text: "json {\"a\": 1} then {summary}"}
	state := stateWith(t, map[string]string{FieldSummary: "x"})
	got, err := tmpl.Render(state)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got != "json {\"a\": 1} then x" {
		t.Errorf("Unexpected render %q", got)
	}
}

func TestTemplate_Fields(t *testing.T) {
	tests := []struct {
		tmpl Template
		want []string
	}{
		{InputTemplate, []string{FieldRawText, FieldStyle}},
		{SummaryTemplate, []string{FieldStyle, FieldCleanedText}},
		{OutputTemplate, []string{FieldSummary}},
		{Template{Text: "{a} {b} {a} {not valid}"}, []string{"a", "b"}},
		{Template{Text: "no placeholders"}, nil},
	}
	for _, tt := range tests {
		if got := tt.tmpl.Fields(); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Fields(%q) = %v, want %v", tt.tmpl.Text, got, tt.want)
		}
	}
}
