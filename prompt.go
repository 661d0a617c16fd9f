package digest

import (
	"fmt"
	"strings"
)

// Template is a prompt with {field} placeholders filled from the run state.
type Template struct {
	Name string
	Text string
}

// Built-in templates for the three-stage pipeline.
var (
	InputTemplate = Template{
		Name: "input",
		Text: "You are a summarization assistant.\nDocument: {raw_text}\nStyle: {style}\nFormat it properly for summarization.",
	}
	SummaryTemplate = Template{
		Name: "summary",
		Text: "Summarize the following text in {style} style:\n\n{cleaned_text}",
	}
	OutputTemplate = Template{
		Name: "output",
		Text: "Format this summary nicely for display:\n\n{summary}",
	}
)

// Fields lists the placeholders in order of first use.
func (t Template) Fields() []string {
	var fields []string
	seen := make(map[string]bool)
	rest := t.Text
	for {
		open := strings.IndexByte(rest, '{')
		if open == -1 {
			return fields
		}
		end := strings.IndexByte(rest[open:], '}')
		if end == -1 {
			return fields
		}
		name := rest[open+1 : open+end]
		if !isFieldName(name) {
			rest = rest[open+1:]
			continue
		}
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
		rest = rest[open+end+1:]
	}
}

// Render substitutes every placeholder from state in a single pass, so
// field values containing braces are copied verbatim.
// A placeholder without a value is an error.
func (t Template) Render(state *State) (string, error) {
	var b strings.Builder
	rest := t.Text
	for {
		open := strings.IndexByte(rest, '{')
		if open == -1 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end == -1 {
			b.WriteString(rest)
			break
		}
		name := rest[open+1 : open+end]
		if !isFieldName(name) {
			b.WriteString(rest[:open+1])
			rest = rest[open+1:]
			continue
		}
		value, ok := state.Get(name)
		if !ok {
			return "", fmt.Errorf("template %s: %w: %s", t.Name, ErrMissingField, name)
		}
		b.WriteString(rest[:open])
		b.WriteString(value)
		rest = rest[open+end+1:]
	}
	return b.String(), nil
}

// isFieldName accepts lower-case identifiers with underscores.
func isFieldName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
