package digest

import "strings"

// Style controls the verbosity and layout of a summary.
type Style string

// Known styles. StyleDefault is what any unrecognized value maps to.
const (
	StyleBrief        Style = "brief"
	StyleDetailed     Style = "detailed"
	StyleBulletPoints Style = "bullet_points"
	StyleDefault      Style = "default"
)

// Styles returns the selectable styles in display order.
func Styles() []Style {
	return []Style{StyleBrief, StyleDetailed, StyleBulletPoints}
}

// ParseStyle normalizes s. Unknown values become StyleDefault.
func ParseStyle(s string) Style {
	style := Style(strings.ToLower(strings.TrimSpace(s)))
	if style.Known() {
		return style
	}
	return StyleDefault
}

// Known reports whether s is one of the selectable styles.
func (s Style) Known() bool {
	switch s {
	case StyleBrief, StyleDetailed, StyleBulletPoints:
		return true
	}
	return false
}

// Instruction returns the clause placed before the document text.
func (s Style) Instruction() string {
	switch s {
	case StyleBrief:
		return "Summarize briefly:"
	case StyleDetailed:
		return "Provide a detailed summary:"
	case StyleBulletPoints:
		return "Summarize in bullet points:"
	default:
		return "Summarize:"
	}
}

// BuildPrompt places the style instruction before the verbatim text.
func BuildPrompt(style Style, text string) string {
	return style.Instruction() + "\n\n" + text
}
