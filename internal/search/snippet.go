package search

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Highlight markers, matching bleve's html highlighter.
const (
	HighlightOpen  = "<mark>"
	HighlightClose = "</mark>"
)

// Terms splits a free-text query into lower-cased alphanumeric terms.
func Terms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Snippet returns an HTML-escaped excerpt of roughly width bytes around the
// first occurrence of any term, with that occurrence highlighted. It
// returns "" when no term occurs in content.
func Snippet(content string, terms []string, width int) string {
	lower := strings.ToLower(content)
	start, end := -1, -1
	for _, t := range terms {
		if t == "" {
			continue
		}
		if i := strings.Index(lower, t); i >= 0 && (start < 0 || i < start) {
			start, end = i, i+len(t)
		}
	}
	// Lower-casing can change byte lengths outside ASCII.
	if start < 0 || len(lower) != len(content) {
		return ""
	}

	from := start - (width-(end-start))/2
	if from < 0 {
		from = 0
	}
	to := from + width
	if to > len(content) {
		to = len(content)
	}
	if to < end {
		to = end
	}
	for from > 0 && !utf8.RuneStart(content[from]) {
		from--
	}
	for to < len(content) && !utf8.RuneStart(content[to]) {
		to++
	}

	var b strings.Builder
	if from > 0 {
		b.WriteString("…")
	}
	b.WriteString(html.EscapeString(content[from:start]))
	b.WriteString(HighlightOpen)
	b.WriteString(html.EscapeString(content[start:end]))
	b.WriteString(HighlightClose)
	b.WriteString(html.EscapeString(content[end:to]))
	if to < len(content) {
		b.WriteString("…")
	}
	return b.String()
}
