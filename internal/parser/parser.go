// Package parser derives titles, tags, and wiki-links from note content.
package parser

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/starford/notter/internal/models"
)

// UntitledNote is the title of a Markdown note with no content.
const UntitledNote = "Untitled Note"

// Title returns the display title of a note.
//
// Markdown notes take the first line with leading '#' markers and
// surrounding whitespace removed. Plain-text notes always use the file
// name without its extension.
func Title(content string, t models.NoteType, filename string) string {
	if t == models.PlainText {
		base := path.Base(filename)
		return strings.TrimSuffix(base, path.Ext(base))
	}
	if content == "" {
		return UntitledNote
	}
	first, _, _ := strings.Cut(content, "\n")
	first = strings.TrimSuffix(first, "\r")
	return strings.TrimSpace(strings.TrimLeft(first, "#"))
}

// Tags collects whitespace-delimited #tokens in order of first appearance.
// Leading markers and trailing non-alphanumeric characters are stripped.
func Tags(content string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(content) {
		if len(word) < 2 || word[0] != '#' {
			continue
		}
		tag := strings.TrimLeft(word, "#")
		tag = strings.TrimRightFunc(tag, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

var wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// Links returns deduplicated wiki-link targets. For [[Target|Alias]] the
// target is returned.
func Links(content string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// LinkPattern matches a wiki-link to title, with the title taken literally.
func LinkPattern(title string) *regexp.Regexp {
	return regexp.MustCompile(`\[\[` + regexp.QuoteMeta(title) + `\]\]`)
}

// RewriteLinks replaces every [[oldTitle]] with [[newTitle]].
func RewriteLinks(content, oldTitle, newTitle string) string {
	return strings.ReplaceAll(content, "[["+oldTitle+"]]", "[["+newTitle+"]]")
}
