// Package hierarchy derives Zettelkasten parent/child relationships from
// title prefixes such as 1, 1a, 1a1, 1b.
package hierarchy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/notter/internal/models"
)

// ExtractPrefix returns the part of title before the first '-', or the
// whole title when it has none.
func ExtractPrefix(title string) string {
	prefix, _, _ := strings.Cut(title, "-")
	return prefix
}

// IsSubnote reports whether the note titled candidate sits below a parent
// with the given prefix, and at what depth.
//
// The candidate prefix must extend parentPrefix. When parentPrefix ends in
// a digit the extension must start with a letter, so "10" is not a child
// of "1". Every letter of the extension adds one level; a run of digits
// adds one level regardless of its length.
//
// An empty parentPrefix has no subnotes, and an extension that adds no
// level, such as "1a." below "1a", is not a subnote.
func IsSubnote(candidate, parentPrefix string) (int, bool) {
	if parentPrefix == "" {
		return 0, false
	}
	prefix := ExtractPrefix(candidate)
	if !strings.HasPrefix(prefix, parentPrefix) || len(prefix) <= len(parentPrefix) {
		return 0, false
	}
	suffix := prefix[len(parentPrefix):]

	last, _ := utf8.DecodeLastRuneInString(parentPrefix)
	first, _ := utf8.DecodeRuneInString(suffix)
	if unicode.IsNumber(last) && !unicode.IsLetter(first) {
		return 0, false
	}

	depth := 0
	inDigits := false
	for _, r := range suffix {
		switch {
		case unicode.IsLetter(r):
			depth++
			inDigits = false
		case unicode.IsNumber(r):
			if !inDigits {
				depth++
			}
			inDigits = true
		default:
			inDigits = false
		}
	}
	if depth == 0 {
		return 0, false
	}
	return depth, true
}

type component struct {
	number   uint64
	letter   rune
	isLetter bool
}

// components splits a prefix into alternating number and letter parts.
// Letters are lower-cased; other characters are ignored.
func components(prefix string) []component {
	var out []component
	runes := []rune(prefix)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsNumber(r):
			j := i
			for j < len(runes) && unicode.IsNumber(runes[j]) {
				j++
			}
			if n, err := strconv.ParseUint(string(runes[i:j]), 10, 32); err == nil {
				out = append(out, component{number: n})
			}
			i = j
		case unicode.IsLetter(r):
			if r < utf8.RuneSelf {
				r = unicode.ToLower(r)
			}
			out = append(out, component{letter: r, isLetter: true})
			i++
		default:
			i++
		}
	}
	return out
}

// Compare orders two prefixes component by component. Numbers compare by
// value, letters alphabetically, a number sorts before a letter, and a
// shorter sequence sorts before a longer one sharing its components.
func Compare(a, b string) int {
	ca, cb := components(a), components(b)
	for i := 0; i < len(ca) && i < len(cb); i++ {
		x, y := ca[i], cb[i]
		switch {
		case !x.isLetter && !y.isLetter:
			if x.number != y.number {
				if x.number < y.number {
					return -1
				}
				return 1
			}
		case x.isLetter && y.isLetter:
			if x.letter != y.letter {
				if x.letter < y.letter {
					return -1
				}
				return 1
			}
		case !x.isLetter:
			return -1
		default:
			return 1
		}
	}
	switch {
	case len(ca) < len(cb):
		return -1
	case len(ca) > len(cb):
		return 1
	}
	return 0
}

// Source is the part of the note store the resolver reads.
type Source interface {
	Get(id string) (*models.Note, error)
	List(order models.SortOption) ([]models.NoteSummary, error)
}

// Resolver computes subnote listings on demand.
type Resolver struct {
	src Source
}

// NewResolver creates a Resolver over src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Subnotes returns the notes below parentID ordered by their prefixes.
func (r *Resolver) Subnotes(parentID string) ([]models.SubnoteInfo, error) {
	parent, err := r.src.Get(parentID)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: subnotes: %w", err)
	}
	parentPrefix := ExtractPrefix(parent.Title)

	list, err := r.src.List(models.DefaultSort)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: subnotes: %w", err)
	}
	out := []models.SubnoteInfo{}
	for _, n := range list {
		if depth, ok := IsSubnote(n.Title, parentPrefix); ok {
			out = append(out, models.SubnoteInfo{NoteSummary: n, Depth: depth})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return Compare(ExtractPrefix(out[i].Title), ExtractPrefix(out[j].Title)) < 0
	})
	return out, nil
}
