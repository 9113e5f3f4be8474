// Package models defines the domain types for notter.
package models

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// NoteType is the content format of a note, decided by its file extension.
type NoteType string

const (
	Markdown  NoteType = "Markdown"
	PlainText NoteType = "PlainText"
)

// Extension returns the file extension (without dot) used for notes of type t.
func (t NoteType) Extension() string {
	if t == PlainText {
		return "txt"
	}
	return "md"
}

// ParseNoteType accepts the JSON names plus the lower-case config spellings.
func ParseNoteType(s string) (NoteType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return Markdown, nil
	case "plaintext", "plain_text", "text", "txt":
		return PlainText, nil
	}
	return "", fmt.Errorf("unknown note type %q", s)
}

// TypeFromPath maps a recognized extension to its NoteType.
func TypeFromPath(p string) (NoteType, bool) {
	switch strings.ToLower(path.Ext(p)) {
	case ".md":
		return Markdown, true
	case ".txt":
		return PlainText, true
	}
	return "", false
}

// Note is the full projection of a note file. It is recomputed on every read.
type Note struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Tags     []string  `json:"tags"`
	Type     NoteType  `json:"type"`
	Path     string    `json:"path"`
	Checksum string    `json:"checksum"`
}

// Summary drops the fields a listing does not need.
func (n *Note) Summary() NoteSummary {
	return NoteSummary{
		ID:       n.ID,
		Title:    n.Title,
		Created:  n.Created,
		Modified: n.Modified,
		Tags:     n.Tags,
		Type:     n.Type,
	}
}

// NoteSummary is a Note without content and path.
type NoteSummary struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Tags     []string  `json:"tags"`
	Type     NoteType  `json:"type"`
}

// SubnoteInfo is a summary positioned relative to a chosen parent.
type SubnoteInfo struct {
	NoteSummary
	Depth int `json:"depth"`
}

// SearchResult is a ranked hit from the search index.
type SearchResult struct {
	NoteSummary
	Snippets []string `json:"snippets"`
	Score    float64  `json:"score"`
}

// SortOption orders note listings.
type SortOption string

const (
	SortTitleAsc       SortOption = "title_asc"
	SortTitleDesc      SortOption = "title_desc"
	SortCreatedNewest  SortOption = "created_newest"
	SortCreatedOldest  SortOption = "created_oldest"
	SortModifiedNewest SortOption = "modified_newest"
	SortModifiedOldest SortOption = "modified_oldest"

	DefaultSort = SortModifiedNewest
)

// ParseSortOption returns DefaultSort for an empty string.
func ParseSortOption(s string) (SortOption, error) {
	if s == "" {
		return DefaultSort, nil
	}
	switch o := SortOption(strings.ToLower(s)); o {
	case SortTitleAsc, SortTitleDesc, SortCreatedNewest, SortCreatedOldest, SortModifiedNewest, SortModifiedOldest:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort option %q", s)
}
