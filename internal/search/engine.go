// Package search defines the full-text engine contract the index
// coordinator drives, plus the bleve production engine and an in-memory
// engine for tests.
package search

import (
	"time"

	"github.com/starford/notter/internal/models"
)

// Query defaults.
const (
	DefaultLimit  = 100
	SnippetLength = 150
)

// Field boosts: title highest, tags second, body baseline.
const (
	TitleBoost   = 2.0
	TagsBoost    = 1.5
	ContentBoost = 1.0
)

// Searchable fields.
const (
	FieldTitle   = "title"
	FieldTags    = "tags"
	FieldContent = "content"
	FieldType    = "type"
)

// Document is the indexed shape of a note.
type Document struct {
	ID       string
	Title    string
	Content  string
	Tags     []string
	Created  time.Time
	Modified time.Time
	Type     models.NoteType
}

// DocumentFromNote projects a note into its indexed shape.
func DocumentFromNote(n *models.Note) Document {
	return Document{
		ID:       n.ID,
		Title:    n.Title,
		Content:  n.Content,
		Tags:     n.Tags,
		Created:  n.Created,
		Modified: n.Modified,
		Type:     n.Type,
	}
}

func (d *Document) summary() models.NoteSummary {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.NoteSummary{
		ID:       d.ID,
		Title:    d.Title,
		Created:  d.Created,
		Modified: d.Modified,
		Tags:     tags,
		Type:     d.Type,
	}
}

// Engine is a full-text index over note documents.
type Engine interface {
	// AddDocument upserts doc by its id.
	AddDocument(doc Document) error
	// RemoveDocument deletes by id. Removing an absent id is a no-op.
	RemoveDocument(id string) error
	// RebuildIndex replaces the whole index with docs. The previous index
	// stays searchable until the replacement is in place.
	RebuildIndex(docs []Document) error
	// Search runs a free-text query against title, tags, and content.
	Search(query string, limit int) ([]models.SearchResult, error)
	// SearchField restricts the query to one field.
	SearchField(field, value string, limit int) ([]models.SearchResult, error)
	DocumentCount() (uint64, error)
	Optimize() error
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
