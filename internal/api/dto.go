package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notter/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string          `json:"title" example:"1a-Follow up"`
	Content string          `json:"content" example:"# 1a-Follow up\nSee [[1-Start]]"`
	Type    models.NoteType `json:"type,omitempty" example:"Markdown"`
	Pattern string          `json:"pattern,omitempty" example:"{number}-{title}.{extension}"`
}

// Validate validates the request.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Type, validation.In(models.Markdown, models.PlainText)),
	)
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content"`
}

// RenameNoteRequest is the request body for renaming a note.
type RenameNoteRequest struct {
	Name string `json:"name" example:"1b-Renamed"`
}

// Validate validates the request.
func (r RenameNoteRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Name, validation.Required))
}

// MoveNoteRequest is the request body for moving a note.
type MoveNoteRequest struct {
	Path string `json:"path" example:"archive/1b-Renamed.md"`
}

// Validate validates the request.
func (r MoveNoteRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Path, validation.Required))
}

// NotesDirRequest selects a new notes directory.
type NotesDirRequest struct {
	Path string `json:"path" example:"/home/me/notes"`
}

// Validate validates the request.
func (r NotesDirRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Path, validation.Required))
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.NoteSummary `json:"notes"`
	Total int                  `json:"total"`
}

// SubnotesResponse wraps a subnote listing.
type SubnotesResponse struct {
	Subnotes []models.SubnoteInfo `json:"subnotes"`
}

// BacklinksResponse wraps a backlink listing.
type BacklinksResponse struct {
	Backlinks []models.NoteSummary `json:"backlinks"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchResult `json:"results"`
}

// LookupResponse is the id found for a title.
type LookupResponse struct {
	ID string `json:"id"`
}

// NotesDirResponse reports the active notes directory.
type NotesDirResponse struct {
	Path string `json:"path"`
}
