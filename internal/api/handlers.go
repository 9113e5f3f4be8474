package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/noteservice"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc    *noteservice.Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// noteID extracts the {id} URL parameter. Identifiers may contain '/', so
// clients send them path-escaped.
func noteID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(validation.Validatable); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes
//	@Tags			notes
//	@Produce		json
//	@Param			sort	query		string	false	"Sort order"	Enums(title_asc, title_desc, created_newest, created_oldest, modified_newest, modified_oldest)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	order, err := models.ParseSortOption(r.URL.Query().Get("sort"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	list, err := h.svc.ListNotes(r.Context(), order)
	if err != nil {
		h.writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: list, Total: len(list)})
}

// GetNote handles GET /api/notes/{id}. The checksum is also sent as ETag.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id (path-escaped)"
//	@Success		200	{object}	models.Note
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GetNote(r.Context(), noteID(r))
	if err != nil {
		h.writeError(w, "get note", err)
		return
	}
	w.Header().Set("ETag", `"`+n.Checksum+`"`)
	writeJSON(w, http.StatusOK, n)
}

// LookupNote handles GET /api/notes/lookup?title=.
func (h *Handler) LookupNote(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'title' is required"))
		return
	}
	id, err := h.svc.FindByTitle(r.Context(), title)
	if err != nil {
		h.writeError(w, "lookup note", err)
		return
	}
	writeJSON(w, http.StatusOK, LookupResponse{ID: id})
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.svc.CreateNote(r.Context(), noteservice.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Type:    req.Type,
		Pattern: req.Pattern,
	})
	h.writeMutation(w, "create note", http.StatusCreated, n, err)
}

// UpdateNote handles PUT /api/notes/{id}.
//
//	@Summary		Replace note content
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id (path-escaped)"
//	@Param			If-Match	header		string				false	"Checksum of the content being replaced"
//	@Param			body		body		UpdateNoteRequest	true	"New content"
//	@Success		200			{object}	models.Note
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	n, err := h.svc.UpdateNote(r.Context(), noteID(r), req.Content, ifMatch)
	h.writeMutation(w, "update note", http.StatusOK, n, err)
}

// RenameNote handles POST /api/notes/{id}/rename.
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	var req RenameNoteRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.svc.RenameNote(r.Context(), noteID(r), req.Name)
	h.writeMutation(w, "rename note", http.StatusOK, n, err)
}

// MoveNote handles POST /api/notes/{id}/move.
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveNoteRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.svc.MoveNote(r.Context(), noteID(r), req.Path)
	h.writeMutation(w, "move note", http.StatusOK, n, err)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id (path-escaped)"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteNote(r.Context(), noteID(r))
	h.writeMutation(w, "delete note", http.StatusNoContent, nil, err)
}

// Subnotes handles GET /api/notes/{id}/subnotes.
func (h *Handler) Subnotes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Subnotes(r.Context(), noteID(r))
	if err != nil {
		h.writeError(w, "subnotes", err)
		return
	}
	writeJSON(w, http.StatusOK, SubnotesResponse{Subnotes: list})
}

// Backlinks handles GET /api/notes/{id}/backlinks.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Backlinks(r.Context(), noteID(r))
	if err != nil {
		h.writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: list})
}

// RenderNote handles GET /api/notes/{id}/html.
func (h *Handler) RenderNote(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RenderHTML(r.Context(), noteID(r))
	if err != nil {
		h.writeError(w, "render note", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}
