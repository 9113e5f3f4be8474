package api

import (
	"net/http"
	"strconv"

	"github.com/starford/notter/internal/search"
)

var searchFields = map[string]bool{
	search.FieldTitle:   true,
	search.FieldTags:    true,
	search.FieldContent: true,
	search.FieldType:    true,
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results (default 100)"
//	@Param			field	query		string	false	"Restrict to one field"	Enums(title, tags, content, type)
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	field := q.Get("field")
	if field != "" && !searchFields[field] {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown field "+strconv.Quote(field)))
		return
	}

	var err error
	var res SearchResponse
	if field == "" {
		res.Results, err = h.svc.Search(r.Context(), query, limit)
	} else {
		res.Results, err = h.svc.SearchField(r.Context(), field, query, limit)
	}
	if err != nil {
		h.writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// IndexStatus handles GET /api/index.
func (h *Handler) IndexStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.IndexStatus(r.Context())
	if err != nil {
		h.writeError(w, "index status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// RebuildIndex handles POST /api/index/rebuild. It blocks until the
// rebuild finished and returns the new status.
func (h *Handler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RebuildIndex(r.Context()); err != nil {
		h.writeError(w, "rebuild index", err)
		return
	}
	h.IndexStatus(w, r)
}

// OptimizeIndex handles POST /api/index/optimize.
func (h *Handler) OptimizeIndex(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.OptimizeIndex(r.Context()); err != nil {
		h.writeError(w, "optimize index", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectNotesDir handles PUT /api/settings/notes-dir.
func (h *Handler) SelectNotesDir(w http.ResponseWriter, r *http.Request) {
	var req NotesDirRequest
	if !decode(w, r, &req) {
		return
	}
	root, err := h.svc.SelectDirectory(r.Context(), req.Path)
	if root == "" {
		h.writeError(w, "select notes dir", err)
		return
	}
	h.writeMutation(w, "select notes dir", http.StatusOK, NotesDirResponse{Path: root}, err)
}
