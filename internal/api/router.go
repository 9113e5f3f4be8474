package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notter/internal/noteservice"
)

// Auth configures bearer-token protection of the API.
type Auth struct {
	Enabled bool
	Token   string
}

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, auth Auth, sseHandler http.Handler, logger *slog.Logger) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(auth.Enabled, auth.Token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CreateNote)
		r.Get("/lookup", h.LookupNote)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetNote)
			r.Put("/", h.UpdateNote)
			r.Delete("/", h.DeleteNote)
			r.Post("/rename", h.RenameNote)
			r.Post("/move", h.MoveNote)
			r.Get("/subnotes", h.Subnotes)
			r.Get("/backlinks", h.Backlinks)
			r.Get("/html", h.RenderNote)
		})
	})

	r.Get("/search", h.Search)

	r.Get("/index", h.IndexStatus)
	r.Post("/index/rebuild", h.RebuildIndex)
	r.Post("/index/optimize", h.OptimizeIndex)

	r.Put("/settings/notes-dir", h.SelectNotesDir)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
