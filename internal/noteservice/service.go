// Package noteservice is the command layer over the note store: every
// mutation goes through the index coordinator and is announced to the
// event sink.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/backlinks"
	"github.com/starford/notter/internal/hierarchy"
	"github.com/starford/notter/internal/indexsync"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/notes"
)

// probeFile is written and removed to check that a directory is writable.
const probeFile = ".notter_test"

// Events receives note change notifications.
type Events interface {
	PublishNoteEvent(kind, id string)
}

type noEvents struct{}

func (noEvents) PublishNoteEvent(string, string) {}

// Options configures a Service.
type Options struct {
	// NamingPattern names new files; empty names them after the title.
	NamingPattern string
	DefaultType   models.NoteType
	Logger        *slog.Logger
	Events        Events
}

// Service coordinates the store, the resolvers, and the index.
type Service struct {
	storeMu sync.RWMutex
	store   *notes.Store

	coord   *indexsync.Coordinator
	logger  *slog.Logger
	events  Events
	pattern string
	defType models.NoteType

	dirChanged chan struct{}
}

// New creates a Service over store.
func New(store *notes.Store, coord *indexsync.Coordinator, opts Options) *Service {
	s := &Service{
		store:      store,
		coord:      coord,
		logger:     opts.Logger,
		events:     opts.Events,
		pattern:    opts.NamingPattern,
		defType:    opts.DefaultType,
		dirChanged: make(chan struct{}, 1),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.events == nil {
		s.events = noEvents{}
	}
	if s.defType == "" {
		s.defType = models.Markdown
	}
	return s
}

// Store returns the current note store.
func (s *Service) Store() *notes.Store {
	s.storeMu.RLock()
	defer s.storeMu.RUnlock()
	return s.store
}

// Root returns the absolute path of the current notes directory.
func (s *Service) Root() string { return s.Store().Root() }

// Coordinator returns the index coordinator.
func (s *Service) Coordinator() *indexsync.Coordinator { return s.coord }

// DirectoryChanged fires after SelectDirectory swapped the store.
func (s *Service) DirectoryChanged() <-chan struct{} { return s.dirChanged }

// ListNotes returns every note summary in the given order.
func (s *Service) ListNotes(_ context.Context, order models.SortOption) ([]models.NoteSummary, error) {
	return s.Store().List(order)
}

// GetNote returns a note by id.
func (s *Service) GetNote(_ context.Context, id string) (*models.Note, error) {
	return s.Store().Get(id)
}

// FindByTitle resolves a title to a note id.
func (s *Service) FindByTitle(_ context.Context, title string) (string, error) {
	id, ok, err := s.Store().FindByTitle(title)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("noteservice: no note titled %q: %w", title, apperr.ErrNotFound)
	}
	return id, nil
}

// CreateInput carries the fields for a new note. Empty Type and Pattern
// take the service defaults.
type CreateInput struct {
	Title   string
	Content string
	Type    models.NoteType
	Pattern string
}

// CreateNote writes a new note. When the note was written but could not be
// indexed, both the note and an apperr.ErrIndex error are returned.
func (s *Service) CreateNote(_ context.Context, in CreateInput) (*models.Note, error) {
	req := notes.CreateRequest{Title: in.Title, Content: in.Content, Type: in.Type, Pattern: in.Pattern}
	if req.Type == "" {
		req.Type = s.defType
	}
	if req.Pattern == "" {
		req.Pattern = s.pattern
	}
	store := s.Store()
	n, err := store.Create(req)
	if err != nil {
		return nil, err
	}
	err = s.coord.Apply(store, indexsync.Change{Kind: indexsync.Created, Note: n})
	s.events.PublishNoteEvent("created", n.ID)
	return n, err
}

// UpdateNote replaces the note content. A non-empty ifMatch must equal the
// checksum of the current bytes. When the title changes, links to the old
// title are rewritten.
func (s *Service) UpdateNote(_ context.Context, id, content, ifMatch string) (*models.Note, error) {
	store := s.Store()
	old, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != old.Checksum {
		return nil, fmt.Errorf("noteservice: update: checksum mismatch: %w", apperr.ErrConflict)
	}
	n, err := store.UpdateContent(id, content)
	if err != nil {
		return nil, err
	}
	errs := []error{s.coord.Apply(store, indexsync.Change{Kind: indexsync.Updated, Note: n})}
	s.events.PublishNoteEvent("updated", n.ID)
	errs = append(errs, s.relink(store, old.Title, n)...)
	return n, errors.Join(errs...)
}

// RenameNote renames the note file in place. The id changes.
func (s *Service) RenameNote(_ context.Context, id, newName string) (*models.Note, error) {
	store := s.Store()
	old, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	n, err := store.Rename(id, newName)
	if err != nil {
		return nil, err
	}
	errs := []error{s.coord.Apply(store, indexsync.Change{Kind: indexsync.Renamed, OldID: id, Note: n})}
	s.events.PublishNoteEvent("renamed", n.ID)
	errs = append(errs, s.relink(store, old.Title, n)...)
	return n, errors.Join(errs...)
}

// MoveNote relocates the note under the root. The id changes.
func (s *Service) MoveNote(_ context.Context, id, newPath string) (*models.Note, error) {
	store := s.Store()
	n, err := store.Move(id, newPath)
	if err != nil {
		return nil, err
	}
	err = s.coord.Apply(store, indexsync.Change{Kind: indexsync.Moved, OldID: id, Note: n})
	s.events.PublishNoteEvent("moved", n.ID)
	return n, err
}

// DeleteNote removes the note file and its index entry.
func (s *Service) DeleteNote(_ context.Context, id string) error {
	store := s.Store()
	if err := store.Delete(id); err != nil {
		return err
	}
	err := s.coord.Apply(store, indexsync.Change{Kind: indexsync.Deleted, OldID: id})
	s.events.PublishNoteEvent("deleted", id)
	return err
}

// relink rewrites [[oldTitle]] links after n's title changed. Rewrite
// failures are logged by the resolver; only index failures are returned.
func (s *Service) relink(store *notes.Store, oldTitle string, n *models.Note) []error {
	if oldTitle == n.Title || oldTitle == "" {
		return nil
	}
	changed := backlinks.NewResolver(store, s.logger).Rewrite(oldTitle, n.Title)
	var errs []error
	for i := range changed {
		if err := s.coord.Apply(store, indexsync.Change{Kind: indexsync.Updated, Note: &changed[i]}); err != nil {
			errs = append(errs, err)
		}
		s.events.PublishNoteEvent("updated", changed[i].ID)
	}
	if len(changed) > 0 {
		s.logger.Info("relink: rewrote backlinks",
			slog.String("from", oldTitle), slog.String("to", n.Title), slog.Int("notes", len(changed)))
	}
	return errs
}

// Subnotes lists the hierarchical children of a note.
func (s *Service) Subnotes(_ context.Context, id string) ([]models.SubnoteInfo, error) {
	return hierarchy.NewResolver(s.Store()).Subnotes(id)
}

// Backlinks lists the notes linking to the note's title.
func (s *Service) Backlinks(_ context.Context, id string) ([]models.NoteSummary, error) {
	store := s.Store()
	n, err := store.Get(id)
	if err != nil {
		return nil, err
	}
	return backlinks.NewResolver(store, s.logger).Find(n.Title)
}

// Search runs a full-text query.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.SearchResult, error) {
	return s.coord.Search(query, limit)
}

// SearchField queries a single field.
func (s *Service) SearchField(_ context.Context, field, value string, limit int) ([]models.SearchResult, error) {
	return s.coord.SearchField(field, value, limit)
}

// RebuildIndex rebuilds the index from the current store.
func (s *Service) RebuildIndex(_ context.Context) error {
	return s.coord.Rebuild(s.Store())
}

// IndexStatus reports the index lifecycle.
func (s *Service) IndexStatus(_ context.Context) (indexsync.Status, error) {
	return s.coord.Status()
}

// OptimizeIndex compacts the index.
func (s *Service) OptimizeIndex(_ context.Context) error {
	return s.coord.Optimize()
}

// SelectDirectory switches the store to dir and rebuilds the index from it.
// The directory must exist and be writable. A rebuild failure is returned
// as apperr.ErrIndex after the switch took effect.
func (s *Service) SelectDirectory(_ context.Context, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("noteservice: select directory: %w: %w", apperr.ErrInvalidInput, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("noteservice: select directory: %s: %w", abs, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("noteservice: select directory: %w: %w", apperr.ErrIO, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("noteservice: select directory: %s is not a directory: %w", abs, apperr.ErrInvalidInput)
	}
	probe := filepath.Join(abs, probeFile)
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return "", fmt.Errorf("noteservice: select directory: not writable: %w: %w", apperr.ErrInvalidInput, err)
	}
	_ = os.Remove(probe)

	store, err := notes.Open(abs)
	if err != nil {
		return "", err
	}
	s.storeMu.Lock()
	s.store = store
	s.storeMu.Unlock()

	s.logger.Info("notes directory changed", slog.String("path", store.Root()))
	select {
	case s.dirChanged <- struct{}{}:
	default:
	}
	return store.Root(), s.coord.Rebuild(store)
}
