// Package notes treats a directory tree of .md and .txt files as an
// addressable document store. Records are projections recomputed from disk
// on every call; nothing is cached.
package notes

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/noteid"
	"github.com/starford/notter/internal/parser"
	"github.com/starford/notter/internal/storage"
)

// Store is the note store over a storage.Provider.
type Store struct {
	fs  storage.Provider
	now func() time.Time
}

// New creates a Store on top of fs.
func New(fs storage.Provider) *Store {
	return &Store{fs: fs, now: time.Now}
}

// Open creates a Store rooted at an existing directory.
func Open(root string) (*Store, error) {
	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	return New(fs), nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.fs.Root() }

// List returns summaries of every note under the root in the given order.
// Files that cannot be read are skipped.
func (s *Store) List(order models.SortOption) ([]models.NoteSummary, error) {
	rels, err := s.noteFiles()
	if err != nil {
		return nil, err
	}
	out := make([]models.NoteSummary, 0, len(rels))
	for _, rel := range rels {
		n, err := s.load(rel)
		if err != nil {
			continue
		}
		out = append(out, n.Summary())
	}
	sortSummaries(out, order)
	return out, nil
}

// LoadAll returns every readable note with its full content.
func (s *Store) LoadAll() ([]models.Note, error) {
	rels, err := s.noteFiles()
	if err != nil {
		return nil, err
	}
	out := make([]models.Note, 0, len(rels))
	for _, rel := range rels {
		n, err := s.load(rel)
		if err != nil {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

// Get returns the full note for id.
func (s *Store) Get(id string) (*models.Note, error) {
	rel, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	n, err := s.load(rel)
	if err != nil {
		return nil, fmt.Errorf("notes: get: %w", err)
	}
	return n, nil
}

// GetByPath returns the note stored at a root-relative path.
func (s *Store) GetByPath(rel string) (*models.Note, error) {
	cleaned, err := storage.CleanRel(rel)
	if err != nil {
		return nil, err
	}
	if _, ok := models.TypeFromPath(cleaned); !ok {
		return nil, fmt.Errorf("notes: %s is not a note file: %w", cleaned, apperr.ErrNotFound)
	}
	return s.load(cleaned)
}

// OpenContent streams the raw content of a note.
func (s *Store) OpenContent(id string) (io.ReadCloser, error) {
	rel, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(rel)
}

// UpdateContent overwrites the note's bytes in place. The id is unchanged.
func (s *Store) UpdateContent(id, content string) (*models.Note, error) {
	rel, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	if err := s.fs.Write(rel, []byte(content)); err != nil {
		return nil, fmt.Errorf("notes: update: %w", err)
	}
	return s.load(rel)
}

// Rename changes the file name within its directory, keeping the extension.
func (s *Store) Rename(id, newName string) (*models.Note, error) {
	rel, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	ext := path.Ext(rel)
	name := strings.TrimSpace(newName)
	if strings.EqualFold(path.Ext(name), ext) {
		name = strings.TrimSuffix(name, path.Ext(name))
	}
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("notes: rename: %w", err)
	}
	target := path.Join(path.Dir(rel), name+ext)
	if err := s.fs.Relocate(rel, target); err != nil {
		return nil, fmt.Errorf("notes: rename: %w", err)
	}
	return s.load(target)
}

// Move relocates the note to another path under the root. A destination
// without an extension keeps the source extension.
func (s *Store) Move(id, newPath string) (*models.Note, error) {
	rel, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	target, err := storage.CleanRel(newPath)
	if err != nil {
		return nil, fmt.Errorf("notes: move: %w", err)
	}
	if path.Ext(target) == "" {
		target += path.Ext(rel)
	}
	if _, ok := models.TypeFromPath(target); !ok {
		return nil, fmt.Errorf("notes: move: unsupported extension %q: %w", path.Ext(target), apperr.ErrInvalidInput)
	}
	if err := s.fs.Relocate(rel, target); err != nil {
		return nil, fmt.Errorf("notes: move: %w", err)
	}
	return s.load(target)
}

// Delete removes the note file.
func (s *Store) Delete(id string) error {
	rel, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(rel); err != nil {
		return fmt.Errorf("notes: delete: %w", err)
	}
	return nil
}

// FindByTitle returns the id of the first note whose title matches
// case-insensitively, in default listing order.
func (s *Store) FindByTitle(title string) (string, bool, error) {
	list, err := s.List(models.DefaultSort)
	if err != nil {
		return "", false, err
	}
	for _, n := range list {
		if strings.EqualFold(n.Title, title) {
			return n.ID, true, nil
		}
	}
	return "", false, nil
}

func (s *Store) noteFiles() ([]string, error) {
	var rels []string
	err := s.fs.Walk(func(rel string) {
		if _, ok := models.TypeFromPath(rel); ok {
			rels = append(rels, rel)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("notes: list: %w", err)
	}
	return rels, nil
}

// resolve decodes id into a relative path of a recognized note file. Only
// the clean slash-separated form of a path is addressable, so each file has
// exactly one id.
func (s *Store) resolve(id string) (string, error) {
	rel, err := noteid.Decode(id)
	if err != nil {
		return "", err
	}
	if !isCanonical(rel) {
		return "", fmt.Errorf("notes: %q is not a normalized path: %w", rel, apperr.ErrInvalidIdentifier)
	}
	if _, ok := models.TypeFromPath(rel); !ok {
		return "", fmt.Errorf("notes: %s is not a note file: %w", rel, apperr.ErrNotFound)
	}
	return rel, nil
}

func isCanonical(rel string) bool {
	if strings.HasPrefix(rel, "/") || path.Clean(rel) != rel {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

func (s *Store) load(rel string) (*models.Note, error) {
	data, err := s.fs.Read(rel)
	if err != nil {
		return nil, err
	}
	typ, _ := models.TypeFromPath(rel)
	ts, err := s.fs.Stat(rel)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		now := s.now()
		ts = storage.Times{Created: now, Modified: now}
	}
	content := string(data)
	tags := parser.Tags(content)
	if tags == nil {
		tags = []string{}
	}
	return &models.Note{
		ID:       noteid.Encode(rel),
		Title:    parser.Title(content, typ, rel),
		Content:  content,
		Created:  ts.Created,
		Modified: ts.Modified,
		Tags:     tags,
		Type:     typ,
		Path:     rel,
		Checksum: storage.Checksum(data),
	}, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid name %q: %w", name, apperr.ErrInvalidInput)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name %q contains a path separator: %w", name, apperr.ErrInvalidInput)
	}
	return nil
}
