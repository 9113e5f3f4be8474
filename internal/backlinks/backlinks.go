// Package backlinks finds notes that reference another note by title with
// a [[Title]] wiki-link.
package backlinks

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/parser"
)

// windowLines is how many trailing lines are joined when matching, so a
// link near a line break is still found.
const windowLines = 5

// Source is the part of the note store the resolver reads and rewrites.
type Source interface {
	List(order models.SortOption) ([]models.NoteSummary, error)
	OpenContent(id string) (io.ReadCloser, error)
	Get(id string) (*models.Note, error)
	UpdateContent(id, content string) (*models.Note, error)
}

// Resolver scans note bodies on demand.
type Resolver struct {
	src    Source
	logger *slog.Logger
}

// NewResolver creates a Resolver over src.
func NewResolver(src Source, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{src: src, logger: logger}
}

// Find returns every note whose content links to title.
func (r *Resolver) Find(title string) ([]models.NoteSummary, error) {
	list, err := r.src.List(models.DefaultSort)
	if err != nil {
		return nil, fmt.Errorf("backlinks: find: %w", err)
	}
	re := parser.LinkPattern(title)
	out := []models.NoteSummary{}
	for _, n := range list {
		ok, err := r.references(n.ID, re.MatchString)
		if err != nil {
			r.logger.Debug("backlinks: skip unreadable note", slog.String("id", n.ID), slog.String("error", err.Error()))
			continue
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *Resolver) references(id string, match func(string) bool) (bool, error) {
	rc, err := r.src.OpenContent(id)
	if err != nil {
		return false, err
	}
	defer rc.Close()

	window := make([]string, 0, windowLines)
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(window) == windowLines {
			window = window[1:]
		}
		window = append(window, sc.Text())
		if match(strings.Join(window, "\n")) {
			return true, nil
		}
	}
	return false, sc.Err()
}

// Rewrite replaces [[oldTitle]] with [[newTitle]] in every note linking to
// oldTitle and returns the notes it changed. A note that fails to update is
// logged and skipped.
func (r *Resolver) Rewrite(oldTitle, newTitle string) []models.Note {
	if oldTitle == newTitle {
		return nil
	}
	linking, err := r.Find(oldTitle)
	if err != nil {
		r.logger.Error("backlinks: rewrite lookup failed",
			slog.String("title", oldTitle), slog.String("error", err.Error()))
		return nil
	}
	var changed []models.Note
	for _, s := range linking {
		n, err := r.src.Get(s.ID)
		if err != nil {
			r.logger.Error("backlinks: rewrite read failed", slog.String("id", s.ID), slog.String("error", err.Error()))
			continue
		}
		content := parser.RewriteLinks(n.Content, oldTitle, newTitle)
		if content == n.Content {
			continue
		}
		updated, err := r.src.UpdateContent(s.ID, content)
		if err != nil {
			r.logger.Error("backlinks: rewrite write failed", slog.String("id", s.ID), slog.String("error", err.Error()))
			continue
		}
		changed = append(changed, *updated)
	}
	return changed
}
