// Package testutil provides shared test helpers for note directories and
// search engines.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notter/internal/index"
	"github.com/starford/notter/internal/indexsync"
	"github.com/starford/notter/internal/notes"
	"github.com/starford/notter/internal/search"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestStore creates a note store over a temporary directory.
func TestStore(t *testing.T) *notes.Store {
	t.Helper()
	store, err := notes.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// WriteNote writes a file below root, creating parent directories.
func WriteNote(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestBleve opens a bleve index in a temporary directory.
func TestBleve(t *testing.T) *search.Bleve {
	t.Helper()
	b, err := search.OpenBleve(filepath.Join(t.TempDir(), "notes.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "notter-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Incremental returns a coordinator that pushes every change to engine.
func Incremental(engine search.Engine) *indexsync.Coordinator {
	return indexsync.New(engine,
		indexsync.Policy{AutoIndex: true, Mode: indexsync.Incremental},
		indexsync.WithLogger(Logger()))
}
