package search

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
)

func doc(id, title, content string, tags ...string) Document {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return Document{ID: id, Title: title, Content: content, Tags: tags, Created: now, Modified: now, Type: models.Markdown}
}

func ids(res []models.SearchResult) []string {
	out := make([]string, len(res))
	for i, r := range res {
		out[i] = r.ID
	}
	return out
}

// engineContract runs the same behavioural checks against every Engine.
func engineContract(t *testing.T, e Engine) {
	t.Helper()
	for _, d := range []Document{
		doc("body", "Unrelated", "a long discussion about golang tooling"),
		doc("title", "Golang notes", "nothing else"),
		doc("tag", "Misc", "plain text", "golang"),
	} {
		if err := e.AddDocument(d); err != nil {
			t.Fatalf("AddDocument: %v", err)
		}
	}

	res, err := e.Search("golang", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 3 || res[2].ID != "body" {
		t.Errorf("ranking = %v, want body match last", ids(res))
	}
	for _, r := range res {
		if r.ID == "body" && len(r.Snippets) == 0 {
			t.Error("expected a snippet for the body match")
		}
	}

	if res, _ := e.Search("   ", 10); len(res) != 0 {
		t.Errorf("empty query returned %v", ids(res))
	}
	if res, _ := e.Search("golang", 1); len(res) != 1 {
		t.Errorf("limit ignored: %v", ids(res))
	}

	// Upsert replaces the previous version.
	if err := e.AddDocument(doc("title", "Renamed", "nothing else")); err != nil {
		t.Fatal(err)
	}
	if n, _ := e.DocumentCount(); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	byTitle, err := e.SearchField(FieldTitle, "renamed", 10)
	if err != nil || len(byTitle) != 1 || byTitle[0].ID != "title" {
		t.Errorf("SearchField title = %v, %v", ids(byTitle), err)
	}
	if _, err := e.SearchField("bogus", "x", 10); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("unknown field err = %v", err)
	}

	if err := e.RemoveDocument("title"); err != nil {
		t.Fatal(err)
	}
	if err := e.RemoveDocument("absent"); err != nil {
		t.Errorf("removing absent doc: %v", err)
	}
	if n, _ := e.DocumentCount(); n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	if err := e.RebuildIndex([]Document{doc("fresh", "Fresh start", "brand new")}); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if n, _ := e.DocumentCount(); n != 1 {
		t.Errorf("count after rebuild = %d, want 1", n)
	}
	res, _ = e.Search("fresh", 10)
	if len(res) != 1 || res[0].Title != "Fresh start" || res[0].Type != models.Markdown {
		t.Errorf("after rebuild = %+v", res)
	}
	if err := e.Optimize(); err != nil {
		t.Errorf("Optimize: %v", err)
	}
}

func TestMemoryEngine(t *testing.T) {
	engineContract(t, NewMemory())
}

func TestMemoryEngineBoosts(t *testing.T) {
	e := NewMemory()
	_ = e.AddDocument(doc("body", "Unrelated", "about golang"))
	_ = e.AddDocument(doc("title", "Golang", "nothing"))
	_ = e.AddDocument(doc("tag", "Misc", "plain", "golang"))
	res, err := e.Search("golang", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(ids(res), ","); got != "title,tag,body" {
		t.Errorf("ranking = %s, want title,tag,body", got)
	}
}

func TestBleveEngine(t *testing.T) {
	e, err := OpenBleve(filepath.Join(t.TempDir(), "idx", "notes.bleve"))
	if err != nil {
		t.Fatalf("OpenBleve: %v", err)
	}
	defer e.Close()
	engineContract(t, e)
}

func TestBleveStoredFields(t *testing.T) {
	e, err := OpenBleve(filepath.Join(t.TempDir(), "notes.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	d := doc("x", "Tagged", "content here", "one", "two")
	if err := e.AddDocument(d); err != nil {
		t.Fatal(err)
	}
	res, err := e.Search("tagged", 10)
	if err != nil || len(res) != 1 {
		t.Fatalf("Search = %+v, %v", res, err)
	}
	if strings.Join(res[0].Tags, ",") != "one,two" {
		t.Errorf("tags = %v", res[0].Tags)
	}
	if !res[0].Modified.Equal(d.Modified) {
		t.Errorf("modified = %v, want %v", res[0].Modified, d.Modified)
	}
}

func TestBleveInterruptedRebuildKeepsIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.bleve")
	e, err := OpenBleve(path)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.AddDocument(doc("a", "Alpha", "original document")); err != nil {
		t.Fatal(err)
	}

	interrupted := errors.New("interrupted")
	e.populated = func(n int) error {
		if n == 2 {
			return interrupted
		}
		return nil
	}
	err = e.RebuildIndex([]Document{
		doc("b", "Beta", "replacement"),
		doc("c", "Gamma", "replacement"),
	})
	if !errors.Is(err, interrupted) {
		t.Fatalf("RebuildIndex err = %v", err)
	}

	res, err := e.Search("original", 10)
	if err != nil || len(res) != 1 || res[0].ID != "a" {
		t.Fatalf("search after failed rebuild = %v, %v", ids(res), err)
	}
	if res, _ := e.Search("replacement", 10); len(res) != 0 {
		t.Errorf("partial rebuild leaked: %v", ids(res))
	}

	entries, _ := os.ReadDir(dir)
	for _, ent := range entries {
		if ent.Name() != "notes.bleve" {
			t.Errorf("leftover entry %s", ent.Name())
		}
	}
}

func TestBleveReopenAfterRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.bleve")
	e, err := OpenBleve(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RebuildIndex([]Document{doc("a", "Persisted", "x")}); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + BackupSuffix); !os.IsNotExist(err) {
		t.Errorf("backup left behind: %v", err)
	}

	reopened, err := OpenBleve(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if n, _ := reopened.DocumentCount(); n != 1 {
		t.Errorf("count = %d", n)
	}
}

func TestPromote(t *testing.T) {
	dir := t.TempDir()
	canonical := filepath.Join(dir, "index")
	staged := filepath.Join(dir, "staged")
	mustWrite(t, filepath.Join(canonical, "v"), "old")
	mustWrite(t, filepath.Join(staged, "v"), "new")

	if err := Promote(staged, canonical, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, filepath.Join(canonical, "v")); got != "new" {
		t.Errorf("canonical = %q", got)
	}
	if _, err := os.Stat(canonical + BackupSuffix); !os.IsNotExist(err) {
		t.Error("backup not removed")
	}
}

func TestPromoteLogsBackupCleanupFailure(t *testing.T) {
	dir := t.TempDir()
	canonical := filepath.Join(dir, "index")
	staged := filepath.Join(dir, "staged")
	mustWrite(t, filepath.Join(canonical, "v"), "old")
	mustWrite(t, filepath.Join(staged, "v"), "new")

	calls := 0
	removeAll = func(p string) error {
		calls++
		if calls == 2 {
			return errors.New("device busy")
		}
		return os.RemoveAll(p)
	}
	t.Cleanup(func() { removeAll = os.RemoveAll })

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	if err := Promote(staged, canonical, logger); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if got := mustRead(t, filepath.Join(canonical, "v")); got != "new" {
		t.Errorf("canonical = %q", got)
	}
	if !strings.Contains(logs.String(), "device busy") || !strings.Contains(logs.String(), canonical+BackupSuffix) {
		t.Errorf("log = %q", logs.String())
	}

	removeAll = os.RemoveAll
	if err := Recover(canonical); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if _, err := os.Stat(canonical + BackupSuffix); !os.IsNotExist(err) {
		t.Error("stale backup not cleared by Recover")
	}
}

func TestPromoteFailureRestoresCanonical(t *testing.T) {
	dir := t.TempDir()
	canonical := filepath.Join(dir, "index")
	mustWrite(t, filepath.Join(canonical, "v"), "old")

	if err := Promote(filepath.Join(dir, "missing"), canonical, quietLogger()); err == nil {
		t.Fatal("expected error")
	}
	if got := mustRead(t, filepath.Join(canonical, "v")); got != "old" {
		t.Errorf("canonical = %q", got)
	}
}

func TestRecover(t *testing.T) {
	dir := t.TempDir()
	canonical := filepath.Join(dir, "index")

	// Crash after the backup rename, before the new index moved in.
	mustWrite(t, filepath.Join(canonical+BackupSuffix, "v"), "old")
	if err := Recover(canonical); err != nil {
		t.Fatal(err)
	}
	if got := mustRead(t, filepath.Join(canonical, "v")); got != "old" {
		t.Errorf("canonical = %q", got)
	}

	// Crash after the new index moved in, before the backup was removed.
	mustWrite(t, filepath.Join(canonical+BackupSuffix, "v"), "stale")
	if err := Recover(canonical); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(canonical + BackupSuffix); !os.IsNotExist(err) {
		t.Error("stale backup not removed")
	}
	if got := mustRead(t, filepath.Join(canonical, "v")); got != "old" {
		t.Errorf("canonical = %q", got)
	}
}

func TestSnippet(t *testing.T) {
	got := Snippet("Intro text. The <Golang> keyword appears here.", []string{"golang"}, 20)
	if !strings.Contains(got, "<mark>Golang</mark>") {
		t.Errorf("snippet = %q", got)
	}
	if !strings.Contains(got, "&lt;") {
		t.Errorf("snippet not escaped: %q", got)
	}
	if Snippet("nothing", []string{"absent"}, 20) != "" {
		t.Error("expected empty snippet")
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustWrite(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustRead(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
