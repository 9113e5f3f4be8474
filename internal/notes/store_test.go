package notes

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/noteid"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, dir
}

func writeFile(t *testing.T, dir, rel, content string, modified time.Time) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if !modified.IsZero() {
		if err := os.Chtimes(p, modified, modified); err != nil {
			t.Fatal(err)
		}
	}
}

func titles(list []models.NoteSummary) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.Title
	}
	return out
}

func TestCreateRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	created, err := s.Create(CreateRequest{Title: "Test", Content: "# Test\nbody #tag", Type: models.Markdown})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Test" || got.Content != created.Content || got.Type != models.Markdown {
		t.Errorf("round trip mismatch: %+v vs %+v", got, created)
	}
	if got.Content != "# Test\nbody #tag" {
		t.Errorf("content = %q", got.Content)
	}
	if !reflect.DeepEqual(got.Tags, []string{"tag"}) {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Path != "Test.md" {
		t.Errorf("path = %q", got.Path)
	}
}

func TestCreateAddsHeadingForMarkdown(t *testing.T) {
	s, _ := newStore(t)
	n, err := s.Create(CreateRequest{Title: "Test", Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if n.Content != "# Test\n\nhello" || n.Title != "Test" {
		t.Errorf("note = %+v", n)
	}

	empty, err := s.Create(CreateRequest{Title: "Empty"})
	if err != nil {
		t.Fatal(err)
	}
	if empty.Content != "# Empty\n" || empty.Title != "Empty" {
		t.Errorf("note = %+v", empty)
	}
}

func TestCreatePlainTextKeepsContent(t *testing.T) {
	s, _ := newStore(t)
	n, err := s.Create(CreateRequest{Title: "groceries", Content: "milk", Type: models.PlainText})
	if err != nil {
		t.Fatal(err)
	}
	if n.Content != "milk" || n.Title != "groceries" || n.Path != "groceries.txt" {
		t.Errorf("note = %+v", n)
	}
}

func TestCreateConflict(t *testing.T) {
	s, _ := newStore(t)
	if _, err := s.Create(CreateRequest{Title: "Dup"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(CreateRequest{Title: "Dup"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	s, _ := newStore(t)
	bad := []CreateRequest{
		{Title: ""},
		{Title: "a/b"},
		{Title: "x", Pattern: "{number}.{extension}"},
		{Title: "x", Type: models.NoteType("Docx")},
	}
	for _, req := range bad {
		if _, err := s.Create(req); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Create(%+v) err = %v, want ErrInvalidInput", req, err)
		}
	}
}

func TestCreateWithNumberPattern(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "1-first.md", "# first", time.Time{})
	writeFile(t, dir, "7-seventh.md", "# seventh", time.Time{})
	writeFile(t, dir, "sub/99-nested.md", "# nested", time.Time{})
	writeFile(t, dir, "notes.md", "# unrelated", time.Time{})

	n, err := s.Create(CreateRequest{Title: "next", Pattern: "{number}-{title}.{extension}"})
	if err != nil {
		t.Fatal(err)
	}
	if n.Path != "8-next.md" {
		t.Errorf("path = %q, want 8-next.md", n.Path)
	}

	first, err := s.Create(CreateRequest{Title: "plain", Type: models.PlainText, Pattern: "z{number}_{title}"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Path != "z1_plain.txt" {
		t.Errorf("path = %q, want z1_plain.txt", first.Path)
	}
}

func TestPatternRegexp(t *testing.T) {
	re := patternRegexp("{number}-{title}.{extension}")
	if m := re.FindStringSubmatch("12-a.b.md"); len(m) != 2 || m[1] != "12" {
		t.Errorf("match = %v", m)
	}
	if re.MatchString("x12-a.md") {
		t.Error("pattern must be anchored")
	}
	if got := nextNumber("note.{number}.{extension}", []string{"note.3.md", "note.x.md", "note.10.txt"}); got != 11 {
		t.Errorf("nextNumber = %d, want 11", got)
	}
}

func TestListSortsAndFilters(t *testing.T) {
	s, dir := newStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeFile(t, dir, "a.md", "Note 2", base.Add(2*time.Hour))
	writeFile(t, dir, "b.md", "Note 10", base.Add(3*time.Hour))
	writeFile(t, dir, "sub/c.md", "Note 1", base.Add(1*time.Hour))
	writeFile(t, dir, "image.png", "binary", base)

	asc, err := s.List(models.SortTitleAsc)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Note 1", "Note 2", "Note 10"}; !reflect.DeepEqual(titles(asc), want) {
		t.Errorf("title asc = %v, want %v", titles(asc), want)
	}

	desc, _ := s.List(models.SortTitleDesc)
	if want := []string{"Note 10", "Note 2", "Note 1"}; !reflect.DeepEqual(titles(desc), want) {
		t.Errorf("title desc = %v, want %v", titles(desc), want)
	}

	newest, _ := s.List(models.DefaultSort)
	if want := []string{"Note 10", "Note 2", "Note 1"}; !reflect.DeepEqual(titles(newest), want) {
		t.Errorf("modified newest = %v, want %v", titles(newest), want)
	}

	oldest, _ := s.List(models.SortModifiedOldest)
	if want := []string{"Note 1", "Note 2", "Note 10"}; !reflect.DeepEqual(titles(oldest), want) {
		t.Errorf("modified oldest = %v, want %v", titles(oldest), want)
	}
}

func TestListPlainTextTitleIsStem(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "todo.txt", "# ignored", time.Time{})
	list, err := s.List(models.DefaultSort)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Title != "todo" || list[0].Type != models.PlainText {
		t.Errorf("list = %+v", list)
	}
}

func TestGetErrors(t *testing.T) {
	s, _ := newStore(t)
	if _, err := s.Get("***"); !errors.Is(err, apperr.ErrInvalidIdentifier) {
		t.Errorf("malformed id err = %v", err)
	}
	if _, err := s.Get(noteid.Encode("missing.md")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing id err = %v", err)
	}
	if _, err := s.Get(noteid.Encode("../outside.md")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("traversal id err = %v", err)
	}
}

func TestAliasPathsAreRejected(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "a.md", "# A", time.Time{})
	writeFile(t, dir, "x/b.md", "# B", time.Time{})

	for _, rel := range []string{"./x/../a.md", "./a.md", "x//b.md", "x/./b.md", "/a.md", "x/../a.md"} {
		if _, err := s.Get(noteid.Encode(rel)); !errors.Is(err, apperr.ErrInvalidIdentifier) {
			t.Errorf("Get(%q) err = %v, want ErrInvalidIdentifier", rel, err)
		}
		if _, err := s.UpdateContent(noteid.Encode(rel), "# Changed"); !errors.Is(err, apperr.ErrInvalidIdentifier) {
			t.Errorf("UpdateContent(%q) err = %v, want ErrInvalidIdentifier", rel, err)
		}
	}
	got, err := s.Get(noteid.Encode("a.md"))
	if err != nil {
		t.Fatalf("Get canonical: %v", err)
	}
	if got.Content != "# A" || got.ID != noteid.Encode("a.md") {
		t.Errorf("note = %+v", got)
	}
}

func TestDirectoryNamedLikeNoteIsNotFound(t *testing.T) {
	s, dir := newStore(t)
	if err := os.Mkdir(filepath.Join(dir, "d.md"), 0o755); err != nil {
		t.Fatal(err)
	}
	id := noteid.Encode("d.md")
	if _, err := s.Get(id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
}

func TestUpdateContentKeepsID(t *testing.T) {
	s, _ := newStore(t)
	n, _ := s.Create(CreateRequest{Title: "Keep"})
	updated, err := s.UpdateContent(n.ID, "# Renamed heading\n#new")
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != n.ID || updated.Title != "Renamed heading" {
		t.Errorf("updated = %+v", updated)
	}
	if !reflect.DeepEqual(updated.Tags, []string{"new"}) {
		t.Errorf("tags = %v", updated.Tags)
	}
}

func TestRename(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "sub/old.txt", "content", time.Time{})
	id := noteid.Encode("sub/old.txt")

	n, err := s.Rename(id, "new")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if n.Path != "sub/new.txt" || n.ID == id || n.Title != "new" {
		t.Errorf("renamed = %+v", n)
	}
	if _, err := s.Get(id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old id should be gone, err = %v", err)
	}
}

func TestRenameConflictAndInvalid(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "a.md", "a", time.Time{})
	writeFile(t, dir, "b.md", "b", time.Time{})
	id := noteid.Encode("a.md")

	if _, err := s.Rename(id, "b"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if _, err := s.Rename(id, "x/y"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRenameCaseOnly(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "note.md", "# note", time.Time{})
	n, err := s.Rename(noteid.Encode("note.md"), "Note")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if n.Path != "Note.md" || n.ID != noteid.Encode("Note.md") {
		t.Errorf("renamed = %+v", n)
	}
	list, _ := s.List(models.DefaultSort)
	if len(list) != 1 {
		t.Errorf("list = %+v", list)
	}
}

func TestMove(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "a.md", "# A", time.Time{})
	id := noteid.Encode("a.md")

	n, err := s.Move(id, `deep\er/place`)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if n.Path != "deep/er/place.md" {
		t.Errorf("path = %q", n.Path)
	}

	for _, bad := range []string{"../out.md", "x/../../out.md", "/abs.md", "ok.png"} {
		if _, err := s.Move(n.ID, bad); !errors.Is(err, apperr.ErrInvalidInput) {
			t.Errorf("Move(%q) err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestMoveCaseOnly(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "dir/a.md", "# A", time.Time{})
	n, err := s.Move(noteid.Encode("dir/a.md"), "dir/A.md")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if n.Path != "dir/A.md" {
		t.Errorf("path = %q", n.Path)
	}
}

func TestDelete(t *testing.T) {
	s, _ := newStore(t)
	n, _ := s.Create(CreateRequest{Title: "gone"})
	if err := s.Delete(n.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(n.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestFindByTitle(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "x.md", "# Project Plan", time.Time{})
	id, ok, err := s.FindByTitle("project plan")
	if err != nil || !ok || id != noteid.Encode("x.md") {
		t.Errorf("FindByTitle = %q, %v, %v", id, ok, err)
	}
	if _, ok, _ := s.FindByTitle("project"); ok {
		t.Error("partial title must not match")
	}
}

func TestLoadAll(t *testing.T) {
	s, dir := newStore(t)
	writeFile(t, dir, "a.md", "# A\nbody", time.Time{})
	writeFile(t, dir, "b.txt", "plain", time.Time{})
	all, err := s.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d", len(all))
	}
	for _, n := range all {
		if n.Content == "" {
			t.Errorf("note %s loaded without content", n.Path)
		}
	}
}
