package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/notter/internal/indexsync"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/noteid"
	"github.com/starford/notter/internal/noteservice"
	"github.com/starford/notter/internal/search"
	"github.com/starford/notter/internal/testutil"
)

// testEnv sets up a temp notes dir, in-memory index, service, and router.
// An empty authToken disables auth.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	return testEnvWith(t, search.NewMemory(), authToken, nil)
}

func testEnvWith(t *testing.T, engine search.Engine, authToken string, sse http.Handler) (*noteservice.Service, http.Handler) {
	t.Helper()
	svc := noteservice.New(testutil.TestStore(t), testutil.Incremental(engine), noteservice.Options{
		Logger: testutil.Logger(),
	})
	router := NewRouter(svc, Auth{Enabled: authToken != "", Token: authToken}, sse, testutil.Logger())
	return svc, router
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func notePath(id string, sub ...string) string {
	p := "/notes/" + url.PathEscape(id)
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

func decodeNote(t *testing.T, w *httptest.ResponseRecorder) models.Note {
	t.Helper()
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode note: %v (%s)", err, w.Body.String())
	}
	return n
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Hello", Content: "world #greeting"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decodeNote(t, w)
	if created.ID != noteid.Encode("Hello.md") {
		t.Errorf("id = %q", created.ID)
	}

	w = do(t, router, http.MethodGet, notePath(created.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decodeNote(t, w)
	if got.Title != "Hello" || len(got.Tags) != 1 || got.Tags[0] != "greeting" {
		t.Errorf("note = %+v", got)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+got.Checksum+`"` {
		t.Errorf("etag = %q", etag)
	}
}

func TestIDWithSlash(t *testing.T) {
	svc, router := testEnv(t, "")
	testutil.WriteNote(t, svc.Root(), "x/??.md", "# Question")
	id := noteid.Encode("x/??.md")
	if !strings.Contains(id, "/") {
		t.Fatalf("fixture id %q has no slash", id)
	}

	w := do(t, router, http.MethodGet, notePath(id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, body = %s", w.Code, w.Body.String())
	}
	if n := decodeNote(t, w); n.Title != "Question" || n.Path != "x/??.md" {
		t.Errorf("note = %+v", n)
	}
}

func TestCreateDuplicate(t *testing.T) {
	_, router := testEnv(t, "")
	req := CreateNoteRequest{Title: "Dup"}
	if w := do(t, router, http.MethodPost, "/notes", req); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes", req); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing title = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "a/b"}); w.Code != http.StatusBadRequest {
		t.Errorf("separator in title = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := decodeNote(t, do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Lock"}))

	req := httptest.NewRequest(http.MethodPut, notePath(created.ID), strings.NewReader(`{"content":"# Lock\nv2"}`))
	req.Header.Set("If-Match", `"wrong"`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("stale If-Match = %d, want 409", w.Code)
	}

	req = httptest.NewRequest(http.MethodPut, notePath(created.ID), strings.NewReader(`{"content":"# Lock\nv2"}`))
	req.Header.Set("If-Match", `"`+created.Checksum+`"`)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	if n := decodeNote(t, w); n.Content != "# Lock\nv2" || n.ID != created.ID {
		t.Errorf("updated = %+v", n)
	}
}

func TestRenameAndMove(t *testing.T) {
	_, router := testEnv(t, "")
	created := decodeNote(t, do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Start", Type: models.PlainText}))

	w := do(t, router, http.MethodPost, notePath(created.ID, "rename"), RenameNoteRequest{Name: "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename = %d, body = %s", w.Code, w.Body.String())
	}
	renamed := decodeNote(t, w)
	if renamed.Path != "Renamed.txt" {
		t.Errorf("renamed path = %q", renamed.Path)
	}

	w = do(t, router, http.MethodPost, notePath(renamed.ID, "move"), MoveNoteRequest{Path: "../escape.txt"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("traversal move = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, notePath(renamed.ID, "move"), MoveNoteRequest{Path: "archive/Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("move = %d, body = %s", w.Code, w.Body.String())
	}
	if moved := decodeNote(t, w); moved.Path != "archive/Renamed.txt" {
		t.Errorf("moved path = %q", moved.Path)
	}
	if w := do(t, router, http.MethodGet, notePath(renamed.ID), nil); w.Code != http.StatusNotFound {
		t.Errorf("old id = %d, want 404", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")
	created := decodeNote(t, do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Gone"}))

	if w := do(t, router, http.MethodDelete, notePath(created.ID), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, notePath(created.ID), nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestInvalidID(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes/not-base64!", nil); w.Code != http.StatusBadRequest {
		t.Errorf("invalid id = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, notePath(noteid.Encode("missing.md")), nil); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	for _, title := range []string{"b10", "b9", "a"} {
		do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: title})
	}
	w := do(t, router, http.MethodGet, "/notes?sort=title_asc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	var titles []string
	for _, n := range resp.Notes {
		titles = append(titles, n.Title)
	}
	if strings.Join(titles, ",") != "a,b9,b10" || resp.Total != 3 {
		t.Errorf("titles = %v, total = %d", titles, resp.Total)
	}
	if w := do(t, router, http.MethodGet, "/notes?sort=sideways", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestLookup(t *testing.T) {
	_, router := testEnv(t, "")
	created := decodeNote(t, do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Findme"}))

	w := do(t, router, http.MethodGet, "/notes/lookup?title=findme", nil)
	var resp LookupResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.ID != created.ID {
		t.Errorf("lookup = %d %+v", w.Code, resp)
	}
	if w := do(t, router, http.MethodGet, "/notes/lookup?title=nothing", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing lookup = %d, want 404", w.Code)
	}
}

func TestSubnotesAndBacklinks(t *testing.T) {
	svc, router := testEnv(t, "")
	testutil.WriteNote(t, svc.Root(), "1-Start.md", "# 1-Start")
	testutil.WriteNote(t, svc.Root(), "1a-Next.md", "# 1a-Next\nafter [[1-Start]]")
	id := noteid.Encode("1-Start.md")

	w := do(t, router, http.MethodGet, notePath(id, "subnotes"), nil)
	var subs SubnotesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &subs)
	if w.Code != http.StatusOK || len(subs.Subnotes) != 1 || subs.Subnotes[0].Depth != 1 {
		t.Errorf("subnotes = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, notePath(id, "backlinks"), nil)
	var links BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &links)
	if w.Code != http.StatusOK || len(links.Backlinks) != 1 || links.Backlinks[0].Title != "1a-Next" {
		t.Errorf("backlinks = %d %s", w.Code, w.Body.String())
	}
}

func TestRenderHTML(t *testing.T) {
	_, router := testEnv(t, "")
	created := decodeNote(t, do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Pretty", Content: "*soft*"}))
	w := do(t, router, http.MethodGet, notePath(created.ID, "html"), nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<em>soft</em>") {
		t.Errorf("html = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Quantum", Content: "entangled particles"})
	do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Other", Content: "nothing here"})

	w := do(t, router, http.MethodGet, "/search?q=entangled", nil)
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Results) != 1 || resp.Results[0].Title != "Quantum" {
		t.Errorf("search = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/search?q=quantum&field=title", nil)
	resp = SearchResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Results) != 1 {
		t.Errorf("field search = %d %s", w.Code, w.Body.String())
	}

	if w := do(t, router, http.MethodGet, "/search?q=x&field=colour", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing query = %d, want 400", w.Code)
	}
}

func TestIndexEndpoints(t *testing.T) {
	svc, router := testEnv(t, "")
	testutil.WriteNote(t, svc.Root(), "outside.md", "# Outside\nwritten behind our back")

	w := do(t, router, http.MethodPost, "/index/rebuild", nil)
	var st indexsync.Status
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if w.Code != http.StatusOK || st.Documents != 1 || st.LastRebuild.IsZero() {
		t.Errorf("rebuild = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/index", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"mode":"incremental"`) {
		t.Errorf("status = %d %s", w.Code, w.Body.String())
	}

	if w := do(t, router, http.MethodPost, "/index/optimize", nil); w.Code != http.StatusNoContent {
		t.Errorf("optimize = %d", w.Code)
	}
}

type brokenEngine struct{ *search.Memory }

func (brokenEngine) AddDocument(search.Document) error { return errors.New("index offline") }

func TestIndexFailureHeader(t *testing.T) {
	_, router := testEnvWith(t, brokenEngine{search.NewMemory()}, "", nil)
	w := do(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Stubborn"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	if h := w.Header().Get(IndexErrorHeader); !strings.Contains(h, "index offline") {
		t.Errorf("%s = %q", IndexErrorHeader, h)
	}
}

func TestSelectNotesDir(t *testing.T) {
	svc, router := testEnv(t, "")
	dir := t.TempDir()
	testutil.WriteNote(t, dir, "there.md", "# There")

	w := do(t, router, http.MethodPut, "/settings/notes-dir", NotesDirRequest{Path: dir})
	if w.Code != http.StatusOK {
		t.Fatalf("select = %d, body = %s", w.Code, w.Body.String())
	}
	if svc.Root() != dir {
		t.Errorf("root = %q, want %q", svc.Root(), dir)
	}
	if w := do(t, router, http.MethodPut, "/settings/notes-dir", NotesDirRequest{Path: dir + "/missing"}); w.Code != http.StatusNotFound {
		t.Errorf("missing dir = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, router := testEnv(t, "secret")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer secret", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"scheme", "Basic secret", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/notes", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWith(t, search.NewMemory(), "secret", sseStub)
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWith(t, search.NewMemory(), "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
