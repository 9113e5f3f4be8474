package search

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
)

const batchSize = 500

var errClosed = errors.New("search: index is closed")

// noteDoc is the document shape stored in bleve.
type noteDoc struct {
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Tags     []string  `json:"tags"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	Type     string    `json:"type"`
}

// Bleve is the on-disk Engine. The index lives in a directory at path; a
// rebuild writes a sibling directory and promotes it with Promote.
type Bleve struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex // guards idx; held exclusively only while swapping
	idx bleve.Index

	// populated is called after each document of a rebuild is queued.
	populated func(n int) error
}

// OpenBleve opens the index at path, creating it when missing. An
// interrupted promotion is repaired first.
func OpenBleve(path string) (*Bleve, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("search: mkdir index dir: %w", err)
	}
	if err := Recover(path); err != nil {
		return nil, err
	}
	var (
		idx bleve.Index
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		idx, err = bleve.Open(path)
	} else {
		idx, err = bleve.New(path, noteMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("search: open %s: %w", path, err)
	}
	return &Bleve{path: path, logger: slog.Default(), idx: idx}, nil
}

// SetLogger sets the logger used for promotion warnings.
func (b *Bleve) SetLogger(l *slog.Logger) {
	if l != nil {
		b.logger = l
	}
}

func noteMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()

	doc := mapping.NewDocumentMapping()
	doc.Dynamic = false

	text := mapping.NewTextFieldMapping()
	text.Store = true

	kw := mapping.NewKeywordFieldMapping()
	kw.Store = true

	dt := mapping.NewDateTimeFieldMapping()
	dt.Store = true

	doc.AddFieldMappingsAt(FieldTitle, text)
	doc.AddFieldMappingsAt(FieldContent, text)
	doc.AddFieldMappingsAt(FieldTags, text)
	doc.AddFieldMappingsAt(FieldType, kw)
	doc.AddFieldMappingsAt("created", dt)
	doc.AddFieldMappingsAt("modified", dt)

	m.DefaultMapping = doc
	return m
}

func toNoteDoc(d Document) noteDoc {
	return noteDoc{
		Title:    d.Title,
		Content:  d.Content,
		Tags:     d.Tags,
		Created:  d.Created,
		Modified: d.Modified,
		Type:     string(d.Type),
	}
}

// AddDocument implements Engine.
func (b *Bleve) AddDocument(doc Document) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.idx == nil {
		return errClosed
	}
	if err := b.idx.Index(doc.ID, toNoteDoc(doc)); err != nil {
		return fmt.Errorf("search: index %s: %w", doc.ID, err)
	}
	return nil
}

// RemoveDocument implements Engine.
func (b *Bleve) RemoveDocument(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.idx == nil {
		return errClosed
	}
	if err := b.idx.Delete(id); err != nil {
		return fmt.Errorf("search: delete %s: %w", id, err)
	}
	return nil
}

// RebuildIndex implements Engine. The live index keeps serving queries
// while the replacement is built.
func (b *Bleve) RebuildIndex(docs []Document) error {
	staging, err := os.MkdirTemp(filepath.Dir(b.path), "."+filepath.Base(b.path)+".build-")
	if err != nil {
		return fmt.Errorf("search: rebuild: %w", err)
	}
	defer os.RemoveAll(staging)

	target := filepath.Join(staging, "index")
	if err := b.build(target, docs); err != nil {
		return fmt.Errorf("search: rebuild: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx != nil {
		if err := b.idx.Close(); err != nil {
			return fmt.Errorf("search: rebuild: close current index: %w", err)
		}
		b.idx = nil
	}
	promoteErr := Promote(target, b.path, b.logger)
	idx, err := bleve.Open(b.path)
	if err != nil {
		return errors.Join(promoteErr, fmt.Errorf("search: rebuild: reopen: %w", err))
	}
	b.idx = idx
	return promoteErr
}

func (b *Bleve) build(target string, docs []Document) error {
	fresh, err := bleve.New(target, noteMapping())
	if err != nil {
		return err
	}
	batch := fresh.NewBatch()
	for i, d := range docs {
		if err := batch.Index(d.ID, toNoteDoc(d)); err != nil {
			_ = fresh.Close()
			return err
		}
		if b.populated != nil {
			if err := b.populated(i + 1); err != nil {
				_ = fresh.Close()
				return err
			}
		}
		if batch.Size() >= batchSize {
			if err := fresh.Batch(batch); err != nil {
				_ = fresh.Close()
				return err
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := fresh.Batch(batch); err != nil {
			_ = fresh.Close()
			return err
		}
	}
	return fresh.Close()
}

// Search implements Engine.
func (b *Bleve) Search(q string, limit int) ([]models.SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.SearchResult{}, nil
	}
	title := bleve.NewMatchQuery(q)
	title.SetField(FieldTitle)
	title.SetBoost(TitleBoost)

	tags := bleve.NewMatchQuery(q)
	tags.SetField(FieldTags)
	tags.SetBoost(TagsBoost)

	content := bleve.NewMatchQuery(q)
	content.SetField(FieldContent)
	content.SetBoost(ContentBoost)

	return b.run(bleve.NewDisjunctionQuery(title, tags, content), limit)
}

// SearchField implements Engine.
func (b *Bleve) SearchField(field, value string, limit int) ([]models.SearchResult, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return []models.SearchResult{}, nil
	}
	var q query.Query
	switch field {
	case FieldTitle, FieldTags, FieldContent:
		mq := bleve.NewMatchQuery(value)
		mq.SetField(field)
		q = mq
	case FieldType:
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		q = tq
	default:
		return nil, fmt.Errorf("search: unknown field %q: %w", field, apperr.ErrInvalidInput)
	}
	return b.run(q, limit)
}

func (b *Bleve) run(q query.Query, limit int) ([]models.SearchResult, error) {
	req := bleve.NewSearchRequestOptions(q, normalizeLimit(limit), 0, false)
	req.Fields = []string{FieldTitle, FieldTags, FieldType, "created", "modified"}
	req.Highlight = bleve.NewHighlight()
	req.Highlight.AddField(FieldContent)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.idx == nil {
		return nil, errClosed
	}
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}

	out := make([]models.SearchResult, 0, len(res.Hits))
	for _, h := range res.Hits {
		title, _ := h.Fields[FieldTitle].(string)
		typ, _ := h.Fields[FieldType].(string)
		snippets := h.Fragments[FieldContent]
		if snippets == nil {
			snippets = []string{}
		}
		out = append(out, models.SearchResult{
			NoteSummary: models.NoteSummary{
				ID:       h.ID,
				Title:    title,
				Created:  storedTime(h.Fields["created"]),
				Modified: storedTime(h.Fields["modified"]),
				Tags:     storedStrings(h.Fields[FieldTags]),
				Type:     models.NoteType(typ),
			},
			Snippets: snippets,
			Score:    h.Score,
		})
	}
	return out, nil
}

func storedTime(v any) time.Time {
	s, _ := v.(string)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// storedStrings reads a stored array field, which bleve returns as a plain
// string when it holds a single value.
func storedStrings(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

// DocumentCount implements Engine.
func (b *Bleve) DocumentCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.idx == nil {
		return 0, errClosed
	}
	return b.idx.DocCount()
}

// Optimize implements Engine. Scorch merges segments in the background, so
// there is nothing to force.
func (b *Bleve) Optimize() error { return nil }

// Close implements Engine.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx == nil {
		return nil
	}
	err := b.idx.Close()
	b.idx = nil
	return err
}
