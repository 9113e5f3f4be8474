package search

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
)

// Memory is an in-process Engine. Rebuilds swap the whole document map at
// once, so readers never observe a partial index.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemory creates an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

// AddDocument implements Engine.
func (m *Memory) AddDocument(doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

// RemoveDocument implements Engine.
func (m *Memory) RemoveDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// RebuildIndex implements Engine.
func (m *Memory) RebuildIndex(docs []Document) error {
	fresh := make(map[string]Document, len(docs))
	for _, d := range docs {
		fresh[d.ID] = d
	}
	m.mu.Lock()
	m.docs = fresh
	m.mu.Unlock()
	return nil
}

// Search implements Engine.
func (m *Memory) Search(query string, limit int) ([]models.SearchResult, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return []models.SearchResult{}, nil
	}
	return m.rank(terms, limit, func(d *Document, term string) float64 {
		return TitleBoost*count(d.Title, term) +
			TagsBoost*count(strings.Join(d.Tags, " "), term) +
			ContentBoost*count(d.Content, term)
	}), nil
}

// SearchField implements Engine.
func (m *Memory) SearchField(field, value string, limit int) ([]models.SearchResult, error) {
	var text func(d *Document) string
	switch field {
	case FieldTitle:
		text = func(d *Document) string { return d.Title }
	case FieldTags:
		text = func(d *Document) string { return strings.Join(d.Tags, " ") }
	case FieldContent:
		text = func(d *Document) string { return d.Content }
	case FieldType:
		return m.rank([]string{value}, limit, func(d *Document, term string) float64 {
			if strings.EqualFold(string(d.Type), term) {
				return 1
			}
			return 0
		}), nil
	default:
		return nil, fmt.Errorf("search: unknown field %q: %w", field, apperr.ErrInvalidInput)
	}
	terms := Terms(value)
	if len(terms) == 0 {
		return []models.SearchResult{}, nil
	}
	return m.rank(terms, limit, func(d *Document, term string) float64 {
		return count(text(d), term)
	}), nil
}

func (m *Memory) rank(terms []string, limit int, score func(d *Document, term string) float64) []models.SearchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.SearchResult{}
	for id := range m.docs {
		d := m.docs[id]
		var total float64
		for _, t := range terms {
			total += score(&d, t)
		}
		if total == 0 {
			continue
		}
		res := models.SearchResult{NoteSummary: d.summary(), Snippets: []string{}, Score: total}
		if s := Snippet(d.Content, terms, SnippetLength); s != "" {
			res.Snippets = append(res.Snippets, s)
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out
}

// count is the number of whole-term occurrences of term in text.
func count(text, term string) float64 {
	var n float64
	for _, t := range Terms(text) {
		if t == term {
			n++
		}
	}
	return n
}

// DocumentCount implements Engine.
func (m *Memory) DocumentCount() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.docs)), nil
}

// Optimize implements Engine.
func (m *Memory) Optimize() error { return nil }

// Close implements Engine.
func (m *Memory) Close() error { return nil }
