//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/search"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE over the notes table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

func ftsOptimize(_ *sql.DB) error { return nil }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// Search performs a LIKE-based search. Each query term scores the field
// boosts of the columns it occurs in.
func (db *DB) Search(query string, limit int) ([]models.SearchResult, error) {
	terms := search.Terms(query)
	if len(terms) == 0 {
		return []models.SearchResult{}, nil
	}
	weights := map[string]float64{
		"title": search.TitleBoost,
		"tags":  search.TagsBoost,
		"body":  search.ContentBoost,
	}
	return db.likeSearch(terms, weights, limit)
}

// SearchField implements search.Engine.
func (db *DB) SearchField(field, value string, limit int) ([]models.SearchResult, error) {
	if field == search.FieldType {
		return db.searchType(strings.TrimSpace(value), limit)
	}
	col, err := column(field)
	if err != nil {
		return nil, err
	}
	terms := search.Terms(value)
	if len(terms) == 0 {
		return []models.SearchResult{}, nil
	}
	return db.likeSearch(terms, map[string]float64{col: 1}, limit)
}

func (db *DB) likeSearch(terms []string, weights map[string]float64, limit int) ([]models.SearchResult, error) {
	var (
		parts []string
		args  []any
	)
	for _, t := range terms {
		for _, col := range []string{"title", "tags", "body"} {
			w, ok := weights[col]
			if !ok {
				continue
			}
			parts = append(parts, fmt.Sprintf(`CASE WHEN %s LIKE ? ESCAPE '\' THEN %g ELSE 0 END`, col, w))
			args = append(args, likePattern(t))
		}
	}
	args = append(args, limitOrDefault(limit))

	hits, err := db.query(`
		SELECT id, title, tags, type, created_ns, modified_ns, body, score
		FROM (
			SELECT *, (`+strings.Join(parts, " + ")+`) AS score
			FROM notes
		)
		WHERE score > 0
		ORDER BY score DESC, id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(hits))
	for i := range hits {
		out = append(out, hits[i].result(search.Snippet(hits[i].text, terms, search.SnippetLength)))
	}
	return out, nil
}
