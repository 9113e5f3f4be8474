//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/search"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, body string, tags []string) error {
	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	_, err := tx.Exec(`INSERT INTO files_fts (id, title, body, tags) VALUES (?, ?, ?, ?)`,
		id, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) error {
	if _, err := tx.Exec(`DELETE FROM files_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

func ftsOptimize(conn *sql.DB) error {
	if _, err := conn.Exec(`INSERT INTO files_fts(files_fts) VALUES('optimize')`); err != nil {
		return fmt.Errorf("index: optimize fts: %w", err)
	}
	return nil
}

// matchExpr ORs the quoted query terms, optionally under a column filter.
func matchExpr(terms []string, col string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	expr := strings.Join(quoted, " OR ")
	if col != "" {
		expr = col + " : (" + expr + ")"
	}
	return expr
}

// Search performs an FTS5 search ranked by bm25 with per-column weights.
func (db *DB) Search(query string, limit int) ([]models.SearchResult, error) {
	terms := search.Terms(query)
	if len(terms) == 0 {
		return []models.SearchResult{}, nil
	}
	return db.ftsSearch(matchExpr(terms, ""), limit)
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
	return db.ftsSearch(matchExpr(terms, col), limit)
}

func (db *DB) ftsSearch(expr string, limit int) ([]models.SearchResult, error) {
	rank := fmt.Sprintf("bm25(files_fts, 0.0, %g, %g, %g)", search.TitleBoost, search.ContentBoost, search.TagsBoost)
	hits, err := db.query(`
		SELECT n.id, n.title, n.tags, n.type, n.created_ns, n.modified_ns,
		       snippet(files_fts, 2, '`+search.HighlightOpen+`', '`+search.HighlightClose+`', '…', 24),
		       -`+rank+`
		FROM files_fts
		JOIN notes n ON n.id = files_fts.id
		WHERE files_fts MATCH ?
		ORDER BY `+rank+`
		LIMIT ?
	`, expr, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, 0, len(hits))
	for i := range hits {
		out = append(out, hits[i].result(hits[i].text))
	}
	return out, nil
}
