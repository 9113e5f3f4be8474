package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/notter/internal/apperr"
	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/search"
)

var errClosed = errors.New("index: database is closed")

// AddDocument implements search.Engine.
func (db *DB) AddDocument(doc search.Document) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.conn == nil {
		return errClosed
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsert(tx, doc); err != nil {
		return err
	}
	return tx.Commit()
}

func upsert(tx *sql.Tx, doc search.Document) error {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	_, err := tx.Exec(`
		INSERT INTO notes (id, title, tags, body, type, created_ns, modified_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title       = excluded.title,
			tags        = excluded.tags,
			body        = excluded.body,
			type        = excluded.type,
			created_ns  = excluded.created_ns,
			modified_ns = excluded.modified_ns
	`, doc.ID, doc.Title, string(tagsJSON), doc.Content, string(doc.Type),
		doc.Created.UnixNano(), doc.Modified.UnixNano())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	return ftsUpsert(tx, doc.ID, doc.Title, doc.Content, tags)
}

// RemoveDocument implements search.Engine.
func (db *DB) RemoveDocument(id string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.conn == nil {
		return errClosed
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// RebuildIndex implements search.Engine. The replacement database is
// written next to the live one and promoted with search.Promote.
func (db *DB) RebuildIndex(docs []search.Document) error {
	staging, err := os.MkdirTemp(filepath.Dir(db.path), "."+filepath.Base(db.path)+".build-")
	if err != nil {
		return fmt.Errorf("index: rebuild: %w", err)
	}
	defer os.RemoveAll(staging)

	target := filepath.Join(staging, filepath.Base(db.path))
	if err := db.build(target, docs); err != nil {
		return fmt.Errorf("index: rebuild: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("index: rebuild: close current db: %w", err)
		}
		db.conn = nil
	}
	promoteErr := search.Promote(target, db.path, db.logger)
	conn, err := openConn(db.path)
	if err != nil {
		return errors.Join(promoteErr, fmt.Errorf("index: rebuild: reopen: %w", err))
	}
	db.conn = conn
	return promoteErr
}

func (db *DB) build(target string, docs []search.Document) error {
	conn, err := openConn(target)
	if err != nil {
		return err
	}
	tx, err := conn.Begin()
	if err != nil {
		conn.Close()
		return fmt.Errorf("index: begin tx: %w", err)
	}
	for i, d := range docs {
		if err := upsert(tx, d); err != nil {
			_ = tx.Rollback()
			conn.Close()
			return err
		}
		if db.populated != nil {
			if err := db.populated(i + 1); err != nil {
				_ = tx.Rollback()
				conn.Close()
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		conn.Close()
		return fmt.Errorf("index: commit rebuild: %w", err)
	}
	// Fold the WAL back into the main file so only one file is promoted.
	if _, err := conn.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		conn.Close()
		return fmt.Errorf("index: checkpoint: %w", err)
	}
	return conn.Close()
}

// DocumentCount implements search.Engine.
func (db *DB) DocumentCount() (uint64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.conn == nil {
		return 0, errClosed
	}
	var n uint64
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Optimize implements search.Engine.
func (db *DB) Optimize() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.conn == nil {
		return errClosed
	}
	if err := ftsOptimize(db.conn); err != nil {
		return err
	}
	if _, err := db.conn.Exec(`PRAGMA optimize`); err != nil {
		return fmt.Errorf("index: optimize: %w", err)
	}
	return nil
}

// hitRow is one search hit before snippets are attached.
type hitRow struct {
	id, title, tags, typ string
	created, modified    int64
	text                 string
	score                float64
}

func scanHits(rows *sql.Rows) ([]hitRow, error) {
	defer rows.Close()
	var out []hitRow
	for rows.Next() {
		var h hitRow
		if err := rows.Scan(&h.id, &h.title, &h.tags, &h.typ, &h.created, &h.modified, &h.text, &h.score); err != nil {
			return nil, fmt.Errorf("index: scan hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (h *hitRow) result(snippet string) models.SearchResult {
	tags := []string{}
	_ = json.Unmarshal([]byte(h.tags), &tags)
	res := models.SearchResult{
		NoteSummary: models.NoteSummary{
			ID:       h.id,
			Title:    h.title,
			Created:  time.Unix(0, h.created),
			Modified: time.Unix(0, h.modified),
			Tags:     tags,
			Type:     models.NoteType(h.typ),
		},
		Snippets: []string{},
		Score:    h.score,
	}
	if snippet != "" {
		res.Snippets = append(res.Snippets, snippet)
	}
	return res
}

func (db *DB) query(q string, args ...any) ([]hitRow, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.conn == nil {
		return nil, errClosed
	}
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanHits(rows)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return search.DefaultLimit
	}
	return limit
}

// searchType matches the note type exactly, ignoring case.
func (db *DB) searchType(value string, limit int) ([]models.SearchResult, error) {
	hits, err := db.query(`
		SELECT id, title, tags, type, created_ns, modified_ns, '', 1.0
		FROM notes
		WHERE type = ? COLLATE NOCASE
		ORDER BY modified_ns DESC
		LIMIT ?
	`, value, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	out := make([]models.SearchResult, 0, len(hits))
	for i := range hits {
		out = append(out, hits[i].result(""))
	}
	return out, nil
}

// column maps a search field to its notes/files_fts column.
func column(field string) (string, error) {
	switch field {
	case search.FieldTitle:
		return "title", nil
	case search.FieldTags:
		return "tags", nil
	case search.FieldContent:
		return "body", nil
	}
	return "", fmt.Errorf("index: unknown field %q: %w", field, apperr.ErrInvalidInput)
}
