// Package index is a SQLite-backed search.Engine: a single database file
// with FTS5 full-text search when built with the sqlite_fts5 tag and a
// LIKE fallback otherwise.
package index

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/notter/internal/search"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	body        TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL DEFAULT '',
	created_ns  INTEGER NOT NULL DEFAULT 0,
	modified_ns INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notes_type ON notes(type);
`

// DB is the SQLite engine. The database lives in a single file at path.
type DB struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex // guards conn; held exclusively only while swapping
	conn *sql.DB

	// populated is called after each document of a rebuild is inserted.
	populated func(n int) error
}

var _ search.Engine = (*DB)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("index: mkdir: %w", err)
	}
	if err := search.Recover(path); err != nil {
		return nil, err
	}
	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}
	return &DB{path: path, logger: slog.Default(), conn: conn}, nil
}

// SetLogger sets the logger used for promotion warnings.
func (db *DB) SetLogger(l *slog.Logger) {
	if l != nil {
		db.logger = l
	}
}

func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return conn, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}
