// Package storage is the file-system layer under the note store.
// Every path it accepts or returns is slash-separated and relative to the
// store root.
package storage

import (
	"io"
	"time"
)

// Provider is the interface for note file operations.
type Provider interface {
	// Root returns the absolute store root.
	Root() string
	// Walk calls visit for every regular file under the root, following
	// symlinks. Unreadable subtrees are skipped.
	Walk(visit func(rel string)) error
	// RootNames returns the names of regular files directly under the root.
	RootNames() ([]string, error)
	// Read returns the raw bytes of the file at rel.
	Read(rel string) ([]byte, error)
	// Open returns a reader over the file at rel.
	Open(rel string) (io.ReadCloser, error)
	// Stat returns the file timestamps of rel.
	Stat(rel string) (Times, error)
	// Create writes a new file and fails with apperr.ErrConflict if rel exists.
	Create(rel string, content []byte) error
	// Write overwrites an existing file in place.
	Write(rel string, content []byte) error
	// Remove deletes the file at rel.
	Remove(rel string) error
	// Relocate renames from to to, creating intermediate directories.
	Relocate(from, to string) error
}

// Times are the file-system timestamps of a note file.
type Times struct {
	Created  time.Time
	Modified time.Time
}
