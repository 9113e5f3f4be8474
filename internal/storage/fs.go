package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"

	"github.com/starford/notter/internal/apperr"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the notes directory
	now  func() time.Time
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, ioErr("stat root", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s: %w", abs, apperr.ErrInvalidInput)
	}
	return &FS{root: abs, now: time.Now}, nil
}

// Root returns the absolute store root.
func (f *FS) Root() string { return f.root }

// CleanRel normalizes a caller-supplied relative path. Backslashes are
// treated as separators; absolute paths and any ".." component are rejected.
func CleanRel(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	if p == "" {
		return "", fmt.Errorf("storage: empty path: %w", apperr.ErrInvalidInput)
	}
	if strings.HasPrefix(p, "/") || filepath.VolumeName(p) != "" {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s: %w", p, apperr.ErrInvalidInput)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("storage: parent traversal not allowed: %s: %w", p, apperr.ErrInvalidInput)
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", fmt.Errorf("storage: empty path: %w", apperr.ErrInvalidInput)
	}
	return cleaned, nil
}

// safePath resolves a relative path against the root and rejects any
// result that escapes it.
func (f *FS) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || cleaned == "." {
		return "", fmt.Errorf("storage: empty path: %w", apperr.ErrInvalidInput)
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s: %w", rel, apperr.ErrInvalidInput)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes store root: %s: %w", rel, apperr.ErrInvalidInput)
	}
	return abs, nil
}

// Walk visits every regular file under the root. Symlinked directories are
// descended into once per real directory, so link cycles terminate.
func (f *FS) Walk(visit func(rel string)) error {
	visited := make(map[string]struct{})
	if _, err := os.ReadDir(f.root); err != nil {
		return ioErr("walk", f.root, err)
	}
	f.walkDir(f.root, "", visited, visit)
	return nil
}

func (f *FS) walkDir(abs, rel string, visited map[string]struct{}, visit func(string)) {
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		if _, ok := visited[real]; ok {
			return
		}
		visited[real] = struct{}{}
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return
	}
	for _, e := range entries {
		childAbs := filepath.Join(abs, e.Name())
		childRel := path.Join(rel, e.Name())
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(childAbs)
			if err != nil {
				continue
			}
			mode = target.Mode().Type()
		}
		switch {
		case mode.IsDir():
			f.walkDir(childAbs, childRel, visited, visit)
		case mode.IsRegular():
			visit(childRel)
		}
	}
}

// RootNames lists regular files directly under the root.
func (f *FS) RootNames() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, ioErr("read dir", f.root, err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// filePath resolves rel and requires it to name an existing regular file.
// Directories and other non-regular entries are reported as not found.
func (f *FS) filePath(op, rel string) (string, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", ioErr(op, rel, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("storage: %s %s: not a regular file: %w", op, rel, apperr.ErrNotFound)
	}
	return abs, nil
}

// Read returns the raw bytes of a note file.
func (f *FS) Read(rel string) ([]byte, error) {
	abs, err := f.filePath("read", rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, ioErr("read", rel, err)
	}
	return data, nil
}

// Open opens a note file for streaming reads.
func (f *FS) Open(rel string) (io.ReadCloser, error) {
	abs, err := f.filePath("open", rel)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(abs)
	if err != nil {
		return nil, ioErr("open", rel, err)
	}
	return file, nil
}

// Stat reports birth and modification times. Platforms without a birth
// time report the current time as created.
func (f *FS) Stat(rel string) (Times, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return Times{}, err
	}
	ts, err := times.Stat(abs)
	if err != nil {
		return Times{}, ioErr("stat", rel, err)
	}
	out := Times{Created: f.now(), Modified: ts.ModTime()}
	if ts.HasBirthTime() {
		out.Created = ts.BirthTime()
	}
	return out, nil
}

// Create writes content to a file that must not exist yet.
func (f *FS) Create(rel string, content []byte) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return ioErr("mkdir", rel, err)
	}
	file, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("storage: create %s: %w", rel, apperr.ErrConflict)
		}
		return ioErr("create", rel, err)
	}
	return writeAndClose(file, rel, content)
}

// Write overwrites an existing file in place, keeping its inode and birth time.
func (f *FS) Write(rel string, content []byte) error {
	abs, err := f.filePath("write", rel)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(abs, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return ioErr("write", rel, err)
	}
	return writeAndClose(file, rel, content)
}

func writeAndClose(file *os.File, rel string, content []byte) error {
	if _, err := file.Write(content); err != nil {
		_ = file.Close()
		return ioErr("write", rel, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return ioErr("fsync", rel, err)
	}
	if err := file.Close(); err != nil {
		return ioErr("close", rel, err)
	}
	return nil
}

// Remove deletes a note file.
func (f *FS) Remove(rel string) error {
	abs, err := f.filePath("delete", rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return ioErr("delete", rel, err)
	}
	return nil
}

// Relocate moves a file within the store. The strategy is chosen by
// comparing lower-cased paths: a case-only change goes through a temporary
// name, anything else is a direct rename that refuses to overwrite.
func (f *FS) Relocate(from, to string) error {
	absFrom, err := f.filePath("relocate", from)
	if err != nil {
		return err
	}
	absTo, err := f.safePath(to)
	if err != nil {
		return err
	}
	if absFrom == absTo {
		return nil
	}
	if err := relocationFor(from, to).Relocate(absFrom, absTo); err != nil {
		return fmt.Errorf("storage: relocate %s to %s: %w", from, to, err)
	}
	return nil
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ioErr maps a missing file to apperr.ErrNotFound and anything else to apperr.ErrIO.
func ioErr(op, p string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: %s %s: %w", op, p, apperr.ErrNotFound)
	}
	return fmt.Errorf("storage: %s %s: %w: %w", op, p, apperr.ErrIO, err)
}
