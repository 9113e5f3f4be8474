package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/notter/internal/apperr"
)

// Relocator moves a file between two absolute paths inside the store.
type Relocator interface {
	Relocate(from, to string) error
}

func relocationFor(from, to string) Relocator {
	if strings.ToLower(from) == strings.ToLower(to) {
		return CaseOnlyRelocation{}
	}
	return DirectRelocation{}
}

// DirectRelocation is a single rename that fails with apperr.ErrConflict
// when the destination is occupied.
type DirectRelocation struct{}

// Relocate implements Relocator.
func (DirectRelocation) Relocate(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		return apperr.ErrConflict
	} else if !errors.Is(err, fs.ErrNotExist) {
		return ioErr("stat", to, err)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return ioErr("mkdir", to, err)
	}
	if err := os.Rename(from, to); err != nil {
		return ioErr("rename", from, err)
	}
	return nil
}

// CaseOnlyRelocation changes only the letter case of a path. On
// case-insensitive file systems a direct rename is a no-op, so the file
// passes through a uniquely named sibling first. A crash between the two
// renames leaves the file at the temporary name.
type CaseOnlyRelocation struct{}

// Relocate implements Relocator.
func (CaseOnlyRelocation) Relocate(from, to string) error {
	src, err := os.Stat(from)
	if err != nil {
		return ioErr("stat", from, err)
	}
	// On a case-sensitive file system the destination may be a different file.
	if dst, err := os.Stat(to); err == nil && !os.SameFile(src, dst) {
		return apperr.ErrConflict
	}

	tmp := filepath.Join(filepath.Dir(from), ".notter-relocate-"+uuid.NewString())
	if err := os.Rename(from, tmp); err != nil {
		return ioErr("rename", from, err)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		_ = os.Rename(tmp, from)
		return ioErr("mkdir", to, err)
	}
	if err := os.Rename(tmp, to); err != nil {
		if rerr := os.Rename(tmp, from); rerr != nil {
			return fmt.Errorf("%w (file left at %s)", ioErr("rename", tmp, err), tmp)
		}
		return ioErr("rename", tmp, err)
	}
	return nil
}
