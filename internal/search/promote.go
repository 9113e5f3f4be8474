package search

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

var removeAll = os.RemoveAll

// BackupSuffix is appended to the canonical location while a rebuilt index
// is being moved into place.
const BackupSuffix = ".bak"

// Promote moves a fully built index at staged into canonical. An existing
// canonical index is first renamed to its backup path and only deleted once
// the new index is in place; if the final rename fails the backup is moved
// back. Both paths must be on the same file system. Failing to delete the
// backup afterwards does not fail the promotion; it is logged and left for
// Recover.
func Promote(staged, canonical string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	backup := canonical + BackupSuffix
	if err := removeAll(backup); err != nil {
		return fmt.Errorf("search: promote: clear stale backup: %w", err)
	}

	hadPrevious, err := exists(canonical)
	if err != nil {
		return fmt.Errorf("search: promote: %w", err)
	}
	if hadPrevious {
		if err := os.Rename(canonical, backup); err != nil {
			return fmt.Errorf("search: promote: back up current index: %w", err)
		}
	}
	if err := os.Rename(staged, canonical); err != nil {
		if hadPrevious {
			if rerr := os.Rename(backup, canonical); rerr != nil {
				return fmt.Errorf("search: promote: %w (restore failed, previous index at %s: %v)", err, backup, rerr)
			}
		}
		return fmt.Errorf("search: promote: %w", err)
	}
	if hadPrevious {
		if err := removeAll(backup); err != nil {
			logger.Warn("remove index backup after promotion",
				slog.String("path", backup),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Recover repairs an interrupted promotion before canonical is opened: a
// missing canonical index is restored from its backup, and a backup sitting
// next to a present canonical index is removed.
func Recover(canonical string) error {
	backup := canonical + BackupSuffix
	hasBackup, err := exists(backup)
	if err != nil || !hasBackup {
		return err
	}
	hasCanonical, err := exists(canonical)
	if err != nil {
		return err
	}
	if hasCanonical {
		if err := removeAll(backup); err != nil {
			return fmt.Errorf("search: recover: remove backup: %w", err)
		}
		return nil
	}
	if err := os.Rename(backup, canonical); err != nil {
		return fmt.Errorf("search: recover: restore backup: %w", err)
	}
	return nil
}

func exists(p string) (bool, error) {
	_, err := os.Lstat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
