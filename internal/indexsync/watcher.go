package indexsync

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notter/internal/models"
	"github.com/starford/notter/internal/noteid"
)

// EventCallback is called after a watcher-driven change was applied.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// NoteReader is the store surface the watcher needs.
type NoteReader interface {
	Source
	GetByPath(rel string) (*models.Note, error)
}

// Watch feeds edits made outside the application through the coordinator's
// policy until ctx is cancelled. New directories are added to the watch
// list as they appear.
func Watch(ctx context.Context, c *Coordinator, store NoteReader, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped", slog.String("root", root))
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					indexNewDir(c, store, root, ev.Name, logger, cb)
					continue
				}
			}

			if _, ok := models.TypeFromPath(ev.Name); !ok {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				upsertPath(c, store, rel, kind, logger, cb)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path; the new one arrives as Create.
				id := noteid.Encode(rel)
				if err := c.Apply(store, Change{Kind: Deleted, OldID: id}); err != nil {
					logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel))
				if cb != nil {
					cb("deleted", id)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func upsertPath(c *Coordinator, store NoteReader, rel, kind string, logger *slog.Logger, cb EventCallback) {
	n, err := store.GetByPath(rel)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := c.Apply(store, Change{Kind: Updated, Note: n}); err != nil {
		logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	if cb != nil {
		cb(kind, n.ID)
	}
}

// indexNewDir indexes note files already present in a directory that
// appeared while watching.
func indexNewDir(c *Coordinator, store NoteReader, root, dir string, logger *slog.Logger, cb EventCallback) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, ok := models.TypeFromPath(p); !ok {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		upsertPath(c, store, filepath.ToSlash(rel), "created", logger, cb)
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
