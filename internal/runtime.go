package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/notter/internal/index"
	"github.com/starford/notter/internal/indexsync"
	"github.com/starford/notter/internal/notes"
	"github.com/starford/notter/internal/noteservice"
	"github.com/starford/notter/internal/search"
)

// runtime holds the components shared by every command.
type runtime struct {
	logger *slog.Logger
	engine search.Engine
	coord  *indexsync.Coordinator
	svc    *noteservice.Service
}

// openEngine opens the configured search engine, creating the parent
// directory of its index.
func openEngine(cfg SearchConfig, logger *slog.Logger) (search.Engine, error) {
	if cfg.Engine == EngineMemory {
		return search.NewMemory(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	switch cfg.Engine {
	case EngineBleve:
		b, err := search.OpenBleve(cfg.Path)
		if err != nil {
			return nil, err
		}
		b.SetLogger(logger)
		return b, nil
	case EngineSQLite:
		db, err := index.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		db.SetLogger(logger)
		return db, nil
	}
	return nil, fmt.Errorf("unknown search engine %q", cfg.Engine)
}

func buildRuntime(cfg *Config, logger *slog.Logger, events noteservice.Events, coordOpts ...indexsync.Option) (*runtime, error) {
	if err := os.MkdirAll(cfg.Notes.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}
	store, err := notes.Open(cfg.Notes.Path)
	if err != nil {
		return nil, fmt.Errorf("open notes: %w", err)
	}
	engine, err := openEngine(cfg.Search, logger)
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}

	coord := indexsync.New(engine, cfg.Search.Policy(), append([]indexsync.Option{indexsync.WithLogger(logger)}, coordOpts...)...)
	svc := noteservice.New(store, coord, noteservice.Options{
		NamingPattern: cfg.Notes.NamingPattern,
		DefaultType:   cfg.Notes.Type(),
		Logger:        logger,
		Events:        events,
	})
	return &runtime{logger: logger, engine: engine, coord: coord, svc: svc}, nil
}

// initialIndex rebuilds on startup when automatic indexing is on.
func (rt *runtime) initialIndex(ctx context.Context) {
	if !rt.coord.Policy().AutoIndex {
		return
	}
	if err := rt.svc.RebuildIndex(ctx); err != nil {
		rt.logger.Warn("initial rebuild failed", slog.String("error", err.Error()))
	}
}

// watch runs the external-edit watcher on the current notes directory and
// restarts it whenever the directory is switched.
func (rt *runtime) watch(ctx context.Context, cb indexsync.EventCallback) {
	for {
		store := rt.svc.Store()
		wctx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- indexsync.Watch(wctx, rt.coord, store, store.Root(), rt.logger, cb)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return
		case <-rt.svc.DirectoryChanged():
			cancel()
			<-done
			rt.logger.Info("watcher: restarting on new directory")
			continue
		case err := <-done:
			cancel()
			if err != nil {
				rt.logger.Error("watcher: failed", slog.String("error", err.Error()))
			}
		}

		// Stopped on its own; wait for a directory switch or shutdown.
		select {
		case <-ctx.Done():
			return
		case <-rt.svc.DirectoryChanged():
		}
	}
}

func (rt *runtime) Close() {
	if err := rt.engine.Close(); err != nil {
		rt.logger.Error("close search index", slog.String("error", err.Error()))
	}
}
