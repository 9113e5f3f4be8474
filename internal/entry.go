// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notter/internal/api"
	"github.com/starford/notter/internal/indexsync"
	"github.com/starford/notter/internal/mcpserver"
	"github.com/starford/notter/internal/sse"
)

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server, the SSE broker, and the notes watcher.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notes_path", cfg.Notes.Path),
		slog.String("search_engine", cfg.Search.Engine),
		slog.String("search_path", cfg.Search.Path),
		slog.String("index_mode", cfg.Search.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := buildRuntime(cfg, logger, broker, indexsync.WithRebuildHook(func(st indexsync.Status) {
		broker.PublishIndexRebuilt(st.Documents, st.LastRebuild)
	}))
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.initialIndex(ctx)

	apiRouter := api.NewRouter(rt.svc, api.Auth{
		Enabled: cfg.Auth.AuthEnabled(),
		Token:   cfg.Auth.Token,
	}, broker, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rt.svc.IndexStatus(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Notes.Watch {
		g.Go(func() error {
			rt.watch(gCtx, broker.PublishNoteEvent)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stops the watcher once the server is down.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	logger := app.newLogger()

	rt, err := buildRuntime(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.initialIndex(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watching := make(chan struct{})
	go func() {
		defer close(watching)
		if cfg.Notes.Watch {
			rt.watch(ctx, nil)
		}
	}()

	logger.Info("MCP server starting on stdio", slog.String("notes_path", rt.svc.Root()))
	err = mcpserver.New(rt.svc, app.version).ServeStdio()
	cancel()
	<-watching
	return err
}

// Reindex rebuilds the configured search index once and exits.
func Reindex(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	logger := app.newLogger()

	rt, err := buildRuntime(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.svc.RebuildIndex(ctx); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	st, err := rt.svc.IndexStatus(ctx)
	if err != nil {
		return err
	}
	logger.Info("Index rebuilt",
		slog.Uint64("documents", st.Documents),
		slog.String("engine", app.config.Search.Engine),
		slog.String("path", app.config.Search.Path))
	return nil
}
