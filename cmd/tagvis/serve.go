package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tagvis/internal/api"
	"tagvis/internal/config"
	"tagvis/internal/expansion"
	"tagvis/internal/render"
	"tagvis/internal/watcher"
)

var (
	servePort    int
	serveHost    string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long: `Start the tagvis HTTP API server. The tag tree is expanded once at
startup and kept up to date: the vault is watched and every change to a note
re-indexes it and restarts the expansion at the current root.

Endpoints:
  GET  /health          Liveness and run epoch
  GET  /api/tree        Latest tree as JSON (?since=N waits for a newer one)
  GET  /api/tree.svg    Latest tree as a sunburst
  GET  /api/tree.txt    Latest tree as text
  POST /api/root        Re-root the tree (JSON {"tag": "#x"} or ?tag=#x)
  GET  /api/files       Files carrying every ?tag=
  GET  /api/query       Run a raw query (?q=)
  GET  /api/index       Index statistics
  GET  /metrics         Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Define flags
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: server.port)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch the vault for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cliAppOptions("serve"))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	logger := a.logger

	host, port := a.cfg.Server.Host, a.cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if _, err := a.sync(ctx, false); err != nil {
		return err
	}

	latest := render.NewLatest()
	engine, err := a.newEngine(a.cfg.Vis, expansion.WithRenderer(latest))
	if err != nil {
		return err
	}
	defer engine.Stop()
	engine.StartRun(ctx, "")

	if !serveNoWatch {
		w, err := startWatcher(ctx, a, engine)
		if err != nil {
			logger.Warn("File watcher unavailable, changes need a restart", "error", err)
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	server, err := api.NewServer(addr, api.Deps{
		Engine:     engine,
		Latest:     latest,
		Provider:   a.provider,
		Store:      a.store,
		Metrics:    a.metrics,
		Vis:        a.cfg.Vis,
		Load:       sheddingConfig(a.cfg.Server),
		RunContext: ctx,
	}, logger)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting tagvis HTTP API server", "addr", addr, "vault", a.root)
		fmt.Fprintf(cmd.OutOrStdout(), "tagvis HTTP API server listening on http://%s\n", addr)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
	case sig := <-shutdown:
		logger.Info("Received shutdown signal", "signal", sig.String())

		// Create shutdown context with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown", "error", err)
			return err
		}

		logger.Info("Server stopped gracefully")
	}

	return nil
}

// sheddingConfig maps the server limits onto the API's load shedder.
func sheddingConfig(sc config.ServerConfig) api.LoadSheddingConfig {
	lc := api.DefaultLoadSheddingConfig()
	lc.MaxConcurrent = sc.MaxConcurrentQueries
	if sc.QueueTimeoutMs > 0 {
		lc.QueueTimeout = time.Duration(sc.QueueTimeoutMs) * time.Millisecond
	}
	return lc
}

// startWatcher watches the vault, re-indexes changed notes and restarts the
// expansion at the current root whenever the index changed.
func startWatcher(ctx context.Context, a *app, engine *expansion.Engine) (*watcher.Watcher, error) {
	onChange := func(changed int) {
		if stats, err := a.store.Stats(ctx); err == nil {
			a.metrics.IndexSynced(stats.Files, nil)
		}
		root := engine.RootName()
		a.logger.Info("Vault changed, restarting expansion", "changed", changed, "root", root)
		engine.StartRun(ctx, root)
	}

	w := watcher.New(a.root, watcher.Config{
		Enabled:    a.cfg.Watch.Enabled,
		DebounceMs: a.cfg.Watch.DebounceMs,
		Ignore:     a.indexer.Ignored,
	}, a.logger, watcher.ReindexHandler(ctx, a.indexer, a.logger, onChange))

	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
