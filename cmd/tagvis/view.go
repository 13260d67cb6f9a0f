package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tagvis/internal/expansion"
	"tagvis/internal/render"
	"tagvis/internal/tui"
)

var viewNoWatch bool

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Browse the tag tree in the terminal",
	Long: `Open an interactive tag tree browser. The tree grows while results
arrive and follows changes to the vault.

Keys:
  up/down, k/j   Move the cursor
  enter          Re-root the tree at the selected tag
  f              List the files of the selected node
  r              Expand the current root again
  u              Go back to the configured initial tag
  q, ctrl+c      Quit

Logs are written to .tagvis/logs/view.log.`,
	RunE: runView,
}

func init() {
	viewCmd.Flags().BoolVar(&viewNoWatch, "no-watch", false, "Do not watch the vault for changes")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	opts := cliAppOptions("view")
	// the terminal belongs to the UI
	opts.logOutput = io.Discard

	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

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

	if !viewNoWatch {
		if w, err := startWatcher(ctx, a, engine); err != nil {
			a.logger.Warn("File watcher unavailable", "error", err)
		} else {
			defer func() { _ = w.Stop() }()
		}
	}

	m := tui.New(ctx, engine, latest)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
