// Package tui is an interactive terminal browser for the tag tree.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tagvis/internal/expansion"
	"tagvis/internal/render"
	"tagvis/internal/tree"
)

// Controller is the part of the expansion engine the browser drives.
type Controller interface {
	StartRun(ctx context.Context, rootTag string) uint64
	Wait(ctx context.Context) error
	Files(ctx context.Context, path []string) ([]expansion.Row, error)
}

// Row is one visible line of the tree.
type Row struct {
	Node  *tree.Node
	Depth int
}

// AppModel holds the TUI state.
type AppModel struct {
	ctx    context.Context
	ctrl   Controller
	latest *render.Latest

	// Data
	Root    *tree.Node
	Version uint64
	Rows    []Row
	Epoch   uint64
	Loading bool
	Err     error

	// Files of the node they were requested for
	Files    []expansion.Row
	FilesFor string

	// UI State
	SelectedIdx int
	WindowSize  tea.WindowSizeMsg

	// Components
	spinner spinner.Model
}

// New returns the initial state. Snapshots are read from latest, which must
// be registered as a renderer of the engine behind ctrl.
func New(ctx context.Context, ctrl Controller, latest *render.Latest) AppModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return AppModel{
		ctx:     ctx,
		ctrl:    ctrl,
		latest:  latest,
		Loading: true,
		spinner: s,
	}
}

// Init starts a run at the configured initial tag and begins listening for
// snapshots.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		startRunCmd(m.ctx, m.ctrl, ""),
		waitSnapshotCmd(m.ctx, m.latest, 0),
	)
}

// Selected returns the node under the cursor, or nil.
func (m AppModel) Selected() *tree.Node {
	if m.SelectedIdx < 0 || m.SelectedIdx >= len(m.Rows) {
		return nil
	}
	return m.Rows[m.SelectedIdx].Node
}

// flatten lists root and its descendants in display order.
func flatten(root *tree.Node) []Row {
	if root == nil {
		return nil
	}
	var rows []Row
	root.Walk(func(n *tree.Node, depth int) bool {
		rows = append(rows, Row{Node: n, Depth: depth})
		return true
	})
	return rows
}

// key identifies a node across snapshots.
func key(n *tree.Node) string {
	if n == nil {
		return ""
	}
	return strings.Join(n.TagHistory, "\x00") + "\x00" + n.Name
}
