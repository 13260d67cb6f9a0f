package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"tagvis/internal/expansion"
	"tagvis/internal/render"
	"tagvis/internal/tree"
)

// Custom Messages

// MsgSnapshot carries a newly rendered tree.
type MsgSnapshot struct {
	Root    *tree.Node
	Version uint64
}

// MsgRunStarted reports the epoch of a run the browser started.
type MsgRunStarted struct {
	Epoch uint64
}

// MsgRunDone reports that the run of Epoch has no expansions left.
type MsgRunDone struct {
	Epoch uint64
}

// MsgFiles carries the file listing for the node identified by For.
type MsgFiles struct {
	For  string
	Rows []expansion.Row
}

// MsgError reports a failed command.
type MsgError error

// Update handles messages.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		return m, nil

	case MsgSnapshot:
		selected := key(m.Selected())
		m.Root = msg.Root
		m.Version = msg.Version
		m.Rows = flatten(msg.Root)
		m.SelectedIdx = m.indexOf(selected)
		return m, waitSnapshotCmd(m.ctx, m.latest, msg.Version)

	case MsgRunStarted:
		m.Epoch = msg.Epoch
		m.Loading = true
		m.Err = nil
		return m, tea.Batch(waitRunCmd(m.ctx, m.ctrl, msg.Epoch), m.spinner.Tick)

	case MsgRunDone:
		if msg.Epoch == m.Epoch {
			m.Loading = false
		}
		return m, nil

	case MsgFiles:
		m.Files = msg.Rows
		m.FilesFor = msg.For
		return m, nil

	case MsgError:
		m.Err = msg
		return m, nil

	case spinner.TickMsg:
		if !m.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.SelectedIdx > 0 {
			m.SelectedIdx--
		}

	case "down", "j":
		if m.SelectedIdx < len(m.Rows)-1 {
			m.SelectedIdx++
		}

	case "home", "g":
		m.SelectedIdx = 0

	case "end", "G":
		if len(m.Rows) > 0 {
			m.SelectedIdx = len(m.Rows) - 1
		}

	case "enter":
		// Re-rooting keeps only the tag itself; its ancestors are dropped.
		if n := m.Selected(); n != nil {
			m.SelectedIdx = 0
			return m, startRunCmd(m.ctx, m.ctrl, rootTag(n))
		}

	case "f":
		if n := m.Selected(); n != nil {
			return m, filesCmd(m.ctx, m.ctrl, n)
		}

	case "r":
		if m.Root != nil {
			return m, startRunCmd(m.ctx, m.ctrl, rootTag(m.Root))
		}
		return m, startRunCmd(m.ctx, m.ctrl, "")

	case "u":
		m.SelectedIdx = 0
		return m, startRunCmd(m.ctx, m.ctrl, "")
	}
	return m, nil
}

// indexOf finds the row with key k, keeping the cursor in range when the
// node is gone.
func (m AppModel) indexOf(k string) int {
	if k != "" {
		for i, r := range m.Rows {
			if key(r.Node) == k {
				return i
			}
		}
	}
	if m.SelectedIdx >= len(m.Rows) {
		if len(m.Rows) == 0 {
			return 0
		}
		return len(m.Rows) - 1
	}
	return m.SelectedIdx
}

func rootTag(n *tree.Node) string {
	if n.IsRootPlaceholder() {
		return tree.RootName
	}
	return n.Name
}

// Commands

func startRunCmd(ctx context.Context, ctrl Controller, tag string) tea.Cmd {
	return func() tea.Msg {
		return MsgRunStarted{Epoch: ctrl.StartRun(ctx, tag)}
	}
}

func waitRunCmd(ctx context.Context, ctrl Controller, epoch uint64) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Wait(ctx); err != nil {
			return nil
		}
		return MsgRunDone{Epoch: epoch}
	}
}

// waitSnapshotCmd blocks until latest holds a snapshot newer than since.
func waitSnapshotCmd(ctx context.Context, latest *render.Latest, since uint64) tea.Cmd {
	return func() tea.Msg {
		for {
			changed := latest.Changed()
			if root, version := latest.Get(); version > since {
				return MsgSnapshot{Root: root, Version: version}
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func filesCmd(ctx context.Context, ctrl Controller, n *tree.Node) tea.Cmd {
	k := key(n)
	path := n.Path()
	return func() tea.Msg {
		rows, err := ctrl.Files(ctx, path)
		if err != nil {
			return MsgError(err)
		}
		return MsgFiles{For: k, Rows: rows}
	}
}
