package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tagvis/internal/tree"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205"))

	unselectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	detailStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63"))
)

const helpText = "↑/↓ move • enter re-root • f files • r refresh • u initial tag • q quit"

func (m AppModel) View() string {
	var b strings.Builder

	title := "tagvis"
	if m.Root != nil {
		title += "  " + m.Root.Name
	}
	b.WriteString(titleStyle.Render(title))
	if m.Loading {
		b.WriteString("  " + m.spinner.View() + dimStyle.Render("expanding"))
	}
	b.WriteString("\n\n")

	if m.Root == nil {
		b.WriteString(dimStyle.Render("  Waiting for the first result..."))
		b.WriteString("\n")
	} else {
		start, end := m.visibleRange()
		for i := start; i < end; i++ {
			b.WriteString(m.renderRow(i))
			b.WriteString("\n")
		}
	}

	if n := m.Selected(); n != nil && m.FilesFor == key(n) {
		b.WriteString("\n")
		b.WriteString(m.renderFiles(n))
		b.WriteString("\n")
	}

	if m.Err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.Err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(helpText))
	return b.String()
}

func (m AppModel) renderRow(i int) string {
	r := m.Rows[i]
	label := r.Node.Name
	if r.Node.Value > 0 {
		label = fmt.Sprintf("%s (%d)", label, r.Node.Value)
	}
	line := strings.Repeat("  ", r.Depth) + label
	if i == m.SelectedIdx {
		return selectedItemStyle.Render("> " + line)
	}
	return unselectedItemStyle.Render("  " + line)
}

func (m AppModel) renderFiles(n *tree.Node) string {
	var lines []string
	lines = append(lines, strings.Join(n.Path(), " + "))
	if len(m.Files) == 0 {
		lines = append(lines, dimStyle.Render("no files"))
	}
	for _, f := range m.Files {
		lines = append(lines, "• "+f.Label)
	}
	return detailStyle.Render(strings.Join(lines, "\n"))
}

// visibleRange returns the slice of rows that fits the window, scrolled so
// the cursor stays on screen.
func (m AppModel) visibleRange() (int, int) {
	total := len(m.Rows)
	height := m.WindowSize.Height - 6
	if height < 3 {
		height = 3
	}
	if m.WindowSize.Height == 0 || height >= total {
		return 0, total
	}
	start := m.SelectedIdx - height/2
	if start < 0 {
		start = 0
	}
	end := start + height
	if end > total {
		end = total
		start = end - height
	}
	return start, end
}
