// Package render turns tag tree snapshots into text, SVG and snapshot files.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tagvis/internal/tree"
)

// Truncate shortens name to its first max characters followed by "...".
// Names of at most max characters, and any name when max < 1, are returned
// unchanged.
func Truncate(name string, max int) string {
	runes := []rune(name)
	if max < 1 || len(runes) <= max {
		return name
	}
	return string(runes[:max]) + "..."
}

// TextOptions controls the text tree.
type TextOptions struct {
	// MaxTagLength truncates labels; zero leaves them whole.
	MaxTagLength int
	// Styled colours the output with lipgloss.
	Styled bool
}

var (
	rootStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	branchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	countStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Text renders root as an indented tree, one "name (count)" line per node.
func Text(root *tree.Node, opts TextOptions) string {
	if root == nil {
		return ""
	}
	style := func(s lipgloss.Style, text string) string {
		if !opts.Styled {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	b.WriteString(style(rootStyle, Truncate(root.Name, opts.MaxTagLength)))
	if root.Value > 0 {
		b.WriteString(" " + style(countStyle, fmt.Sprintf("(%d)", root.Value)))
	}
	b.WriteString("\n")

	var walk func(n *tree.Node, prefix string)
	walk = func(n *tree.Node, prefix string) {
		for i, child := range n.Children {
			last := i == len(n.Children)-1
			connector, next := "├── ", "│   "
			if last {
				connector, next = "└── ", "    "
			}
			b.WriteString(style(branchStyle, prefix+connector))
			b.WriteString(Truncate(child.Name, opts.MaxTagLength))
			b.WriteString(" " + style(countStyle, fmt.Sprintf("(%d)", child.Value)))
			b.WriteString("\n")
			walk(child, prefix+next)
		}
	}
	walk(root, "")
	return b.String()
}

// WriteText writes Text(root, opts) to w.
func WriteText(w io.Writer, root *tree.Node, opts TextOptions) error {
	_, err := io.WriteString(w, Text(root, opts))
	return err
}
