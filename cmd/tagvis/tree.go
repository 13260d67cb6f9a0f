package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tagvis/internal/config"
	"tagvis/internal/render"
	"tagvis/internal/tree"
)

var (
	treeFormat  string
	treeOut     string
	treeBlock   string
	treeTimeout time.Duration
	treeNoSync  bool
)

var treeCmd = &cobra.Command{
	Use:   "tree [root-tag]",
	Short: "Expand the tag tree and print or draw it",
	Long: `Index the vault, expand the tag tree below a root tag and print it.

Without a root tag the configured initialTag is used; "#" or an empty
initialTag groups the whole vault.

Examples:
  tagvis tree                          # Text tree from the initial tag
  tagvis tree '#project'               # Text tree below #project
  tagvis tree --format json            # Tree as JSON
  tagvis tree --out tags.svg           # Sunburst drawn to a file
  tagvis tree --out tree.json.zst      # Compressed snapshot
  tagvis tree --block vis.json         # Settings from a visualisation block`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().StringVar(&treeFormat, "format", "", "Output format (human, json, svg); default from --out or vis.visType")
	treeCmd.Flags().StringVarP(&treeOut, "out", "o", "", "Write to a file instead of stdout")
	treeCmd.Flags().StringVar(&treeBlock, "block", "", "Read visualisation settings from a JSON block file")
	treeCmd.Flags().DurationVar(&treeTimeout, "timeout", 30*time.Second, "Give up waiting for the expansion after this long")
	treeCmd.Flags().BoolVar(&treeNoSync, "no-sync", false, "Use the index as is, without scanning the vault")
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
	a, err := openApp(cliAppOptions(""))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	vis := a.cfg.Vis
	if treeBlock != "" {
		vis, err = readVisBlock(treeBlock)
		if err != nil {
			return blockError(err)
		}
		if err := vis.Validate(); err != nil {
			return err
		}
	}

	format, err := resolveTreeFormat(treeFormat, treeOut, vis.VisType)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), treeTimeout)
	defer cancel()

	if !treeNoSync {
		if _, err := a.sync(ctx, false); err != nil {
			return err
		}
	}

	rootTag := ""
	if len(args) == 1 {
		rootTag = args[0]
	}
	root, err := expandTree(ctx, a, vis, rootTag)
	if err != nil {
		return err
	}

	return writeTree(root, vis, format, treeOut, cmd.OutOrStdout())
}

// expandTree runs the engine once from rootTag and returns the finished tree.
func expandTree(ctx context.Context, a *app, vis config.VisConfig, rootTag string) (*tree.Node, error) {
	engine, err := a.newEngine(vis)
	if err != nil {
		return nil, err
	}
	defer engine.Stop()

	engine.StartRun(ctx, rootTag)
	if err := engine.Wait(ctx); err != nil {
		return nil, fmt.Errorf("expansion did not finish: %w", err)
	}
	return engine.Snapshot(), nil
}

// resolveTreeFormat picks the output format. An explicit --format wins, then
// the --out extension, then the configured visualisation type for files.
func resolveTreeFormat(flag, out, visType string) (OutputFormat, error) {
	if flag != "" {
		return parseFormat(flag, FormatHuman, FormatJSON, FormatSVG)
	}
	if out == "" {
		return FormatHuman, nil
	}
	switch ext := strings.ToLower(filepath.Ext(out)); {
	case ext == ".svg":
		return FormatSVG, nil
	case ext == ".json", ext == ".zst":
		return FormatJSON, nil
	case ext == ".txt":
		return FormatHuman, nil
	}
	if visType == "sunburst" {
		return FormatSVG, nil
	}
	return FormatHuman, nil
}

// writeTree renders root in format to out, or to stdout when out is empty.
func writeTree(root *tree.Node, vis config.VisConfig, format OutputFormat, out string, stdout io.Writer) error {
	if format == FormatJSON && out != "" {
		// SaveSnapshot compresses .zst files
		return render.SaveSnapshot(out, root)
	}

	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	switch format {
	case FormatSVG:
		return render.Sunburst(w, root, render.SunburstOptionsFromVis(vis))
	case FormatJSON:
		return render.WriteSnapshot(w, root, false)
	default:
		return render.WriteText(w, root, render.TextOptions{
			MaxTagLength: vis.MaxTagLength,
			Styled:       out == "",
		})
	}
}
