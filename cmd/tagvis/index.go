package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tagvis/internal/config"
	"tagvis/internal/index"
)

var (
	indexForce  bool
	indexStats  bool
	indexFormat string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the vault and update the tag index",
	Long: `Scan the vault for notes and bring the tag index in .tagvis/index.db
up to date. Only notes whose modification time or content changed are parsed
again unless --force is given.

Examples:
  tagvis index              # Incremental sync
  tagvis index --force      # Re-parse every note
  tagvis index --stats      # Show index statistics without scanning`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Re-parse every note")
	indexCmd.Flags().BoolVar(&indexStats, "stats", false, "Only show index statistics")
	indexCmd.Flags().StringVar(&indexFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(indexFormat, FormatHuman, FormatJSON)
	if err != nil {
		return err
	}

	a, err := openApp(cliAppOptions("index"))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	resp := &IndexResponseCLI{VaultRoot: a.root}
	if !indexStats {
		lock, err := index.AcquireLock(filepath.Join(a.root, config.StateDir))
		if err != nil {
			return err
		}
		defer lock.Release()

		if resp.Sync, err = a.sync(ctx, indexForce); err != nil {
			return err
		}
	}
	if resp.Index, err = a.store.Stats(ctx); err != nil {
		return fmt.Errorf("failed to read index statistics: %w", err)
	}

	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
