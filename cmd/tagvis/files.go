package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var filesFormat string

var filesCmd = &cobra.Command{
	Use:   "files <tags...>",
	Short: "List the files carrying every given tag",
	Long: `List the files carrying every given tag, as shown for a node of the
tree. Files carrying a tag from vis.ignoreFilesWithTags are left out and the
list is capped at engine.maxFiles.

Examples:
  tagvis files '#project'
  tagvis files '#project' '#idea' --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFiles,
}

func init() {
	filesCmd.Flags().StringVar(&filesFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(filesCmd)
}

func runFiles(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(filesFormat, FormatHuman, FormatJSON)
	if err != nil {
		return err
	}

	a, err := openApp(cliAppOptions(""))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	if _, err := a.sync(ctx, false); err != nil {
		return err
	}
	engine, err := a.newEngine(a.cfg.Vis)
	if err != nil {
		return err
	}
	rows, err := engine.Files(ctx, args)
	if err != nil {
		return err
	}

	out, err := FormatResponse(&FilesResponseCLI{Tags: args, Files: rows}, format)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
