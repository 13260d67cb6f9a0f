package main

import (
	"github.com/spf13/cobra"

	"tagvis/internal/version"
)

var (
	// vaultFlag is the vault root, the current directory by default
	vaultFlag string
	// configFlag points at an explicit config file
	configFlag string
	verbosity  int
	quietFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "tagvis",
	Short: "tagvis - explore how the tags of a note vault co-occur",
	Long: `tagvis indexes the tags of a markdown vault and grows a tree of tag
groupings from a root tag: each level lists the tags that appear together with
every tag above it, with the number of files carrying them.

The tree can be printed, drawn as an SVG sunburst, browsed in the terminal or
served over HTTP while the vault is watched for changes.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("tagvis version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&vaultFlag, "vault", ".", "Vault root directory")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: <vault>/.tagvis/config.{json,yaml,toml})")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "Suppress all logs")
}
