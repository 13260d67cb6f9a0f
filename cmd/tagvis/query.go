package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tagvis/internal/tagquery"
)

var (
	queryIgnore  []string
	queryExclude []string
	queryLimit   int
	queryFlat    bool
	queryExec    bool
	queryFormat  string
)

var queryCmd = &cobra.Command{
	Use:   "query [tags...]",
	Short: "Build the aggregation query for a tag path",
	Long: `Print the query the expansion engine issues for a tag path, and
optionally run it against the vault index.

Tags that do not look like #tag are dropped, exactly as during expansion.

Examples:
  tagvis query '#project'                        # Grouping query below #project
  tagvis query '#project' --exclude '#project'   # Same, without the parent label
  tagvis query '#a' '#b' --flat=false --exec     # Files tagged #a and #b
  tagvis query --ignore '#archive' --exec        # Top-level tags, archived files ignored`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryIgnore, "ignore", nil, "Ignore files carrying any of these tags")
	queryCmd.Flags().StringSliceVar(&queryExclude, "exclude", nil, "Drop these labels from the grouped result")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 15, "Maximum number of rows")
	queryCmd.Flags().BoolVar(&queryFlat, "flat", true, "Group by tag (false lists files)")
	queryCmd.Flags().BoolVar(&queryExec, "exec", false, "Run the query against the vault index")
	queryCmd.Flags().StringVar(&queryFormat, "format", "human", "Output format (human, json)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(queryFormat, FormatHuman, FormatJSON)
	if err != nil {
		return err
	}

	text := tagquery.BuildQuery(args, queryIgnore, queryExclude, queryLimit, queryFlat)
	resp := &QueryResponseCLI{Query: text}

	if queryExec {
		a, err := openApp(cliAppOptions(""))
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if _, err := a.sync(cmd.Context(), false); err != nil {
			return err
		}
		res, err := a.provider.Query(cmd.Context(), text)
		if err != nil {
			return err
		}
		resp.Executed = true
		resp.Successful = res.Successful
		resp.Error = res.Error
		resp.Rows = res.Values
	}

	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
