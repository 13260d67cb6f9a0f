package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tagvis/internal/expansion"
	"tagvis/internal/vault"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatSVG   OutputFormat = "svg"
)

// QueryResponseCLI is the result of `tagvis query`
type QueryResponseCLI struct {
	Query      string          `json:"query"`
	Executed   bool            `json:"executed"`
	Successful bool            `json:"successful,omitempty"`
	Error      string          `json:"error,omitempty"`
	Rows       []expansion.Row `json:"rows,omitempty"`
}

// FilesResponseCLI is the result of `tagvis files`
type FilesResponseCLI struct {
	Tags  []string        `json:"tags"`
	Files []expansion.Row `json:"files"`
}

// IndexResponseCLI is the result of `tagvis index`
type IndexResponseCLI struct {
	VaultRoot string            `json:"vaultRoot"`
	Sync      *vault.SyncStats  `json:"sync,omitempty"`
	Index     *vault.IndexStats `json:"index"`
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// parseFormat validates a --format value against the allowed formats.
func parseFormat(s string, allowed ...OutputFormat) (OutputFormat, error) {
	for _, f := range allowed {
		if OutputFormat(s) == f {
			return f, nil
		}
	}
	names := make([]string, len(allowed))
	for i, f := range allowed {
		names[i] = string(f)
	}
	return "", fmt.Errorf("unsupported format: %s (use %s)", s, strings.Join(names, ", "))
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *QueryResponseCLI:
		return formatQueryHuman(v)
	case *FilesResponseCLI:
		return formatFilesHuman(v)
	case *IndexResponseCLI:
		return formatIndexHuman(v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatQueryHuman(resp *QueryResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(resp.Query)
	b.WriteString("\n")
	if !resp.Executed {
		return b.String(), nil
	}

	b.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	if !resp.Successful {
		b.WriteString(fmt.Sprintf("✗ Query failed: %s\n", resp.Error))
		return b.String(), nil
	}
	b.WriteString(formatRows(resp.Rows))
	return b.String(), nil
}

func formatFilesHuman(resp *FilesResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Files tagged %s\n", strings.Join(resp.Tags, " + ")))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	if len(resp.Files) == 0 {
		b.WriteString("No files\n")
		return b.String(), nil
	}
	for i, f := range resp.Files {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, f.Label))
	}
	return b.String(), nil
}

func formatIndexHuman(resp *IndexResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Tag Index - %s\n", resp.VaultRoot))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if s := resp.Sync; s != nil {
		b.WriteString("Sync:\n")
		b.WriteString(fmt.Sprintf("  Scanned: %d\n", s.Scanned))
		b.WriteString(fmt.Sprintf("  Added: %d, Updated: %d, Deleted: %d, Unchanged: %d\n",
			s.Added, s.Updated, s.Deleted, s.Unchanged))
		if s.Errors > 0 {
			b.WriteString(fmt.Sprintf("  ! Errors: %d\n", s.Errors))
		}
		b.WriteString(fmt.Sprintf("  Duration: %dms\n\n", s.Duration.Milliseconds()))
	}

	if ix := resp.Index; ix != nil {
		b.WriteString("Index:\n")
		b.WriteString(fmt.Sprintf("  Files: %d\n", ix.Files))
		b.WriteString(fmt.Sprintf("  Tags: %d\n", ix.Tags))
		if !ix.LastSync.IsZero() {
			b.WriteString(fmt.Sprintf("  Last Sync: %s\n", ix.LastSync.Format(time.RFC3339)))
		}
	}

	return b.String(), nil
}

// formatRows prints result rows as an aligned two-column table.
func formatRows(rows []expansion.Row) string {
	if len(rows) == 0 {
		return "No rows\n"
	}
	width := 0
	for _, r := range rows {
		if n := len([]rune(r.Label)); n > width {
			width = n
		}
	}
	var b strings.Builder
	for _, r := range rows {
		pad := width - len([]rune(r.Label))
		b.WriteString(fmt.Sprintf("  %s%s  %d\n", r.Label, strings.Repeat(" ", pad), r.Count))
	}
	return b.String()
}
