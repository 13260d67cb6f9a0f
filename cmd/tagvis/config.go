package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tagvis/internal/config"
)

var (
	configFormat     string
	configInitFormat string
	configInitForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tagvis configuration",
	Long:  "View and manage the configuration stored in <vault>/.tagvis/config.{json,yaml,toml}",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: file values over defaults, with
TAGVIS_* environment overrides applied.

Examples:
  tagvis config show              # Pretty-print current config
  tagvis config show --format json`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to <vault>/.tagvis/config.<format>.

Examples:
  tagvis config init                  # JSON
  tagvis config init --format yaml
  tagvis config init --force          # Overwrite an existing file`,
	RunE: runConfigInit,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "human", "Output format (json, human)")
	configInitCmd.Flags().StringVar(&configInitFormat, "format", "json", "File format (json, yaml, toml)")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(configFormat, FormatHuman, FormatJSON)
	if err != nil {
		return err
	}
	_, cfg, err := loadConfig(vaultFlag, configFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == FormatJSON {
		s, err := formatJSON(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
		return nil
	}
	return writeConfigHuman(out, cfg)
}

// writeConfigHuman prints one "key: value" line per setting, noting the
// default next to every changed value.
func writeConfigHuman(w io.Writer, cfg *config.Config) error {
	current, err := configMap(cfg)
	if err != nil {
		return err
	}
	defaults, err := configMap(config.DefaultConfig())
	if err != nil {
		return err
	}

	flat := map[string]interface{}{}
	flatten("", current, flat)
	flatDefaults := map[string]interface{}{}
	flatten("", defaults, flatDefaults)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(w, "tagvis Configuration")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	for _, k := range keys {
		line := fmt.Sprintf("%s: %v", k, flat[k])
		// vaultRoot always differs from the "." default
		if d, ok := flatDefaults[k]; ok && k != "vaultRoot" && fmt.Sprint(d) != fmt.Sprint(flat[k]) {
			line += fmt.Sprintf(" (default: %v)", d)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use 'tagvis config show --format json' for machine-readable output")
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(vaultFlag)
	if err != nil {
		return err
	}

	dir := filepath.Join(root, config.StateDir)
	for _, ext := range []string{"json", "yaml", "yml", "toml"} {
		existing := filepath.Join(dir, "config."+ext)
		if _, err := os.Stat(existing); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", existing)
		}
	}

	cfg := config.DefaultConfig()
	data, err := encodeConfig(cfg, configInitFormat)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "config."+configInitFormat)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

// encodeConfig serialises cfg with the JSON key names in the given format.
func encodeConfig(cfg *config.Config, format string) ([]byte, error) {
	m, err := configMap(cfg)
	if err != nil {
		return nil, err
	}
	// the vault root is implied by where the file lives
	delete(m, "vaultRoot")

	switch format {
	case "json":
		return json.MarshalIndent(m, "", "  ")
	case "yaml":
		return yaml.Marshal(m)
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(m); err != nil {
			return nil, fmt.Errorf("failed to encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (use json, yaml, toml)", format)
	}
}

// configMap converts cfg to a generic map keyed by its JSON names. Whole
// numbers come back as int64 so YAML and TOML do not print them as floats.
func configMap(cfg *config.Config) (map[string]interface{}, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return normalizeNumbers(m).(map[string]interface{}), nil
}

func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, x := range t {
			t[k] = normalizeNumbers(x)
		}
		return t
	case []interface{}:
		for i, x := range t {
			t[i] = normalizeNumbers(x)
		}
		return t
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	default:
		return v
	}
}

func flatten(prefix string, m map[string]interface{}, out map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}
