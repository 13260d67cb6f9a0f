package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	tverrors "tagvis/internal/errors"
	"tagvis/internal/paths"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// StateDir is the per-vault directory holding config, index and logs.
const StateDir = paths.StateDirName

// Config represents the complete tagvis configuration
type Config struct {
	Version   int    `json:"version" mapstructure:"version"`
	VaultRoot string `json:"vaultRoot" mapstructure:"vaultRoot"`

	Vis     VisConfig     `json:"vis" mapstructure:"vis"`
	Engine  EngineConfig  `json:"engine" mapstructure:"engine"`
	Index   IndexConfig   `json:"index" mapstructure:"index"`
	Watch   WatchConfig   `json:"watch" mapstructure:"watch"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// VisConfig is the visualisation block: what to expand and how to draw it.
type VisConfig struct {
	VisType             string       `json:"visType" mapstructure:"visType"`
	InitialTag          string       `json:"initialTag" mapstructure:"initialTag"`
	IgnoreFilesWithTags []string     `json:"ignoreFilesWithTags" mapstructure:"ignoreFilesWithTags"`
	FilterTags          []string     `json:"filterTags" mapstructure:"filterTags"`
	MaxChildren         int          `json:"maxChildren" mapstructure:"maxChildren"`
	MaxDepth            int          `json:"maxDepth" mapstructure:"maxDepth"`
	FontSize            int          `json:"fontsize" mapstructure:"fontsize"`
	FontFamily          string       `json:"fontFamily" mapstructure:"fontFamily"`
	MaxTagLength        int          `json:"maxTagLength" mapstructure:"maxTagLength"`
	Background          string       `json:"background" mapstructure:"background"`
	Color               string       `json:"color" mapstructure:"color"`
	Layout              LayoutConfig `json:"layout" mapstructure:"layout"`
}

// LayoutConfig contains the drawing area
type LayoutConfig struct {
	Width  int          `json:"width" mapstructure:"width"`
	Height int          `json:"height" mapstructure:"height"`
	Margin MarginConfig `json:"margin" mapstructure:"margin"`
}

// MarginConfig contains the drawing margins
type MarginConfig struct {
	Top    int `json:"top" mapstructure:"top"`
	Right  int `json:"right" mapstructure:"right"`
	Bottom int `json:"bottom" mapstructure:"bottom"`
	Left   int `json:"left" mapstructure:"left"`
}

// EngineConfig contains expansion engine limits
type EngineConfig struct {
	MaxInFlight    int `json:"maxInFlight" mapstructure:"maxInFlight"`
	QueryTimeoutMs int `json:"queryTimeoutMs" mapstructure:"queryTimeoutMs"`
	MaxFiles       int `json:"maxFiles" mapstructure:"maxFiles"`
}

// IndexConfig contains vault indexing configuration
type IndexConfig struct {
	DBPath            string   `json:"dbPath" mapstructure:"dbPath"`
	Ignore            []string `json:"ignore" mapstructure:"ignore"`
	FollowFrontmatter bool     `json:"followFrontmatter" mapstructure:"followFrontmatter"`
}

// WatchConfig contains vault watcher configuration
type WatchConfig struct {
	Enabled    bool `json:"enabled" mapstructure:"enabled"`
	DebounceMs int  `json:"debounceMs" mapstructure:"debounceMs"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
	// MaxConcurrentQueries caps parallel index-backed requests; 0 disables the cap
	MaxConcurrentQueries int `json:"maxConcurrentQueries" mapstructure:"maxConcurrentQueries"`
	QueueTimeoutMs       int `json:"queueTimeoutMs" mapstructure:"queueTimeoutMs"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
	File  string `json:"file" mapstructure:"file"`
}

// Supported visualisation types
var supportedVisTypes = map[string]bool{
	"sunburst": true,
	"tree":     true,
}

// DefaultVisConfig returns the visualisation defaults.
func DefaultVisConfig() VisConfig {
	return VisConfig{
		VisType:             "sunburst",
		InitialTag:          "",
		IgnoreFilesWithTags: []string{},
		FilterTags:          []string{},
		MaxChildren:         15,
		MaxDepth:            2,
		FontSize:            12,
		FontFamily:          "sans-serif",
		MaxTagLength:        10,
		Background:          "white",
		Color:               "interpolateRainbow",
		Layout: LayoutConfig{
			Width:  800,
			Height: 600,
			Margin: MarginConfig{Top: 20, Right: 20, Bottom: 40, Left: 40},
		},
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:   CurrentVersion,
		VaultRoot: ".",
		Vis:       DefaultVisConfig(),
		Engine: EngineConfig{
			MaxInFlight:    8,
			QueryTimeoutMs: 0,
			MaxFiles:       25,
		},
		Index: IndexConfig{
			DBPath:            filepath.Join(StateDir, "index.db"),
			Ignore:            []string{".git", ".obsidian", ".trash", StateDir, "node_modules"},
			FollowFrontmatter: true,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 500,
		},
		Server: ServerConfig{
			Host:                 "localhost",
			Port:                 8085,
			MaxConcurrentQueries: 8,
			QueueTimeoutMs:       2000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from <vaultRoot>/.tagvis/config.{json,yaml,toml}.
// A missing file yields the defaults. TAGVIS_* environment variables override
// file values, e.g. TAGVIS_VIS_MAXDEPTH=3.
func LoadConfig(vaultRoot string) (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(vaultRoot, StateDir))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, tverrors.New(tverrors.ConfigInvalid, "failed to read config", err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if cfg.VaultRoot == "." || cfg.VaultRoot == "" {
		cfg.VaultRoot = vaultRoot
	}
	return cfg, nil
}

// LoadConfigFromPath loads configuration from an explicit file.
func LoadConfigFromPath(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, tverrors.New(tverrors.ConfigInvalid, fmt.Sprintf("failed to read config %s", path), err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix("TAGVIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("vaultRoot", d.VaultRoot)
	setVisDefaults(v, "vis.", d.Vis)
	v.SetDefault("engine.maxInFlight", d.Engine.MaxInFlight)
	v.SetDefault("engine.queryTimeoutMs", d.Engine.QueryTimeoutMs)
	v.SetDefault("engine.maxFiles", d.Engine.MaxFiles)
	v.SetDefault("index.dbPath", d.Index.DBPath)
	v.SetDefault("index.ignore", d.Index.Ignore)
	v.SetDefault("index.followFrontmatter", d.Index.FollowFrontmatter)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounceMs", d.Watch.DebounceMs)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.maxConcurrentQueries", d.Server.MaxConcurrentQueries)
	v.SetDefault("server.queueTimeoutMs", d.Server.QueueTimeoutMs)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

func setVisDefaults(v *viper.Viper, prefix string, d VisConfig) {
	v.SetDefault(prefix+"visType", d.VisType)
	v.SetDefault(prefix+"initialTag", d.InitialTag)
	v.SetDefault(prefix+"ignoreFilesWithTags", d.IgnoreFilesWithTags)
	v.SetDefault(prefix+"filterTags", d.FilterTags)
	v.SetDefault(prefix+"maxChildren", d.MaxChildren)
	v.SetDefault(prefix+"maxDepth", d.MaxDepth)
	v.SetDefault(prefix+"fontsize", d.FontSize)
	v.SetDefault(prefix+"fontFamily", d.FontFamily)
	v.SetDefault(prefix+"maxTagLength", d.MaxTagLength)
	v.SetDefault(prefix+"background", d.Background)
	v.SetDefault(prefix+"color", d.Color)
	v.SetDefault(prefix+"layout.width", d.Layout.Width)
	v.SetDefault(prefix+"layout.height", d.Layout.Height)
	v.SetDefault(prefix+"layout.margin.top", d.Layout.Margin.Top)
	v.SetDefault(prefix+"layout.margin.right", d.Layout.Margin.Right)
	v.SetDefault(prefix+"layout.margin.bottom", d.Layout.Margin.Bottom)
	v.SetDefault(prefix+"layout.margin.left", d.Layout.Margin.Left)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, tverrors.New(tverrors.ConfigInvalid, "failed to decode config", err)
	}
	cfg.Vis.applyDefaults()
	return &cfg, nil
}

// ParseVisBlock parses a JSON visualisation block. Missing or zero fields fall
// back to DefaultVisConfig, matching how the block has always behaved: a
// maxDepth of 0 means "use the default", not "expand nothing".
func ParseVisBlock(src string) (VisConfig, error) {
	if strings.TrimSpace(src) == "" {
		return DefaultVisConfig(), nil
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(strings.NewReader(src)); err != nil {
		return DefaultVisConfig(), tverrors.New(tverrors.ConfigInvalid, "Error parsing JSON", err)
	}

	var vis VisConfig
	if err := v.Unmarshal(&vis); err != nil {
		return DefaultVisConfig(), tverrors.New(tverrors.ConfigInvalid, "Error parsing JSON", err)
	}
	vis.applyDefaults()
	return vis, nil
}

// applyDefaults fills zero-valued fields from DefaultVisConfig.
func (c *VisConfig) applyDefaults() {
	d := DefaultVisConfig()
	if c.VisType == "" {
		c.VisType = d.VisType
	}
	if c.IgnoreFilesWithTags == nil {
		c.IgnoreFilesWithTags = d.IgnoreFilesWithTags
	}
	if c.FilterTags == nil {
		c.FilterTags = d.FilterTags
	}
	if c.MaxChildren == 0 {
		c.MaxChildren = d.MaxChildren
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = d.MaxDepth
	}
	if c.FontSize == 0 {
		c.FontSize = d.FontSize
	}
	if c.FontFamily == "" {
		c.FontFamily = d.FontFamily
	}
	if c.MaxTagLength == 0 {
		c.MaxTagLength = d.MaxTagLength
	}
	if c.Background == "" {
		c.Background = d.Background
	}
	if c.Color == "" {
		c.Color = d.Color
	}
	if c.Layout.Width == 0 {
		c.Layout.Width = d.Layout.Width
	}
	if c.Layout.Height == 0 {
		c.Layout.Height = d.Layout.Height
	}
	if c.Layout.Margin == (MarginConfig{}) {
		c.Layout.Margin = d.Layout.Margin
	}
}

// Save writes the configuration to .tagvis/config.json
func (c *Config) Save(vaultRoot string) error {
	dir := filepath.Join(vaultRoot, StateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// DBPath returns the absolute index path for this config.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.Index.DBPath) {
		return c.Index.DBPath
	}
	return filepath.Join(c.VaultRoot, c.Index.DBPath)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Server.MaxConcurrentQueries < 0 {
		return &ConfigError{Field: "server.maxConcurrentQueries", Message: "must not be negative"}
	}
	return c.Vis.Validate()
}

// Validate checks the visualisation block on its own.
func (c *VisConfig) Validate() error {
	if !supportedVisTypes[c.VisType] {
		return &ConfigError{Field: "vis.visType", Message: fmt.Sprintf("unknown visualisation type %q", c.VisType)}
	}
	if c.MaxDepth < 1 {
		return &ConfigError{Field: "vis.maxDepth", Message: "must be at least 1"}
	}
	if c.MaxChildren < 1 {
		return &ConfigError{Field: "vis.maxChildren", Message: "must be at least 1"}
	}
	if c.MaxTagLength < 1 {
		return &ConfigError{Field: "vis.maxTagLength", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
