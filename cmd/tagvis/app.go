package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tagvis/internal/config"
	tverrors "tagvis/internal/errors"
	"tagvis/internal/expansion"
	"tagvis/internal/metrics"
	"tagvis/internal/slogutil"
	"tagvis/internal/storage"
	"tagvis/internal/vault"
)

// app is everything a command needs to work on one vault.
type app struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	factory  *slogutil.LoggerFactory
	db       *storage.DB
	store    *vault.Store
	indexer  *vault.Indexer
	provider *vault.Provider
	metrics  *metrics.Collector
}

// appOptions says where an app comes from and where it logs.
type appOptions struct {
	vaultRoot  string
	configPath string
	cliLevel   slog.Leveler
	// subsystem, when set, also logs to .tagvis/logs/<subsystem>.log
	subsystem string
	logOutput io.Writer
}

// cliAppOptions builds appOptions from the persistent flags.
func cliAppOptions(subsystem string) appOptions {
	var level slog.Leveler
	if verbosity > 0 || quietFlag {
		level = slogutil.LevelFromVerbosity(verbosity, quietFlag)
	}
	return appOptions{
		vaultRoot:  vaultFlag,
		configPath: configFlag,
		cliLevel:   level,
		subsystem:  subsystem,
		logOutput:  os.Stderr,
	}
}

// loadConfig resolves the vault root and loads its configuration.
func loadConfig(vaultRoot, configPath string) (string, *config.Config, error) {
	root, err := filepath.Abs(vaultRoot)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return "", nil, fmt.Errorf("vault root %s is not a directory", root)
	}

	var cfg *config.Config
	if configPath != "" {
		cfg, err = config.LoadConfigFromPath(configPath)
		if err == nil {
			cfg.VaultRoot = root
		}
	} else {
		cfg, err = config.LoadConfig(root)
	}
	if err != nil {
		return "", nil, err
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, tverrors.New(tverrors.ConfigInvalid, "invalid configuration", err)
	}
	return root, cfg, nil
}

// openApp loads the config, sets up logging and opens the tag index.
func openApp(opts appOptions) (*app, error) {
	root, cfg, err := loadConfig(opts.vaultRoot, opts.configPath)
	if err != nil {
		return nil, err
	}

	out := opts.logOutput
	if out == nil {
		out = io.Discard
	}
	factory := slogutil.NewLoggerFactory(root, cfg, opts.cliLevel)
	var logger *slog.Logger
	if opts.subsystem != "" {
		logger = factory.SubsystemLogger(opts.subsystem, out)
	} else {
		logger = factory.CLILogger(out)
	}

	db, err := storage.Open(cfg.DBPath(), logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}

	store := vault.NewStore(db)
	indexer := vault.NewIndexer(root, store, vault.IndexerConfig{
		Ignore:            cfg.Index.Ignore,
		FollowFrontmatter: cfg.Index.FollowFrontmatter,
	}, logger)

	return &app{
		root:     root,
		cfg:      cfg,
		logger:   logger,
		factory:  factory,
		db:       db,
		store:    store,
		indexer:  indexer,
		provider: vault.NewProvider(db),
		metrics:  metrics.New(),
	}, nil
}

// sync brings the index up to date with the vault.
func (a *app) sync(ctx context.Context, force bool) (*vault.SyncStats, error) {
	stats, err := a.indexer.Sync(ctx, force)
	files := 0
	if err == nil {
		if s, serr := a.store.Stats(ctx); serr == nil {
			files = s.Files
		}
	}
	a.metrics.IndexSynced(files, err)
	if err != nil {
		return nil, fmt.Errorf("failed to index vault: %w", err)
	}
	a.logger.Info("Vault indexed",
		"scanned", stats.Scanned,
		"added", stats.Added,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
		"duration", stats.Duration,
	)
	return stats, nil
}

// newEngine creates an expansion engine over the vault index.
func (a *app) newEngine(vis config.VisConfig, options ...expansion.Option) (*expansion.Engine, error) {
	options = append([]expansion.Option{
		expansion.WithLogger(a.logger),
		expansion.WithRecorder(a.metrics),
	}, options...)
	return expansion.New(a.provider, engineOptions(vis, a.cfg.Engine), options...)
}

// Close releases the index and log files.
func (a *app) Close() error {
	err := a.db.Close()
	if ferr := a.factory.Close(); err == nil {
		err = ferr
	}
	return err
}

// engineOptions maps configuration onto expansion options.
func engineOptions(vis config.VisConfig, ec config.EngineConfig) expansion.Options {
	return expansion.Options{
		InitialTag:          vis.InitialTag,
		IgnoreFilesWithTags: vis.IgnoreFilesWithTags,
		FilterTags:          vis.FilterTags,
		MaxChildren:         vis.MaxChildren,
		MaxDepth:            vis.MaxDepth,
		MaxInFlight:         ec.MaxInFlight,
		QueryTimeout:        time.Duration(ec.QueryTimeoutMs) * time.Millisecond,
		MaxFiles:            ec.MaxFiles,
	}
}

// readVisBlock parses the visualisation block stored in path.
func readVisBlock(path string) (config.VisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.VisConfig{}, fmt.Errorf("failed to read block %s: %w", path, err)
	}
	return config.ParseVisBlock(string(data))
}

// blockError renders a block parse failure the way vault users know it.
func blockError(err error) error {
	if !tverrors.HasCode(err, tverrors.ConfigInvalid) {
		return err
	}
	if cause := errors.Unwrap(err); cause != nil {
		return fmt.Errorf("Error parsing JSON: %v", cause)
	}
	return err
}
