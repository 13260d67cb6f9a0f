package vault

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"tagvis/internal/paths"
)

// IndexerConfig contains configuration for the indexer.
type IndexerConfig struct {
	// Ignore holds directory names or globs matched against vault-relative
	// paths and base names.
	Ignore            []string
	FollowFrontmatter bool
}

// Indexer keeps the tag index in sync with the vault on disk.
type Indexer struct {
	root   string
	store  *Store
	config IndexerConfig
	logger *slog.Logger
}

// SyncStats reports what a sync changed.
type SyncStats struct {
	Scanned   int           `json:"scanned"`
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Deleted   int           `json:"deleted"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

// Changed reports whether the sync modified the index.
func (s *SyncStats) Changed() bool {
	return s.Added+s.Updated+s.Deleted > 0
}

// NewIndexer creates a new indexer.
func NewIndexer(root string, store *Store, config IndexerConfig, logger *slog.Logger) *Indexer {
	return &Indexer{
		root:   root,
		store:  store,
		config: config,
		logger: logger,
	}
}

// Root returns the vault root.
func (i *Indexer) Root() string {
	return i.root
}

// Sync brings the index up to date. Files whose mtime is unchanged are
// skipped; files whose content hash is unchanged only get the new mtime.
// With force every file is rescanned.
func (i *Indexer) Sync(ctx context.Context, force bool) (*SyncStats, error) {
	start := time.Now()
	stats := &SyncStats{}

	known, err := i.store.fileStates(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(known))

	err = filepath.WalkDir(i.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			i.logger.Warn("Skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := paths.CanonicalizePath(p, i.root)
		if relErr != nil || rel == "." {
			return nil
		}
		if i.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !paths.IsNote(rel) {
			return nil
		}

		stats.Scanned++
		present[rel] = true

		info, err := d.Info()
		if err != nil {
			stats.Errors++
			return nil
		}
		mtime := info.ModTime().UnixNano()

		prev, indexed := known[rel]
		if indexed && !force && prev.MTime == mtime {
			stats.Unchanged++
			return nil
		}

		changed, err := i.indexFile(ctx, p, rel, mtime, prev.Hash)
		switch {
		case err != nil:
			stats.Errors++
			i.logger.Warn("Failed to index note", "path", rel, "error", err)
		case !changed:
			stats.Unchanged++
		case indexed:
			stats.Updated++
		default:
			stats.Added++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking vault: %w", err)
	}

	var gone []string
	for p := range known {
		if !present[p] {
			gone = append(gone, p)
		}
	}
	if err := i.store.DeleteNotes(ctx, gone); err != nil {
		return nil, err
	}
	stats.Deleted = len(gone)

	if err := i.store.setLastSync(ctx, time.Now()); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	i.logger.Info("Vault sync complete",
		"scanned", stats.Scanned,
		"added", stats.Added,
		"updated", stats.Updated,
		"deleted", stats.Deleted,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)
	return stats, nil
}

// SyncPath re-indexes one file, or removes it from the index when it no
// longer exists. It reports whether the index changed.
func (i *Indexer) SyncPath(ctx context.Context, absPath string) (bool, error) {
	rel, err := paths.CanonicalizePath(absPath, i.root)
	if err != nil {
		return false, err
	}
	if strings.HasPrefix(rel, "../") || i.Ignored(rel) || !paths.IsNote(rel) {
		return false, nil
	}

	prev, indexed, err := i.store.fileState(ctx, rel)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		if !indexed {
			return false, nil
		}
		return true, i.store.DeleteNotes(ctx, []string{rel})
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	return i.indexFile(ctx, absPath, rel, info.ModTime().UnixNano(), prev.Hash)
}

// indexFile scans one note and saves it unless its hash equals prevHash, in
// which case only the mtime is refreshed.
func (i *Indexer) indexFile(ctx context.Context, absPath, rel string, mtime int64, prevHash string) (bool, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, err
	}

	note := ParseNote(rel, content, i.config.FollowFrontmatter)
	if prevHash != "" && note.Hash == prevHash {
		return false, i.store.touch(ctx, rel, mtime)
	}
	if err := i.store.SaveNote(ctx, note, mtime); err != nil {
		return false, err
	}
	i.logger.Debug("Indexed note", "path", rel, "tags", len(note.Tags))
	return true, nil
}

// Ignored reports whether a vault-relative path is excluded from indexing.
func (i *Indexer) Ignored(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == paths.StateDirName {
			return true
		}
	}
	for _, pattern := range i.config.Ignore {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		for _, part := range strings.Split(rel, "/") {
			if ok, _ := path.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}
