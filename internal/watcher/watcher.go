// Package watcher reports note changes in a vault so the index and the tag
// tree can follow edits made outside the tool.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tagvis/internal/paths"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string // absolute
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with each debounced batch of note changes
type ChangeHandler func(vaultRoot string, events []Event)

// Config contains watcher configuration
type Config struct {
	Enabled    bool
	DebounceMs int
	// Ignore reports whether a vault-relative path is skipped. Ignored
	// directories are not watched at all.
	Ignore func(rel string) bool
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		DebounceMs: 500,
	}
}

// Watcher watches every directory of a vault for note changes
type Watcher struct {
	root    string
	config  Config
	logger  *slog.Logger
	handler ChangeHandler
	batch   *BatchDebouncer

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	dirs    map[string]bool
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates a new vault watcher
func New(root string, config Config, logger *slog.Logger, handler ChangeHandler) *Watcher {
	w := &Watcher{
		root:    root,
		config:  config,
		logger:  logger,
		handler: handler,
		dirs:    make(map[string]bool),
	}
	delay := time.Duration(config.DebounceMs) * time.Millisecond
	w.batch = NewBatchDebouncer(delay, w.emit)
	return w
}

// Start begins watching. It returns once every existing directory is
// registered; events are delivered until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.config.Enabled {
		w.logger.Info("File watcher is disabled")
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	if err := w.addRecursive(w.root, false); err != nil {
		_ = fsw.Close()
		w.fsw = nil
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.started = true

	w.wg.Add(1)
	go w.processEvents(ctx, fsw)

	w.logger.Info("Starting file watcher",
		"root", w.root,
		"dirs", len(w.dirs),
		"debounceMs", w.config.DebounceMs,
	)
	return nil
}

// Stop stops watching and drops pending events
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = false
	w.cancel()
	err := w.fsw.Close()
	w.mu.Unlock()

	w.wg.Wait()
	w.batch.Cancel()
	w.logger.Info("File watcher stopped")
	return err
}

// IsIgnored checks a vault-relative path against the configured filter
func (w *Watcher) IsIgnored(rel string) bool {
	if rel == "." {
		return false
	}
	if w.config.Ignore != nil {
		return w.config.Ignore(rel)
	}
	return false
}

// WatchedDirs returns the number of watched directories
func (w *Watcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// Stats returns watcher statistics
func (w *Watcher) Stats() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()

	return map[string]interface{}{
		"enabled":     w.config.Enabled,
		"running":     w.started,
		"watchedDirs": len(w.dirs),
		"debounceMs":  w.config.DebounceMs,
		"pending":     w.batch.EventCount(),
	}
}

// addRecursive watches dir and every directory below it. With announce,
// notes already present are reported as created; a directory moved into
// the vault or filled before its watch was added would otherwise go unseen.
// Callers hold w.mu.
func (w *Watcher) addRecursive(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := paths.CanonicalizePath(p, w.root)
		if relErr != nil || w.IsIgnored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			if announce && paths.IsNote(rel) {
				w.batch.Add(Event{Type: EventCreate, Path: p, Timestamp: time.Now()})
			}
			return nil
		}
		if w.dirs[p] {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			return err
		}
		w.dirs[p] = true
		return nil
	})
}

// processEvents converts fsnotify events into batched note events.
func (w *Watcher) processEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, err := paths.CanonicalizePath(ev.Name, w.root)
	if err != nil || w.IsIgnored(rel) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.started {
				if err := w.addRecursive(ev.Name, true); err != nil {
					w.logger.Warn("Failed to watch new directory", "path", rel, "error", err)
				}
			}
			w.mu.Unlock()
			return
		}
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.dirs, ev.Name)
		w.mu.Unlock()
	}

	if !paths.IsNote(rel) {
		return
	}
	w.batch.Add(Event{Type: convertOp(ev.Op), Path: ev.Name, Timestamp: time.Now()})
}

func (w *Watcher) emit(events []Event) {
	w.logger.Debug("Note changes detected", "root", w.root, "eventCount", len(events))
	if w.handler != nil {
		w.handler(w.root, events)
	}
}

// convertOp maps an fsnotify operation to an EventType.
func convertOp(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate
	case op.Has(fsnotify.Remove):
		return EventDelete
	case op.Has(fsnotify.Rename):
		return EventRename
	default:
		return EventModify
	}
}
