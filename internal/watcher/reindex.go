package watcher

import (
	"context"
	"log/slog"
)

// Reindexer updates the index for one changed file and reports whether the
// index changed.
type Reindexer interface {
	SyncPath(ctx context.Context, absPath string) (bool, error)
}

// ReindexHandler returns a ChangeHandler that feeds every event to ix and
// calls onChange once per batch that changed the index.
func ReindexHandler(ctx context.Context, ix Reindexer, logger *slog.Logger, onChange func(changed int)) ChangeHandler {
	return func(_ string, events []Event) {
		changed := 0
		for _, ev := range events {
			if ctx.Err() != nil {
				return
			}
			ok, err := ix.SyncPath(ctx, ev.Path)
			if err != nil {
				logger.Warn("Failed to reindex note", "path", ev.Path, "event", ev.Type.String(), "error", err)
				continue
			}
			if ok {
				changed++
			}
		}
		if changed > 0 && onChange != nil {
			logger.Info("Index updated from file changes", "changed", changed, "events", len(events))
			onChange(changed)
		}
	}
}
