package vault

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"tagvis/internal/slogutil"
	"tagvis/internal/storage"
)

type testVault struct {
	root     string
	db       *storage.DB
	store    *Store
	indexer  *Indexer
	provider *Provider
}

func newTestVault(t *testing.T, files map[string]string) *testVault {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		writeNote(t, root, rel, content)
	}

	db, err := storage.Open(filepath.Join(root, ".tagvis", "index.db"), slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db)
	return &testVault{
		root:  root,
		db:    db,
		store: store,
		indexer: NewIndexer(root, store, IndexerConfig{
			Ignore:            []string{".git", ".obsidian", "templates/*"},
			FollowFrontmatter: true,
		}, slogutil.NewDiscardLogger()),
		provider: NewProvider(db),
	}
}

func writeNote(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// bumpMtime moves a file's mtime forward so the indexer notices it.
func bumpMtime(t *testing.T, root, rel string) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(root, filepath.FromSlash(rel)), future, future); err != nil {
		t.Fatal(err)
	}
}

func (v *testVault) sync(t *testing.T) *SyncStats {
	t.Helper()
	stats, err := v.indexer.Sync(context.Background(), false)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	return stats
}

func TestIndexer_Sync(t *testing.T) {
	v := newTestVault(t, map[string]string{
		"a.md":                "#project/alpha #idea",
		"notes/b.md":          "---\ntags: [project]\n---\n",
		"c.txt":               "#not-a-note",
		".obsidian/x.md":      "#hidden",
		"templates/daily.md":  "#template",
		".tagvis/ignored.md":  "#state",
		"notes/deep/plain.md": "no tags here",
	})

	stats := v.sync(t)
	if stats.Scanned != 3 || stats.Added != 3 || stats.Deleted != 0 {
		t.Fatalf("first sync = %+v, want 3 scanned and added", stats)
	}
	if !stats.Changed() {
		t.Error("first sync should report changes")
	}

	explicit, expanded, err := v.store.NoteTags(context.Background(), "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(explicit, []string{"#idea", "#project/alpha"}) {
		t.Errorf("explicit = %v", explicit)
	}
	if !reflect.DeepEqual(expanded, []string{"#idea", "#project", "#project/alpha"}) {
		t.Errorf("expanded = %v", expanded)
	}

	// nothing changed on disk
	stats = v.sync(t)
	if stats.Unchanged != 3 || stats.Changed() {
		t.Errorf("second sync = %+v, want all unchanged", stats)
	}

	// touched but identical content only refreshes mtime
	bumpMtime(t, v.root, "a.md")
	stats = v.sync(t)
	if stats.Unchanged != 3 || stats.Updated != 0 {
		t.Errorf("sync after touch = %+v, want unchanged", stats)
	}

	// edit, add and delete
	// rewriting resets mtime to now, which differs from the bumped one
	writeNote(t, v.root, "a.md", "#idea only now")
	writeNote(t, v.root, "new.md", "#fresh")
	if err := os.Remove(filepath.Join(v.root, "notes", "b.md")); err != nil {
		t.Fatal(err)
	}

	stats = v.sync(t)
	if stats.Updated != 1 || stats.Added != 1 || stats.Deleted != 1 {
		t.Errorf("sync after edits = %+v, want 1 updated, 1 added, 1 deleted", stats)
	}

	index, err := v.store.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if index.Files != 3 || index.Tags != 2 {
		t.Errorf("Stats() = %+v, want 3 files and 2 tags", index)
	}
	if index.LastSync.IsZero() {
		t.Error("LastSync should be set")
	}
}

func TestIndexer_SyncPath(t *testing.T) {
	v := newTestVault(t, map[string]string{"a.md": "#one"})
	v.sync(t)
	ctx := context.Background()

	writeNote(t, v.root, "b.md", "#two")
	changed, err := v.indexer.SyncPath(ctx, filepath.Join(v.root, "b.md"))
	if err != nil || !changed {
		t.Fatalf("SyncPath(new) = %v, %v; want true, nil", changed, err)
	}

	changed, err = v.indexer.SyncPath(ctx, filepath.Join(v.root, "b.md"))
	if err != nil || changed {
		t.Errorf("SyncPath(unchanged) = %v, %v; want false, nil", changed, err)
	}

	if err := os.Remove(filepath.Join(v.root, "a.md")); err != nil {
		t.Fatal(err)
	}
	changed, err = v.indexer.SyncPath(ctx, filepath.Join(v.root, "a.md"))
	if err != nil || !changed {
		t.Errorf("SyncPath(deleted) = %v, %v; want true, nil", changed, err)
	}

	changed, err = v.indexer.SyncPath(ctx, filepath.Join(v.root, "never.md"))
	if err != nil || changed {
		t.Errorf("SyncPath(unknown) = %v, %v; want false, nil", changed, err)
	}

	changed, err = v.indexer.SyncPath(ctx, filepath.Join(v.root, ".obsidian", "workspace.md"))
	if err != nil || changed {
		t.Errorf("SyncPath(ignored) = %v, %v; want false, nil", changed, err)
	}

	stats, err := v.store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Files != 1 {
		t.Errorf("Files = %d, want 1", stats.Files)
	}
}

func TestIndexer_Ignored(t *testing.T) {
	ix := NewIndexer("/vault", nil, IndexerConfig{Ignore: []string{".git", "templates/*", "*.excalidraw.md"}}, slogutil.NewDiscardLogger())

	tests := map[string]bool{
		"a.md":                    false,
		".git":                    true,
		"sub/.git/x.md":           true,
		"templates/daily.md":      true,
		"notes/templates/x.md":    false,
		"drawing.excalidraw.md":   true,
		".tagvis/index.db":        true,
		"notes/.tagvis-backup.md": false,
	}
	for rel, want := range tests {
		if got := ix.Ignored(rel); got != want {
			t.Errorf("Ignored(%q) = %v, want %v", rel, got, want)
		}
	}
}
