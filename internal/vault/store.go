package vault

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tagvis/internal/storage"
)

// Store reads and writes the tag index tables.
type Store struct {
	db *storage.DB
}

// NewStore creates a store over an open index.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// fileState is what the indexer compares to decide whether to rescan.
type fileState struct {
	Hash  string
	MTime int64
}

// IndexStats summarises the index contents.
type IndexStats struct {
	Files    int       `json:"files"`
	Tags     int       `json:"tags"`
	LastSync time.Time `json:"lastSync,omitzero"`
}

const metaLastSync = "last_sync"

// fileStates returns the indexed state of every file by path.
func (s *Store) fileStates(ctx context.Context) (map[string]fileState, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, hash, mtime FROM files")
	if err != nil {
		return nil, fmt.Errorf("listing indexed files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	states := make(map[string]fileState)
	for rows.Next() {
		var p string
		var st fileState
		if err := rows.Scan(&p, &st.Hash, &st.MTime); err != nil {
			return nil, err
		}
		states[p] = st
	}
	return states, rows.Err()
}

// fileState returns the indexed state of one file.
func (s *Store) fileState(ctx context.Context, relPath string) (fileState, bool, error) {
	var st fileState
	err := s.db.QueryRowContext(ctx, "SELECT hash, mtime FROM files WHERE path = ?", relPath).Scan(&st.Hash, &st.MTime)
	if err == sql.ErrNoRows {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	return st, true, nil
}

// SaveNote replaces a note's row and tags.
func (s *Store) SaveNote(ctx context.Context, note Note, mtime int64) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRow(`
			INSERT INTO files (path, name, hash, mtime, indexed_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				name = excluded.name,
				hash = excluded.hash,
				mtime = excluded.mtime,
				indexed_at = excluded.indexed_at
			RETURNING id
		`, note.Path, note.Name, note.Hash, mtime, time.Now().UTC().Format(time.RFC3339)).Scan(&id)
		if err != nil {
			return fmt.Errorf("saving %s: %w", note.Path, err)
		}

		if _, err := tx.Exec("DELETE FROM file_tags WHERE file_id = ?", id); err != nil {
			return err
		}

		explicit := make(map[string]bool, len(note.Tags))
		for _, t := range note.Tags {
			explicit[t] = true
		}

		stmt, err := tx.Prepare("INSERT INTO file_tags (file_id, tag, explicit) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, tag := range ExpandTags(note.Tags) {
			flag := 0
			if explicit[tag] {
				flag = 1
			}
			if _, err := stmt.Exec(id, tag, flag); err != nil {
				return fmt.Errorf("saving tag %s of %s: %w", tag, note.Path, err)
			}
		}
		return nil
	})
}

// touch records a new mtime for a file whose content did not change.
func (s *Store) touch(ctx context.Context, relPath string, mtime int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE files SET mtime = ? WHERE path = ?", mtime, relPath)
	return err
}

// DeleteNotes removes files and, by cascade, their tags.
func (s *Store) DeleteNotes(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare("DELETE FROM files WHERE path = ?")
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, p := range paths {
			if _, err := stmt.Exec(p); err != nil {
				return fmt.Errorf("deleting %s: %w", p, err)
			}
		}
		return nil
	})
}

// NoteTags returns the explicit and expanded tags of one file.
func (s *Store) NoteTags(ctx context.Context, relPath string) (explicit, expanded []string, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ft.tag, ft.explicit FROM file_tags ft
		JOIN files f ON f.id = ft.file_id
		WHERE f.path = ?
		ORDER BY ft.tag
	`, relPath)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tag string
		var flag int
		if err := rows.Scan(&tag, &flag); err != nil {
			return nil, nil, err
		}
		expanded = append(expanded, tag)
		if flag == 1 {
			explicit = append(explicit, tag)
		}
	}
	return explicit, expanded, rows.Err()
}

func (s *Store) setLastSync(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaLastSync, t.UTC().Format(time.RFC3339Nano))
	return err
}

// Stats returns file and distinct tag counts and the last sync time.
func (s *Store) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&stats.Files); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT tag) FROM file_tags").Scan(&stats.Tags); err != nil {
		return nil, err
	}

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", metaLastSync).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, err
	default:
		if t, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			stats.LastSync = t
		}
	}
	return stats, nil
}
