package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 2

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createFilesTable(tx); err != nil {
			return err
		}
		if err := createFileTagsTable(tx); err != nil {
			return err
		}
		if err := createIndexMetaTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Index schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Index schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("index schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	db.logger.Info("Running index migrations",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)

	if version < 2 {
		if err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
			if err := createIndexMetaTable(tx); err != nil {
				return err
			}
			return setSchemaVersion(tx, 2)
		}); err != nil {
			return fmt.Errorf("migrating to v2: %w", err)
		}
	}

	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	ctx := context.Background()

	var tableName string
	err := db.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// files holds one row per indexed note.
func createFilesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			hash TEXT NOT NULL,
			mtime INTEGER NOT NULL,
			indexed_at TEXT NOT NULL
		)
	`)
	return err
}

// file_tags holds every tag of a file. explicit is 1 for tags written in
// the note and 0 for parents implied by nested tags.
func createFileTagsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS file_tags (
			file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			explicit INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (file_id, tag)
		)
	`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_file_tags_tag ON file_tags(tag)`)
	return err
}

// index_meta holds key/value facts about the last sync.
func createIndexMetaTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}
