package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// currentSchemaVersion is stored in SQLite's user_version header field.
const currentSchemaVersion = 2

// migrations[i] upgrades a database from version i to i+1.
var migrations = []func(ctx context.Context, tx *sql.Tx) error{
	createSessionTables,
	addEdgeResolution,
}

func (db *DB) migrate(ctx context.Context) error {
	version, err := db.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "path", db.path, "version", version)
		return nil
	}

	db.logger.Info("Migrating database", "path", db.path, "from_version", version, "to_version", currentSchemaVersion)
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for v := version; v < currentSchemaVersion; v++ {
			if err := migrations[v](ctx, tx); err != nil {
				return fmt.Errorf("migration to version %d: %w", v+1, err)
			}
		}
		// PRAGMA does not take bind parameters.
		_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion))
		return err
	})
}

func (db *DB) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// createSessionTables creates the sessions, session_files and session_edges
// tables. Edge position keeps the commit order of a file's dependencies.
func createSessionTables(ctx context.Context, tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			repo_root TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			file_count INTEGER NOT NULL,
			edge_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_files (
			session_id TEXT NOT NULL,
			path TEXT NOT NULL,
			base TEXT NOT NULL,

			PRIMARY KEY (session_id, path),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS session_edges (
			session_id TEXT NOT NULL,
			file TEXT NOT NULL,
			position INTEGER NOT NULL,
			dependency TEXT NOT NULL,

			PRIMARY KEY (session_id, file, position),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		"CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_session_edges_dependency ON session_edges(session_id, dependency)",
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create session tables: %w", err)
		}
	}
	return nil
}

// addEdgeResolution marks edges whose dependency is a raw specifier that no
// resolver could place.
func addEdgeResolution(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		"ALTER TABLE session_edges ADD COLUMN unresolved INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("add session_edges.unresolved: %w", err)
	}
	return nil
}
