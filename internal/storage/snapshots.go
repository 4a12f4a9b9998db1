package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"walker/internal/analyzer"
	"walker/internal/depgraph"
	werrors "walker/internal/errors"
)

// Snapshot is a saved session: its graph edges, the base directory of
// every processed file and each file's unresolved specifiers.
type Snapshot struct {
	SessionID  string              `json:"sessionId"`
	RepoRoot   string              `json:"repoRoot"`
	CreatedAt  time.Time           `json:"createdAt"`
	Edges      []depgraph.Edge     `json:"edges"`
	Bases      map[string]string   `json:"bases"`
	Unresolved map[string][]string `json:"unresolved,omitempty"`
}

// SessionInfo summarizes a saved session.
type SessionInfo struct {
	SessionID string    `json:"sessionId"`
	RepoRoot  string    `json:"repoRoot"`
	CreatedAt time.Time `json:"createdAt"`
	Files     int       `json:"files"`
	Edges     int       `json:"edges"`
}

// State rebuilds an analyzer session from the snapshot.
func (s *Snapshot) State() *analyzer.State {
	return analyzer.RestoreState(s.SessionID, s.Edges, s.Bases, s.Unresolved)
}

// SaveSnapshot writes state under its session id, replacing any earlier
// save of the same session.
func (db *DB) SaveSnapshot(ctx context.Context, repoRoot string, state *analyzer.State) error {
	edges := state.Graph.Edges()
	bases := state.Bases()

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", state.SessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sessions (session_id, repo_root, created_at, file_count, edge_count) VALUES (?, ?, ?, ?, ?)",
			state.SessionID, repoRoot, time.Now().UnixNano(), len(bases), len(edges),
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		fileStmt, err := tx.PrepareContext(ctx, "INSERT INTO session_files (session_id, path, base) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer fileStmt.Close()
		for path, base := range bases {
			if _, err := fileStmt.ExecContext(ctx, state.SessionID, path, base); err != nil {
				return fmt.Errorf("insert file %s: %w", path, err)
			}
		}

		edgeStmt, err := tx.PrepareContext(ctx,
			"INSERT INTO session_edges (session_id, file, position, dependency, unresolved) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return err
		}
		defer edgeStmt.Close()
		position := make(map[string]int)
		for _, e := range edges {
			unresolved := state.IsUnresolved(e.File, e.Dependency)
			if _, err := edgeStmt.ExecContext(ctx, state.SessionID, e.File, position[e.File], e.Dependency, unresolved); err != nil {
				return fmt.Errorf("insert edge %s -> %s: %w", e.File, e.Dependency, err)
			}
			position[e.File]++
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.logger.Info("Saved graph snapshot", "session", state.SessionID, "files", len(bases), "edges", len(edges))
	return nil
}

// LoadLatestSnapshot returns the most recently saved session for repoRoot.
func (db *DB) LoadLatestSnapshot(ctx context.Context, repoRoot string) (*Snapshot, error) {
	var id string
	err := db.conn.QueryRowContext(ctx,
		"SELECT session_id FROM sessions WHERE repo_root = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		repoRoot,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, werrors.New(werrors.SnapshotMissing, "no graph snapshot saved for "+repoRoot, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query latest session: %w", err)
	}
	return db.LoadSnapshot(ctx, id)
}

// LoadSnapshot returns the saved session with the given id.
func (db *DB) LoadSnapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	snap := &Snapshot{
		SessionID:  sessionID,
		Bases:      make(map[string]string),
		Unresolved: make(map[string][]string),
	}

	var created int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT repo_root, created_at FROM sessions WHERE session_id = ?", sessionID,
	).Scan(&snap.RepoRoot, &created)
	if err == sql.ErrNoRows {
		return nil, werrors.New(werrors.SnapshotMissing, "no graph snapshot with id "+sessionID, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	snap.CreatedAt = time.Unix(0, created)

	rows, err := db.conn.QueryContext(ctx,
		"SELECT path, base FROM session_files WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	for rows.Next() {
		var path, base string
		if err := rows.Scan(&path, &base); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan file: %w", err)
		}
		snap.Bases[path] = base
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.conn.QueryContext(ctx,
		"SELECT file, dependency, unresolved FROM session_edges WHERE session_id = ? ORDER BY file, position", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e depgraph.Edge
		var unresolved bool
		if err := rows.Scan(&e.File, &e.Dependency, &unresolved); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		snap.Edges = append(snap.Edges, e)
		if unresolved {
			snap.Unresolved[e.File] = append(snap.Unresolved[e.File], e.Dependency)
		}
	}
	return snap, rows.Err()
}

// ListSessions returns saved sessions, newest first.
func (db *DB) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT session_id, repo_root, created_at, file_count, edge_count FROM sessions ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var created int64
		if err := rows.Scan(&info.SessionID, &info.RepoRoot, &created, &info.Files, &info.Edges); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		info.CreatedAt = time.Unix(0, created)
		out = append(out, info)
	}
	return out, rows.Err()
}

// PruneSessions deletes all but the newest keep sessions of each repository
// and returns how many were removed.
func (db *DB) PruneSessions(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM sessions WHERE session_id IN (
			SELECT session_id FROM (
				SELECT session_id, ROW_NUMBER() OVER (
					PARTITION BY repo_root ORDER BY created_at DESC, rowid DESC
				) AS recency
				FROM sessions
			) WHERE recency > ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
