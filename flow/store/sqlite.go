package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fleetops/dispatchflow/flow"
)

// SQLiteStore is a SQLite-backed flow.CheckpointStore.
//
// Suited to single-process deployments and local development with zero
// setup; the database lives in one file (or ":memory:" for tests). WAL
// mode keeps readers unblocked by the single writer.
//
// Compare-and-swap is implemented as a conditional UPDATE on the stored
// version; the rows-affected count tells a lost race apart from a clean
// write without any external locking.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			session_id   TEXT PRIMARY KEY,
			version      INTEGER NOT NULL,
			status       TEXT NOT NULL,
			current_node TEXT NOT NULL,
			state        TEXT NOT NULL,
			updated_at   TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create workflow_checkpoints: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON workflow_checkpoints(status, updated_at)"); err != nil {
		return fmt.Errorf("create idx_checkpoints_status: %w", err)
	}
	return nil
}

// Load implements flow.CheckpointStore.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (flow.Checkpoint, error) {
	if err := s.guard(); err != nil {
		return flow.Checkpoint{}, err
	}

	query := `
		SELECT version, status, current_node, state, updated_at
		FROM workflow_checkpoints
		WHERE session_id = ?
	`

	var (
		cp        flow.Checkpoint
		status    string
		stateJSON string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&cp.Version, &status, &cp.CurrentNode, &stateJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return flow.Checkpoint{}, flow.ErrNotFound
	}
	if err != nil {
		return flow.Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}

	cp.SessionID = sessionID
	cp.Status = flow.Status(status)
	if cp.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return flow.Checkpoint{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return flow.Checkpoint{}, fmt.Errorf("decode state: %w", err)
	}
	return cp, nil
}

// CompareAndSwap implements flow.CheckpointStore.
func (s *SQLiteStore) CompareAndSwap(ctx context.Context, sessionID string, expected int64, cp flow.Checkpoint) error {
	if err := s.guard(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	updatedAt := cp.UpdatedAt.UTC().Format(time.RFC3339Nano)

	if expected == 0 {
		// Creation: the primary key makes a duplicate insert fail, which
		// maps to a version conflict (someone created it first).
		query := `
			INSERT INTO workflow_checkpoints (session_id, version, status, current_node, state, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id) DO NOTHING
		`
		res, err := s.db.ExecContext(ctx, query,
			sessionID, cp.Version, string(cp.Status), cp.CurrentNode, string(stateJSON), updatedAt)
		if err != nil {
			return fmt.Errorf("insert checkpoint: %w", err)
		}
		return casOutcome(res)
	}

	query := `
		UPDATE workflow_checkpoints
		SET version = ?, status = ?, current_node = ?, state = ?, updated_at = ?
		WHERE session_id = ? AND version = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		cp.Version, string(cp.Status), cp.CurrentNode, string(stateJSON), updatedAt,
		sessionID, expected)
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	return casOutcome(res)
}

// Delete removes a session's checkpoint (retention sweeps, tests).
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.guard(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM workflow_checkpoints WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Ping verifies the database connection, for health checks.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Close closes the database. Double-close is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

func casOutcome(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return flow.ErrVersionConflict
	}
	return nil
}
