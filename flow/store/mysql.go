package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/fleetops/dispatchflow/flow"
)

// MySQLStore is a MySQL/MariaDB-backed flow.CheckpointStore for
// production deployments: multiple executor processes may share one
// database, with compare-and-swap on the version column serializing
// writers per session.
//
// The DSN format is the usual go-sql-driver form:
//
//	user:password@tcp(localhost:3306)/dispatchflow?parseTime=true
//
// Never hardcode credentials; read the DSN from configuration or the
// environment.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a pooled connection and ensures the schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			session_id   VARCHAR(128) PRIMARY KEY,
			version      BIGINT NOT NULL,
			status       VARCHAR(16) NOT NULL,
			current_node VARCHAR(128) NOT NULL,
			state        JSON NOT NULL,
			updated_at   TIMESTAMP(6) NOT NULL,
			INDEX idx_checkpoints_status (status, updated_at)
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create workflow_checkpoints: %w", err)
	}
	return nil
}

// Load implements flow.CheckpointStore.
func (s *MySQLStore) Load(ctx context.Context, sessionID string) (flow.Checkpoint, error) {
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
		stateJSON []byte
		updatedAt time.Time
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
	cp.UpdatedAt = updatedAt
	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return flow.Checkpoint{}, fmt.Errorf("decode state: %w", err)
	}
	return cp, nil
}

// CompareAndSwap implements flow.CheckpointStore.
func (s *MySQLStore) CompareAndSwap(ctx context.Context, sessionID string, expected int64, cp flow.Checkpoint) error {
	if err := s.guard(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if expected == 0 {
		query := `
			INSERT IGNORE INTO workflow_checkpoints
				(session_id, version, status, current_node, state, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		res, err := s.db.ExecContext(ctx, query,
			sessionID, cp.Version, string(cp.Status), cp.CurrentNode, stateJSON, cp.UpdatedAt.UTC())
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
		cp.Version, string(cp.Status), cp.CurrentNode, stateJSON, cp.UpdatedAt.UTC(),
		sessionID, expected)
	if err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	return casOutcome(res)
}

// Delete removes a session's checkpoint (retention sweeps, tests).
func (s *MySQLStore) Delete(ctx context.Context, sessionID string) error {
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
func (s *MySQLStore) Ping(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close closes the connection pool. Double-close is a no-op.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *MySQLStore) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
