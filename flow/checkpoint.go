package flow

import (
	"context"
	"time"
)

// Checkpoint is the persisted tuple for one workflow instance: the state
// snapshot plus the executor's position in the graph.
//
// Version is a monotonically increasing counter, incremented on every
// persisted write. The executor always writes through CompareAndSwap with
// the version it last loaded, so concurrent invocations for the same
// session race and exactly one wins.
type Checkpoint struct {
	SessionID   string    `json:"session_id"`
	Version     int64     `json:"version"`
	Status      Status    `json:"status"`
	CurrentNode string    `json:"current_node"`
	State       State     `json:"state"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CheckpointStore is durable keyed storage for checkpoints. It is the
// only mutable resource shared between executions; all mutation goes
// through its atomic compare-and-swap primitive. No external locking is
// required or permitted.
//
// Backends live in the flow/store package: an in-memory map for
// development and testing, and SQLite/MySQL for durability. All must
// honor atomic compare-and-swap semantics.
type CheckpointStore interface {
	// Load returns the checkpoint for a session, or ErrNotFound.
	Load(ctx context.Context, sessionID string) (Checkpoint, error)

	// CompareAndSwap persists cp if and only if the stored version equals
	// expected. expected == 0 means "create": it fails with
	// ErrVersionConflict if a checkpoint already exists.
	CompareAndSwap(ctx context.Context, sessionID string, expected int64, cp Checkpoint) error
}
