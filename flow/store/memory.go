// Package store provides checkpoint store backends for the workflow
// engine: an in-memory map for development and testing, and SQLite/MySQL
// for durable deployments. All backends honor atomic compare-and-swap
// semantics on the checkpoint version.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fleetops/dispatchflow/flow"
)

// MemStore is an in-memory flow.CheckpointStore.
//
// Checkpoints are kept as JSON blobs so that Load returns an independent
// copy and the round-trip behavior matches the durable backends. Data is
// lost when the process terminates; use SQLiteStore or MySQLStore in
// production.
type MemStore struct {
	mu          sync.Mutex
	checkpoints map[string][]byte // sessionID -> JSON checkpoint
	versions    map[string]int64  // sessionID -> stored version
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		checkpoints: make(map[string][]byte),
		versions:    make(map[string]int64),
	}
}

// Load implements flow.CheckpointStore.
func (m *MemStore) Load(_ context.Context, sessionID string) (flow.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.checkpoints[sessionID]
	if !ok {
		return flow.Checkpoint{}, flow.ErrNotFound
	}

	var cp flow.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return flow.Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cp, nil
}

// CompareAndSwap implements flow.CheckpointStore. The version check and
// write happen under one lock, giving the same atomicity as a database
// conditional update.
func (m *MemStore) CompareAndSwap(_ context.Context, sessionID string, expected int64, cp flow.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.versions[sessionID]
	if expected == 0 {
		if exists {
			return flow.ErrVersionConflict
		}
	} else if !exists || current != expected {
		return flow.ErrVersionConflict
	}

	m.checkpoints[sessionID] = data
	m.versions[sessionID] = cp.Version
	return nil
}

// Delete removes a session's checkpoint. Used by retention sweeps and
// tests; absent sessions are a no-op.
func (m *MemStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, sessionID)
	delete(m.versions, sessionID)
	return nil
}

// Len reports the number of stored checkpoints.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkpoints)
}
