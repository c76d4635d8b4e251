package drivers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemRepository is an in-memory Repository for development and tests,
// and for the memory storage backend of the daemon.
type MemRepository struct {
	mu    sync.RWMutex
	byOrg map[string]map[string]Driver
}

// NewMemRepository creates an empty MemRepository.
func NewMemRepository() *MemRepository {
	return &MemRepository{byOrg: make(map[string]map[string]Driver)}
}

// Put inserts or replaces a driver.
func (r *MemRepository) Put(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org := r.byOrg[d.OrgID]
	if org == nil {
		org = make(map[string]Driver)
		r.byOrg[d.OrgID] = org
	}
	org[d.ID] = d
}

// List implements Repository.
func (r *MemRepository) List(_ context.Context, q Query) ([]Driver, error) {
	r.mu.RLock()
	var out []Driver
	for _, d := range r.byOrg[q.OrgID] {
		if !d.Available {
			continue
		}
		if q.Region != "" && d.HomeRegion != q.Region {
			continue
		}
		out = append(out, d)
	}
	r.mu.RUnlock()

	Rank(out, time.Now())
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Get implements Repository.
func (r *MemRepository) Get(_ context.Context, orgID, id string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byOrg[orgID][id]
	if !ok {
		return Driver{}, fmt.Errorf("driver %s/%s: not found", orgID, id)
	}
	return d, nil
}

// WeeklyHours implements Repository.
func (r *MemRepository) WeeklyHours(_ context.Context, orgID string) (map[string]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.byOrg[orgID]))
	for id, d := range r.byOrg[orgID] {
		out[id] = d.WeeklyHours
	}
	return out, nil
}
