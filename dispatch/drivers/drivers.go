// Package drivers stores and scores the driver pool used by the
// planning workflow.
package drivers

import (
	"context"
	"sort"
	"time"
)

// Driver is one member of the pool.
type Driver struct {
	ID           string    `json:"id"`
	OrgID        string    `json:"org_id"`
	Name         string    `json:"name"`
	Rating       float64   `json:"rating"` // 0.0 - 5.0
	WeeklyHours  float64   `json:"weekly_hours"`
	Available    bool      `json:"available"`
	LastAssigned time.Time `json:"last_assigned"`
	HomeRegion   string    `json:"home_region"`
	LicenseClass string    `json:"license_class"`
}

// MaxWeeklyHours is the regulatory ceiling used by compliance checks and
// by selection filtering.
const MaxWeeklyHours = 56.0

// Query filters the pool for selection.
type Query struct {
	OrgID  string
	Region string // empty matches any region
	Limit  int    // 0 means no cap
}

// Repository is the driver pool storage contract.
type Repository interface {
	// List returns available drivers for the query's org, best first.
	List(ctx context.Context, q Query) ([]Driver, error)
	// Get returns a single driver.
	Get(ctx context.Context, orgID, id string) (Driver, error)
	// WeeklyHours reports accumulated hours this week per driver id.
	WeeklyHours(ctx context.Context, orgID string) (map[string]float64, error)
}

// Score ranks a driver for selection. Rating dominates; drivers rested
// longer since their last assignment rank ahead of recently worked ones,
// and anyone near the weekly hours ceiling is pushed down hard.
func Score(d Driver, now time.Time) float64 {
	s := d.Rating * 10

	idle := now.Sub(d.LastAssigned)
	if idle > 7*24*time.Hour {
		idle = 7 * 24 * time.Hour
	}
	s += idle.Hours() / 24 // up to +7

	if d.WeeklyHours > MaxWeeklyHours*0.8 {
		s -= 25
	}
	return s
}

// Rank sorts drivers by descending Score, breaking ties by id for
// deterministic output.
func Rank(ds []Driver, now time.Time) {
	sort.SliceStable(ds, func(i, j int) bool {
		si, sj := Score(ds[i], now), Score(ds[j], now)
		if si != sj {
			return si > sj
		}
		return ds[i].ID < ds[j].ID
	})
}
