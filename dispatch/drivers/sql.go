package drivers

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLRepository is a database/sql-backed Repository. It works with both
// the sqlite and mysql drivers used by the checkpoint stores; the caller
// owns the *sql.DB lifecycle.
type SQLRepository struct {
	db *sql.DB
}

// NewSQLRepository wraps an open database handle.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Bootstrap creates the drivers table if it does not exist. The DDL is
// portable across sqlite and mysql.
func (r *SQLRepository) Bootstrap(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS drivers (
			id            VARCHAR(64) NOT NULL,
			org_id        VARCHAR(64) NOT NULL,
			name          VARCHAR(128) NOT NULL,
			rating        DOUBLE PRECISION NOT NULL DEFAULT 0,
			weekly_hours  DOUBLE PRECISION NOT NULL DEFAULT 0,
			available     BOOLEAN NOT NULL DEFAULT TRUE,
			last_assigned VARCHAR(64) NOT NULL,
			home_region   VARCHAR(64) NOT NULL DEFAULT '',
			license_class VARCHAR(16) NOT NULL DEFAULT '',
			PRIMARY KEY (org_id, id)
		)
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create drivers: %w", err)
	}
	return nil
}

// List implements Repository. Filtering on availability and region
// happens in SQL; ranking happens in Go so the scoring function stays in
// one place.
func (r *SQLRepository) List(ctx context.Context, q Query) ([]Driver, error) {
	query := `
		SELECT id, org_id, name, rating, weekly_hours, available, last_assigned, home_region, license_class
		FROM drivers
		WHERE org_id = ? AND available = TRUE
	`
	args := []any{q.OrgID}
	if q.Region != "" {
		query += " AND home_region = ?"
		args = append(args, q.Region)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}

	Rank(out, time.Now())
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Get implements Repository.
func (r *SQLRepository) Get(ctx context.Context, orgID, id string) (Driver, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, rating, weekly_hours, available, last_assigned, home_region, license_class
		FROM drivers
		WHERE org_id = ? AND id = ?
	`, orgID, id)

	d, err := scanDriver(row)
	if err == sql.ErrNoRows {
		return Driver{}, fmt.Errorf("driver %s/%s: not found", orgID, id)
	}
	if err != nil {
		return Driver{}, err
	}
	return d, nil
}

// WeeklyHours implements Repository.
func (r *SQLRepository) WeeklyHours(ctx context.Context, orgID string) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, weekly_hours FROM drivers WHERE org_id = ?", orgID)
	if err != nil {
		return nil, fmt.Errorf("weekly hours: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var id string
		var hours float64
		if err := rows.Scan(&id, &hours); err != nil {
			return nil, fmt.Errorf("scan weekly hours: %w", err)
		}
		out[id] = hours
	}
	return out, rows.Err()
}

// Upsert inserts or replaces a driver. Used by seeding and tests; the
// delete-then-insert form avoids dialect-specific upsert syntax.
func (r *SQLRepository) Upsert(ctx context.Context, d Driver) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM drivers WHERE org_id = ? AND id = ?", d.OrgID, d.ID); err != nil {
		return fmt.Errorf("upsert delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO drivers (id, org_id, name, rating, weekly_hours, available, last_assigned, home_region, license_class)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.OrgID, d.Name, d.Rating, d.WeeklyHours, d.Available,
		d.LastAssigned.UTC().Format(time.RFC3339Nano), d.HomeRegion, d.LicenseClass); err != nil {
		return fmt.Errorf("upsert insert: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDriver(row rowScanner) (Driver, error) {
	var (
		d            Driver
		lastAssigned string
	)
	err := row.Scan(&d.ID, &d.OrgID, &d.Name, &d.Rating, &d.WeeklyHours,
		&d.Available, &lastAssigned, &d.HomeRegion, &d.LicenseClass)
	if err != nil {
		return Driver{}, err
	}
	if d.LastAssigned, err = time.Parse(time.RFC3339Nano, lastAssigned); err != nil {
		return Driver{}, fmt.Errorf("parse last_assigned: %w", err)
	}
	return d, nil
}
