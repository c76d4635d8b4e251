package drivers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestScore(t *testing.T) {
	now := time.Now()

	t.Run("rating dominates", func(t *testing.T) {
		high := Driver{Rating: 5.0, LastAssigned: now}
		low := Driver{Rating: 3.0, LastAssigned: now.Add(-7 * 24 * time.Hour)}
		if Score(high, now) <= Score(low, now) {
			t.Error("idle time outweighed a two-star rating gap")
		}
	})

	t.Run("rested drivers rank ahead at equal rating", func(t *testing.T) {
		rested := Driver{Rating: 4.0, LastAssigned: now.Add(-5 * 24 * time.Hour)}
		busy := Driver{Rating: 4.0, LastAssigned: now}
		if Score(rested, now) <= Score(busy, now) {
			t.Error("recency had no effect")
		}
	})

	t.Run("near the hours ceiling is penalized", func(t *testing.T) {
		fresh := Driver{Rating: 4.0, WeeklyHours: 10, LastAssigned: now}
		loaded := Driver{Rating: 4.0, WeeklyHours: MaxWeeklyHours * 0.9, LastAssigned: now}
		if Score(loaded, now) >= Score(fresh, now) {
			t.Error("hours ceiling penalty missing")
		}
	})
}

func TestRank(t *testing.T) {
	now := time.Now()
	ds := []Driver{
		{ID: "c", Rating: 3.0, LastAssigned: now},
		{ID: "a", Rating: 5.0, LastAssigned: now},
		{ID: "b", Rating: 5.0, LastAssigned: now},
	}
	Rank(ds, now)

	if ds[0].ID != "a" || ds[1].ID != "b" || ds[2].ID != "c" {
		t.Errorf("order = %s %s %s", ds[0].ID, ds[1].ID, ds[2].ID)
	}
}

func newSQLRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "drivers.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewSQLRepository(db)
	if err := repo.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return repo
}

func TestSQLRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	seed := func(t *testing.T, repo *SQLRepository) {
		t.Helper()
		for _, d := range []Driver{
			{ID: "d1", OrgID: "org1", Name: "Ada", Rating: 5.0, WeeklyHours: 10, Available: true, LastAssigned: now.Add(-72 * time.Hour), HomeRegion: "north"},
			{ID: "d2", OrgID: "org1", Name: "Ben", Rating: 4.0, WeeklyHours: 30, Available: true, LastAssigned: now.Add(-24 * time.Hour), HomeRegion: "south"},
			{ID: "d3", OrgID: "org1", Name: "Cy", Rating: 4.5, WeeklyHours: 55, Available: false, LastAssigned: now, HomeRegion: "north"},
			{ID: "d4", OrgID: "org2", Name: "Dee", Rating: 3.5, WeeklyHours: 20, Available: true, LastAssigned: now, HomeRegion: "north"},
		} {
			if err := repo.Upsert(ctx, d); err != nil {
				t.Fatalf("upsert %s: %v", d.ID, err)
			}
		}
	}

	t.Run("list filters org and availability", func(t *testing.T) {
		repo := newSQLRepo(t)
		seed(t, repo)

		got, err := repo.List(ctx, Query{OrgID: "org1"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d drivers", len(got))
		}
		for _, d := range got {
			if d.OrgID != "org1" || !d.Available {
				t.Errorf("leaked driver %+v", d)
			}
		}
		// Ada outranks Ben on rating and idle time.
		if got[0].ID != "d1" {
			t.Errorf("ranking = %s, %s", got[0].ID, got[1].ID)
		}
	})

	t.Run("list honors region and limit", func(t *testing.T) {
		repo := newSQLRepo(t)
		seed(t, repo)

		got, err := repo.List(ctx, Query{OrgID: "org1", Region: "north"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != "d1" {
			t.Errorf("got %+v", got)
		}

		got, err = repo.List(ctx, Query{OrgID: "org1", Limit: 1})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("limit ignored, got %d", len(got))
		}
	})

	t.Run("get round trips fields", func(t *testing.T) {
		repo := newSQLRepo(t)
		seed(t, repo)

		d, err := repo.Get(ctx, "org1", "d1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if d.Name != "Ada" || d.Rating != 5.0 || d.HomeRegion != "north" {
			t.Errorf("got %+v", d)
		}
		if !d.LastAssigned.Equal(now.Add(-72 * time.Hour)) {
			t.Errorf("last assigned = %v", d.LastAssigned)
		}

		if _, err := repo.Get(ctx, "org1", "ghost"); err == nil {
			t.Error("expected error for missing driver")
		}
	})

	t.Run("weekly hours per org", func(t *testing.T) {
		repo := newSQLRepo(t)
		seed(t, repo)

		hours, err := repo.WeeklyHours(ctx, "org1")
		if err != nil {
			t.Fatalf("weekly hours: %v", err)
		}
		if len(hours) != 3 {
			t.Fatalf("got %d entries", len(hours))
		}
		if hours["d3"] != 55 {
			t.Errorf("d3 hours = %v", hours["d3"])
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		repo := newSQLRepo(t)
		seed(t, repo)

		d, _ := repo.Get(ctx, "org1", "d2")
		d.Rating = 2.0
		if err := repo.Upsert(ctx, d); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		got, _ := repo.Get(ctx, "org1", "d2")
		if got.Rating != 2.0 {
			t.Errorf("rating = %v", got.Rating)
		}
	})
}

func TestMemRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepository()
	repo.Put(Driver{ID: "d1", OrgID: "org1", Rating: 5, Available: true, WeeklyHours: 12})
	repo.Put(Driver{ID: "d2", OrgID: "org1", Rating: 4, Available: false})

	got, err := repo.List(ctx, Query{OrgID: "org1"})
	if err != nil || len(got) != 1 || got[0].ID != "d1" {
		t.Errorf("list = %+v, %v", got, err)
	}

	hours, err := repo.WeeklyHours(ctx, "org1")
	if err != nil || hours["d1"] != 12 {
		t.Errorf("hours = %v, %v", hours, err)
	}

	if _, err := repo.Get(ctx, "org1", "ghost"); err == nil {
		t.Error("expected error for missing driver")
	}
}
