package db

import (
	"context"
	"testing"
)

func TestIncrementStats(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	before, err := GetStats(ctx, db, "2026-05-01", "example.com")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if before.Total != 0 || len(before.ByCampaign) != 0 {
		t.Fatalf("absent bucket should be zero, got %+v", before)
	}
	if before.ByCampaign == nil {
		t.Fatal("absent bucket should carry an empty, non-nil map")
	}

	s, err := IncrementStats(ctx, db, "2026-05-01", "example.com", "vibe_memes")
	if err != nil {
		t.Fatalf("IncrementStats failed: %v", err)
	}
	if s.Total != 1 || s.ByCampaign["vibe_memes"] != 1 {
		t.Errorf("after first increment = %+v", s)
	}

	s, err = IncrementStats(ctx, db, "2026-05-01", "example.com", "vibe_memes")
	if err != nil {
		t.Fatalf("IncrementStats failed: %v", err)
	}
	if s.Total != 2 || s.ByCampaign["vibe_memes"] != 2 {
		t.Errorf("after second increment = %+v", s)
	}

	// Empty campaign bumps only the total
	s, err = IncrementStats(ctx, db, "2026-05-01", "example.com", "")
	if err != nil {
		t.Fatalf("IncrementStats failed: %v", err)
	}
	if s.Total != 3 || len(s.ByCampaign) != 1 {
		t.Errorf("after campaign-less increment = %+v", s)
	}

	// Other buckets untouched
	other, _ := GetStats(ctx, db, "2026-05-02", "example.com")
	if other.Total != 0 {
		t.Errorf("other day bucket = %+v", other)
	}
	other, _ = GetStats(ctx, db, "2026-05-01", "reddit.com")
	if other.Total != 0 {
		t.Errorf("other domain bucket = %+v", other)
	}
}

func TestListStats(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	mustIncrement(t, db, "2026-05-01", "b.com", "x")
	mustIncrement(t, db, "2026-05-01", "a.com", "y")
	mustIncrement(t, db, "2026-05-02", "a.com", "x")
	mustIncrement(t, db, "2026-05-02", "a.com", "x")

	all, err := ListStats(ctx, db, "")
	if err != nil {
		t.Fatalf("ListStats failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].DateKey != "2026-05-02" || all[0].Domain != "a.com" || all[0].Stats.ByCampaign["x"] != 2 {
		t.Errorf("first row = %+v", all[0])
	}
	if all[1].Domain != "a.com" || all[2].Domain != "b.com" {
		t.Errorf("rows not ordered by domain within a day: %+v", all)
	}

	day, err := ListStats(ctx, db, "2026-05-01")
	if err != nil {
		t.Fatalf("ListStats(day) failed: %v", err)
	}
	if len(day) != 2 {
		t.Fatalf("day len = %d, want 2", len(day))
	}
	if day[0].Stats.ByCampaign["y"] != 1 {
		t.Errorf("a.com campaigns = %v", day[0].Stats.ByCampaign)
	}
}

func TestPruneStats(t *testing.T) {
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	for _, day := range []string{"2026-05-01", "2026-05-02", "2026-05-03", "2026-05-04"} {
		mustIncrement(t, db, day, "example.com", "c")
	}

	removed, err := PruneStats(ctx, db, 2)
	if err != nil {
		t.Fatalf("PruneStats failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	rows, _ := ListStats(ctx, db, "")
	if len(rows) != 2 || rows[0].DateKey != "2026-05-04" || rows[1].DateKey != "2026-05-03" {
		t.Errorf("remaining rows = %+v", rows)
	}

	var campaignRows int
	if err := db.QueryRow("SELECT COUNT(*) FROM stats_campaigns").Scan(&campaignRows); err != nil {
		t.Fatal(err)
	}
	if campaignRows != 2 {
		t.Errorf("campaign rows = %d, want 2", campaignRows)
	}

	removed, err = PruneStats(ctx, db, 0)
	if err != nil || removed != 0 {
		t.Errorf("PruneStats(0) = %d, %v; want no-op", removed, err)
	}
}
