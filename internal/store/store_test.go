package store

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/dukerupert/zenith/internal/database"
	"github.com/dukerupert/zenith/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTimestampRoundTrip(t *testing.T) {
	cases := []time.Time{
		time.Date(2025, 1, 10, 13, 45, 30, 123456000, time.UTC),
		time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2262, 4, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(1677, 9, 20, 0, 0, 0, 0, time.UTC),
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, in := range cases {
		v, err := FromTime(in).Value()
		if err != nil {
			t.Fatalf("value %v: %v", in, err)
		}

		var out Timestamp
		if err := out.Scan(v); err != nil {
			t.Fatalf("scan %v: %v", in, err)
		}
		if !out.Time().Equal(in) {
			t.Errorf("round trip = %v, want %v", out.Time(), in)
		}
	}
}

func TestTimestampTruncatesToMicroseconds(t *testing.T) {
	in := time.Date(2025, 1, 10, 13, 45, 30, 123456789, time.UTC)
	v, _ := FromTime(in).Value()

	var out Timestamp
	if err := out.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if want := in.Truncate(time.Microsecond); !out.Time().Equal(want) {
		t.Errorf("round trip = %v, want %v", out.Time(), want)
	}
}

func TestTimestampOutOfRange(t *testing.T) {
	if _, err := (Timestamp{Seconds: math.MaxInt64 / 2}).Value(); err == nil {
		t.Error("expected error for a timestamp past the storable range")
	}
}

func TestTimestampBeforeEpoch(t *testing.T) {
	in := time.Date(1969, 12, 31, 23, 59, 59, 500000, time.UTC)
	v, _ := FromTime(in).Value()

	var out Timestamp
	if err := out.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !out.Time().Equal(in) {
		t.Errorf("round trip = %v, want %v", out.Time(), in)
	}
	if out.Nanos < 0 {
		t.Errorf("nanos = %d, want non-negative", out.Nanos)
	}
}

func TestTimestampScanRejectsText(t *testing.T) {
	var ts Timestamp
	if err := ts.Scan("2025-01-10"); err == nil {
		t.Error("expected error scanning string")
	}
}

func TestPaths(t *testing.T) {
	cases := map[string]string{
		UserPath("u1"):             "users/u1",
		TaskPath("u1", "t1"):       "users/u1/tasks/t1",
		MissionPath("u1", "m1"):    "users/u1/missions/m1",
		GoalPath("u1", "m1", "g1"): "users/u1/missions/m1/goals/g1",
		EventPath("u1", "e1"):      "users/u1/timetableEvents/e1",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("path = %q, want %q", got, want)
		}
	}
}

func TestProfileMerge(t *testing.T) {
	db := setupTestDB(t)
	s := NewProfileStore(db)
	ctx := context.Background()

	p, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p != nil {
		t.Fatal("expected nil profile before first merge")
	}

	name := "Ada"
	height := 180.0
	p, err = s.Merge(ctx, "u1", model.ProfileUpdate{Name: &name, Height: &height})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if p.Name != "Ada" || p.Height == nil || *p.Height != 180 {
		t.Errorf("profile = %+v", p)
	}
	if p.BMI != nil {
		t.Error("bmi should be nil without weight")
	}

	weight := 81.0
	p, err = s.Merge(ctx, "u1", model.ProfileUpdate{Weight: &weight})
	if err != nil {
		t.Fatalf("merge weight: %v", err)
	}
	if p.Name != "Ada" {
		t.Errorf("name = %q, want Ada (kept by merge)", p.Name)
	}
	if p.BMI == nil || *p.BMI != 25 {
		t.Errorf("bmi = %v, want 25", p.BMI)
	}
}

