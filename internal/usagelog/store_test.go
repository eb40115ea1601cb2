package usagelog

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ParamSingh24/PrakashAI/internal/ledger"
)

func testStore(t *testing.T, retention int) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, retention)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func entryAt(end time.Time, applianceID string, kwh float64) Entry {
	return Entry{
		ApplianceID:     applianceID,
		Start:           end.Add(-time.Hour),
		End:             end,
		DurationSeconds: 3600,
		EnergyKWh:       kwh,
		Trigger:         "manual",
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := testStore(t, 0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := entryAt(base.Add(time.Duration(i)*time.Hour), "ac123", float64(i+1))
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}
	// Newest first.
	if got[0].EnergyKWh != 3 || got[1].EnergyKWh != 2 {
		t.Errorf("wrong order: %v, %v", got[0].EnergyKWh, got[1].EnergyKWh)
	}
	if got[0].ID == "" {
		t.Error("entry ID was not generated")
	}
	if !got[0].End.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("End = %v, want %v", got[0].End, base.Add(2*time.Hour))
	}
}

func TestRetentionTrimsOldest(t *testing.T) {
	s := testStore(t, 5)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		e := entryAt(base.Add(time.Duration(i)*time.Hour), "ac123", float64(i))
		e.ID = fmt.Sprintf("e%02d", i)
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Errorf("Count = %d, want 5", n)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	// Oldest three were trimmed; survivors are e03..e07 oldest first.
	if all[0].ID != "e03" || all[len(all)-1].ID != "e07" {
		t.Errorf("unexpected survivors: first %s, last %s", all[0].ID, all[len(all)-1].ID)
	}
}

func TestByAppliance(t *testing.T) {
	s := testStore(t, 0)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		id := "fan01"
		if i%2 == 0 {
			id = "ac123"
		}
		if err := s.Append(ctx, entryAt(base.Add(time.Duration(i)*time.Hour), id, 1)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.ByAppliance(ctx, "fan01", 0)
	if err != nil {
		t.Fatalf("ByAppliance: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.ApplianceID != "fan01" {
			t.Errorf("entry for wrong appliance: %s", e.ApplianceID)
		}
	}
}

func TestRecordSession(t *testing.T) {
	s := testStore(t, 0)
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	err := s.RecordSession(ctx, ledger.Session{
		ApplianceID:     "ac123",
		ApplianceName:   "Living Room AC",
		Start:           start,
		End:             start.Add(90 * time.Minute),
		DurationSeconds: 5400,
		EnergyKWh:       2.25,
		Trigger:         ledger.TriggerMaxDuration,
	})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d entries, want 1", len(all))
	}
	e := all[0]
	if e.ApplianceID != "ac123" || e.Trigger != "max_duration" {
		t.Errorf("entry = %+v", e)
	}
	if e.EnergyKWh != 2.25 || e.DurationSeconds != 5400 {
		t.Errorf("entry values = %+v", e)
	}
}
