package persistence

import (
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	if err := Reset(); err != nil {
		t.Fatalf("Failed to reset database: %v", err)
	}
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := Initialize(dbPath); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { _ = Reset() })
}

func testRecord(id, step string) *ProjectRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return &ProjectRecord{
		ID:             id,
		Step:           step,
		Snapshot:       `{"project_id":"` + id + `","step":"` + step + `"}`,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

func TestUpsertAndGetProject(t *testing.T) {
	setupTestDB(t)
	ops := Ops()

	rec := testRecord("proj-1", "PHOTOS")
	if err := ops.UpsertProject(rec); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}

	loaded, err := ops.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if loaded.Step != "PHOTOS" || loaded.Snapshot != rec.Snapshot {
		t.Errorf("Unexpected record: %+v", loaded)
	}
	if loaded.CompletedAt != nil {
		t.Error("Expected nil completed_at")
	}

	// Upsert replaces the snapshot in place.
	rec.Step = "SCAN"
	rec.Snapshot = `{"project_id":"proj-1","step":"SCAN"}`
	completed := time.Now().UTC().Truncate(time.Second)
	rec.CompletedAt = &completed
	if err := ops.UpsertProject(rec); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	loaded, err = ops.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject after update failed: %v", err)
	}
	if loaded.Step != "SCAN" {
		t.Errorf("Expected updated step SCAN, got %s", loaded.Step)
	}
	if loaded.CompletedAt == nil || !loaded.CompletedAt.Equal(completed) {
		t.Errorf("Expected completed_at %v, got %v", completed, loaded.CompletedAt)
	}
}

func TestGetProject_NotFound(t *testing.T) {
	setupTestDB(t)
	if _, err := Ops().GetProject("missing"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListActiveProjects_SkipsTerminal(t *testing.T) {
	setupTestDB(t)
	ops := Ops()

	for _, rec := range []*ProjectRecord{
		testRecord("active-1", "INTAKE"),
		testRecord("active-2", "COMPLETED"),
		testRecord("gone-1", "ABANDONED"),
		testRecord("gone-2", "CANCELLED"),
	} {
		if err := ops.UpsertProject(rec); err != nil {
			t.Fatalf("UpsertProject failed: %v", err)
		}
	}

	active, err := ops.ListActiveProjects()
	if err != nil {
		t.Fatalf("ListActiveProjects failed: %v", err)
	}

	ids := make(map[string]bool)
	for _, rec := range active {
		ids[rec.ID] = true
	}
	// Completed projects stay listed: their retention timers must rearm
	// after a restart.
	if len(active) != 2 || !ids["active-1"] || !ids["active-2"] {
		t.Errorf("Unexpected active set: %v", ids)
	}
}

func TestDeleteProject_RemovesJournal(t *testing.T) {
	setupTestDB(t)
	ops := Ops()

	if err := ops.UpsertProject(testRecord("proj-2", "PHOTOS")); err != nil {
		t.Fatalf("UpsertProject failed: %v", err)
	}
	if err := ops.AppendSignal("proj-2", "sig-1", "add_photo", `{"photo_id":"p1"}`, time.Now().UTC()); err != nil {
		t.Fatalf("AppendSignal failed: %v", err)
	}

	if err := ops.DeleteProject("proj-2"); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	if _, err := ops.GetProject("proj-2"); err != ErrNotFound {
		t.Errorf("Expected project gone, got %v", err)
	}
	entries, err := ops.GetJournal("proj-2")
	if err != nil {
		t.Fatalf("GetJournal failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty journal after delete, got %d entries", len(entries))
	}
}

func TestJournalOrdering(t *testing.T) {
	setupTestDB(t)
	ops := Ops()

	now := time.Now().UTC()
	for i, sigType := range []string{"add_photo", "add_photo", "confirm_photos"} {
		id := string(rune('a' + i))
		if err := ops.AppendSignal("proj-3", id, sigType, "", now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("AppendSignal %d failed: %v", i, err)
		}
	}

	entries, err := ops.GetJournal("proj-3")
	if err != nil {
		t.Fatalf("GetJournal failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			t.Errorf("Journal out of order at %d: %d <= %d", i, entries[i].Seq, entries[i-1].Seq)
		}
	}
	if entries[2].SignalType != "confirm_photos" {
		t.Errorf("Unexpected final entry: %+v", entries[2])
	}
}
