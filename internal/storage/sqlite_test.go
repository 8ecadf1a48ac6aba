package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/catfall/litterlog/internal/common"
	"github.com/catfall/litterlog/internal/model"
	"github.com/catfall/litterlog/internal/service"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	storage, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return storage
}

func testVisit(fingerprint string, recordedAt time.Time, weight float64) model.Visit {
	return model.Visit{
		Fingerprint: fingerprint,
		RecordedAt:  recordedAt,
		Weight:      weight,
		Activity:    "Pet Weight Recorded",
		Outcome:     model.OutcomeUnknown,
	}
}

func TestMigrate(t *testing.T) {
	storage := createTestStorage(t)

	// Migrating an already-current database is a no-op
	if err := storage.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var version int
	if err := storage.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to read user_version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestCreateCat(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	cat, err := storage.CreateCat(ctx, "Biscuit", 8.5, nil)
	if err != nil {
		t.Fatalf("CreateCat failed: %v", err)
	}
	if cat.ID == 0 {
		t.Error("expected non-zero cat ID")
	}
	if cat.Name != "Biscuit" {
		t.Errorf("name = %q, want %q", cat.Name, "Biscuit")
	}

	// Duplicate name is rejected
	_, err = storage.CreateCat(ctx, "Biscuit", 9.0, nil)
	if !errors.Is(err, common.ErrDuplicateEntry) {
		t.Errorf("duplicate name error = %v, want ErrDuplicateEntry", err)
	}
}

func TestCreateCatValidation(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		catName      string
		targetWeight float64
	}{
		{"empty name", "", 8.0},
		{"zero weight", "Mochi", 0},
		{"negative weight", "Mochi", -1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := storage.CreateCat(ctx, tt.catName, tt.targetWeight, nil); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestGetCatByNameAndID(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	birthdate := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	created, err := storage.CreateCat(ctx, "Mochi", 12.0, &birthdate)
	if err != nil {
		t.Fatalf("CreateCat failed: %v", err)
	}

	byID, err := storage.GetCatByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetCatByID failed: %v", err)
	}
	if byID.Name != "Mochi" {
		t.Errorf("name = %q, want %q", byID.Name, "Mochi")
	}
	if byID.Birthdate == nil || !byID.Birthdate.Equal(birthdate) {
		t.Errorf("birthdate = %v, want %v", byID.Birthdate, birthdate)
	}

	byName, err := storage.GetCatByName(ctx, "Mochi")
	if err != nil {
		t.Fatalf("GetCatByName failed: %v", err)
	}
	if byName.ID != created.ID {
		t.Errorf("ID = %d, want %d", byName.ID, created.ID)
	}

	if _, err := storage.GetCatByID(ctx, 9999); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing cat error = %v, want ErrNotFound", err)
	}
	if _, err := storage.GetCatByName(ctx, "Nobody"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing cat error = %v, want ErrNotFound", err)
	}
}

func TestDeleteCatRetainsVisits(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	cat, err := storage.CreateCat(ctx, "Biscuit", 8.0, nil)
	if err != nil {
		t.Fatalf("CreateCat failed: %v", err)
	}

	visit := testVisit("fp-delete-cat", time.Now().UTC(), 8.1)
	visit.CatID = &cat.ID
	visit.Outcome = model.OutcomeAssigned
	if _, err := storage.SaveVisits(ctx, []model.Visit{visit}); err != nil {
		t.Fatalf("SaveVisits failed: %v", err)
	}

	if err := storage.DeleteCat(ctx, cat.ID); err != nil {
		t.Fatalf("DeleteCat failed: %v", err)
	}

	visits, err := storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}
	if len(visits) != 1 {
		t.Fatalf("got %d visits after cat deletion, want 1", len(visits))
	}

	if err := storage.DeleteCat(ctx, cat.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestSaveVisitsDeduplication(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	visits := []model.Visit{
		testVisit("fp-1", now, 8.2),
		testVisit("fp-2", now.Add(time.Hour), 11.9),
	}

	inserted, err := storage.SaveVisits(ctx, visits)
	if err != nil {
		t.Fatalf("SaveVisits failed: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}

	// Saving the same fingerprints again inserts nothing
	inserted, err = storage.SaveVisits(ctx, visits)
	if err != nil {
		t.Fatalf("second SaveVisits failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("re-insert = %d, want 0", inserted)
	}

	stored, err := storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("got %d visits, want 2", len(stored))
	}
}

func TestSaveVisitsDoesNotOverwriteCorrections(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	cat, err := storage.CreateCat(ctx, "Biscuit", 8.0, nil)
	if err != nil {
		t.Fatalf("CreateCat failed: %v", err)
	}

	visit := testVisit("fp-corrected", time.Now().UTC(), 8.3)
	if _, err := storage.SaveVisits(ctx, []model.Visit{visit}); err != nil {
		t.Fatalf("SaveVisits failed: %v", err)
	}

	stored, err := storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}
	if err := storage.UpdateVisitAssignment(ctx, stored[0].ID, &cat.ID, model.OutcomeAssigned, "manual"); err != nil {
		t.Fatalf("UpdateVisitAssignment failed: %v", err)
	}

	// Re-importing the same record leaves the correction in place
	if _, err := storage.SaveVisits(ctx, []model.Visit{visit}); err != nil {
		t.Fatalf("re-import failed: %v", err)
	}

	after, err := storage.GetVisitByID(ctx, stored[0].ID)
	if err != nil {
		t.Fatalf("GetVisitByID failed: %v", err)
	}
	if after.CatID == nil || *after.CatID != cat.ID {
		t.Errorf("correction lost: cat_id = %v, want %d", after.CatID, cat.ID)
	}
	if after.Outcome != model.OutcomeAssigned {
		t.Errorf("outcome = %q, want assigned", after.Outcome)
	}
}

func TestSaveVisitsValidation(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.Visit)
		name   string
	}{
		{func(v *model.Visit) { v.Fingerprint = "" }, "missing fingerprint"},
		{func(v *model.Visit) { v.RecordedAt = time.Time{} }, "missing timestamp"},
		{func(v *model.Visit) { v.Activity = "" }, "missing activity"},
		{func(v *model.Visit) { v.Outcome = "bogus" }, "invalid outcome"},
		{func(v *model.Visit) { v.Outcome = model.OutcomeAssigned; v.CatID = nil }, "assigned without cat"},
		{func(v *model.Visit) {
			id := int64(1)
			v.Outcome = model.OutcomeUnknown
			v.CatID = &id
		}, "cat without assigned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visit := testVisit("fp-valid", time.Now().UTC(), 8.0)
			tt.mutate(&visit)
			if _, err := storage.SaveVisits(ctx, []model.Visit{visit}); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestGetVisitsFiltering(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	cat, err := storage.CreateCat(ctx, "Mochi", 12.0, nil)
	if err != nil {
		t.Fatalf("CreateCat failed: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assigned := testVisit("fp-assigned", base, 12.1)
	assigned.CatID = &cat.ID
	assigned.Outcome = model.OutcomeAssigned
	unknown := testVisit("fp-unknown", base.Add(2*time.Hour), 5.0)
	old := testVisit("fp-old", base.Add(-48*time.Hour), 12.0)
	old.CatID = &cat.ID
	old.Outcome = model.OutcomeAssigned

	if _, err := storage.SaveVisits(ctx, []model.Visit{assigned, unknown, old}); err != nil {
		t.Fatalf("SaveVisits failed: %v", err)
	}

	byCat, err := storage.GetVisits(ctx, service.VisitFilter{CatID: &cat.ID})
	if err != nil {
		t.Fatalf("GetVisits by cat failed: %v", err)
	}
	if len(byCat) != 2 {
		t.Errorf("by cat: got %d visits, want 2", len(byCat))
	}

	outcome := model.OutcomeUnknown
	byOutcome, err := storage.GetVisits(ctx, service.VisitFilter{Outcome: &outcome})
	if err != nil {
		t.Fatalf("GetVisits by outcome failed: %v", err)
	}
	if len(byOutcome) != 1 {
		t.Errorf("by outcome: got %d visits, want 1", len(byOutcome))
	}

	start := base.Add(-time.Hour)
	byRange, err := storage.GetVisits(ctx, service.VisitFilter{Start: &start})
	if err != nil {
		t.Fatalf("GetVisits by range failed: %v", err)
	}
	if len(byRange) != 2 {
		t.Errorf("by range: got %d visits, want 2", len(byRange))
	}

	// Newest first
	all, err := storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}
	for i := 1; i < len(all); i++ {
		if all[i].RecordedAt.After(all[i-1].RecordedAt) {
			t.Error("visits not ordered newest first")
		}
	}

	end := base.Add(-2 * time.Hour)
	if _, err := storage.GetVisits(ctx, service.VisitFilter{Start: &start, End: &end}); err == nil {
		t.Error("expected error for inverted date range")
	}
}

func TestGetVisitsForReview(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	cat, err := storage.CreateCat(ctx, "Biscuit", 8.0, nil)
	if err != nil {
		t.Fatalf("CreateCat failed: %v", err)
	}

	now := time.Now().UTC()
	clean := testVisit("fp-clean", now, 8.1)
	clean.CatID = &cat.ID
	clean.Outcome = model.OutcomeAssigned

	flagged := testVisit("fp-flagged", now.Add(time.Minute), 8.2)
	flagged.CatID = &cat.ID
	flagged.Outcome = model.OutcomeAssigned
	flagged.Note = "Matched w/ 8.2 lbs (+3m)"

	unknown := testVisit("fp-review-unknown", now.Add(2*time.Minute), 5.0)
	errVisit := testVisit("fp-review-error", now.Add(3*time.Minute), 0.2)
	errVisit.Outcome = model.OutcomeError
	errVisit.Note = "weight too low (0.2 lbs)"

	system := testVisit("fp-system", now.Add(4*time.Minute), 0)
	system.Activity = "Clean Cycle Complete"
	system.Outcome = model.OutcomeSystem

	if _, err := storage.SaveVisits(ctx, []model.Visit{clean, flagged, unknown, errVisit, system}); err != nil {
		t.Fatalf("SaveVisits failed: %v", err)
	}

	review, err := storage.GetVisitsForReview(ctx)
	if err != nil {
		t.Fatalf("GetVisitsForReview failed: %v", err)
	}
	if len(review) != 3 {
		t.Fatalf("got %d review visits, want 3", len(review))
	}
	for _, v := range review {
		if v.Fingerprint == "fp-clean" || v.Fingerprint == "fp-system" {
			t.Errorf("visit %s should not need review", v.Fingerprint)
		}
	}
}

func TestSetVisitHidden(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	visit := testVisit("fp-hide", time.Now().UTC(), 5.0)
	if _, err := storage.SaveVisits(ctx, []model.Visit{visit}); err != nil {
		t.Fatalf("SaveVisits failed: %v", err)
	}

	if err := storage.SetVisitHidden(ctx, "fp-hide", true); err != nil {
		t.Fatalf("SetVisitHidden failed: %v", err)
	}

	visible, err := storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("got %d visible visits, want 0", len(visible))
	}

	all, err := storage.GetVisits(ctx, service.VisitFilter{IncludeHidden: true})
	if err != nil {
		t.Fatalf("GetVisits with hidden failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d visits including hidden, want 1", len(all))
	}

	// Hidden fingerprints still count as seen for dedup purposes
	fps, err := storage.GetVisitFingerprints(ctx)
	if err != nil {
		t.Fatalf("GetVisitFingerprints failed: %v", err)
	}
	if _, ok := fps["fp-hide"]; !ok {
		t.Error("hidden fingerprint missing from fingerprint set")
	}

	// Unhiding restores visibility
	if err := storage.SetVisitHidden(ctx, "fp-hide", false); err != nil {
		t.Fatalf("unhide failed: %v", err)
	}
	visible, err = storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}
	if len(visible) != 1 {
		t.Errorf("got %d visible visits after restore, want 1", len(visible))
	}

	// No stored visit for the fingerprint is fine
	if err := storage.SetVisitHidden(ctx, "fp-never-imported", true); err != nil {
		t.Errorf("SetVisitHidden on unseen fingerprint = %v, want nil", err)
	}
}

func TestUpdateVisitAssignment(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	cat, err := storage.CreateCat(ctx, "Mochi", 12.0, nil)
	if err != nil {
		t.Fatalf("CreateCat failed: %v", err)
	}

	visit := testVisit("fp-reassign", time.Now().UTC(), 11.0)
	if _, err := storage.SaveVisits(ctx, []model.Visit{visit}); err != nil {
		t.Fatalf("SaveVisits failed: %v", err)
	}
	stored, err := storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}

	if err := storage.UpdateVisitAssignment(ctx, stored[0].ID, &cat.ID, model.OutcomeAssigned, ""); err != nil {
		t.Fatalf("UpdateVisitAssignment failed: %v", err)
	}

	updated, err := storage.GetVisitByID(ctx, stored[0].ID)
	if err != nil {
		t.Fatalf("GetVisitByID failed: %v", err)
	}
	if updated.CatID == nil || *updated.CatID != cat.ID {
		t.Errorf("cat_id = %v, want %d", updated.CatID, cat.ID)
	}

	// Clearing the assignment back to unknown
	if err := storage.UpdateVisitAssignment(ctx, stored[0].ID, nil, model.OutcomeUnknown, ""); err != nil {
		t.Fatalf("clear assignment failed: %v", err)
	}
	cleared, err := storage.GetVisitByID(ctx, stored[0].ID)
	if err != nil {
		t.Fatalf("GetVisitByID failed: %v", err)
	}
	if cleared.CatID != nil {
		t.Errorf("cat_id = %v, want nil", cleared.CatID)
	}

	if err := storage.UpdateVisitAssignment(ctx, 9999, &cat.ID, model.OutcomeAssigned, ""); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing visit error = %v, want ErrNotFound", err)
	}
}

func TestBlacklist(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	entry := model.BlacklistEntry{Fingerprint: "fp-bad", Reason: "ghost reading"}
	if err := storage.AddBlacklistEntry(ctx, entry); err != nil {
		t.Fatalf("AddBlacklistEntry failed: %v", err)
	}

	// Adding the same fingerprint twice is a no-op
	if err := storage.AddBlacklistEntry(ctx, entry); err != nil {
		t.Fatalf("repeat AddBlacklistEntry failed: %v", err)
	}

	entries, err := storage.GetBlacklist(ctx)
	if err != nil {
		t.Fatalf("GetBlacklist failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d blacklist entries, want 1", len(entries))
	}
	if entries[0].Reason != "ghost reading" {
		t.Errorf("reason = %q, want %q", entries[0].Reason, "ghost reading")
	}

	fps, err := storage.GetBlacklistFingerprints(ctx)
	if err != nil {
		t.Fatalf("GetBlacklistFingerprints failed: %v", err)
	}
	if _, ok := fps["fp-bad"]; !ok {
		t.Error("fingerprint missing from blacklist set")
	}

	if err := storage.RemoveBlacklistEntry(ctx, "fp-bad"); err != nil {
		t.Fatalf("RemoveBlacklistEntry failed: %v", err)
	}
	if err := storage.RemoveBlacklistEntry(ctx, "fp-bad"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("second remove error = %v, want ErrNotFound", err)
	}
}

func TestImportBatches(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	first := &model.ImportBatch{
		ID:         "batch-1",
		Filename:   "export-jan.csv",
		CreatedAt:  time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		Accepted:   40,
		Duplicates: 2,
		Unknown:    3,
	}
	second := &model.ImportBatch{
		ID:          "batch-2",
		Filename:    "export-feb.csv",
		CreatedAt:   time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC),
		Accepted:    55,
		Blacklisted: 1,
	}

	if err := storage.SaveImportBatch(ctx, first); err != nil {
		t.Fatalf("SaveImportBatch failed: %v", err)
	}
	if err := storage.SaveImportBatch(ctx, second); err != nil {
		t.Fatalf("SaveImportBatch failed: %v", err)
	}

	if err := storage.SetImportBackupPath(ctx, "batch-2", "/backups/batch-2.db"); err != nil {
		t.Fatalf("SetImportBackupPath failed: %v", err)
	}

	batches, err := storage.GetImportBatches(ctx, 0)
	if err != nil {
		t.Fatalf("GetImportBatches failed: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[0].ID != "batch-2" {
		t.Errorf("newest batch = %q, want batch-2", batches[0].ID)
	}
	if batches[0].BackupPath != "/backups/batch-2.db" {
		t.Errorf("backup path = %q, want /backups/batch-2.db", batches[0].BackupPath)
	}

	limited, err := storage.GetImportBatches(ctx, 1)
	if err != nil {
		t.Fatalf("limited GetImportBatches failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d batches with limit 1, want 1", len(limited))
	}
}

func TestTransactionAtomicity(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	visits := []model.Visit{testVisit("fp-tx", time.Now().UTC(), 8.0)}
	batch := &model.ImportBatch{ID: "batch-tx", Filename: "export.csv", Accepted: 1}

	tx, err := storage.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	if _, err := tx.SaveVisits(ctx, visits); err != nil {
		t.Fatalf("tx SaveVisits failed: %v", err)
	}
	if err := tx.SaveImportBatch(ctx, batch); err != nil {
		t.Fatalf("tx SaveImportBatch failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	// Nothing persisted after rollback
	stored, err := storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("got %d visits after rollback, want 0", len(stored))
	}
	batches, err := storage.GetImportBatches(ctx, 0)
	if err != nil {
		t.Fatalf("GetImportBatches failed: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("got %d batches after rollback, want 0", len(batches))
	}

	// Committed transaction persists both sides
	tx, err = storage.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	if _, err := tx.SaveVisits(ctx, visits); err != nil {
		t.Fatalf("tx SaveVisits failed: %v", err)
	}
	if err := tx.SaveImportBatch(ctx, batch); err != nil {
		t.Fatalf("tx SaveImportBatch failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	stored, err = storage.GetVisits(ctx, service.VisitFilter{})
	if err != nil {
		t.Fatalf("GetVisits failed: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("got %d visits after commit, want 1", len(stored))
	}
}
