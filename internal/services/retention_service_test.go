package services_test

import (
	"testing"
	"time"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/storage"
	"github.com/studyhost/studyhost/internal/testutil"
	"gorm.io/gorm"
)

// sweepFixture is one experiment with a frozen clock for sweep scenarios
type sweepFixture struct {
	db   *gorm.DB
	svc  *services.RetentionService
	user *models.User
	exp  *models.Experiment
	now  time.Time
}

func newSweepFixture(t *testing.T, autoDeleteDays int, live bool) *sweepFixture {
	db := testutil.OpenTestDB(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	user := createUser(t, db, "owner@example.com")
	exp := models.Experiment{
		UserID:         user.ID,
		Title:          "Lexical Decision",
		Live:           live,
		AutoDeleteDays: autoDeleteDays,
	}
	if err := db.Create(&exp).Error; err != nil {
		t.Fatalf("Failed to create experiment: %v", err)
	}

	return &sweepFixture{
		db:   db,
		user: user,
		exp:  &exp,
		now:  now,
		svc: &services.RetentionService{
			DB:     db,
			Assets: storage.NewStore(t.TempDir()),
			Now:    func() time.Time { return now },
		},
	}
}

// addRow inserts a data row synced (or not) with the given age in days
func (f *sweepFixture) addRow(t *testing.T, sessionID string, synced bool, ageDays int) *models.ExperimentData {
	t.Helper()
	row := models.ExperimentData{
		ExperimentID: f.exp.ID,
		SessionID:    sessionID,
		Data:         testutil.JSONPayload(`[{"rt": 400}]`),
		SyncedToOSF:  synced,
	}
	if synced {
		at := f.now.AddDate(0, 0, -ageDays)
		row.SyncedAt = &at
	}
	if err := f.db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to create data row: %v", err)
	}
	if !synced && ageDays > 0 {
		// Backdate created_at to prove age alone never qualifies a row
		created := f.now.AddDate(0, 0, -ageDays)
		f.db.Model(&row).Update("created_at", created)
	}
	return &row
}

func (f *sweepFixture) rowCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	f.db.Model(&models.ExperimentData{}).Where("experiment_id = ?", f.exp.ID).Count(&count)
	return count
}

func TestSweepDeletesAgedSyncedRows(t *testing.T) {
	f := newSweepFixture(t, 7, true)
	f.addRow(t, "old-synced", true, 10)
	f.addRow(t, "fresh-synced", true, 1)
	f.addRow(t, "old-unsynced", false, 30)

	summary, err := f.svc.SweepUser(f.user.ID)
	if err != nil {
		t.Fatalf("SweepUser failed: %v", err)
	}

	if summary.TotalDeleted != 1 {
		t.Errorf("Expected 1 deleted row, got %d", summary.TotalDeleted)
	}
	if f.rowCount(t) != 2 {
		t.Errorf("Expected 2 remaining rows, got %d", f.rowCount(t))
	}

	// The unsynced row must still be there regardless of its age
	var unsynced models.ExperimentData
	if err := f.db.First(&unsynced, "session_id = ?", "old-unsynced").Error; err != nil {
		t.Error("Unsynced row was deleted by the sweep")
	}
}

func TestSweepNeverTouchesUnsyncedRows(t *testing.T) {
	f := newSweepFixture(t, 1, true)
	f.addRow(t, "ancient-1", false, 300)
	f.addRow(t, "ancient-2", false, 300)

	summary, err := f.svc.SweepUser(f.user.ID)
	if err != nil {
		t.Fatalf("SweepUser failed: %v", err)
	}
	if summary.TotalDeleted != 0 {
		t.Errorf("Expected no deletions, got %d", summary.TotalDeleted)
	}
	if f.rowCount(t) != 2 {
		t.Errorf("Expected both rows to survive, got %d", f.rowCount(t))
	}
}

func TestSweepSkipsDisabledExperiments(t *testing.T) {
	f := newSweepFixture(t, 0, true)
	f.addRow(t, "old-synced", true, 100)

	summary, err := f.svc.SweepUser(f.user.ID)
	if err != nil {
		t.Fatalf("SweepUser failed: %v", err)
	}
	if summary.TotalDeleted != 0 {
		t.Errorf("Auto-delete disabled but %d rows deleted", summary.TotalDeleted)
	}
}

func TestSweepRetiresEmptiedExperiment(t *testing.T) {
	f := newSweepFixture(t, 7, true)
	f.addRow(t, "only-row", true, 10)

	summary, err := f.svc.SweepUser(f.user.ID)
	if err != nil {
		t.Fatalf("SweepUser failed: %v", err)
	}
	if summary.TotalDeleted != 1 {
		t.Fatalf("Expected 1 deleted row, got %d", summary.TotalDeleted)
	}
	if len(summary.Experiments) != 1 || !summary.Experiments[0].Retired {
		t.Error("Expected the emptied experiment to be reported as retired")
	}

	var exp models.Experiment
	if err := f.db.First(&exp, "id = ?", f.exp.ID).Error; err != nil {
		t.Fatalf("Failed to reload experiment: %v", err)
	}
	if exp.Live {
		t.Error("Emptied experiment must be forced out of live")
	}
}

func TestSweepKeepsLiveWhenRowsRemain(t *testing.T) {
	f := newSweepFixture(t, 7, true)
	f.addRow(t, "old-synced", true, 10)
	f.addRow(t, "fresh-unsynced", false, 0)

	if _, err := f.svc.SweepUser(f.user.ID); err != nil {
		t.Fatalf("SweepUser failed: %v", err)
	}

	var exp models.Experiment
	f.db.First(&exp, "id = ?", f.exp.ID)
	if !exp.Live {
		t.Error("Experiment with remaining rows must stay live")
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newSweepFixture(t, 7, true)
	f.addRow(t, "old-synced", true, 10)
	f.addRow(t, "fresh-synced", true, 1)

	first, err := f.svc.SweepUser(f.user.ID)
	if err != nil {
		t.Fatalf("First sweep failed: %v", err)
	}
	if first.TotalDeleted != 1 {
		t.Fatalf("Expected 1 deleted row, got %d", first.TotalDeleted)
	}

	second, err := f.svc.SweepUser(f.user.ID)
	if err != nil {
		t.Fatalf("Second sweep failed: %v", err)
	}
	if second.TotalDeleted != 0 {
		t.Errorf("Second sweep deleted %d rows, expected 0", second.TotalDeleted)
	}
}

func TestSweepAllCrossesOwners(t *testing.T) {
	db := testutil.OpenTestDB(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := &services.RetentionService{
		DB:     db,
		Assets: storage.NewStore(t.TempDir()),
		Now:    func() time.Time { return now },
	}

	for _, email := range []string{"a@example.com", "b@example.com"} {
		user := createUser(t, db, email)
		exp := models.Experiment{UserID: user.ID, Title: "T", AutoDeleteDays: 7}
		if err := db.Create(&exp).Error; err != nil {
			t.Fatalf("Failed to create experiment: %v", err)
		}
		at := now.AddDate(0, 0, -10)
		row := models.ExperimentData{
			ExperimentID: exp.ID,
			SessionID:    "s-" + email,
			Data:         testutil.JSONPayload(`{}`),
			SyncedToOSF:  true,
			SyncedAt:     &at,
		}
		if err := db.Create(&row).Error; err != nil {
			t.Fatalf("Failed to create data row: %v", err)
		}
	}

	summary, err := svc.SweepAll()
	if err != nil {
		t.Fatalf("SweepAll failed: %v", err)
	}
	if summary.TotalDeleted != 2 {
		t.Errorf("Expected 2 deleted rows across owners, got %d", summary.TotalDeleted)
	}
}
