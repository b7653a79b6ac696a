package services_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/storage"
	"github.com/studyhost/studyhost/internal/testutil"
	"gorm.io/gorm"
)

func newCollectionFixture(t *testing.T, live bool) (*services.CollectionService, *gorm.DB, *models.Experiment, string) {
	db := testutil.OpenTestDB(t)
	dir := t.TempDir()

	user := createUser(t, db, "owner@example.com")
	exp := models.Experiment{UserID: user.ID, Title: "Flanker", Live: live}
	if err := db.Create(&exp).Error; err != nil {
		t.Fatalf("Failed to create experiment: %v", err)
	}

	svc := &services.CollectionService{DB: db, Assets: storage.NewStore(dir)}
	return svc, db, &exp, dir
}

func TestSubmitStoresRowAndMirror(t *testing.T) {
	svc, db, exp, dir := newCollectionFixture(t, true)

	row, err := svc.Submit(exp.ID, services.Submission{
		SessionID:   "sess-1",
		ProlificPID: "PID123",
		Data:        json.RawMessage(`[{"rt": 431, "correct": true}]`),
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if row.ID == "" {
		t.Error("Expected a generated row id")
	}
	if row.SyncedToOSF {
		t.Error("New rows must start unsynced")
	}
	if row.SyncedAt != nil {
		t.Error("New rows must not carry a synced_at timestamp")
	}

	var stored models.ExperimentData
	if err := db.First(&stored, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("Row not persisted: %v", err)
	}
	if stored.ProlificPID != "PID123" {
		t.Errorf("Expected prolific pid to persist, got %q", stored.ProlificPID)
	}

	// One mirror file lands under the experiment's data directory
	mirrors, err := filepath.Glob(filepath.Join(dir, "experiments", exp.ID, "data", "sess-1_*.json"))
	if err != nil || len(mirrors) != 1 {
		t.Fatalf("Expected exactly one session mirror, got %v (err %v)", mirrors, err)
	}
	payload, _ := os.ReadFile(mirrors[0])
	if string(payload) != `[{"rt": 431, "correct": true}]` {
		t.Errorf("Mirror content mismatch: %s", payload)
	}
}

func TestSubmitRejectsUnknownExperiment(t *testing.T) {
	svc, _, _, _ := newCollectionFixture(t, true)

	_, err := svc.Submit("no-such-id", services.Submission{
		SessionID: "s", Data: json.RawMessage(`{}`),
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSubmitRejectsDraftExperiment(t *testing.T) {
	svc, db, exp, _ := newCollectionFixture(t, false)

	_, err := svc.Submit(exp.ID, services.Submission{
		SessionID: "s", Data: json.RawMessage(`{}`),
	})
	if !errors.Is(err, services.ErrNotLive) {
		t.Errorf("Expected ErrNotLive, got %v", err)
	}

	var count int64
	db.Model(&models.ExperimentData{}).Count(&count)
	if count != 0 {
		t.Error("Rejected submission must not write a row")
	}
}

func TestSubmitValidatesEnvelope(t *testing.T) {
	svc, _, exp, _ := newCollectionFixture(t, true)

	cases := []services.Submission{
		{SessionID: "", Data: json.RawMessage(`{}`)},
		{SessionID: "s", Data: nil},
		{SessionID: "s", Data: json.RawMessage(`null`)},
	}
	for i, sub := range cases {
		if _, err := svc.Submit(exp.ID, sub); !errors.Is(err, services.ErrValidation) {
			t.Errorf("Case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestSubmitAllowsDuplicateSessions(t *testing.T) {
	svc, db, exp, _ := newCollectionFixture(t, true)

	for i := 0; i < 2; i++ {
		if _, err := svc.Submit(exp.ID, services.Submission{
			SessionID: "same-session", Data: json.RawMessage(`{"n": 1}`),
		}); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	var count int64
	db.Model(&models.ExperimentData{}).Where("session_id = ?", "same-session").Count(&count)
	if count != 2 {
		t.Errorf("Expected duplicate submissions to append, got %d rows", count)
	}
}
