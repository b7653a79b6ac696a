package services_test

import (
	"testing"

	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/storage"
	"github.com/studyhost/studyhost/internal/testutil"
	"gorm.io/gorm"
)

func newExperimentService(t *testing.T) (*services.ExperimentService, *gorm.DB) {
	db := testutil.OpenTestDB(t)
	return &services.ExperimentService{
		DB:     db,
		Assets: storage.NewStore(t.TempDir()),
	}, db
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return &user
}

func TestCreateExperiment(t *testing.T) {
	svc, db := newExperimentService(t)
	user := createUser(t, db, "owner@example.com")

	exp, err := svc.Create(user.ID, "Stroop Task", "A color-word task")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if exp.ID == "" {
		t.Error("Expected a generated id")
	}
	if exp.Live {
		t.Error("New experiments must start as drafts")
	}
	if exp.CompletionCode != "" {
		t.Error("New experiments must not have a completion code")
	}
}

func TestCreateExperimentRequiresTitle(t *testing.T) {
	svc, db := newExperimentService(t)
	user := createUser(t, db, "owner@example.com")

	if _, err := svc.Create(user.ID, "   ", ""); err == nil {
		t.Fatal("Expected validation error for empty title")
	}
}

func TestToggleLiveGeneratesCodeOnce(t *testing.T) {
	svc, db := newExperimentService(t)
	user := createUser(t, db, "owner@example.com")
	exp, _ := svc.Create(user.ID, "Stroop Task", "")

	// First activation generates the code
	exp, err := svc.ToggleLive(user.ID, exp.ID)
	if err != nil {
		t.Fatalf("ToggleLive failed: %v", err)
	}
	if !exp.Live {
		t.Error("Expected experiment to be live")
	}
	code := exp.CompletionCode
	if len(code) != 8 {
		t.Fatalf("Expected 8 character completion code, got %q", code)
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			t.Errorf("Completion code contains invalid character %q", r)
		}
	}

	// Deactivate, then reactivate: the code must not change
	exp, err = svc.ToggleLive(user.ID, exp.ID)
	if err != nil {
		t.Fatalf("ToggleLive failed: %v", err)
	}
	if exp.Live {
		t.Error("Expected experiment to be back in draft")
	}
	if exp.CompletionCode != code {
		t.Errorf("Completion code changed on deactivation: %q != %q", exp.CompletionCode, code)
	}

	exp, err = svc.ToggleLive(user.ID, exp.ID)
	if err != nil {
		t.Fatalf("ToggleLive failed: %v", err)
	}
	if exp.CompletionCode != code {
		t.Errorf("Completion code changed on reactivation: %q != %q", exp.CompletionCode, code)
	}

	// The persisted row must agree
	var stored models.Experiment
	if err := db.First(&stored, "id = ?", exp.ID).Error; err != nil {
		t.Fatalf("Failed to reload experiment: %v", err)
	}
	if stored.CompletionCode != code {
		t.Errorf("Stored completion code %q does not match %q", stored.CompletionCode, code)
	}
}

func TestToggleLiveOwnership(t *testing.T) {
	svc, db := newExperimentService(t)
	owner := createUser(t, db, "owner@example.com")
	other := createUser(t, db, "other@example.com")
	exp, _ := svc.Create(owner.ID, "Stroop Task", "")

	if _, err := svc.ToggleLive(other.ID, exp.ID); err != services.ErrNotFound {
		t.Fatalf("Expected ErrNotFound for non-owner, got %v", err)
	}
}

func TestSetAutoDeleteBounds(t *testing.T) {
	svc, db := newExperimentService(t)
	user := createUser(t, db, "owner@example.com")
	exp, _ := svc.Create(user.ID, "Stroop Task", "")

	if _, err := svc.SetAutoDelete(user.ID, exp.ID, -1); err == nil {
		t.Error("Expected validation error for negative days")
	}
	if _, err := svc.SetAutoDelete(user.ID, exp.ID, 366); err == nil {
		t.Error("Expected validation error for days > 365")
	}

	exp, err := svc.SetAutoDelete(user.ID, exp.ID, 30)
	if err != nil {
		t.Fatalf("SetAutoDelete failed: %v", err)
	}
	if exp.AutoDeleteDays != 30 {
		t.Errorf("Expected 30 days, got %d", exp.AutoDeleteDays)
	}

	// 0 disables the policy
	exp, err = svc.SetAutoDelete(user.ID, exp.ID, 0)
	if err != nil {
		t.Fatalf("SetAutoDelete failed: %v", err)
	}
	if exp.AutoDeleteDays != 0 {
		t.Errorf("Expected 0 days, got %d", exp.AutoDeleteDays)
	}
}

func TestDeleteExperimentCascades(t *testing.T) {
	svc, db := newExperimentService(t)
	user := createUser(t, db, "owner@example.com")
	exp, _ := svc.Create(user.ID, "Stroop Task", "")

	row := models.ExperimentData{
		ExperimentID: exp.ID,
		SessionID:    "sess-1",
		Data:         testutil.JSONPayload(`[{"rt": 512}]`),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to create data row: %v", err)
	}

	if err := svc.Delete(user.ID, exp.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var count int64
	db.Model(&models.ExperimentData{}).Where("experiment_id = ?", exp.ID).Count(&count)
	if count != 0 {
		t.Errorf("Expected data rows to be deleted, found %d", count)
	}
	if _, err := svc.Get(user.ID, exp.ID); err != services.ErrNotFound {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestGenerateCompletionCodeUniqueEnough(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := services.GenerateCompletionCode()
		if err != nil {
			t.Fatalf("GenerateCompletionCode failed: %v", err)
		}
		if seen[code] {
			t.Fatalf("Duplicate completion code %q in 100 draws", code)
		}
		seen[code] = true
	}
}
