package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/studyhost/studyhost/internal/handlers"
	"github.com/studyhost/studyhost/internal/middleware"
	"github.com/studyhost/studyhost/internal/models"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/storage"
	"github.com/studyhost/studyhost/internal/testutil"
	"github.com/studyhost/studyhost/internal/types"
	"github.com/studyhost/studyhost/internal/utils"
	"gorm.io/gorm"
)

// setupExperimentApp wires the authenticated experiment routes the way the
// server does, including the bearer token gate and the error handler that
// shapes middleware errors.
func setupExperimentApp(t *testing.T) (*fiber.App, *gorm.DB, *middleware.Auth) {
	t.Helper()

	db := testutil.OpenTestDB(t)
	auth := middleware.NewAuth("test-secret", time.Hour)

	handler := &handlers.ExperimentHandler{
		Service:   &services.ExperimentService{DB: db, Assets: storage.NewStore(t.TempDir())},
		PublicURL: "https://studies.example.com",
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var ce *types.CustomError
			if errors.As(err, &ce) {
				return utils.ErrorResponse(c, ce.Message, ce.Code, ce.Type)
			}
			return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "unknown")
		},
	})

	api := app.Group("/api", auth.RequireUser())
	api.Post("/experiments", handler.Create)
	api.Get("/experiments", handler.List)
	api.Get("/experiments/:id", handler.Get)
	api.Patch("/experiments/:id/live", handler.ToggleLive)

	return app, db, auth
}

// signupExperimentUser creates a user and returns a valid bearer token
func signupExperimentUser(t *testing.T, db *gorm.DB, auth *middleware.Auth) (*models.User, string) {
	t.Helper()

	user := models.User{Email: "researcher@example.com", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	token, err := auth.SignToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return &user, token
}

func TestExperimentsRequireToken(t *testing.T) {
	app, _, _ := setupExperimentApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/experiments", nil))
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Errorf("Expected status 401 without token, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["type"] != "auth.token.missing" {
		t.Errorf("Expected type auth.token.missing, got %v", result["type"])
	}

	req := httptest.NewRequest("GET", "/api/experiments", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Errorf("Expected status 401 with garbage token, got %d", resp.StatusCode)
	}
}

func TestCreateAndListExperiments(t *testing.T) {
	app, db, auth := setupExperimentApp(t)
	_, token := signupExperimentUser(t, db, auth)

	body, _ := json.Marshal(map[string]string{
		"title":       "Stroop task",
		"description": "Color word interference",
	})
	req := httptest.NewRequest("POST", "/api/experiments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var created map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created["live"] != false {
		t.Error("Expected a new experiment to be a draft")
	}
	if created["completion_code"] != "" {
		t.Errorf("Expected no completion code on a draft, got %v", created["completion_code"])
	}
	if created["public_url"] != "" {
		t.Errorf("Expected no public URL on a draft, got %v", created["public_url"])
	}

	req = httptest.NewRequest("GET", "/api/experiments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}

	var list []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 experiment, got %d", len(list))
	}
	if list[0]["title"] != "Stroop task" {
		t.Errorf("Unexpected title: %v", list[0]["title"])
	}
}

func TestToggleLiveEndpoint(t *testing.T) {
	app, db, auth := setupExperimentApp(t)
	user, token := signupExperimentUser(t, db, auth)

	exp := models.Experiment{UserID: user.ID, Title: "Lexical decision"}
	if err := db.Create(&exp).Error; err != nil {
		t.Fatalf("Failed to create experiment: %v", err)
	}

	req := httptest.NewRequest("PATCH", "/api/experiments/"+exp.ID+"/live", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["live"] != true {
		t.Error("Expected live=true after first toggle")
	}
	code, _ := result["completion_code"].(string)
	if len(code) != 8 {
		t.Errorf("Expected an 8 character completion code, got %q", code)
	}
	wantURL := "https://studies.example.com/run/" + exp.ID
	if result["public_url"] != wantURL {
		t.Errorf("Expected public_url %q, got %v", wantURL, result["public_url"])
	}

	// Toggling back off keeps the code but clears the public URL.
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["live"] != false {
		t.Error("Expected live=false after second toggle")
	}
	if result["completion_code"] != code {
		t.Errorf("Expected completion code %q to be kept, got %v", code, result["completion_code"])
	}
	if result["public_url"] != "" {
		t.Errorf("Expected empty public_url when not live, got %v", result["public_url"])
	}
}

func TestGetExperimentScopedToOwner(t *testing.T) {
	app, db, auth := setupExperimentApp(t)
	_, token := signupExperimentUser(t, db, auth)

	other := models.User{Email: "other@example.com", PasswordHash: "x"}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	exp := models.Experiment{UserID: other.ID, Title: "Not yours"}
	if err := db.Create(&exp).Error; err != nil {
		t.Fatalf("Failed to create experiment: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/experiments/"+exp.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("Expected status 404 for another owner's experiment, got %d", resp.StatusCode)
	}
}
