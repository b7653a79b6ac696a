package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/studyhost/studyhost/internal/middleware"
	"github.com/studyhost/studyhost/internal/services"
	"github.com/studyhost/studyhost/internal/testutil"
)

func newAuthService(t *testing.T) *services.AuthService {
	return &services.AuthService{
		DB:   testutil.OpenTestDB(t),
		Auth: middleware.NewAuth("test-secret", time.Hour),
	}
}

func TestSignupAndLogin(t *testing.T) {
	svc := newAuthService(t)

	user, err := svc.Signup("Researcher@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if user.Email != "researcher@example.com" {
		t.Errorf("Expected lowercased email, got %q", user.Email)
	}
	if user.PasswordHash == "hunter22" || user.PasswordHash == "" {
		t.Error("Password must be stored hashed")
	}

	token, err := svc.Login("researcher@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a token")
	}

	claims, err := svc.Auth.ParseToken(token)
	if err != nil {
		t.Fatalf("Issued token did not parse: %v", err)
	}
	if claims.UID != user.ID {
		t.Errorf("Token uid %q does not match user %q", claims.UID, user.ID)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Signup("not-an-email", "hunter22"); !errors.Is(err, services.ErrValidation) {
		t.Errorf("Expected validation error for bad email, got %v", err)
	}
	if _, err := svc.Signup("ok@example.com", "short"); !errors.Is(err, services.ErrValidation) {
		t.Errorf("Expected validation error for short password, got %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Signup("dup@example.com", "hunter22"); err != nil {
		t.Fatalf("First signup failed: %v", err)
	}
	if _, err := svc.Signup("dup@example.com", "different1"); !errors.Is(err, services.ErrConflict) {
		t.Errorf("Expected conflict for duplicate email, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Signup("r@example.com", "hunter22"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if _, err := svc.Login("r@example.com", "wrongpass"); !errors.Is(err, services.ErrUnauthorized) {
		t.Errorf("Expected unauthorized for wrong password, got %v", err)
	}
	if _, err := svc.Login("missing@example.com", "hunter22"); !errors.Is(err, services.ErrUnauthorized) {
		t.Errorf("Expected unauthorized for unknown email, got %v", err)
	}
}
