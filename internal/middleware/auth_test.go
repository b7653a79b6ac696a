package middleware_test

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/studyhost/studyhost/internal/middleware"
)

func TestSignAndParseToken(t *testing.T) {
	auth := middleware.NewAuth("test-secret", time.Hour)

	token, err := auth.SignToken("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	claims, err := auth.ParseToken(token)
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if claims.UID != "user-1" {
		t.Errorf("Expected uid user-1, got %q", claims.UID)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("Expected email a@b.com, got %q", claims.Email)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	auth := middleware.NewAuth("test-secret", time.Hour)
	other := middleware.NewAuth("another-secret", time.Hour)

	token, err := auth.SignToken("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := other.ParseToken(token); err == nil {
		t.Error("Expected a token signed with a different secret to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := middleware.NewAuth("test-secret", -time.Minute)

	token, err := auth.SignToken("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := auth.ParseToken(token); err == nil {
		t.Error("Expected an expired token to be rejected")
	}
}

func TestParseTokenRejectsWrongSigningMethod(t *testing.T) {
	auth := middleware.NewAuth("test-secret", time.Hour)

	// A token signed with "none" must not validate even though the claims
	// themselves are well formed.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, middleware.Claims{
		UID:   "user-1",
		Email: "a@b.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := auth.ParseToken(token); err == nil {
		t.Error("Expected an unsigned token to be rejected")
	}
}
