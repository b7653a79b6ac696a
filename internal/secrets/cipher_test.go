package secrets_test

import (
	"testing"

	"github.com/studyhost/studyhost/internal/secrets"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	cipher, err := secrets.NewTokenCipher("deployment-secret")
	if err != nil {
		t.Fatalf("NewTokenCipher failed: %v", err)
	}

	plaintext := "prolific-api-token-xyz"
	sealed, err := cipher.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if sealed == plaintext || sealed == "" {
		t.Error("Ciphertext must differ from plaintext")
	}

	opened, err := cipher.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if opened != plaintext {
		t.Errorf("Roundtrip mismatch: %q != %q", opened, plaintext)
	}
}

func TestEncryptIsNondeterministic(t *testing.T) {
	cipher, _ := secrets.NewTokenCipher("deployment-secret")

	a, _ := cipher.Encrypt("same-token")
	b, _ := cipher.Encrypt("same-token")
	if a == b {
		t.Error("Two encryptions of the same plaintext must not match")
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c1, _ := secrets.NewTokenCipher("secret-one")
	c2, _ := secrets.NewTokenCipher("secret-two")

	sealed, err := c1.Encrypt("token")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := c2.Decrypt(sealed); err == nil {
		t.Error("Decrypt with a different key must fail")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	cipher, _ := secrets.NewTokenCipher("deployment-secret")

	if _, err := cipher.Decrypt("not base64 !!!"); err == nil {
		t.Error("Expected error for invalid encoding")
	}
	if _, err := cipher.Decrypt("c2hvcnQ="); err == nil {
		t.Error("Expected error for truncated ciphertext")
	}
}

func TestNewTokenCipherRequiresSecret(t *testing.T) {
	if _, err := secrets.NewTokenCipher(""); err == nil {
		t.Error("Expected error for empty secret")
	}
}
