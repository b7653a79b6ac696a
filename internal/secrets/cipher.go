// Package secrets encrypts linked third-party credentials at rest. The
// scheme is isolated behind the Cipher interface so it can be swapped
// without touching call sites.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Cipher encrypts and decrypts short secret strings (API tokens).
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenCipher is an XChaCha20-Poly1305 Cipher with a key derived from the
// deployment secret via HKDF-SHA256.
type TokenCipher struct {
	key []byte
}

var _ Cipher = (*TokenCipher)(nil)

// NewTokenCipher derives the cipher key from the deployment secret
func NewTokenCipher(secretKey string) (*TokenCipher, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is empty")
	}

	hk := hkdf.New(sha256.New, []byte(secretKey), nil, []byte("studyhost.token.v1"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, fmt.Errorf("failed to derive cipher key: %w", err)
	}

	return &TokenCipher{key: key}, nil
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext)
func (tc *TokenCipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(tc.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (tc *TokenCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	aead, err := chacha20poly1305.NewX(tc.key)
	if err != nil {
		return "", err
	}

	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}

	return string(plain), nil
}
