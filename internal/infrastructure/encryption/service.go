// Package encryption seals tenant secrets and customer PII with XChaCha20-Poly1305.
package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"archie-core-shopify-ingestion/internal/ports"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrMalformedCiphertext is returned when a value was not produced by Encrypt
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Service implements ports.EncryptionService
type Service struct {
	aead cipher.AEAD
}

var _ ports.EncryptionService = (*Service)(nil)

// NewService builds a service from a 64 character hex key. Any other
// non-empty value is treated as a passphrase and stretched with SHA-256.
func NewService(key string) (*Service, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key is required")
	}
	raw, err := hex.DecodeString(key)
	if err != nil || len(raw) != chacha20poly1305.KeySize {
		sum := sha256.Sum256([]byte(key))
		raw = sum[:]
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &Service{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext)
func (s *Service) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (s *Service) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	if len(data) < s.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}
	nonce, body := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}
