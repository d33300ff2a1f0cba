// File: internal/infra/security/encryption_service.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Sealer encrypts credential payloads before they leave the process.
// Output format: base64(nonce || AES-GCM ciphertext).
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer accepts a 16, 24 or 32 byte key (AES-128/192/256).
func NewSealer(key string) (*Sealer, error) {
	k := []byte(key)
	switch len(k) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", len(k))
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

// Seal encrypts plaintext. additional is authenticated but not encrypted; it
// binds the payload to the key it is stored under.
func (s *Sealer) Seal(plaintext []byte, additional string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := s.gcm.Seal(nonce, nonce, plaintext, []byte(additional))
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Open reverses Seal. additional must match the value given to Seal.
func (s *Sealer) Open(sealed, additional string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	ns := s.gcm.NonceSize()
	if len(data) < ns {
		return nil, ErrCiphertextTooShort
	}
	pt, err := s.gcm.Open(nil, data[:ns], data[ns:], []byte(additional))
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return pt, nil
}
