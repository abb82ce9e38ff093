// Package encryption seals channel credentials before they are stored.
package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	// version prefixes every sealed blob so the key schedule can change later
	version byte = 1
)

var (
	ErrSecretTooShort = errors.New("encryption: secret must be at least 32 bytes")
	ErrMalformed      = errors.New("encryption: sealed value is malformed")
	ErrOpenFailed     = errors.New("encryption: sealed value could not be opened")
)

// SecretBoxSealer encrypts with NaCl secretbox using a key derived from a master secret
type SecretBoxSealer struct {
	key [keySize]byte
}

// NewSecretBoxSealer derives the sealing key from secret with HKDF-SHA256
func NewSecretBoxSealer(secret string) (*SecretBoxSealer, error) {
	if len(secret) < keySize {
		return nil, ErrSecretTooShort
	}

	s := &SecretBoxSealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("channel-credentials"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return s, nil
}

// Seal returns version || nonce || box
func (s *SecretBoxSealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+nonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, version)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, &s.key), nil
}

// Open reverses Seal
func (s *SecretBoxSealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < 1+nonceSize+secretbox.Overhead || sealed[0] != version {
		return nil, ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[1:1+nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[1+nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

var _ ports.CredentialSealer = (*SecretBoxSealer)(nil)

// OpenCredentials opens a sealed credential blob and decodes it
func OpenCredentials(sealer ports.CredentialSealer, sealed []byte) (*domain.Credentials, error) {
	if len(sealed) == 0 {
		return nil, domain.ErrChannelNotConnected
	}
	plaintext, err := sealer.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials: %w", err)
	}
	var creds domain.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &creds, nil
}
