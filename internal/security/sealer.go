package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealedPrefix marks a stored value as sealed. Values without it are treated
// as legacy plaintext so existing rows keep working after a key is set.
const sealedPrefix = "v1:"

// ErrUnsealable is returned when a sealed value cannot be opened with the
// configured key.
var ErrUnsealable = errors.New("sealer: value cannot be opened")

// Sealer encrypts provider API keys for storage using XChaCha20-Poly1305.
// The user id is bound as associated data so a sealed key copied to another
// user's row fails to open.
type Sealer struct {
	key []byte
}

// NewSealer creates a Sealer from a base64-encoded 32-byte key. An empty
// key returns a nil Sealer, whose methods pass values through unchanged.
func NewSealer(encodedKey string) (*Sealer, error) {
	if encodedKey == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("sealer: decoding key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealer: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext bound to userID.
func (s *Sealer) Seal(userID, plaintext string) (string, error) {
	if s == nil || plaintext == "" {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("sealer: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sealer: generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(userID))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as-is.
func (s *Sealer) Open(userID, stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if s == nil {
		return "", fmt.Errorf("%w: no sealing key configured", ErrUnsealable)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealable, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("sealer: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrUnsealable)
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(userID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsealable, err)
	}
	return string(plain), nil
}
