package common

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "v1:"

var ErrSealedWithoutKey = errors.New("value is sealed but no credential key is configured")

// Sealer encrypts small secrets (oauth tokens) before they hit the database.
// A Sealer built from an empty key stores values as-is.
type Sealer struct {
	key []byte
}

func NewSealer(secret string) *Sealer {
	if secret == "" {
		return &Sealer{}
	}
	sum := sha256.Sum256([]byte(secret))
	return &Sealer{key: sum[:]}
}

func (s *Sealer) Enabled() bool {
	return len(s.key) > 0
}

func (s *Sealer) Seal(plaintext []byte) (string, error) {
	if !s.Enabled() {
		return string(plaintext), nil
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := aead.Seal(nonce, nonce, plaintext, nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

func (s *Sealer) Open(value string) ([]byte, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return []byte(value), nil
	}
	if !s.Enabled() {
		return nil, ErrSealedWithoutKey
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode sealed value: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("sealed value too short")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
