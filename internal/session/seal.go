package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var errSealedValue = errors.New("malformed sealed value")

// sealer encrypts the backend credential so it is unreadable in the cookie.
// The session id is bound as associated data, so a credential cannot be
// moved between sessions.
type sealer struct {
	key []byte
}

func newSealer(secret string) (*sealer, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("forems-portal/credential-seal/v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return &sealer{key: key}, nil
}

func (s *sealer) seal(plaintext, sessionID string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), []byte(sessionID))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *sealer) open(sealed, sessionID string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", errSealedValue
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", errSealedValue
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(sessionID))
	if err != nil {
		return "", errSealedValue
	}
	return string(plain), nil
}
