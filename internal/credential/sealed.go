package credential

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const sealedKeySalt = "go-art-session/credential-store/v1"

// SealedBackend encrypts every value with XChaCha20-Poly1305 before handing
// it to the wrapped backend. Keys stay in clear text.
type SealedBackend struct {
	inner Backend
	key   []byte
}

func NewSealedBackend(inner Backend, secret string) (*SealedBackend, error) {
	if inner == nil {
		return nil, errors.New("sealed backend requires an inner backend")
	}
	if secret == "" {
		return nil, errors.New("sealed backend requires a secret")
	}

	key := argon2.IDKey([]byte(secret), []byte(sealedKeySalt), 1, 64*1024, 4, chacha20poly1305.KeySize)
	return &SealedBackend{inner: inner, key: key}, nil
}

func (b *SealedBackend) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := b.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	plain, err := b.open(key, sealed)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", key, err)
	}

	return plain, true, nil
}

func (b *SealedBackend) Set(ctx context.Context, key string, value string) error {
	sealed, err := b.seal(key, value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}

	return b.inner.Set(ctx, key, sealed)
}

func (b *SealedBackend) Delete(ctx context.Context, key string) error {
	return b.inner.Delete(ctx, key)
}

func (b *SealedBackend) seal(key string, value string) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	// The key name is bound as additional data so values cannot be swapped between keys.
	out := aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (b *SealedBackend) open(key string, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", err
	}

	return string(plain), nil
}
