package persistence

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "enc:v1:"

// TokenCipher encrypts credential columns at rest.
type TokenCipher interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// PlainCipher stores tokens unchanged.
type PlainCipher struct{}

func (PlainCipher) Seal(plaintext string) (string, error) { return plaintext, nil }

// Open rejects sealed values since no key is configured to read them.
func (PlainCipher) Open(stored string) (string, error) {
	if strings.HasPrefix(stored, sealedPrefix) {
		return "", errors.New("token is encrypted but no encryption key is configured")
	}
	return stored, nil
}

// XChaChaCipher seals tokens with XChaCha20-Poly1305. Stored values are
// "enc:v1:" followed by base64(nonce || ciphertext). Values without the prefix
// are returned as-is so rows written before encryption was enabled stay readable.
type XChaChaCipher struct {
	key []byte
}

// NewXChaChaCipher creates a cipher from a 32 byte key
func NewXChaChaCipher(key []byte) (*XChaChaCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("token encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &XChaChaCipher{key: append([]byte(nil), key...)}, nil
}

// NewTokenCipher returns an XChaChaCipher for a base64 key, or PlainCipher when the key is empty
func NewTokenCipher(base64Key string) (TokenCipher, error) {
	if base64Key == "" {
		return PlainCipher{}, nil
	}
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode token encryption key: %w", err)
	}
	return NewXChaChaCipher(key)
}

func (c *XChaChaCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (c *XChaChaCipher) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed token: %w", err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("sealed token is truncated")
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed token: %w", err)
	}
	return string(plain), nil
}
