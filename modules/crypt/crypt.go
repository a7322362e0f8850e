// Package crypt provides the "crypt" service: authenticated symmetric
// encryption keyed from the configured secret, and password hashing.
package crypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrEmptyKey is returned when no secret is configured
	ErrEmptyKey = errors.New("crypt: key cannot be empty")

	// ErrCiphertext is returned for truncated or tampered input
	ErrCiphertext = errors.New("crypt: message authentication failed")
)

// keyInfo binds derived keys to this use.
const keyInfo = "baseapp crypt v1"

// Crypt encrypts with XChaCha20-Poly1305 under a key derived by HKDF-SHA256.
type Crypt struct {
	aead cipher.AEAD
}

// New derives the cipher key from secret.
func New(secret string) (*Crypt, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("crypt: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypt: %w", err)
	}
	return &Crypt{aead: aead}, nil
}

// Encrypt returns nonce || ciphertext. additional is authenticated but not
// encrypted; the same value must be passed to Decrypt.
func (c *Crypt) Encrypt(plaintext, additional []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypt: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, additional), nil
}

func (c *Crypt) Decrypt(message, additional []byte) ([]byte, error) {
	if len(message) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, ErrCiphertext
	}
	nonce, sealed := message[:c.aead.NonceSize()], message[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, additional)
	if err != nil {
		return nil, ErrCiphertext
	}
	return plain, nil
}

// EncryptString encrypts text to unpadded URL-safe base64.
func (c *Crypt) EncryptString(text string) (string, error) {
	out, err := c.Encrypt([]byte(text), nil)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (c *Crypt) DecryptString(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertext
	}
	plain, err := c.Decrypt(raw, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
