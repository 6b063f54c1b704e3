// Package sealed encrypts credential values before they reach a backing store.
package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prefix of values sealed with AES-256-GCM.
const cipherPrefixV1 = "v1:"

// Cipher seals and opens values. The label is authenticated but not encrypted;
// a value sealed under one label does not open under another.
type Cipher interface {
	Seal(label string, plaintext []byte) (string, error)
	Open(label, sealed string) ([]byte, error)
}

// AESGCM implements Cipher using AES-256-GCM.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds a cipher from a 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead}, nil
}

// KeyFromString turns configured key material into a 32-byte key: a 64-char
// hex string is decoded, anything else is hashed with SHA-256.
func KeyFromString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("encryption key is required")
	}
	if decoded, err := hex.DecodeString(s); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	sum := sha256.Sum256([]byte(s))
	return sum[:], nil
}

// Seal returns "v1:" + base64(nonce || ciphertext).
func (c *AESGCM) Seal(label string, plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, plaintext, []byte(label))
	return cipherPrefixV1 + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (c *AESGCM) Open(label, sealed string) ([]byte, error) {
	b64, ok := strings.CutPrefix(sealed, cipherPrefixV1)
	if !ok {
		return nil, errors.New("unknown ciphertext version")
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	n := c.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("ciphertext too short")
	}
	pt, err := c.aead.Open(nil, data[:n], data[n:], []byte(label))
	if err != nil {
		return nil, fmt.Errorf("open ciphertext: %w", err)
	}
	return pt, nil
}
