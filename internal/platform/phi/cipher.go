// Package phi provides AES-256-GCM field-level encryption for protected
// health information. Every encrypted column in the database holds a value
// produced here: base64(nonce || ciphertext || tag), with a fresh random
// nonce per call, so two encryptions of the same plaintext never match.
package phi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrKeyUnavailable indicates the encryption key is missing or malformed.
	ErrKeyUnavailable = errors.New("phi: encryption key unavailable")
	// ErrMalformedCiphertext indicates the stored blob could not be parsed.
	ErrMalformedCiphertext = errors.New("phi: malformed ciphertext")
	// ErrAuthenticationFailed indicates the authentication tag did not verify:
	// the ciphertext was tampered with, corrupted, or encrypted under a
	// different key. Decryption never falls back to partial output.
	ErrAuthenticationFailed = errors.New("phi: ciphertext authentication failed")
)

// IsCryptoError reports whether err belongs to the cipher's error taxonomy.
// Callers use this to map any crypto failure to a generic response without
// leaking which stage failed.
func IsCryptoError(err error) bool {
	return errors.Is(err, ErrKeyUnavailable) ||
		errors.Is(err, ErrMalformedCiphertext) ||
		errors.Is(err, ErrAuthenticationFailed)
}

// KeyFromHex decodes a 64-character hex string into 32 bytes of AES-256 key
// material. An empty or malformed value is an error, never a degraded mode:
// the process must refuse to start without a usable key.
func KeyFromHex(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: ENCRYPTION_KEY is not set", ErrKeyUnavailable)
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid hex", ErrKeyUnavailable)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: need 32 bytes (64 hex chars), got %d bytes", ErrKeyUnavailable, len(key))
	}
	return key, nil
}

// Cipher performs authenticated field-level encryption. It is stateless after
// construction and safe for concurrent use; the key is held only inside the
// AEAD and is never logged or persisted.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a 32-byte AES-256 key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 32 bytes, got %d", ErrKeyUnavailable, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: create cipher: %v", ErrKeyUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: create GCM: %v", ErrKeyUnavailable, err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt encrypts a plaintext string and returns the base64 blob. The nonce
// is drawn from crypto/rand on every call.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generate nonce: %v", ErrKeyUnavailable, err)
	}
	// Seal appends the ciphertext to nonce, so the blob is nonce + ciphertext + tag.
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decodes the base64 blob, splits off the nonce, and opens the
// authenticated ciphertext. A failed tag check is a hard stop.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", ErrMalformedCiphertext, err)
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: blob too short", ErrMalformedCiphertext)
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return string(plaintext), nil
}

// EncryptOptional encrypts *s when present. A nil pointer passes through
// unchanged so "absent" survives the round trip distinct from "empty string".
func (c *Cipher) EncryptOptional(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	enc, err := c.Encrypt(*s)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

// DecryptOptional is the inverse of EncryptOptional.
func (c *Cipher) DecryptOptional(s *string) (*string, error) {
	if s == nil {
		return nil, nil
	}
	dec, err := c.Decrypt(*s)
	if err != nil {
		return nil, err
	}
	return &dec, nil
}

// EncryptJSON serializes v to JSON and encrypts the document through the same
// primitive as scalar fields, so structured values (vitals, addresses) carry
// the same authenticity guarantee.
func (c *Cipher) EncryptJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("phi: marshal for encryption: %w", err)
	}
	return c.Encrypt(string(data))
}

// DecryptJSON decrypts the blob and unmarshals the plaintext into out.
func (c *Cipher) DecryptJSON(ciphertext string, out any) error {
	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plaintext), out); err != nil {
		return fmt.Errorf("phi: unmarshal decrypted document: %w", err)
	}
	return nil
}
