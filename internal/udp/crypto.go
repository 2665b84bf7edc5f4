// Package udp implements the encrypted datagram transport: AES-256-GCM
// framing, serial reordering, the receive loop and the sender.
package udp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"os"
	"path/filepath"
	"runtime"

	"github.com/erikh/hoover/internal/errors"
)

// KeySize is the required symmetric key length in bytes.
const KeySize = 32

// NonceSize is the AES-GCM nonce length in bytes.
const NonceSize = 12

// CryptoContext seals and opens packet payloads with AES-256-GCM. The key can
// be replaced in place during a passphrase-change handshake; callers share a
// context across goroutines behind a mutex.
type CryptoContext struct {
	aead cipher.AEAD
	key  [KeySize]byte
}

// NewCryptoContext creates a context from a 32-byte key.
func NewCryptoContext(key []byte) (*CryptoContext, error) {
	c := &CryptoContext{}
	if err := c.UpdateKey(key); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCryptoContext reads a key file, which must be exactly 32 bytes.
func LoadCryptoContext(path string) (*CryptoContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("udp").
			Category(errors.CategoryCrypto).
			Context("key_file", path).
			Build()
	}

	if len(data) != KeySize {
		return nil, errors.Newf("key file must be exactly %d bytes, got %d", KeySize, len(data)).
			Component("udp").
			Category(errors.CategoryCrypto).
			Context("key_file", path).
			Build()
	}

	return NewCryptoContext(data)
}

// UpdateKey replaces the cipher key in place.
func (c *CryptoContext) UpdateKey(key []byte) error {
	if len(key) != KeySize {
		return errors.Newf("key must be exactly %d bytes, got %d", KeySize, len(key)).
			Component("udp").
			Category(errors.CategoryCrypto).
			Build()
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return errors.New(err).
			Component("udp").
			Category(errors.CategoryCrypto).
			Build()
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return errors.New(err).
			Component("udp").
			Category(errors.CategoryCrypto).
			Build()
	}

	c.aead = aead
	copy(c.key[:], key)
	return nil
}

// KeyBytes returns the raw key, used by the passphrase-change client.
func (c *CryptoContext) KeyBytes() []byte {
	out := make([]byte, KeySize)
	copy(out, c.key[:])
	return out
}

// Encrypt seals plaintext under a fresh random nonce. Returns the ciphertext
// (tag appended) and the nonce used.
func (c *CryptoContext) Encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, errors.New(err).
			Component("udp").
			Category(errors.CategoryCrypto).
			Context("operation", "nonce").
			Build()
	}

	ciphertext = c.aead.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt opens ciphertext with the given nonce.
func (c *CryptoContext) Decrypt(nonce, ciphertext []byte) ([]byte, error) {
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("udp").
			Category(errors.CategoryCrypto).
			Context("operation", "decrypt").
			Build()
	}
	return plaintext, nil
}

// GenerateKeyFile writes a fresh random 32-byte key to path, creating parent
// directories. On Unix the file is created with mode 0600.
func GenerateKeyFile(path string) error {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return errors.New(err).
			Component("udp").
			Category(errors.CategoryCrypto).
			Build()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("udp").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}

	if err := os.WriteFile(path, key, 0o600); err != nil {
		return errors.New(err).
			Component("udp").
			Category(errors.CategoryFileIO).
			Context("key_file", path).
			Build()
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, 0o600); err != nil {
			return errors.New(err).
				Component("udp").
				Category(errors.CategoryFileIO).
				Context("key_file", path).
				Build()
		}
	}

	return nil
}
