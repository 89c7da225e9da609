// Package crypto seals small secrets, such as the Pastebin session key, with
// AES-256-GCM before they touch the disk.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks sealed values so plain text is never mistaken for
// ciphertext.
const sealedPrefix = "pasteagent:v1:"

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrNotSealed is returned by Open for values without the sealed prefix.
var ErrNotSealed = errors.New("value is not sealed")

// Cipher seals and opens values with AES-256-GCM. The purpose string is
// bound as additional data, so a value sealed for one purpose does not open
// for another.
type Cipher struct {
	aead    cipher.AEAD
	purpose []byte
}

// NewCipher creates a Cipher from a hex-encoded 32-byte key. An empty key
// returns a nil Cipher, whose Seal and Open pass values through unchanged.
func NewCipher(hexKey, purpose string) (*Cipher, error) {
	if hexKey == "" {
		return nil, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding hex key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Cipher{aead: aead, purpose: []byte(purpose)}, nil
}

// GenerateKey returns a random hex-encoded key suitable for NewCipher.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Enabled reports whether values are actually encrypted.
func (c *Cipher) Enabled() bool {
	return c != nil
}

// Seal encrypts plaintext into a prefixed, base64 text value.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if c == nil {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), c.purpose)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. A nil Cipher returns value unchanged, but refuses
// values that were sealed, since it cannot read them.
func (c *Cipher) Open(value string) (string, error) {
	encoded, sealed := strings.CutPrefix(value, sealedPrefix)
	if c == nil {
		if sealed {
			return "", errors.New("value is sealed but no encryption key is configured")
		}
		return value, nil
	}
	if !sealed {
		return "", ErrNotSealed
	}

	data, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding sealed value: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("sealed value too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, c.purpose)
	if err != nil {
		return "", fmt.Errorf("opening sealed value: %w", err)
	}
	return string(plaintext), nil
}
