// Package auth guards the gateway with a single bearer token whose bcrypt
// hash lives in the config.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// tokenPrefix marks gateway tokens so they are recognisable in config and
// logs.
const tokenPrefix = "pagw_"

// GenerateToken creates a new gateway token: "pagw_" followed by 32 URL-safe
// random characters. It returns the plaintext token and its bcrypt hash.
func GenerateToken() (plaintext, hash string, err error) {
	b := make([]byte, 24) // 24 bytes -> 32 base64url chars
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}
	plaintext = tokenPrefix + base64.RawURLEncoding.EncodeToString(b)

	hash, err = HashToken(plaintext)
	if err != nil {
		return "", "", err
	}
	return plaintext, hash, nil
}

// HashToken returns the bcrypt hash to put in server.token_hash.
func HashToken(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("token is empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}
	return string(h), nil
}

// digest returns the hex-encoded SHA-256 of a token, used to remember a token
// that already passed bcrypt.
func digest(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Verifier checks bearer tokens against one bcrypt hash. The digest of the
// last accepted token is kept so repeat requests skip bcrypt.
type Verifier struct {
	hash []byte

	mu       sync.RWMutex
	accepted string
}

// NewVerifier creates a Verifier. An empty hash returns a nil Verifier,
// which the middleware treats as auth disabled.
func NewVerifier(hash string) (*Verifier, error) {
	if hash == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid token hash: %w", err)
	}
	return &Verifier{hash: []byte(hash)}, nil
}

// Verify reports whether token matches the configured hash.
func (v *Verifier) Verify(token string) bool {
	if token == "" {
		return false
	}
	d := digest(token)

	v.mu.RLock()
	cached := v.accepted
	v.mu.RUnlock()
	if cached != "" && subtle.ConstantTimeCompare([]byte(cached), []byte(d)) == 1 {
		return true
	}

	if bcrypt.CompareHashAndPassword(v.hash, []byte(token)) != nil {
		return false
	}

	v.mu.Lock()
	v.accepted = d
	v.mu.Unlock()
	return true
}
