// Package session persists the Pastebin session key between runs.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecgard/pasteagent/internal/crypto"
)

// purpose binds sealed session files to this use.
const purpose = "pasteagent-session"

// ErrNoSession is returned by Load when no session has been saved.
var ErrNoSession = errors.New("no saved session")

// FileStore keeps the session key in a single file, sealed when an
// encryption key is configured.
type FileStore struct {
	path   string
	cipher *crypto.Cipher
}

// NewFileStore creates a FileStore at path. An empty encryptionKey stores
// the session key as plain text.
func NewFileStore(path, encryptionKey string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path is empty")
	}
	c, err := crypto.NewCipher(encryptionKey, purpose)
	if err != nil {
		return nil, fmt.Errorf("session encryption key: %w", err)
	}
	return &FileStore{path: path, cipher: c}, nil
}

// Path returns the session file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes key, replacing any previous session.
func (s *FileStore) Save(key string) error {
	if key == "" {
		return errors.New("refusing to save an empty session key")
	}

	value, err := s.cipher.Seal(key)
	if err != nil {
		return fmt.Errorf("sealing session key: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Load returns the saved session key, or ErrNoSession.
func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("reading session file: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", ErrNoSession
	}

	key, err := s.cipher.Open(value)
	if err != nil {
		return "", fmt.Errorf("opening session file: %w", err)
	}
	return key, nil
}

// Clear removes the saved session. Clearing a missing session is not an
// error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
