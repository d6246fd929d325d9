// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package client

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenKey is the fixed name the credential is stored under.
const TokenKey = "authToken"

// Store holds the current credential. Load never fails: a credential that
// cannot be read is reported as absent.
type Store interface {
	Save(credential string) error
	Load() (string, bool)
	Clear() error
}

// MemoryStore keeps the credential for the life of the process.
type MemoryStore struct {
	mu         sync.Mutex
	credential string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	return nil
}

func (s *MemoryStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential, s.credential != ""
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = ""
	return nil
}

// FileStore keeps the credential in a file named TokenKey inside a
// profile directory, readable by the owner only.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates dir if needed and returns a store inside it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, TokenKey)}, nil
}

// ProfileDir returns the directory of a named profile under the user's
// configuration directory.
func ProfileDir(profile string) (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	if profile == "" {
		profile = "default"
	}
	return filepath.Join(base, "inkpost", profile), nil
}

// Path returns the credential file path.
func (s *FileStore) Path() string { return s.path }

// Save writes the credential through a temporary file so a crash never
// leaves a truncated credential behind.
func (s *FileStore) Save(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), TokenKey+".*")
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("save credential: %w", err)
	}
	if _, err := tmp.WriteString(credential); err != nil {
		tmp.Close()
		return fmt.Errorf("save credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *FileStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to read stored credential", "path", s.path, "error", err)
		}
		return "", false
	}
	credential := strings.TrimSpace(string(data))
	return credential, credential != ""
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
