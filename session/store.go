package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Credential is the stored proof of sign-in.
type Credential struct {
	UserID int    `json:"id"`
	Token  string `json:"token"`
}

// Store persists a single credential.
type Store interface {
	// Load returns the stored credential or ErrNoCredential.
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, c Credential) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the credential in memory.
type MemoryStore struct {
	mu   sync.Mutex
	cred *Credential
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored credential.
func (m *MemoryStore) Load(_ context.Context) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return Credential{}, ErrNoCredential
	}
	return *m.cred, nil
}

// Save replaces the stored credential.
func (m *MemoryStore) Save(_ context.Context, c Credential) error {
	m.mu.Lock()
	m.cred = &c
	m.mu.Unlock()
	return nil
}

// Clear removes the stored credential.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.cred = nil
	m.mu.Unlock()
	return nil
}

// FileStore keeps the credential as a JSON file with mode 0600.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the credential file.
func (f *FileStore) Load(_ context.Context) (Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credential{}, ErrNoCredential
	}
	if err != nil {
		return Credential{}, fmt.Errorf("session: read %s: %w", f.path, err)
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}, fmt.Errorf("session: decode %s: %w", f.path, err)
	}
	if c.Token == "" {
		return Credential{}, ErrNoCredential
	}
	return c, nil
}

// Save writes the credential file, replacing any previous one.
func (f *FileStore) Save(_ context.Context, c Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("session: encode credential: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("session: create %s: %w", dir, err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("session: replace %s: %w", f.path, err)
	}
	return nil
}

// Clear deletes the credential file. A missing file is not an error.
func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", f.path, err)
	}
	return nil
}
