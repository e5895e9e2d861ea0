package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leapstack-labs/datarade/pkg/core"
)

// LocalStore serves a catalog checked out on disk.
type LocalStore struct {
	root string
}

// NewLocalStore builds a store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, &core.ValidationError{Source: "catalog", Field: "repository_url", Message: "local catalog needs a directory"}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog directory: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Location returns the absolute root directory.
func (s *LocalStore) Location() string { return s.root }

func (s *LocalStore) resolve(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(p, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &core.ValidationError{Source: "catalog", Field: "path", Message: fmt.Sprintf("%q escapes the catalog", p)}
	}
	return filepath.Join(s.root, clean), nil
}

// Fetch reads one file.
func (s *LocalStore) Fetch(_ context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full) //nolint:gosec // path is confined to the catalog root
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &core.NotFoundError{Kind: "artifact", Key: p}
	}
	if err != nil {
		return nil, &core.TransportError{Op: "read", URL: full, Err: err}
	}
	return data, nil
}

// Put writes every file, creating directories as needed.
func (s *LocalStore) Put(_ context.Context, files []File, _ string) error {
	for _, f := range files {
		full, err := s.resolve(f.Path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			return &core.TransportError{Op: "mkdir", URL: full, Err: err}
		}
		if err := os.WriteFile(full, f.Data, 0o600); err != nil {
			return &core.TransportError{Op: "write", URL: full, Err: err}
		}
	}
	return nil
}

// MemoryStore is an in-process catalog used by tests and the memory platform.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	puts  int
}

// NewMemoryStore builds a store holding files keyed by path.
func NewMemoryStore(files map[string]string) *MemoryStore {
	m := &MemoryStore{files: make(map[string][]byte, len(files))}
	for p, data := range files {
		m.files[strings.TrimLeft(p, "/")] = []byte(data)
	}
	return m
}

// Location returns a fixed memory URL.
func (m *MemoryStore) Location() string { return "memory://catalog" }

// Fetch returns a copy of the stored bytes.
func (m *MemoryStore) Fetch(_ context.Context, p string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[strings.TrimLeft(p, "/")]
	if !ok {
		return nil, &core.NotFoundError{Kind: "artifact", Key: p}
	}
	return append([]byte(nil), data...), nil
}

// Put stores every file.
func (m *MemoryStore) Put(_ context.Context, files []File, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range files {
		m.files[strings.TrimLeft(f.Path, "/")] = append([]byte(nil), f.Data...)
	}
	m.puts++
	return nil
}

// Puts returns how many Put calls reached the store.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

var (
	_ FileStore  = (*LocalStore)(nil)
	_ FileWriter = (*LocalStore)(nil)
	_ FileStore  = (*MemoryStore)(nil)
	_ FileWriter = (*MemoryStore)(nil)
)
