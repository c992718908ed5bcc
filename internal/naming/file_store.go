package naming

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when filePayload changes
const fileStoreSchemaVersion uint16 = 1

// FileStore keeps every scope in a single msgpack file.
// Thread-safe for concurrent access.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

type filePayload struct {
	Schema uint16
	Scopes map[string]map[string]string
}

// OpenFileStore returns a store backed by path. The file is created on
// the first Save.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create name store dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) read() (*filePayload, error) {
	payload := &filePayload{Schema: fileStoreSchemaVersion, Scopes: make(map[string]map[string]string)}
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return payload, nil
		}
		return nil, err
	}
	defer f.Close()

	var disk filePayload
	if err := msgpack.NewDecoder(f).Decode(&disk); err != nil {
		return nil, fmt.Errorf("decode name store %s: %w", s.path, err)
	}
	// an older schema is dropped rather than migrated
	if disk.Schema != fileStoreSchemaVersion {
		return payload, nil
	}
	if disk.Scopes != nil {
		payload.Scopes = disk.Scopes
	}
	return payload, nil
}

// Load returns a copy of the names stored for scope.
func (s *FileStore) Load(ctx context.Context, scope string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(payload.Scopes[scope]))
	maps.Copy(out, payload.Scopes[scope])
	return out, nil
}

// Save replaces the names of scope and rewrites the file atomically.
func (s *FileStore) Save(ctx context.Context, scope string, names map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := s.read()
	if err != nil {
		return err
	}
	payload.Scopes[scope] = maps.Clone(names)

	f, err := os.CreateTemp(filepath.Dir(s.path), "names-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return fmt.Errorf("encode name store: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// atomic replace
	return os.Rename(f.Name(), s.path)
}

// Close is a no-op; the file is only open during Load and Save.
func (s *FileStore) Close() error { return nil }
