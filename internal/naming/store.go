package naming

import (
	"context"
	"path/filepath"
	"strings"
)

// Store persists name tables between runs. A scope is usually the
// package the names were emitted into.
type Store interface {
	Load(ctx context.Context, scope string) (map[string]string, error)
	Save(ctx context.Context, scope string, names map[string]string) error
	Close() error
}

// OpenStore opens the store at path. Files ending in .db or .sqlite are
// SQLite databases; everything else is a msgpack file.
func OpenStore(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteStore(path)
	default:
		return OpenFileStore(path)
	}
}
