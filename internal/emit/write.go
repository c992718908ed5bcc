package emit

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile replaces path with src through a temporary file in the same
// directory, so readers never observe a partial file.
func WriteFile(path string, src []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".cbind-*.go.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(src); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
