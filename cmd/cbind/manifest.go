package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const manifestName = "cbind.toml"

const noManifestMessage = "no cbind.toml found\nplease pass the manifest explicitly, e.g.:\n  cbind batch path/to/cbind.toml"

// manifest is a parsed cbind.toml:
//
//	[defaults]
//	library = "z"
//	names = "names.db"
//
//	[[binding]]
//	name = "zlib"
//	inputs = ["zlib.ndjson"]
//	output = "zlib/zlib.go"
type manifest struct {
	Path   string
	Root   string
	Config manifestConfig
}

type manifestConfig struct {
	Jobs     int             `toml:"jobs"`
	Defaults bindingConfig   `toml:"defaults"`
	Bindings []bindingConfig `toml:"binding"`
}

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadManifest(path string) (*manifest, error) {
	var cfg manifestConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if !meta.IsDefined("binding") || len(cfg.Bindings) == 0 {
		return nil, fmt.Errorf("%s: missing [[binding]]", path)
	}
	seen := make(map[string]bool, len(cfg.Bindings))
	for i := range cfg.Bindings {
		b := &cfg.Bindings[i]
		if len(b.Inputs) == 0 {
			return nil, fmt.Errorf("%s: binding #%d: missing inputs", path, i+1)
		}
		if strings.TrimSpace(b.Output) == "" {
			return nil, fmt.Errorf("%s: binding #%d: missing output", path, i+1)
		}
		if b.Name == "" {
			b.Name = filepath.ToSlash(b.Output)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("%s: duplicate binding %q", path, b.Name)
		}
		seen[b.Name] = true
		*b = b.withDefaults(cfg.Defaults)
	}
	return &manifest{Path: path, Root: filepath.Dir(path), Config: cfg}, nil
}

// resolveManifests loads the manifests named by args, or the nearest
// cbind.toml above the working directory when args is empty.
func resolveManifests(args []string) ([]*manifest, error) {
	if len(args) == 0 {
		path, ok, err := findManifest(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New(noManifestMessage)
		}
		args = []string{path}
	}
	out := make([]*manifest, 0, len(args))
	for _, arg := range args {
		path := arg
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			path = filepath.Join(arg, manifestName)
		}
		m, err := loadManifest(path)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
