// Package pipeline runs the generation stages over one declaration stream
// and produces a Go binding file.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"cbind/internal/docs"
	"cbind/internal/layout"
	"cbind/internal/naming"
	"cbind/internal/stream"
)

// Config carries every run-scoped option.
type Config struct {
	Package    string
	Library    string
	Target     layout.Target
	Assertions bool
	Naming     naming.Style

	// Docs selects the docstring sources; nil emits no docstrings.
	Docs docs.Source

	// Store persists names between runs under StoreScope (the package
	// name when empty).
	Store      naming.Store
	StoreScope string

	MaxDiagnostics int
}

// Input is one file of the declaration stream.
type Input struct {
	Path   string
	Format stream.Format
}

// Request configures one run.
type Request struct {
	// Name identifies the run in progress events and reports.
	Name string

	Inputs []Input
	// Entries are used instead of Inputs when set.
	Entries []stream.Entry

	// Output is the path of the generated file; empty keeps the source in
	// the result only.
	Output string

	Config   Config
	Progress ProgressSink
}

func (r *Request) normalize() error {
	if len(r.Inputs) == 0 && r.Entries == nil {
		return fmt.Errorf("request %q has no declaration input", r.Name)
	}
	if r.Name == "" {
		switch {
		case r.Output != "":
			r.Name = filepath.ToSlash(r.Output)
		case len(r.Inputs) > 0:
			r.Name = filepath.ToSlash(r.Inputs[0].Path)
		default:
			r.Name = "stream"
		}
	}
	c := &r.Config
	if c.Package == "" {
		c.Package = packageFromOutput(r.Output)
	}
	if c.Target.PtrSize == 0 {
		c.Target = layout.X86_64LinuxGNU()
	}
	if c.StoreScope == "" {
		c.StoreScope = c.Package
	}
	return nil
}

// packageFromOutput names the package after the output directory.
func packageFromOutput(output string) string {
	if output == "" {
		return "bindings"
	}
	dir := filepath.Base(filepath.Dir(output))
	if dir == "." || dir == string(filepath.Separator) {
		return "bindings"
	}
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, dir)
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return "bindings"
	}
	return name
}
