// Package dynmod compiles a C snippet into a shared library with an
// external compiler, loads it with github.com/jupiterrider/ffi and resolves
// its symbols and macros by name.
package dynmod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jupiterrider/ffi"

	"cbind/internal/constant"
	"cbind/internal/decl"
	"cbind/internal/layout"
	"cbind/internal/stream"
)

// Options configures Include.
type Options struct {
	// Compiler is the C compiler driver; $CC or "cc" when empty.
	Compiler string
	// Flags are passed to every compiler invocation, e.g. include paths.
	Flags []string
	// Dir keeps the build products; a temporary directory removed by
	// Close is used when empty.
	Dir    string
	Target layout.Target
}

// CompilerError reports a failed compiler invocation. Stderr holds the
// compiler's diagnostics.
type CompilerError struct {
	Compiler string
	Args     []string
	Stderr   string
	Err      error
}

func (e *CompilerError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Compiler, msg)
}

func (e *CompilerError) Unwrap() error { return e.Err }

// Module is a loaded snippet.
type Module struct {
	path    string
	dir     string
	tempDir bool
	lib     ffi.Lib
	eval    *constant.Evaluator
	macros  map[string]bool
}

// Include compiles src as a shared library and loads it.
func Include(ctx context.Context, src string, opts Options) (*Module, error) {
	cc := opts.Compiler
	if cc == "" {
		cc = os.Getenv("CC")
	}
	if cc == "" {
		cc = "cc"
	}
	if opts.Target.PtrSize == 0 {
		opts.Target = layout.X86_64LinuxGNU()
	}

	m := &Module{dir: opts.Dir, eval: constant.NewEvaluator(opts.Target), macros: make(map[string]bool)}
	if m.dir == "" {
		dir, err := os.MkdirTemp("", "cbind-dynmod-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create build dir: %w", err)
		}
		m.dir, m.tempDir = dir, true
	} else if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create build dir: %w", err)
	}

	srcPath := filepath.Join(m.dir, "snippet.c")
	if err := os.WriteFile(srcPath, []byte(src), 0o600); err != nil {
		m.cleanup()
		return nil, fmt.Errorf("failed to write snippet: %w", err)
	}

	m.path = filepath.Join(m.dir, "snippet"+libExt())
	args := append(append([]string{"-shared", "-fPIC"}, opts.Flags...), "-o", m.path, srcPath)
	if _, err := run(ctx, cc, args...); err != nil {
		m.cleanup()
		return nil, err
	}

	// the macro dump is best effort: a compiler without -dM still yields
	// the library symbols
	if defs, err := run(ctx, cc, append(append([]string{"-dM", "-E"}, opts.Flags...), srcPath)...); err == nil {
		entries, _ := stream.ReadDefines(bytes.NewReader(defs), "snippet.c")
		for _, e := range entries {
			m.eval.DefineMacro(e.Name, e.MacroParams, e.FunctionLike, e.Body)
			m.macros[e.Name] = true
		}
	}

	lib, err := ffi.Load(m.path)
	if err != nil {
		m.cleanup()
		return nil, fmt.Errorf("failed to load %s: %w", m.path, err)
	}
	m.lib = lib
	return m, nil
}

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &CompilerError{Compiler: name, Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

func libExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	}
	return ".so"
}

// Path returns the file name of the loaded library.
func (m *Module) Path() string { return m.path }

// Lib exposes the loaded library for preparing calls.
func (m *Module) Lib() ffi.Lib { return m.lib }

// Close unloads the library and removes a temporary build directory.
func (m *Module) Close() error {
	err := m.lib.Close()
	return errors.Join(err, m.cleanup())
}

func (m *Module) cleanup() error {
	if !m.tempDir {
		return nil
	}
	return os.RemoveAll(m.dir)
}

// Status tags the outcome of a lookup.
type Status uint8

const (
	UnknownSymbol Status = iota
	Found
)

func (s Status) String() string {
	if s == Found {
		return "found"
	}
	return "unknown symbol"
}

// Lookup is the result of resolving one name. A Found symbol carries its
// address; a Found macro carries its constant value.
type Lookup struct {
	Name   string
	Status Status
	Addr   uintptr
	Value  *decl.Literal
	// Reason explains an UnknownSymbol result.
	Reason string
}

// OK reports a Found result.
func (l Lookup) OK() bool { return l.Status == Found }

// Lookup resolves name against the library symbols first, then against
// the macros of the snippet. A missing name is an UnknownSymbol result,
// never an error.
func (m *Module) Lookup(name string) Lookup {
	if addr, err := m.lib.Get(name); err == nil && addr != 0 {
		return Lookup{Name: name, Status: Found, Addr: addr}
	}
	if !m.macros[name] {
		return Lookup{Name: name, Status: UnknownSymbol, Reason: "no such symbol or macro"}
	}
	lit, err := m.eval.Macro(name)
	if err != nil {
		return Lookup{Name: name, Status: UnknownSymbol, Reason: err.Error()}
	}
	return Lookup{Name: name, Status: Found, Value: lit}
}
