package dynmod_test

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/jupiterrider/ffi"

	"cbind/internal/dynmod"
)

func requireCompiler(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("cc"); err != nil {
		t.Skip("cc not available")
	}
}

const snippet = `
#define O_RDONLY 0
#define O_RDWR 2
#define LIMIT (O_RDWR << 3)

int counter = 7;

int answer(void) { return 42; }
`

func TestIncludeResolvesSymbolsAndMacros(t *testing.T) {
	requireCompiler(t)
	m, err := dynmod.Include(context.Background(), snippet, dynmod.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("include: %v", err)
	}
	defer m.Close()

	fn := m.Lookup("answer")
	if !fn.OK() || fn.Addr == 0 {
		t.Fatalf("answer: %+v", fn)
	}
	if v := m.Lookup("counter"); v.Status != dynmod.Found {
		t.Fatalf("counter: %+v", v)
	}
	for name, want := range map[string]int64{"O_RDONLY": 0, "O_RDWR": 2, "LIMIT": 16} {
		got := m.Lookup(name)
		if !got.OK() || got.Value == nil || got.Value.Int == nil || got.Value.Int.Int64() != want {
			t.Fatalf("%s = %+v, want %d", name, got, want)
		}
	}

	call, err := m.Lib().Prep("answer", &ffi.TypeSint32)
	if err != nil {
		t.Fatalf("prep: %v", err)
	}
	var ret ffi.Arg
	call.Call(&ret)
	if int32(ret) != 42 {
		t.Fatalf("answer() = %d", int32(ret))
	}
}

func TestUnknownSymbolIsNotAnError(t *testing.T) {
	requireCompiler(t)
	m, err := dynmod.Include(context.Background(), snippet, dynmod.Options{})
	if err != nil {
		t.Fatalf("include: %v", err)
	}
	defer m.Close()

	got := m.Lookup("MB_OK")
	if got.OK() || got.Status != dynmod.UnknownSymbol || got.Reason == "" {
		t.Fatalf("MB_OK: %+v", got)
	}
	if got.Status.String() != "unknown symbol" {
		t.Fatalf("status string = %q", got.Status)
	}
}

func TestCompilerErrorCarriesStderr(t *testing.T) {
	requireCompiler(t)
	_, err := dynmod.Include(context.Background(), "#error boom\n", dynmod.Options{Dir: t.TempDir()})
	var ce *dynmod.CompilerError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *dynmod.CompilerError", err)
	}
	if !strings.Contains(ce.Stderr, "boom") {
		t.Fatalf("stderr = %q", ce.Stderr)
	}
}
