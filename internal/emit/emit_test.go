package emit_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cbind/internal/constant"
	"cbind/internal/diag"
	"cbind/internal/emit"
	"cbind/internal/ingest"
	"cbind/internal/layout"
	"cbind/internal/naming"
	"cbind/internal/stream"
)

func generate(t *testing.T, src string, opts emit.Options) (*emit.File, string) {
	t.Helper()
	entries, err := stream.DecodeNDJSON(strings.NewReader(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	res := ingest.Ingest(entries, nil)
	if len(res.Skipped) != 0 {
		t.Fatalf("unexpected skips: %v", res.Skipped)
	}
	g := res.Graph
	target := layout.X86_64LinuxGNU()
	if _, err := layout.Resolve(g, target, nil); err != nil {
		t.Fatalf("layout: %v", err)
	}
	constant.Resolve(g, target, nil)
	names := naming.Assign(g, naming.Options{
		Reserved:         emit.ReservedNames(),
		ReservedPrefixes: emit.ReservedPrefixes(),
		LocalReserved:    emit.LocalNames(),
	}, nil)
	order, err := g.DependencyOrder()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	opts.Target = target
	file, err := emit.Emit(g, order, names, opts, nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	return file, squash(string(file.Source))
}

func squash(s string) string { return strings.Join(strings.Fields(s), " ") }

func mustContain(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, squash(want)) {
			t.Errorf("output lacks %q\n%s", want, out)
		}
	}
}

func TestHeaderAndLoader(t *testing.T) {
	file, out := generate(t, `{"kind":"function","name":"ping","result":{"kind":"fundamental","name":"void"}}
`, emit.Options{Package: "demo", Library: "demo", Source: "demo.h"})
	src := string(file.Source)
	if !strings.HasPrefix(src, "// Code generated by cbind; DO NOT EDIT.\n// Source: demo.h\n") {
		t.Fatalf("unexpected header:\n%s", src)
	}
	mustContain(t, out,
		"package demo",
		`"github.com/jupiterrider/ffi"`,
		"var lib ffi.Lib",
		"func Load(path string) error",
		"func LibraryPath(dir string) string",
		`if fnPing, err = lib.Prep("ping", &ffi.TypeVoid); err != nil {`,
		"func Ping() { fnPing.Call(nil) }",
		"return errors.Join(errs...)",
	)
}

func TestMutualPointerCycleIsForwarded(t *testing.T) {
	_, out := generate(t, `{"kind":"struct","name":"A","fields":[{"name":"b","type":{"kind":"pointer","elem":{"kind":"struct","name":"B"}}}]}
{"kind":"struct","name":"B","fields":[{"name":"a","type":{"kind":"pointer","elem":{"kind":"struct","name":"A"}}}]}
`, emit.Options{})
	fwd := strings.Index(out, "var FFITypeB ffi.Type")
	a := strings.Index(out, "type A struct")
	b := strings.Index(out, "type B struct")
	if fwd < 0 || a < 0 || b < 0 || !(fwd < a && a < b) {
		t.Fatalf("forward %d, A %d, B %d out of order\n%s", fwd, a, b, out)
	}
	mustContain(t, out,
		"type A struct { B *B }",
		"var FFITypeA = ffi.NewType(&ffi.TypePointer)",
		"func init() { FFITypeB = ffi.NewType(&ffi.TypePointer) }",
	)
}

func TestBitfieldsBecomeAccessors(t *testing.T) {
	_, out := generate(t, `{"kind":"struct","name":"s","fields":[
{"name":"c","type":{"kind":"fundamental","name":"char"}},
{"name":"x","type":{"kind":"fundamental","name":"int"}},
{"name":"a","type":{"kind":"fundamental","name":"unsigned int"},"bit_width":3},
{"name":"b","type":{"kind":"fundamental","name":"unsigned int"},"bit_width":5}]}
`, emit.Options{})
	mustContain(t, out,
		"type S struct { C int8 _ [3]byte X int32 bits0 [1]byte _ [3]byte }",
		"func (r *S) A() uint32 { return uint32(getBits(r.bits0[:], 0, 3)) }",
		"func (r *S) B() uint32 { return uint32(getBits(r.bits0[:], 3, 5)) }",
		"func (r *S) SetA(v uint32) { setBits(r.bits0[:], 0, 3, uint64(v)) }",
		"func getBits(",
	)
}

func TestFunctionWrappers(t *testing.T) {
	_, out := generate(t, `{"kind":"function","name":"add","result":{"kind":"fundamental","name":"int"},"params":[{"name":"a","type":{"kind":"fundamental","name":"int"}},{"name":"b","type":{"kind":"fundamental","name":"int"}}]}
{"kind":"function","name":"puts","result":{"kind":"fundamental","name":"int"},"params":[{"name":"s","type":{"kind":"pointer","elem":{"kind":"fundamental","name":"char","const":true}}}]}
`, emit.Options{})
	mustContain(t, out,
		`lib.Prep("add", &ffi.TypeSint32, &ffi.TypeSint32, &ffi.TypeSint32)`,
		"func Add(a int32, b int32) int32 {",
		"var ret ffi.Arg",
		"fnAdd.Call(unsafe.Pointer(&ret), unsafe.Pointer(&a), unsafe.Pointer(&b))",
		"return int32(ret)",
		"func Puts(s string) int32 {",
		"_s := cString(s)",
		"runtime.KeepAlive(_s)",
	)
}

func TestMacrosBecomeConstants(t *testing.T) {
	file, out := generate(t, `{"kind":"macro","name":"FOO","body":"(1+2)"}
{"kind":"macro","name":"BAR","body":"some_function(1)"}
{"kind":"macro","name":"GREETING","body":"\"hi\""}
`, emit.Options{})
	mustContain(t, out,
		"const FOO int32 = 3",
		`const GREETING = "hi"`,
	)
	if strings.Contains(out, "BAR") {
		t.Fatalf("unresolved macro emitted:\n%s", out)
	}
	if len(file.Units) != 2 {
		t.Fatalf("units = %d, want 2", len(file.Units))
	}
}

func TestEnumAndUnion(t *testing.T) {
	_, out := generate(t, `{"kind":"enum","name":"color","values":[{"name":"RED","value":0},{"name":"GREEN","value":1}]}
{"kind":"union","name":"u","fields":[{"name":"i","type":{"kind":"fundamental","name":"int"}},{"name":"f","type":{"kind":"fundamental","name":"float"}}]}
`, emit.Options{})
	mustContain(t, out,
		"type Color int32",
		"RED Color = 0",
		"GREEN Color = 1",
		"type U struct { data [1]uint32 }",
		"func (r *U) I() *int32 { return (*int32)(unsafe.Pointer(&r.data)) }",
		"func (r *U) F() *float32",
		"var FFITypeU = ffi.NewType(&ffi.TypeUint32)",
	)
}

func TestFlexibleArrayAndAssertions(t *testing.T) {
	_, out := generate(t, `{"kind":"struct","name":"blob","fields":[{"name":"len","type":{"kind":"fundamental","name":"int"}},{"name":"data","type":{"kind":"array","elem":{"kind":"fundamental","name":"char"}}}]}
`, emit.Options{Assertions: true})
	mustContain(t, out,
		"type Blob struct { Len int32 }",
		"func (r *Blob) Data(i int) *int8",
		"func (r *Blob) DataSlice(n int) []int8",
		"_ = x[unsafe.Sizeof(Blob{})-4]",
		"_ = x[unsafe.Offsetof(Blob{}.Len)-0]",
	)
}

func TestVariadicFunctionIsPreparedPerCall(t *testing.T) {
	bag := diag.NewBag(0)
	entries, err := stream.DecodeNDJSON(strings.NewReader(`{"kind":"function","name":"printf","result":{"kind":"fundamental","name":"int"},"params":[{"name":"fmt","type":{"kind":"pointer","elem":{"kind":"fundamental","name":"char","const":true}}}],"variadic":true}
`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	g := ingest.Ingest(entries, nil).Graph
	names := naming.Assign(g, naming.Options{Reserved: emit.ReservedNames(), ReservedPrefixes: emit.ReservedPrefixes()}, nil)
	order, err := g.DependencyOrder()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	file, err := emit.Emit(g, order, names, emit.Options{}, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	mustContain(t, squash(string(file.Source)),
		"func Printf(variadic ...*ffi.Type) (ffi.Fun, error) {",
		`return lib.PrepVar("printf", 1, &ffi.TypeSint32, append([]*ffi.Type{&ffi.TypePointer}, variadic...)...)`,
	)
	if got := len(bag.Filter(diag.EmitVariadic)); got != 1 {
		t.Fatalf("variadic diagnostics = %d, want 1", got)
	}
}

func TestEmitIsDeterministic(t *testing.T) {
	src := `{"kind":"struct","name":"A","fields":[{"name":"b","type":{"kind":"pointer","elem":{"kind":"struct","name":"B"}}}]}
{"kind":"struct","name":"B","fields":[{"name":"a","type":{"kind":"pointer","elem":{"kind":"struct","name":"A"}}}]}
{"kind":"function","name":"make_a","result":{"kind":"pointer","elem":{"kind":"struct","name":"A"}}}
{"kind":"macro","name":"LIMIT","body":"1 << 4"}
`
	first, _ := generate(t, src, emit.Options{Assertions: true})
	second, _ := generate(t, src, emit.Options{Assertions: true})
	if !bytes.Equal(first.Source, second.Source) {
		t.Fatalf("two emissions differ:\n%s\n---\n%s", first.Source, second.Source)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "bindings.go")
	src := []byte("package bindings\n")
	if err := emit.WriteFile(path, src); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatalf("content = %q", got)
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), ".cbind-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temporary files left behind: %v", leftovers)
	}
}

func TestZeroSizeRecordsHaveNoDescriptor(t *testing.T) {
	file, out := generate(t, `{"kind":"struct","name":"empty","fields":[]}
{"kind":"struct","name":"tail","fields":[{"name":"data","type":{"kind":"array","elem":{"kind":"fundamental","name":"int"}}}]}
{"kind":"function","name":"take","params":[{"name":"e","type":{"kind":"struct","name":"empty"}}]}
{"kind":"function","name":"make_tail","result":{"kind":"struct","name":"tail"}}
{"kind":"function","name":"use","params":[{"name":"e","type":{"kind":"pointer","elem":{"kind":"struct","name":"empty"}}}]}
`, emit.Options{})
	mustContain(t, out,
		"type Empty struct{}",
		"func Use(e *Empty) {",
	)
	if strings.Contains(out, "FFITypeEmpty") || strings.Contains(out, "FFITypeTail") || strings.Contains(out, "ffi.NewType()") {
		t.Fatalf("descriptor emitted for a zero-size record:\n%s", out)
	}
	var dropped []string
	for _, d := range file.Dropped {
		dropped = append(dropped, d.Name)
	}
	got := strings.Join(dropped, ", ")
	if len(dropped) != 2 || !strings.Contains(got, "take") || !strings.Contains(got, "make_tail") {
		t.Fatalf("dropped = %q", got)
	}
}
