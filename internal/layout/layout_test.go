package layout_test

import (
	"errors"
	"reflect"
	"testing"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/layout"
	"cbind/internal/typegraph"
)

type fixture struct {
	g   *typegraph.Graph
	a   *decl.Arena
	bag *diag.Bag
}

func newFixture() *fixture {
	g := typegraph.New()
	return &fixture{g: g, a: g.Arena(), bag: diag.NewBag(0)}
}

func (f *fixture) scalar(s decl.Scalar) decl.NodeID {
	return f.a.Fundamental(s, decl.Unknown, decl.Unknown)
}

type member struct {
	name  string
	typ   decl.NodeID
	width int
}

func plain(name string, typ decl.NodeID) member {
	return member{name: name, typ: typ, width: decl.NoBits}
}

func bits(name string, typ decl.NodeID, width int) member {
	return member{name: name, typ: typ, width: width}
}

func (f *fixture) record(kind decl.Kind, name string, packed bool, members ...member) decl.NodeID {
	rec := decl.Record{Complete: true, Packed: packed}
	for _, m := range members {
		rec.Fields = append(rec.Fields, decl.Field{Name: m.name, Type: m.typ, BitWidth: m.width, BitOffset: decl.Unknown})
	}
	id := f.a.AddRecord(decl.Node{Kind: kind, Name: name, Size: decl.Unknown, Align: decl.Unknown}, rec)
	f.g.Add(id)
	return id
}

func (f *fixture) resolve(t *testing.T, target layout.Target) []layout.Mismatch {
	t.Helper()
	mm, err := layout.Resolve(f.g, target, diag.BagReporter{Bag: f.bag})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return mm
}

func (f *fixture) layoutOf(t *testing.T, id decl.NodeID) *decl.RecordLayout {
	t.Helper()
	rec := f.a.Record(id)
	if rec == nil || rec.Layout == nil {
		t.Fatalf("no layout attached to %s", f.a.MustNode(id).Name)
	}
	return rec.Layout
}

func TestStructNaturalAlignment(t *testing.T) {
	f := newFixture()
	s := f.record(decl.KindStruct, "s", false,
		plain("a", f.scalar(decl.ScalarInt)),
		plain("b", f.scalar(decl.ScalarChar)),
		plain("c", f.scalar(decl.ScalarDouble)),
	)
	f.resolve(t, layout.X86_64LinuxGNU())
	l := f.layoutOf(t, s)
	if l.Size != 16 || l.Align != 8 {
		t.Fatalf("size/align = %d/%d, want 16/8", l.Size, l.Align)
	}
	if want := []int{0, 32, 64}; !reflect.DeepEqual(l.Offsets, want) {
		t.Fatalf("offsets = %v, want %v", l.Offsets, want)
	}
	if l.Source != decl.LayoutComputed {
		t.Fatalf("expected computed layout source")
	}
}

func TestBitfieldsStartNewUnitInsteadOfStraddling(t *testing.T) {
	f := newFixture()
	u := f.scalar(decl.ScalarUInt)
	s := f.record(decl.KindStruct, "flags", false,
		bits("a", u, 3),
		bits("b", u, 30),
		bits("", u, 0),
		plain("c", f.scalar(decl.ScalarChar)),
	)
	f.resolve(t, layout.X86_64LinuxGNU())
	l := f.layoutOf(t, s)
	if want := []int{0, 32, 64, 64}; !reflect.DeepEqual(l.Offsets, want) {
		t.Fatalf("offsets = %v, want %v", l.Offsets, want)
	}
	if l.Size != 12 || l.Align != 4 {
		t.Fatalf("size/align = %d/%d, want 12/4", l.Size, l.Align)
	}
}

func TestFrontEndOffsetsAgree(t *testing.T) {
	f := newFixture()
	u := f.scalar(decl.ScalarUInt)
	s := f.record(decl.KindStruct, "bf", false, bits("x", u, 4), bits("y", u, 4))
	rec := f.a.Record(s)
	rec.Fields[0].BitOffset = 0
	rec.Fields[1].BitOffset = 4
	f.a.Update(s, func(n *decl.Node) { n.Size, n.Align = 4, 4 })

	mm := f.resolve(t, layout.X86_64LinuxGNU())
	if len(mm) != 0 {
		t.Fatalf("unexpected mismatches: %v", mm)
	}
	if f.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %v", f.bag.Items())
	}
	if l := f.layoutOf(t, s); l.Source != decl.LayoutFrontEnd {
		t.Fatalf("expected front-end layout source")
	}
}

func TestSizeMismatchPrefersFrontEnd(t *testing.T) {
	f := newFixture()
	s := f.record(decl.KindStruct, "odd", false, plain("a", f.scalar(decl.ScalarInt)))
	f.a.Update(s, func(n *decl.Node) { n.Size = 32 })

	mm := f.resolve(t, layout.X86_64LinuxGNU())
	if len(mm) != 1 || mm[0].What != "size" || mm[0].Computed != 4 || mm[0].FrontEnd != 32 {
		t.Fatalf("mismatches = %+v", mm)
	}
	if got := f.bag.Filter(diag.LayoutSizeMismatch); len(got) != 1 || got[0].Severity != diag.SevWarning {
		t.Fatalf("expected one size mismatch warning, got %v", f.bag.Items())
	}
	if f.bag.HasErrors() {
		t.Fatalf("mismatch must not be fatal")
	}
	if l := f.layoutOf(t, s); l.Size != 32 {
		t.Fatalf("size = %d, want front-end 32", l.Size)
	}
}

func TestContainingRecordUsesFrontEndLayout(t *testing.T) {
	f := newFixture()
	inner := f.record(decl.KindStruct, "inner", false, plain("a", f.scalar(decl.ScalarInt)))
	f.a.Update(inner, func(n *decl.Node) { n.Size = 16 })
	outer := f.record(decl.KindStruct, "outer", false,
		plain("i", inner),
		plain("x", f.scalar(decl.ScalarInt)),
	)
	f.resolve(t, layout.X86_64LinuxGNU())
	l := f.layoutOf(t, outer)
	if l.Offsets[1] != 128 || l.Size != 20 {
		t.Fatalf("outer offsets=%v size=%d, want x at 128 and size 20", l.Offsets, l.Size)
	}
}

func TestEmptyAndFlexibleRecords(t *testing.T) {
	f := newFixture()
	char := f.scalar(decl.ScalarChar)
	empty := f.record(decl.KindStruct, "empty", false)
	vs := f.record(decl.KindStruct, "varsize", false, plain("data", f.a.Array(char, decl.CountIncomplete)))
	hdr := f.record(decl.KindStruct, "hdr", false,
		plain("n", f.scalar(decl.ScalarInt)),
		plain("data", f.a.Array(char, 0)),
	)
	f.resolve(t, layout.X86_64LinuxGNU())

	if l := f.layoutOf(t, empty); l.Size != 0 || l.Align != 1 {
		t.Fatalf("empty = %d/%d, want 0/1", l.Size, l.Align)
	}
	if l := f.layoutOf(t, vs); l.Size != 0 || !l.Flexible {
		t.Fatalf("varsize = size %d flexible %v, want 0 true", l.Size, l.Flexible)
	}
	if l := f.layoutOf(t, hdr); l.Size != 4 || !l.Flexible || l.Offsets[1] != 32 {
		t.Fatalf("hdr = %+v", l)
	}
}

func TestUnionLayout(t *testing.T) {
	f := newFixture()
	u := f.record(decl.KindUnion, "u", false,
		plain("c", f.scalar(decl.ScalarChar)),
		plain("d", f.scalar(decl.ScalarDouble)),
		bits("b", f.scalar(decl.ScalarInt), 3),
		plain("arr", f.a.Array(f.scalar(decl.ScalarChar), 9)),
	)
	f.resolve(t, layout.X86_64LinuxGNU())
	l := f.layoutOf(t, u)
	if l.Size != 16 || l.Align != 8 {
		t.Fatalf("size/align = %d/%d, want 16/8", l.Size, l.Align)
	}
	for i, off := range l.Offsets {
		if off != 0 {
			t.Fatalf("member %d at %d, want 0", i, off)
		}
	}
}

func TestPackedStruct(t *testing.T) {
	f := newFixture()
	s := f.record(decl.KindStruct, "p", true,
		plain("a", f.scalar(decl.ScalarChar)),
		plain("b", f.scalar(decl.ScalarInt)),
	)
	f.resolve(t, layout.X86_64LinuxGNU())
	l := f.layoutOf(t, s)
	if l.Size != 5 || l.Align != 1 || l.Offsets[1] != 8 {
		t.Fatalf("packed = %+v", l)
	}
}

func TestI386DoubleAlignment(t *testing.T) {
	f := newFixture()
	s := f.record(decl.KindStruct, "cd", false,
		plain("c", f.scalar(decl.ScalarChar)),
		plain("d", f.scalar(decl.ScalarDouble)),
	)
	f.resolve(t, layout.I386LinuxGNU())
	l := f.layoutOf(t, s)
	if l.Size != 12 || l.Align != 4 || l.Offsets[1] != 32 {
		t.Fatalf("i386 = %+v", l)
	}
}

func TestIncompleteFieldIsReported(t *testing.T) {
	f := newFixture()
	fwd := f.a.AddRecord(decl.Node{Kind: decl.KindStruct, Name: "opaque", Size: decl.Unknown, Align: decl.Unknown}, decl.Record{})
	f.g.Add(fwd)
	s := f.record(decl.KindStruct, "holder", false,
		plain("o", fwd),
		plain("n", f.scalar(decl.ScalarInt)),
	)
	f.resolve(t, layout.X86_64LinuxGNU())
	if got := f.bag.Filter(diag.LayoutIncompleteField); len(got) != 1 {
		t.Fatalf("expected one incomplete-field warning, got %v", f.bag.Items())
	}
	if l := f.layoutOf(t, s); l.Size != 4 || l.Offsets[1] != 0 {
		t.Fatalf("holder = %+v", l)
	}
	if f.a.Record(fwd).Layout != nil {
		t.Fatalf("forward-only record must not get a layout")
	}
}

func TestRecursiveValueRecordFails(t *testing.T) {
	f := newFixture()
	s := f.record(decl.KindStruct, "self", false)
	f.a.Record(s).Fields = []decl.Field{{Name: "me", Type: s, BitWidth: decl.NoBits, BitOffset: decl.Unknown}}
	_, err := layout.Resolve(f.g, layout.X86_64LinuxGNU(), nil)
	var le *layout.LayoutError
	if !errors.As(err, &le) || le.Kind != layout.LayoutErrRecursiveUnsized {
		t.Fatalf("expected recursive layout error, got %v", err)
	}
}

func TestParseTarget(t *testing.T) {
	for in, want := range map[string]string{
		"":                    "x86_64-linux-gnu",
		"arm64":               "aarch64-linux-gnu",
		"i386-linux-gnu":      "i386-linux-gnu",
		"X86_64-Windows-MSVC": "x86_64-windows-msvc",
	} {
		got, err := layout.ParseTarget(in)
		if err != nil || got.Triple != want {
			t.Fatalf("ParseTarget(%q) = %q, %v; want %q", in, got.Triple, err, want)
		}
	}
	if _, err := layout.ParseTarget("pdp11"); err == nil {
		t.Fatalf("expected error for unknown target")
	}
}

func TestScalarLayoutPerTarget(t *testing.T) {
	win := layout.X86_64Windows()
	if l := win.ScalarLayout(decl.ScalarLong); l.Size != 4 {
		t.Fatalf("windows long = %d, want 4", l.Size)
	}
	if l := win.ScalarLayout(decl.ScalarWChar); l.Size != 2 || win.IsSigned(decl.ScalarWChar) {
		t.Fatalf("windows wchar_t = %+v", l)
	}
	arm := layout.AArch64LinuxGNU()
	if arm.IsSigned(decl.ScalarChar) {
		t.Fatalf("aarch64 char must be unsigned")
	}
	if l := layout.I386LinuxGNU().ScalarLayout(decl.ScalarLongDouble); l.Size != 12 || l.Align != 4 {
		t.Fatalf("i386 long double = %+v", l)
	}
}
