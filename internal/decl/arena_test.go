package decl_test

import (
	"testing"

	"cbind/internal/decl"
)

func TestInternDerivedTypes(t *testing.T) {
	a := decl.NewArena()
	i32 := a.Fundamental(decl.ScalarInt, 4, 4)
	if again := a.Fundamental(decl.ScalarInt, 4, 4); again != i32 {
		t.Fatalf("fundamental not interned: %d vs %d", again, i32)
	}
	p1 := a.Pointer(i32, false)
	if a.Pointer(i32, true) == p1 {
		t.Fatalf("const pointee must be a distinct node")
	}
	fp := a.FunctionPointer(decl.Signature{Result: i32, Params: []decl.Param{{Type: p1}}})
	if a.FunctionPointer(decl.Signature{Result: i32, Params: []decl.Param{{Name: "x", Type: p1}}}) != fp {
		t.Fatalf("function pointers with the same shape must share a node")
	}
	s1 := a.AddRecord(decl.Node{Kind: decl.KindStruct, Name: "s"}, decl.Record{})
	s2 := a.AddRecord(decl.Node{Kind: decl.KindStruct, Name: "s"}, decl.Record{})
	if s1 == s2 {
		t.Fatalf("declarations must never be interned")
	}
}

func TestSpell(t *testing.T) {
	a := decl.NewArena()
	void := a.Fundamental(decl.ScalarVoid, decl.Unknown, decl.Unknown)
	char := a.Fundamental(decl.ScalarChar, 1, 1)
	ulong := a.Fundamental(decl.ScalarULong, 8, 8)
	sizeT := a.AddTypedef(decl.Node{Name: "size_t"}, ulong)
	malloc := a.AddFunction(decl.Node{Name: "malloc"}, decl.Signature{
		Result: a.Pointer(void, false),
		Params: []decl.Param{{Name: "size", Type: sizeT}},
	})
	if got := a.Prototype(malloc); got != "void *malloc(size_t size)" {
		t.Fatalf("prototype = %q", got)
	}

	cb := a.FunctionPointer(decl.Signature{Result: char, Params: []decl.Param{{Type: a.Pointer(char, true)}}})
	if got := a.Spell(cb, "fn"); got != "char (*fn)(const char *)" {
		t.Fatalf("function pointer = %q", got)
	}
	arr := a.Array(a.Array(char, 4), decl.CountIncomplete)
	if got := a.Spell(arr, "grid"); got != "char grid[][4]" {
		t.Fatalf("array = %q", got)
	}
}

func TestParseScalar(t *testing.T) {
	cases := map[string]decl.Scalar{
		"int":                    decl.ScalarInt,
		"long unsigned int":      decl.ScalarULong,
		"unsigned long":          decl.ScalarULong,
		"short unsigned int":     decl.ScalarUShort,
		"long long int":          decl.ScalarLongLong,
		"long long unsigned int": decl.ScalarULongLong,
		"signed char":            decl.ScalarSChar,
		"char":                   decl.ScalarChar,
		"unsigned":               decl.ScalarUInt,
		"long double":            decl.ScalarLongDouble,
		"_Bool":                  decl.ScalarBool,
		"unsigned __int128":      decl.ScalarUInt128,
	}
	for in, want := range cases {
		got, err := decl.ParseScalar(in)
		if err != nil || got != want {
			t.Fatalf("ParseScalar(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := decl.ParseScalar("quux"); err == nil {
		t.Fatalf("expected error for unknown name")
	}
}
