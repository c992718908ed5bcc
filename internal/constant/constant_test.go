package constant_test

import (
	"errors"
	"strings"
	"testing"

	"cbind/internal/constant"
	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/layout"
	"cbind/internal/typegraph"
)

func newEvaluator() *constant.Evaluator {
	return constant.NewEvaluator(layout.X86_64LinuxGNU())
}

func mustEval(t *testing.T, ev *constant.Evaluator, text string) *decl.Literal {
	t.Helper()
	lit, err := ev.Eval(text)
	if err != nil {
		t.Fatalf("Eval(%q): %v", text, err)
	}
	return lit
}

func expectInt(t *testing.T, text string, want string, typ decl.Scalar) {
	t.Helper()
	lit := mustEval(t, newEvaluator(), text)
	if lit.Kind != decl.LitInt {
		t.Fatalf("%q: kind = %s, want int", text, lit.Kind)
	}
	if lit.Int.String() != want || lit.Type != typ {
		t.Fatalf("%q = %s (%s), want %s (%s)", text, lit.Int, lit.Type, want, typ)
	}
}

func expectUnresolved(t *testing.T, ev *constant.Evaluator, text, reason string) {
	t.Helper()
	_, err := ev.Eval(text)
	var u *constant.Unresolved
	if !errors.As(err, &u) {
		t.Fatalf("Eval(%q) err = %v, want *Unresolved", text, err)
	}
	if !strings.Contains(u.Reason, reason) {
		t.Fatalf("Eval(%q) reason = %q, want it to contain %q", text, u.Reason, reason)
	}
}

func TestIntegerFolding(t *testing.T) {
	cases := []struct {
		text string
		want string
		typ  decl.Scalar
	}{
		{"(1+2)", "3", decl.ScalarInt},
		{"-1", "-1", decl.ScalarInt},
		{"~0U", "4294967295", decl.ScalarUInt},
		{"0xFFFFFFFF", "4294967295", decl.ScalarUInt},
		{"0x7FFFFFFFFFFFFFFF", "9223372036854775807", decl.ScalarLong},
		{"0xFFFFFFFFFFFFFFFF", "18446744073709551615", decl.ScalarULong},
		{"1 << 31", "-2147483648", decl.ScalarInt},
		{"(1ULL << 63)", "9223372036854775808", decl.ScalarULong},
		{"10 / 3", "3", decl.ScalarInt},
		{"-7 / 2", "-3", decl.ScalarInt},
		{"-7 % 2", "-1", decl.ScalarInt},
		{"0x10 | 0b101 | 010", "29", decl.ScalarInt},
		{"3 > 2 ? 10 : 20", "10", decl.ScalarInt},
		{"0 && (1/0)", "0", decl.ScalarInt},
		{"1 || (1/0)", "1", decl.ScalarInt},
		{"-1 < 0U", "0", decl.ScalarInt},
		{"(unsigned char)300", "44", decl.ScalarInt},
		{"0x80000000 >> 4", "134217728", decl.ScalarUInt},
		{"1 - 2u", "4294967295", decl.ScalarUInt},
		{"100i64", "100", decl.ScalarInt},
		{"'a' + 1", "98", decl.ScalarInt},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			expectInt(t, tc.text, tc.want, tc.typ)
		})
	}
}

func TestFloatFolding(t *testing.T) {
	ev := newEvaluator()
	if lit := mustEval(t, ev, "1.5f"); lit.Kind != decl.LitFloat || lit.Float != 1.5 || lit.Type != decl.ScalarFloat {
		t.Fatalf("1.5f = %+v", lit)
	}
	if lit := mustEval(t, ev, "1e3 / 4"); lit.Float != 250 || lit.Type != decl.ScalarDouble {
		t.Fatalf("1e3 / 4 = %+v", lit)
	}
	if lit := mustEval(t, ev, "0x1.8p1"); lit.Float != 3 {
		t.Fatalf("0x1.8p1 = %+v", lit)
	}
	if lit := mustEval(t, ev, "(int)2.9"); lit.Kind != decl.LitInt || lit.Int.Int64() != 2 {
		t.Fatalf("(int)2.9 = %+v", lit)
	}
}

func TestStringAndCharLiterals(t *testing.T) {
	ev := newEvaluator()
	lit := mustEval(t, ev, `"spam"`)
	if lit.Kind != decl.LitString || lit.Str != "spam" || lit.Wide {
		t.Fatalf(`"spam" = %+v`, lit)
	}
	lit = mustEval(t, ev, `L"foo"`)
	if lit.Kind != decl.LitString || lit.Str != "foo" || !lit.Wide || lit.Type != decl.ScalarWChar {
		t.Fatalf(`L"foo" = %+v`, lit)
	}
	lit = mustEval(t, ev, `"a" "b\n"`)
	if lit.Str != "ab\n" {
		t.Fatalf("concatenation = %q", lit.Str)
	}
	lit = mustEval(t, ev, `"caf\xc3\xa9"`)
	if lit.Str != "café" {
		t.Fatalf("hex escapes = %q", lit.Str)
	}
	lit = mustEval(t, ev, `'a'`)
	if lit.Kind != decl.LitChar || lit.Int.Int64() != 97 {
		t.Fatalf("'a' = %+v", lit)
	}
	lit = mustEval(t, ev, `'\n'`)
	if lit.Int.Int64() != 10 {
		t.Fatalf(`'\n' = %+v`, lit)
	}
	lit = mustEval(t, ev, `L'x'`)
	if !lit.Wide || lit.Type != decl.ScalarWChar {
		t.Fatalf("L'x' = %+v", lit)
	}
}

func TestUnresolvedReasons(t *testing.T) {
	ev := newEvaluator()
	ev.DefineMacro("CALLME", []string{"x"}, true, "(x)")
	cases := map[string]string{
		"some_function(1)": "invocation of some_function",
		"sizeof(int)":      "sizeof",
		"defined(FOO)":     "defined",
		"#x":               "stringification",
		"a ## b":           "stringification",
		"unknown_name":     "unknown identifier",
		"1 / 0":            "division by zero",
		"(1 + ":            "syntax error",
		"1 2":              "syntax error",
		"CALLME":           "function-like macro",
		"(void *)0":        "pointer",
		"(struct s)0":      "cast to struct",
		"1 << 40":          "out of range",
		"   ":              "empty definition",
		"\"a\" + 1":        "invalid operands",
	}
	for text, reason := range cases {
		t.Run(text, func(t *testing.T) {
			expectUnresolved(t, ev, text, reason)
		})
	}
}

func TestMacroReferences(t *testing.T) {
	ev := newEvaluator()
	ev.DefineMacro("A", nil, false, "B + 1")
	ev.DefineMacro("B", nil, false, "(2)")
	ev.DefineMacro("X", nil, false, "Y")
	ev.DefineMacro("Y", nil, false, "X")
	ev.DefineMacro("FN", []string{"v"}, true, "v")
	ev.DefineEnum("RED", 5, decl.ScalarUInt)
	ev.DefineTypedef("uint32_t", decl.ScalarUInt)
	ev.DefineMacro("MASK", nil, false, "((uint32_t)-1)")
	ev.DefineMacro("NEXT", nil, false, "RED + 1")

	lit, err := ev.Macro("A")
	if err != nil || lit.Int.Int64() != 3 {
		t.Fatalf("A = %v, %v", lit, err)
	}
	if _, err := ev.Macro("X"); err == nil {
		t.Fatalf("expected cyclic macro to stay unresolved")
	}
	_, err = ev.Macro("FN")
	var u *constant.Unresolved
	if !errors.As(err, &u) || u.Name != "FN" {
		t.Fatalf("FN err = %v", err)
	}
	lit, err = ev.Macro("MASK")
	if err != nil || lit.Int.String() != "4294967295" || lit.Type != decl.ScalarUInt {
		t.Fatalf("MASK = %v, %v", lit, err)
	}
	lit, err = ev.Macro("NEXT")
	if err != nil || lit.Int.Int64() != 6 || lit.Type != decl.ScalarInt {
		t.Fatalf("NEXT = %v, %v", lit, err)
	}
}

func TestTargetWidths(t *testing.T) {
	ev := constant.NewEvaluator(layout.X86_64Windows())
	lit, err := ev.Eval("0xFFFFFFFFFF")
	if err != nil || lit.Type != decl.ScalarLongLong {
		t.Fatalf("windows 40-bit literal = %v, %v", lit, err)
	}
	lit, err = ev.Eval("0xFFFFFFFFFFFFFFFF")
	if err != nil || lit.Type != decl.ScalarULongLong {
		t.Fatalf("windows 64-bit all ones = %v, %v", lit, err)
	}
}

func TestResolveAttachesValues(t *testing.T) {
	g := typegraph.New()
	a := g.Arena()
	add := func(name, body string) decl.NodeID {
		id := a.AddMacro(decl.Node{Name: name, Ordinal: a.Len()}, decl.Macro{Body: body})
		g.Add(id)
		return id
	}
	foo := add("FOO", "(1+2)")
	bar := add("BAR", "some_function(1)")
	large := add("LARGE", "0xFFFFFFFF")

	bag := diag.NewBag(0)
	omitted := constant.Resolve(g, layout.X86_64LinuxGNU(), diag.BagReporter{Bag: bag})

	if m := a.Macro(foo); !m.Resolved() || m.Value.Int.Int64() != 3 {
		t.Fatalf("FOO = %+v", m)
	}
	if m := a.Macro(large); !m.Resolved() || m.Value.Type != decl.ScalarUInt {
		t.Fatalf("LARGE = %+v", m)
	}
	if m := a.Macro(bar); m.Resolved() || m.Unresolved == "" {
		t.Fatalf("BAR = %+v", m)
	}
	if len(omitted) != 1 || omitted[0].Name != "BAR" {
		t.Fatalf("omitted = %v", omitted)
	}
	if got := bag.Filter(diag.ConstUnresolved); len(got) != 1 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestInitializerConvertsToVariableType(t *testing.T) {
	ev := newEvaluator()
	ints := []struct {
		text string
		typ  decl.Scalar
		want string
		kind decl.LiteralKind
	}{
		{"-1", decl.ScalarUInt, "4294967295", decl.LitInt},
		{"-1", decl.ScalarULongLong, "18446744073709551615", decl.LitInt},
		{"0x1FF", decl.ScalarUChar, "255", decl.LitChar},
		{"'x'", decl.ScalarChar, "120", decl.LitChar},
		{"2.9", decl.ScalarInt, "2", decl.LitInt},
		{"7", decl.ScalarBool, "1", decl.LitInt},
	}
	for _, tc := range ints {
		lit, err := ev.Initializer(tc.text, tc.typ)
		if err != nil {
			t.Fatalf("Initializer(%q, %s): %v", tc.text, tc.typ, err)
		}
		if lit.Kind != tc.kind || lit.Type != tc.typ || lit.Int.String() != tc.want {
			t.Fatalf("Initializer(%q, %s) = %s %s (%s)", tc.text, tc.typ, lit.Kind, lit.Int, lit.Type)
		}
	}

	lit, err := ev.Initializer("3", decl.ScalarDouble)
	if err != nil || lit.Kind != decl.LitFloat || lit.Float != 3 {
		t.Fatalf("double = %+v, %v", lit, err)
	}
	lit, err = ev.Initializer(`"ab" "c"`, decl.ScalarInvalid)
	if err != nil || lit.Kind != decl.LitString || lit.Str != "abc" {
		t.Fatalf("string = %+v, %v", lit, err)
	}
	if _, err := ev.Initializer("1", decl.ScalarInvalid); err == nil {
		t.Fatalf("number accepted for a character array")
	}
	if _, err := ev.Initializer(`"abc"`, decl.ScalarInt); err == nil {
		t.Fatalf("string accepted for an int")
	}
}

func TestResolveFoldsInitializersInStreamOrder(t *testing.T) {
	g := typegraph.New()
	a := g.Arena()
	uint32ID := a.Fundamental(decl.ScalarUInt, decl.Unknown, decl.Unknown)
	variable := func(name, init string) decl.NodeID {
		id := a.AddVariable(decl.Node{Name: name, Ordinal: a.Len()}, uint32ID, decl.Variable{Init: init})
		g.Add(id)
		return id
	}
	macro := func(name, body string) decl.NodeID {
		id := a.AddMacro(decl.Node{Name: name, Ordinal: a.Len()}, decl.Macro{Body: body})
		g.Add(id)
		return id
	}
	late := macro("LATE", "f(1)")
	minusone := variable("minusone", "-1")
	macro("EARLY", "g(2)")
	broken := variable("broken", "h()")
	// a redefinition moves the macro to its new place in the stream
	a.Update(late, func(n *decl.Node) { n.Ordinal = a.Len() + 10 })

	omitted := constant.Resolve(g, layout.X86_64LinuxGNU(), nil)

	if v := a.Variable(minusone); v.Value == nil || v.Value.Int.String() != "4294967295" || v.Value.Type != decl.ScalarUInt {
		t.Fatalf("minusone = %+v", v)
	}
	if v := a.Variable(broken); v.Value != nil || v.Unresolved == "" {
		t.Fatalf("broken = %+v", v)
	}
	var got []string
	for _, u := range omitted {
		got = append(got, u.Kind.String()+" "+u.Name)
	}
	if strings.Join(got, ", ") != "macro EARLY, macro LATE, variable broken" {
		t.Fatalf("omitted = %v", got)
	}
}
