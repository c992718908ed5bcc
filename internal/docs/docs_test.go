package docs_test

import (
	"context"
	"strings"
	"testing"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/docs"
)

const header = `#ifndef HANDLE_H
#define HANDLE_H

/* Opens a handle. */
struct handle *open_handle(const char *path);

// Maximum buffer size.
#define MAX_SIZE 16

/**
 * A point.
 */
typedef struct point {
    int x;
} point_t;

int undocumented(void);

#endif
`

func TestHeaderComments(t *testing.T) {
	h := docs.NewHeaders()
	if err := h.Add(context.Background(), []byte(header)); err != nil {
		t.Fatalf("add: %v", err)
	}
	cases := []struct {
		sym  decl.Symbol
		want string
	}{
		{decl.Symbol{Kind: decl.KindFunction, Name: "open_handle"}, "Opens a handle."},
		{decl.Symbol{Kind: decl.KindMacro, Name: "MAX_SIZE"}, "Maximum buffer size."},
		{decl.Symbol{Kind: decl.KindStruct, Name: "point"}, "A point."},
		{decl.Symbol{Kind: decl.KindTypedef, Name: "point_t"}, "A point."},
	}
	for _, tc := range cases {
		got, ok := h.Docstring(tc.sym)
		if !ok || got != tc.want {
			t.Errorf("%s %s: got %q (%v), want %q", tc.sym.Kind, tc.sym.Name, got, ok, tc.want)
		}
	}
	if doc, ok := h.Docstring(decl.Symbol{Kind: decl.KindFunction, Name: "undocumented"}); ok {
		t.Fatalf("undocumented has %q", doc)
	}
	if _, ok := h.Docstring(decl.Symbol{Kind: decl.KindTypedef, Name: "point"}); ok {
		t.Fatalf("tag comment leaked into the ordinary namespace")
	}
}

func TestPrototypesAndChain(t *testing.T) {
	a := decl.NewArena()
	void := a.Fundamental(decl.ScalarVoid, 0, 1)
	ulong := a.Fundamental(decl.ScalarULong, 8, 8)
	fn := a.AddFunction(decl.Node{
		Kind: decl.KindFunction,
		Name: "malloc",
		Loc:  diag.Loc{Entry: 0, File: "malloc.h", Line: 38},
		Doc:  "Allocates memory.",
	}, decl.Signature{Result: a.Pointer(void, false), Params: []decl.Param{{Name: "size", Type: ulong}}})

	sym := a.Symbol(fn)
	doc, ok := docs.Prototypes{}.Docstring(sym)
	if !ok || !strings.HasPrefix(strings.ReplaceAll(doc, " ", ""), "void*malloc(unsignedlong") {
		t.Fatalf("prototype doc = %q", doc)
	}
	if !strings.Contains(doc, "malloc.h:38") {
		t.Fatalf("prototype doc lacks location: %q", doc)
	}

	chained, ok := docs.Chain{docs.Prototypes{}, docs.None, docs.FrontEnd{}}.Docstring(sym)
	if !ok || !strings.HasSuffix(chained, "\n\nAllocates memory.") {
		t.Fatalf("chain = %q", chained)
	}
	if _, ok := (docs.Chain{docs.None}).Docstring(sym); ok {
		t.Fatalf("empty chain must miss")
	}
}
