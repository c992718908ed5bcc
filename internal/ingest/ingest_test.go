package ingest_test

import (
	"errors"
	"strings"
	"testing"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/ingest"
	"cbind/internal/stream"
)

func decode(t *testing.T, src string) []stream.Entry {
	t.Helper()
	entries, err := stream.DecodeNDJSON(strings.NewReader(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return entries
}

func lookup(t *testing.T, a *decl.Arena, kind decl.Kind, name string) decl.NodeID {
	t.Helper()
	for id := decl.NodeID(1); int(id) < a.Len(); id++ {
		n := a.MustNode(id)
		if n.Kind == kind && n.Name == name {
			return id
		}
	}
	t.Fatalf("%s %s not found", kind, name)
	return decl.NoNode
}

func count(a *decl.Arena, kind decl.Kind, name string) int {
	total := 0
	for id := decl.NodeID(1); int(id) < a.Len(); id++ {
		n := a.MustNode(id)
		if n.Kind == kind && n.Name == name {
			total++
		}
	}
	return total
}

func TestForwardDeclarationIsUpgraded(t *testing.T) {
	res := ingest.Ingest(decode(t, `{"kind":"struct","name":"A","opaque":true}
{"kind":"typedef","name":"A_t","type":{"kind":"pointer","elem":{"kind":"struct","name":"A"}}}
{"kind":"struct","name":"A","size":4,"align":4,"fields":[{"name":"x","type":{"kind":"fundamental","name":"int"}}]}
`), nil)
	if len(res.Skipped) != 0 {
		t.Fatalf("unexpected skips: %v", res.Skipped)
	}
	a := res.Graph.Arena()
	if got := count(a, decl.KindStruct, "A"); got != 1 {
		t.Fatalf("struct A nodes = %d, want 1", got)
	}
	id := lookup(t, a, decl.KindStruct, "A")
	rec := a.Record(id)
	if !rec.Complete || len(rec.Fields) != 1 || rec.Fields[0].Name != "x" {
		t.Fatalf("record not upgraded: %+v", rec)
	}
	if n := a.MustNode(id); n.Ordinal != 2 || n.Size != 4 {
		t.Fatalf("node after upgrade: %+v", n)
	}
}

func TestIncompatibleRedefinitionIsSkipped(t *testing.T) {
	bag := diag.NewBag(0)
	res := ingest.Ingest(decode(t, `{"kind":"struct","name":"S","fields":[{"name":"a","type":{"kind":"fundamental","name":"int"}}]}
{"kind":"struct","name":"S","fields":[{"name":"a","type":{"kind":"fundamental","name":"int"}}]}
{"kind":"struct","name":"S","fields":[{"name":"b","type":{"kind":"fundamental","name":"long"}}]}
{"kind":"union","name":"S","fields":[]}
`), diag.BagReporter{Bag: bag})
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped = %v, want 2 entries", res.Skipped)
	}
	for _, s := range res.Skipped {
		if s.Code != diag.IngIncompatibleDefinition {
			t.Fatalf("unexpected code %s for %v", s.Code, s)
		}
	}
	if res.Skipped[0].Entry != 2 || res.Skipped[1].Entry != 3 {
		t.Fatalf("skipped entries = %d, %d", res.Skipped[0].Entry, res.Skipped[1].Entry)
	}
	a := res.Graph.Arena()
	if rec := a.Record(lookup(t, a, decl.KindStruct, "S")); rec.Fields[0].Name != "a" {
		t.Fatalf("first definition must win, got %+v", rec.Fields)
	}
	if len(bag.Filter(diag.IngIncompatibleDefinition)) != 2 {
		t.Fatalf("diagnostics = %v", bag.Items())
	}
}

func TestBadEntriesDoNotStopIngestion(t *testing.T) {
	res := ingest.Ingest(decode(t, `{"kind":"namespace","name":"std"}
{"kind":"struct", broken
{"kind":"typedef","name":"t","type":{"kind":"typedef","name":"missing_t"}}
{"kind":"function","type":{"kind":"fundamental","name":"int"}}
{"kind":"macro","name":"FOO","body":"(1+2)"}
`), nil)
	if len(res.Skipped) != 4 {
		t.Fatalf("skipped = %v, want 4", res.Skipped)
	}
	wantCodes := []diag.Code{diag.IngUnknownKind, diag.IngMalformedEntry, diag.IngUnknownTypeName, diag.IngMissingName}
	for i, code := range wantCodes {
		if res.Skipped[i].Code != code {
			t.Fatalf("skip %d code = %s, want %s", i, res.Skipped[i].Code, code)
		}
	}
	if !strings.Contains(res.Skipped[2].Reason, "unknown type name") {
		t.Fatalf("reason = %q", res.Skipped[2].Reason)
	}
	a := res.Graph.Arena()
	lookup(t, a, decl.KindMacro, "FOO")
	if res.Graph.Len() != 1 {
		t.Fatalf("graph members = %d, want only the macro", res.Graph.Len())
	}
}

func TestSkippedEntryLeavesNoNodes(t *testing.T) {
	in := ingest.New(nil)
	before := in.Graph().Arena().Len()
	entries := decode(t, `{"kind":"struct","name":"holder","fields":[{"name":"s","type":{"kind":"struct","name":"never_defined"}},{"name":"t","type":{"kind":"typedef","name":"nope_t"}}]}
`)
	err := in.Add(&entries[0])
	var ie *ingest.Error
	if !errors.As(err, &ie) || ie.Code != diag.IngUnknownTypeName {
		t.Fatalf("err = %v", err)
	}
	if in.Graph().Arena().Len() != before {
		t.Fatalf("skipped entry created nodes")
	}
}

func TestAnonymousMembersGetParentAndPosition(t *testing.T) {
	res := ingest.Ingest(decode(t, `{"kind":"struct","name":"outer","fields":[{"name":"inner","type":{"kind":"struct","fields":[{"name":"x","type":{"kind":"fundamental","name":"int"}}]}},{"type":{"kind":"union","fields":[{"name":"a","type":{"kind":"fundamental","name":"int"}},{"name":"b","type":{"kind":"fundamental","name":"float"}}]}}]}
{"kind":"typedef","name":"foo_t","type":{"kind":"struct","defined":true,"fields":[]}}
{"kind":"enum","values":[{"name":"RED","value":0}]}
`), nil)
	if len(res.Skipped) != 0 {
		t.Fatalf("unexpected skips: %v", res.Skipped)
	}
	a := res.Graph.Arena()
	outer := lookup(t, a, decl.KindStruct, "outer")
	rec := a.Record(outer)
	first, second := a.MustNode(rec.Fields[0].Type), a.MustNode(rec.Fields[1].Type)
	if first.Kind != decl.KindStruct || first.Parent != outer || first.Position != 0 {
		t.Fatalf("first anonymous member = %+v", first)
	}
	if second.Kind != decl.KindUnion || second.Parent != outer || second.Position != 1 {
		t.Fatalf("second anonymous member = %+v", second)
	}
	td := lookup(t, a, decl.KindTypedef, "foo_t")
	target := a.MustNode(a.MustNode(td).Elem)
	if target.Parent != td || !target.IsAnonymous() || !a.Record(a.MustNode(td).Elem).Complete {
		t.Fatalf("typedef target = %+v", target)
	}
	enum := a.Enum(lookup(t, a, decl.KindEnum, ""))
	if enum == nil || len(enum.Values) != 1 {
		t.Fatalf("top-level anonymous enum not ingested")
	}
}

func TestUndefinedTagBecomesForwardOnly(t *testing.T) {
	res := ingest.Ingest(decode(t, `{"kind":"function","name":"open_handle","result":{"kind":"pointer","elem":{"kind":"struct","name":"handle"}},"params":[{"name":"path","type":{"kind":"pointer","elem":{"kind":"fundamental","name":"char","const":true}}}]}
`), nil)
	a := res.Graph.Arena()
	h := lookup(t, a, decl.KindStruct, "handle")
	if a.Record(h).Complete {
		t.Fatalf("handle must stay forward-only")
	}
	fn := lookup(t, a, decl.KindFunction, "open_handle")
	if got := a.Prototype(fn); got != "struct handle *open_handle(const char *path)" {
		t.Fatalf("prototype = %q", got)
	}
}

func TestMutualPointerCycleOrdersWithForwardDeclaration(t *testing.T) {
	res := ingest.Ingest(decode(t, `{"kind":"struct","name":"A","fields":[{"name":"next","type":{"kind":"pointer","elem":{"kind":"struct","name":"B"}}}]}
{"kind":"struct","name":"B","fields":[{"name":"prev","type":{"kind":"pointer","elem":{"kind":"struct","name":"A"}}}]}
`), nil)
	order, err := res.Graph.DependencyOrder()
	if err != nil {
		t.Fatalf("DependencyOrder: %v", err)
	}
	a := res.Graph.Arena()
	var parts []string
	for _, s := range order.Steps() {
		name := a.MustNode(s.ID).Name
		if s.Forward {
			name = "fwd " + name
		}
		parts = append(parts, name)
	}
	if got := strings.Join(parts, ", "); got != "fwd B, A, B" {
		t.Fatalf("order = %q", got)
	}
}

func TestMacroRedefinitionReplacesBody(t *testing.T) {
	res := ingest.Ingest(decode(t, `{"kind":"macro","name":"V","body":"1"}
{"kind":"macro","name":"V","body":"2"}
{"kind":"macro","name":"F","macro_params":["x"],"body":"(x)"}
`), nil)
	a := res.Graph.Arena()
	if got := count(a, decl.KindMacro, "V"); got != 1 {
		t.Fatalf("macro V nodes = %d", got)
	}
	if m := a.Macro(lookup(t, a, decl.KindMacro, "V")); m.Body != "2" {
		t.Fatalf("body = %q, want 2", m.Body)
	}
	if m := a.Macro(lookup(t, a, decl.KindMacro, "F")); !m.FuncLike || len(m.Params) != 1 {
		t.Fatalf("function-like macro = %+v", m)
	}
}

func TestInlineBodyOfAnotherTagKindIsSkipped(t *testing.T) {
	bag := diag.NewBag(0)
	res := ingest.Ingest(decode(t, `{"kind":"enum","name":"X","opaque":true}
{"kind":"typedef","name":"X_t","type":{"kind":"struct","name":"X","fields":[{"name":"a","type":{"kind":"fundamental","name":"int"}}]}}
{"kind":"struct","name":"Y","opaque":true}
{"kind":"typedef","name":"Y_t","type":{"kind":"enum","name":"Y","values":[{"name":"Y_ONE","value":1}]}}
{"kind":"struct","name":"holder","fields":[{"name":"s","type":{"kind":"struct","name":"Q","fields":[]}},{"name":"e","type":{"kind":"enum","name":"Q","values":[{"name":"Q_ONE","value":1}]}}]}
{"kind":"function","name":"f","result":{"kind":"fundamental","name":"int"}}
`), diag.BagReporter{Bag: bag})
	if len(res.Skipped) != 3 {
		t.Fatalf("skipped = %v, want 3 entries", res.Skipped)
	}
	for i, want := range []int{1, 3, 4} {
		if s := res.Skipped[i]; s.Entry != want || s.Code != diag.IngIncompatibleDefinition {
			t.Fatalf("skip %d = entry %d %s, want entry %d", i, s.Entry, s.Code, want)
		}
	}
	a := res.Graph.Arena()
	lookup(t, a, decl.KindFunction, "f")
	if en := a.Enum(lookup(t, a, decl.KindEnum, "X")); en == nil || en.Complete {
		t.Fatalf("enum X = %+v", en)
	}
	if rec := a.Record(lookup(t, a, decl.KindStruct, "Y")); rec == nil || rec.Complete {
		t.Fatalf("struct Y = %+v", rec)
	}
	if got := count(a, decl.KindStruct, "Q") + count(a, decl.KindEnum, "Q"); got != 0 {
		t.Fatalf("skipped entry left %d nodes for Q", got)
	}
}
