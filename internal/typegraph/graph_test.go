package typegraph_test

import (
	"errors"
	"strings"
	"testing"

	"cbind/internal/decl"
	"cbind/internal/typegraph"
)

type builder struct {
	g       *typegraph.Graph
	a       *decl.Arena
	ordinal int
	i32     decl.NodeID
}

func newBuilder() *builder {
	g := typegraph.New()
	a := g.Arena()
	return &builder{g: g, a: a, i32: a.Fundamental(decl.ScalarInt, 4, 4)}
}

func (b *builder) record(kind decl.Kind, name string) decl.NodeID {
	id := b.a.AddRecord(decl.Node{Kind: kind, Name: name, Ordinal: b.ordinal, Size: decl.Unknown, Align: decl.Unknown}, decl.Record{Complete: true})
	b.ordinal++
	return id
}

func (b *builder) fields(id decl.NodeID, types ...decl.NodeID) {
	rec := b.a.Record(id)
	for i, typ := range types {
		rec.Fields = append(rec.Fields, decl.Field{Name: string(rune('a' + i)), Type: typ, BitWidth: decl.NoBits, BitOffset: decl.Unknown})
	}
	b.g.Add(id)
}

func (b *builder) names(steps []typegraph.Step) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = b.a.MustNode(s.ID).Name
		if s.Forward {
			parts[i] = "fwd " + parts[i]
		}
	}
	return strings.Join(parts, ", ")
}

func TestDependencyOrderPlacesValueDependenciesFirst(t *testing.T) {
	b := newBuilder()
	outer := b.record(decl.KindStruct, "outer")
	inner := b.record(decl.KindStruct, "inner")
	td := b.a.AddTypedef(decl.Node{Name: "inner_t", Ordinal: 2}, inner)
	b.fields(outer, td, b.a.Array(b.i32, 3))
	b.fields(inner, b.i32)
	b.g.Add(td)

	order, err := b.g.DependencyOrder()
	if err != nil {
		t.Fatalf("DependencyOrder: %v", err)
	}
	if got := b.names(order.Steps()); got != "inner, inner_t, outer" {
		t.Fatalf("order = %q", got)
	}
}

func TestDependencyOrderBreaksPointerCycleWithForwardDeclaration(t *testing.T) {
	b := newBuilder()
	a := b.record(decl.KindStruct, "A")
	c := b.record(decl.KindStruct, "B")
	b.fields(a, b.a.Pointer(c, false))
	b.fields(c, b.a.Pointer(a, false))

	order, err := b.g.DependencyOrder()
	if err != nil {
		t.Fatalf("DependencyOrder: %v", err)
	}
	if len(order.Groups) != 1 || !order.Groups[0].IsCluster() {
		t.Fatalf("expected a single cluster, got %+v", order.Groups)
	}
	if got := b.names(order.Steps()); got != "fwd B, A, B" {
		t.Fatalf("order = %q", got)
	}
	if order.Groups[0].Anchor != a {
		t.Fatalf("anchor = %d, want %d", order.Groups[0].Anchor, a)
	}
}

func TestDependencyOrderClusterWithValueEdge(t *testing.T) {
	b := newBuilder()
	// struct C { struct D d; }; struct D { struct C *back; };
	c := b.record(decl.KindStruct, "C")
	d := b.record(decl.KindStruct, "D")
	b.fields(c, d)
	b.fields(d, b.a.Pointer(c, false))

	order, err := b.g.DependencyOrder()
	if err != nil {
		t.Fatalf("DependencyOrder: %v", err)
	}
	if got := b.names(order.Steps()); got != "fwd C, D, C" {
		t.Fatalf("order = %q", got)
	}
}

func TestDependencyOrderSelfReferenceNeedsNoForward(t *testing.T) {
	b := newBuilder()
	list := b.record(decl.KindStruct, "list")
	b.fields(list, b.a.Pointer(list, false), b.i32)

	order, err := b.g.DependencyOrder()
	if err != nil {
		t.Fatalf("DependencyOrder: %v", err)
	}
	if got := b.names(order.Steps()); got != "list" {
		t.Fatalf("order = %q", got)
	}
}

func TestDependencyOrderRejectsValueCycle(t *testing.T) {
	b := newBuilder()
	x := b.record(decl.KindStruct, "X")
	y := b.record(decl.KindStruct, "Y")
	b.fields(x, y)
	b.fields(y, b.a.Array(x, 2))

	_, err := b.g.DependencyOrder()
	var cycle *typegraph.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.Cycle) != 3 || cycle.Cycle[0] != cycle.Cycle[2] {
		t.Fatalf("cycle should be a closed path: %v", cycle.Names)
	}
	if !strings.Contains(err.Error(), "struct X") || !strings.Contains(err.Error(), "struct Y") {
		t.Fatalf("error should name both structs: %v", err)
	}
}

func TestDependencyOrderTiesFollowStreamOrder(t *testing.T) {
	b := newBuilder()
	var ids []decl.NodeID
	for _, name := range []string{"z", "y", "x"} {
		ids = append(ids, b.record(decl.KindStruct, name))
	}
	for _, id := range ids {
		b.fields(id, b.i32)
	}
	order, err := b.g.DependencyOrder()
	if err != nil {
		t.Fatalf("DependencyOrder: %v", err)
	}
	if got := b.names(order.Steps()); got != "z, y, x" {
		t.Fatalf("order = %q", got)
	}
}

func TestFunctionPointerFieldIsPointerEdge(t *testing.T) {
	b := newBuilder()
	s := b.record(decl.KindStruct, "S")
	cb := b.a.AddTypedef(decl.Node{Name: "cb_t", Ordinal: 1}, b.a.FunctionPointer(decl.Signature{
		Result: b.i32,
		Params: []decl.Param{{Type: b.a.Pointer(s, false)}},
	}))
	b.g.Add(cb)
	b.fields(s, cb)

	for _, e := range b.g.Edges(cb) {
		if e.To == s && e.Kind != typegraph.EdgePointer {
			t.Fatalf("callback parameter should be a pointer edge, got %v", e.Kind)
		}
	}
	order, err := b.g.DependencyOrder()
	if err != nil {
		t.Fatalf("DependencyOrder: %v", err)
	}
	// cb_t has no in-cluster value dependency, so it leads; S is the only
	// aggregate and therefore the anchor.
	if got := b.names(order.Steps()); got != "cb_t, S" {
		t.Fatalf("order = %q", got)
	}
}
