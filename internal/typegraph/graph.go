// Package typegraph tracks depends-on edges between declarations and turns
// them into an emission order.
package typegraph

import (
	"cbind/internal/decl"
)

// EdgeKind says how a declaration uses its dependency.
type EdgeKind uint8

const (
	// EdgePointer is a use through pointer or function pointer indirection;
	// a forward declaration of the target is enough.
	EdgePointer EdgeKind = iota + 1
	// EdgeValue needs the complete definition of the target.
	EdgeValue
)

func (k EdgeKind) String() string {
	switch k {
	case EdgePointer:
		return "pointer"
	case EdgeValue:
		return "value"
	}
	return "unknown"
}

type Edge struct {
	To   decl.NodeID
	Kind EdgeKind
}

// Graph owns the arena of a run and the dependency edges between its
// declaration nodes. Derived types (pointers, arrays, function pointers,
// fundamentals) are never members; edges pass through them.
type Graph struct {
	arena   *decl.Arena
	members []decl.NodeID
	index   map[decl.NodeID]int
	edges   map[decl.NodeID][]Edge
}

// New creates an empty graph with a fresh arena.
func New() *Graph {
	return &Graph{
		arena: decl.NewArena(),
		index: make(map[decl.NodeID]int),
		edges: make(map[decl.NodeID][]Edge),
	}
}

// Arena exposes the node storage.
func (g *Graph) Arena() *decl.Arena { return g.arena }

// Add registers a declaration node and (re)computes its outgoing edges.
// Adding a node again after it was upgraded from a forward declaration keeps
// its position and refreshes the edges.
func (g *Graph) Add(id decl.NodeID) {
	n, ok := g.arena.Node(id)
	if !ok || n.Kind.IsDerived() {
		return
	}
	if _, seen := g.index[id]; !seen {
		g.index[id] = len(g.members)
		g.members = append(g.members, id)
	}
	g.edges[id] = g.computeEdges(id, n)
}

// Has reports membership.
func (g *Graph) Has(id decl.NodeID) bool {
	_, ok := g.index[id]
	return ok
}

// Members returns declaration nodes in the order they were added.
func (g *Graph) Members() []decl.NodeID { return g.members }

// Edges returns the outgoing edges of id.
func (g *Graph) Edges(id decl.NodeID) []Edge { return g.edges[id] }

// Len returns the number of members.
func (g *Graph) Len() int { return len(g.members) }

func (g *Graph) computeEdges(id decl.NodeID, n decl.Node) []Edge {
	c := edgeCollector{arena: g.arena, seen: make(map[decl.NodeID]int)}
	switch n.Kind {
	case decl.KindStruct, decl.KindUnion:
		if rec := g.arena.Record(id); rec != nil {
			for _, f := range rec.Fields {
				c.walk(f.Type, EdgeValue)
			}
		}
	case decl.KindTypedef, decl.KindVariable:
		c.walk(n.Elem, EdgeValue)
	case decl.KindFunction:
		if sig := g.arena.Signature(id); sig != nil {
			c.walk(sig.Result, EdgeValue)
			for _, p := range sig.Params {
				c.walk(p.Type, EdgeValue)
			}
		}
	}
	return c.edges
}

type edgeCollector struct {
	arena *decl.Arena
	edges []Edge
	seen  map[decl.NodeID]int
}

func (c *edgeCollector) add(to decl.NodeID, kind EdgeKind) {
	if idx, ok := c.seen[to]; ok {
		if kind > c.edges[idx].Kind {
			c.edges[idx].Kind = kind
		}
		return
	}
	c.seen[to] = len(c.edges)
	c.edges = append(c.edges, Edge{To: to, Kind: kind})
}

func (c *edgeCollector) walk(id decl.NodeID, kind EdgeKind) {
	n, ok := c.arena.Node(id)
	if !ok {
		return
	}
	switch n.Kind {
	case decl.KindFundamental:
	case decl.KindPointer:
		c.walk(n.Elem, EdgePointer)
	case decl.KindArray:
		c.walk(n.Elem, kind)
	case decl.KindFunctionPointer:
		sig := c.arena.Signature(id)
		c.walk(sig.Result, EdgePointer)
		for _, p := range sig.Params {
			c.walk(p.Type, EdgePointer)
		}
	default:
		c.add(id, kind)
	}
}
