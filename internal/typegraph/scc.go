package typegraph

import "cbind/internal/decl"

// components returns the strongly connected components of the graph using
// Tarjan's algorithm. Components come out in reverse topological order.
func (g *Graph) components() [][]decl.NodeID {
	t := tarjan{
		g:       g,
		index:   make(map[decl.NodeID]int, len(g.members)),
		low:     make(map[decl.NodeID]int, len(g.members)),
		onStack: make(map[decl.NodeID]bool, len(g.members)),
	}
	for _, id := range g.members {
		if _, seen := t.index[id]; !seen {
			t.visit(id)
		}
	}
	return t.comps
}

type tarjan struct {
	g       *Graph
	next    int
	index   map[decl.NodeID]int
	low     map[decl.NodeID]int
	onStack map[decl.NodeID]bool
	stack   []decl.NodeID
	comps   [][]decl.NodeID
}

func (t *tarjan) visit(v decl.NodeID) {
	t.index[v] = t.next
	t.low[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.g.edges[v] {
		w := e.To
		if !t.g.Has(w) {
			continue
		}
		if _, seen := t.index[w]; !seen {
			t.visit(w)
			t.low[v] = min(t.low[v], t.low[w])
		} else if t.onStack[w] {
			t.low[v] = min(t.low[v], t.index[w])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}
	var comp []decl.NodeID
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	t.comps = append(t.comps, comp)
}
