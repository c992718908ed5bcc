package typegraph

import (
	"cmp"
	"slices"

	"cbind/internal/decl"
)

// Group is one step of the emission order: a single declaration, or a
// cluster of mutually dependent declarations broken with forward
// declarations.
type Group struct {
	Forward []decl.NodeID // emitted before any member of the group
	Members []decl.NodeID // full definitions in emission order
	Anchor  decl.NodeID   // cluster member defined without a forward declaration
}

// IsCluster reports groups of more than one declaration.
func (g Group) IsCluster() bool { return len(g.Members) > 1 }

// Step is one entry of the flattened order.
type Step struct {
	ID      decl.NodeID
	Forward bool
}

// Order is the result of DependencyOrder.
type Order struct {
	Groups []Group
}

// Steps flattens the groups: forward declarations of a group first, then its
// full definitions.
func (o *Order) Steps() []Step {
	var out []Step
	for _, grp := range o.Groups {
		for _, id := range grp.Forward {
			out = append(out, Step{ID: id, Forward: true})
		}
		for _, id := range grp.Members {
			out = append(out, Step{ID: id})
		}
	}
	return out
}

// DependencyOrder orders every member so that it comes after everything it
// needs: by-value dependencies fully defined, pointer dependencies at least
// forward declared. Ties are broken by stream order. A cycle through
// by-value containment yields a *CycleError.
func (g *Graph) DependencyOrder() (*Order, error) {
	comps := g.components()
	compOf := make(map[decl.NodeID]int, len(g.members))
	for ci, comp := range comps {
		for _, id := range comp {
			compOf[id] = ci
		}
	}

	groups := make([]Group, len(comps))
	for ci, comp := range comps {
		grp, err := g.groupOf(comp)
		if err != nil {
			return nil, err
		}
		groups[ci] = grp
	}

	// Condensation: deps[c] counts distinct components c still waits for.
	deps := make([]int, len(comps))
	dependents := make([][]int, len(comps))
	for ci, comp := range comps {
		seen := make(map[int]bool)
		for _, id := range comp {
			for _, e := range g.edges[id] {
				cj, ok := compOf[e.To]
				if !ok || cj == ci || seen[cj] {
					continue
				}
				seen[cj] = true
				deps[ci]++
				dependents[cj] = append(dependents[cj], ci)
			}
		}
	}

	keys := make([]rank, len(comps))
	for ci, comp := range comps {
		keys[ci] = g.rankOf(comp[0])
		for _, id := range comp[1:] {
			if r := g.rankOf(id); r.less(keys[ci]) {
				keys[ci] = r
			}
		}
	}
	byKey := func(a, b int) int { return keys[a].compare(keys[b]) }

	var ready []int
	for ci := range comps {
		if deps[ci] == 0 {
			ready = append(ready, ci)
		}
	}
	slices.SortFunc(ready, byKey)

	order := &Order{Groups: make([]Group, 0, len(comps))}
	for len(ready) > 0 {
		ci := ready[0]
		ready = ready[1:]
		order.Groups = append(order.Groups, groups[ci])
		for _, cj := range dependents[ci] {
			deps[cj]--
			if deps[cj] == 0 {
				pos, _ := slices.BinarySearchFunc(ready, cj, byKey)
				ready = slices.Insert(ready, pos, cj)
			}
		}
	}
	return order, nil
}

// groupOf orders one strongly connected component. Members are sorted by
// their in-component by-value dependencies; the first struct or union of
// that order is the anchor and every other struct or union of a cluster is
// forward declared.
func (g *Graph) groupOf(comp []decl.NodeID) (Group, error) {
	members := slices.Clone(comp)
	slices.SortFunc(members, func(a, b decl.NodeID) int { return g.rankOf(a).compare(g.rankOf(b)) })

	inComp := make(map[decl.NodeID]bool, len(members))
	for _, id := range members {
		inComp[id] = true
	}

	waits := make(map[decl.NodeID]int, len(members))
	needed := make(map[decl.NodeID][]decl.NodeID, len(members))
	for _, id := range members {
		for _, e := range g.edges[id] {
			if e.Kind != EdgeValue || !inComp[e.To] {
				continue
			}
			if e.To == id {
				return Group{}, newCycleError(g.arena, []decl.NodeID{id, id})
			}
			waits[id]++
			needed[e.To] = append(needed[e.To], id)
		}
	}

	var ready, sorted []decl.NodeID
	for _, id := range members {
		if waits[id] == 0 {
			ready = append(ready, id)
		}
	}
	byRank := func(a, b decl.NodeID) int { return g.rankOf(a).compare(g.rankOf(b)) }
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted = append(sorted, id)
		for _, dep := range needed[id] {
			waits[dep]--
			if waits[dep] == 0 {
				pos, _ := slices.BinarySearchFunc(ready, dep, byRank)
				ready = slices.Insert(ready, pos, dep)
			}
		}
	}
	if len(sorted) != len(members) {
		return Group{}, newCycleError(g.arena, g.valueCycle(members, inComp))
	}

	grp := Group{Members: sorted}
	if len(sorted) == 1 {
		return grp, nil
	}
	for _, id := range sorted {
		if g.arena.MustNode(id).Kind.IsAggregate() {
			grp.Anchor = id
			break
		}
	}
	for _, id := range members {
		if id != grp.Anchor && g.arena.MustNode(id).Kind.IsAggregate() {
			grp.Forward = append(grp.Forward, id)
		}
	}
	return grp, nil
}

// valueCycle finds one closed path through by-value edges inside a component
// that is known to contain one.
func (g *Graph) valueCycle(members []decl.NodeID, inComp map[decl.NodeID]bool) []decl.NodeID {
	const (
		white = iota
		grey
		black
	)
	color := make(map[decl.NodeID]int, len(members))
	var (
		path  []decl.NodeID
		found []decl.NodeID
		dfs   func(id decl.NodeID) bool
	)
	dfs = func(id decl.NodeID) bool {
		color[id] = grey
		path = append(path, id)
		for _, e := range g.edges[id] {
			if e.Kind != EdgeValue || !inComp[e.To] {
				continue
			}
			switch color[e.To] {
			case grey:
				start := slices.Index(path, e.To)
				found = append(slices.Clone(path[start:]), e.To)
				return true
			case white:
				if dfs(e.To) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}
	for _, id := range members {
		if color[id] == white && dfs(id) {
			return found
		}
	}
	return members
}

// rank orders declarations by stream ordinal, then by the order they were
// added to the graph.
type rank struct {
	ordinal int
	added   int
}

func (g *Graph) rankOf(id decl.NodeID) rank {
	return rank{ordinal: g.arena.MustNode(id).Ordinal, added: g.index[id]}
}

func (r rank) compare(o rank) int {
	if c := cmp.Compare(r.ordinal, o.ordinal); c != 0 {
		return c
	}
	return cmp.Compare(r.added, o.added)
}

func (r rank) less(o rank) bool { return r.compare(o) < 0 }
