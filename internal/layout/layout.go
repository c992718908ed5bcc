package layout

import (
	"cbind/internal/decl"
)

// TypeLayout is the ABI layout of a type for a specific Target.
type TypeLayout struct {
	Size  int // bytes
	Align int // bytes

	// Record-only:
	Offsets  []int // bit offset per field
	Flexible bool
}

// Issue is a non-fatal finding of the engine, turned into a diagnostic by
// Resolve.
type Issue struct {
	Kind  IssueKind
	Node  decl.NodeID
	Field int // -1 when not about a member
	Width int // bitfield width for IssueBitfieldTooWide
	Mismatch
}

type IssueKind uint8

const (
	IssueMismatch IssueKind = iota + 1
	IssueIncompleteField
	IssueUnknownScalar
	IssueBitfieldTooWide
)

// Engine computes memory layout for the nodes of an arena.
type Engine struct {
	Target Target
	Arena  *decl.Arena

	cache  *cache
	issues []Issue
}

// New creates a new Engine for the specified target.
func New(target Target, arena *decl.Arena) *Engine {
	return &Engine{
		Target: target,
		Arena:  arena,
		cache:  newCache(),
	}
}

type layoutState struct {
	stack []decl.NodeID
	index map[decl.NodeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		index: make(map[decl.NodeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a node. Records come back with
// the front-end numbers applied wherever they disagree with the computation.
func (e *Engine) LayoutOf(id decl.NodeID) (TypeLayout, error) {
	if e == nil {
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	if e.cache == nil {
		e.cache = newCache()
	}
	l, err := e.layoutOf(id, newLayoutState())
	if err != nil {
		return l, err
	}
	return l, nil
}

// Issues returns the findings collected so far in discovery order.
func (e *Engine) Issues() []Issue { return e.issues }

func (e *Engine) layoutOf(id decl.NodeID, state *layoutState) (TypeLayout, *LayoutError) {
	if cached, ok := e.cache.get(id); ok {
		return cached.Layout, cached.Err
	}

	if idx, ok := state.index[id]; ok {
		cycle := append([]decl.NodeID(nil), state.stack[idx:]...)
		cycle = append(cycle, id)
		err := &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  id,
			Cycle: cycle,
		}
		e.cache.put(id, &cacheEntry{Layout: TypeLayout{Size: 0, Align: 1}, Err: err})
		return TypeLayout{Size: 0, Align: 1}, err
	}

	state.index[id] = len(state.stack)
	state.stack = append(state.stack, id)
	l, err := e.computeLayout(id, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, id)

	e.cache.put(id, &cacheEntry{Layout: l, Err: err})
	return l, err
}

// SizeOf returns the size of a node in bytes.
func (e *Engine) SizeOf(id decl.NodeID) (int, error) {
	l, err := e.LayoutOf(id)
	return l.Size, err
}

// AlignOf returns the alignment requirement of a node in bytes.
func (e *Engine) AlignOf(id decl.NodeID) (int, error) {
	l, err := e.LayoutOf(id)
	return l.Align, err
}

// FieldOffset returns the bit offset of a record member.
func (e *Engine) FieldOffset(record decl.NodeID, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(record)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= len(l.Offsets) {
		return 0, nil
	}
	return l.Offsets[fieldIdx], nil
}
