package decl

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Arena stores every node of a run. Derived types are interned by structure,
// declarations always get a fresh NodeID.
type Arena struct {
	nodes   []Node
	index   map[derivedKey]NodeID
	records []Record
	sigs    []Signature
	enums   []Enum
	vars    []Variable
	macros  []Macro
}

type derivedKey struct {
	Kind   Kind
	Elem   NodeID
	Count  int
	Scalar Scalar
	Const  bool
	Size   int
	Align  int
	Sig    string
}

// NewArena constructs an empty arena with NoNode reserved.
func NewArena() *Arena {
	a := &Arena{index: make(map[derivedKey]NodeID, 64)}
	a.nodes = append(a.nodes, Node{Kind: KindInvalid, Ordinal: -1})
	a.records = append(a.records, Record{})
	a.sigs = append(a.sigs, Signature{})
	a.enums = append(a.enums, Enum{})
	a.vars = append(a.vars, Variable{})
	a.macros = append(a.macros, Macro{})
	return a
}

func (a *Arena) push(n Node) NodeID {
	id, err := safecast.Conv[uint32](len(a.nodes))
	if err != nil {
		panic(fmt.Errorf("decl: arena overflow: %w", err))
	}
	a.nodes = append(a.nodes, n)
	return NodeID(id)
}

func payload(n int) uint32 {
	p, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("decl: side table overflow: %w", err))
	}
	return p
}

// Fundamental interns a fundamental type. size/align may be Unknown.
func (a *Arena) Fundamental(s Scalar, size, align int) NodeID {
	return a.intern(Node{Kind: KindFundamental, Scalar: s, Size: size, Align: align}, "")
}

// Pointer interns a pointer to elem.
func (a *Arena) Pointer(elem NodeID, constElem bool) NodeID {
	return a.intern(Node{Kind: KindPointer, Elem: elem, Const: constElem, Size: Unknown, Align: Unknown}, "")
}

// Array interns an array of count elements (CountIncomplete for "[]").
func (a *Arena) Array(elem NodeID, count int) NodeID {
	return a.intern(Node{Kind: KindArray, Elem: elem, Count: count, Size: Unknown, Align: Unknown}, "")
}

// FunctionPointer interns a pointer to a function with the given signature.
func (a *Arena) FunctionPointer(sig Signature) NodeID {
	key := sigKey(sig)
	n := Node{Kind: KindFunctionPointer, Size: Unknown, Align: Unknown}
	if id, ok := a.index[derivedKeyOf(n, key)]; ok {
		return id
	}
	n.Payload = payload(len(a.sigs))
	a.sigs = append(a.sigs, sig)
	return a.intern(n, key)
}

func derivedKeyOf(n Node, sig string) derivedKey {
	return derivedKey{Kind: n.Kind, Elem: n.Elem, Count: n.Count, Scalar: n.Scalar, Const: n.Const, Size: n.Size, Align: n.Align, Sig: sig}
}

func (a *Arena) intern(n Node, sig string) NodeID {
	n.Ordinal = -1
	key := derivedKeyOf(n, sig)
	if id, ok := a.index[key]; ok {
		return id
	}
	id := a.push(n)
	a.index[key] = id
	return id
}

func sigKey(sig Signature) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(sig.Result), 10))
	for _, p := range sig.Params {
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(uint64(p.Type), 10))
	}
	if sig.Variadic {
		b.WriteString(",...")
	}
	b.WriteByte('@')
	b.WriteString(string(sig.CallConv))
	return b.String()
}

// AddRecord declares a struct or union.
func (a *Arena) AddRecord(n Node, r Record) NodeID {
	n.Payload = payload(len(a.records))
	a.records = append(a.records, r)
	return a.push(n)
}

// AddEnum declares an enum.
func (a *Arena) AddEnum(n Node, e Enum) NodeID {
	n.Kind = KindEnum
	n.Payload = payload(len(a.enums))
	a.enums = append(a.enums, e)
	return a.push(n)
}

// AddTypedef declares a typedef of target.
func (a *Arena) AddTypedef(n Node, target NodeID) NodeID {
	n.Kind = KindTypedef
	n.Elem = target
	return a.push(n)
}

// AddFunction declares a function.
func (a *Arena) AddFunction(n Node, sig Signature) NodeID {
	n.Kind = KindFunction
	n.Payload = payload(len(a.sigs))
	a.sigs = append(a.sigs, sig)
	return a.push(n)
}

// AddVariable declares a global variable of type typ.
func (a *Arena) AddVariable(n Node, typ NodeID, v Variable) NodeID {
	n.Kind = KindVariable
	n.Elem = typ
	n.Payload = payload(len(a.vars))
	a.vars = append(a.vars, v)
	return a.push(n)
}

// AddMacro declares a macro.
func (a *Arena) AddMacro(n Node, m Macro) NodeID {
	n.Kind = KindMacro
	n.Payload = payload(len(a.macros))
	a.macros = append(a.macros, m)
	return a.push(n)
}

// Len returns the number of nodes including the reserved NoNode slot.
func (a *Arena) Len() int { return len(a.nodes) }

// Node returns the descriptor for id.
func (a *Arena) Node(id NodeID) (Node, bool) {
	if id == NoNode || int(id) >= len(a.nodes) {
		return Node{}, false
	}
	return a.nodes[id], true
}

// MustNode panics when id is invalid.
func (a *Arena) MustNode(id NodeID) Node {
	n, ok := a.Node(id)
	if !ok {
		panic(fmt.Sprintf("decl: invalid NodeID %d", id))
	}
	return n
}

// Update replaces the descriptor of a declared node. Derived nodes are
// immutable because they are shared.
func (a *Arena) Update(id NodeID, fn func(*Node)) {
	if id == NoNode || int(id) >= len(a.nodes) || a.nodes[id].Kind.IsDerived() {
		return
	}
	fn(&a.nodes[id])
}

// Record returns the member table of a struct or union.
func (a *Arena) Record(id NodeID) *Record {
	n, ok := a.Node(id)
	if !ok || !n.Kind.IsAggregate() {
		return nil
	}
	return &a.records[n.Payload]
}

// Signature returns the signature of a function or function pointer.
func (a *Arena) Signature(id NodeID) *Signature {
	n, ok := a.Node(id)
	if !ok || (n.Kind != KindFunction && n.Kind != KindFunctionPointer) {
		return nil
	}
	return &a.sigs[n.Payload]
}

// Enum returns the constants of an enum.
func (a *Arena) Enum(id NodeID) *Enum {
	n, ok := a.Node(id)
	if !ok || n.Kind != KindEnum {
		return nil
	}
	return &a.enums[n.Payload]
}

// Variable returns the facts of a global variable.
func (a *Arena) Variable(id NodeID) *Variable {
	n, ok := a.Node(id)
	if !ok || n.Kind != KindVariable {
		return nil
	}
	return &a.vars[n.Payload]
}

// Macro returns the definition of a macro.
func (a *Arena) Macro(id NodeID) *Macro {
	n, ok := a.Node(id)
	if !ok || n.Kind != KindMacro {
		return nil
	}
	return &a.macros[n.Payload]
}

// Underlying strips typedefs.
func (a *Arena) Underlying(id NodeID) NodeID {
	for range a.nodes {
		n, ok := a.Node(id)
		if !ok || n.Kind != KindTypedef {
			return id
		}
		id = n.Elem
	}
	return id
}
