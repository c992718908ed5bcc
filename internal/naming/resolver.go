// Package naming maps C identifiers to collision-free Go identifiers.
package naming

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/typegraph"
)

// Options configures a naming pass.
type Options struct {
	Style Style
	// Reserved are package-level names the emitter generates itself.
	Reserved []string
	// ReservedPrefixes are prefixes of generated names. A name is taken
	// when it starts with the prefix followed by an upper-case letter.
	ReservedPrefixes []string
	// MemberReserved are method and field names generated on records.
	MemberReserved []string
	// LocalReserved are local names used inside generated wrappers.
	LocalReserved []string
	// Previous is the persisted key → name table of an earlier run.
	Previous map[string]string
}

// Table holds the names of one run.
type Table struct {
	names       map[decl.NodeID]string
	keys        map[decl.NodeID]string
	merged      map[decl.NodeID]decl.NodeID
	fields      map[decl.NodeID][]string
	params      map[decl.NodeID][]string
	enumerators map[decl.NodeID][]string
	inits       map[decl.NodeID]string
	snapshot    map[string]string
}

// Name returns the Go identifier of a declaration node.
func (t *Table) Name(id decl.NodeID) string { return t.names[id] }

// Key returns the persistent key of a declaration node.
func (t *Table) Key(id decl.NodeID) string { return t.keys[id] }

// MergedInto reports typedefs that share the name of the aggregate they
// name, such as "typedef struct X X;". Such typedefs emit nothing.
func (t *Table) MergedInto(id decl.NodeID) (decl.NodeID, bool) {
	to, ok := t.merged[id]
	return to, ok
}

// Fields returns the member names of a record. Unnamed members map to "".
func (t *Table) Fields(id decl.NodeID) []string { return t.fields[id] }

// Params returns the parameter names of a function.
func (t *Table) Params(id decl.NodeID) []string { return t.params[id] }

// Enumerators returns the constant names of an enum.
func (t *Table) Enumerators(id decl.NodeID) []string { return t.enumerators[id] }

// Initial returns the name of the constant holding the folded initializer
// of a variable, or "" when the variable has none.
func (t *Table) Initial(id decl.NodeID) string { return t.inits[id] }

// Snapshot returns the key → name mapping to persist.
func (t *Table) Snapshot() map[string]string { return t.snapshot }

type entity struct {
	node   decl.NodeID
	index  int // enumerator index, -1 for the node itself
	key    string
	source string
	anon   bool
	init   bool // initializer constant of a variable
}

type resolver struct {
	arena *decl.Arena
	opts  Options
	r     diag.Reporter

	reserved map[string]bool
	taken    map[string]string // go name → key of the owner
	table    *Table
}

// Assign names every emitted declaration of the graph. Entities are
// processed in stream order; names recorded in opts.Previous are claimed
// first so earlier runs keep their spelling.
func Assign(g *typegraph.Graph, opts Options, r diag.Reporter) *Table {
	if r == nil {
		r = diag.NopReporter{}
	}
	res := &resolver{
		arena:    g.Arena(),
		opts:     opts,
		r:        r,
		reserved: make(map[string]bool, len(opts.Reserved)),
		taken:    make(map[string]string),
		table: &Table{
			names:       make(map[decl.NodeID]string),
			keys:        make(map[decl.NodeID]string),
			merged:      make(map[decl.NodeID]decl.NodeID),
			fields:      make(map[decl.NodeID][]string),
			params:      make(map[decl.NodeID][]string),
			enumerators: make(map[decl.NodeID][]string),
			inits:       make(map[decl.NodeID]string),
			snapshot:    make(map[string]string),
		},
	}
	for _, name := range opts.Reserved {
		res.reserved[name] = true
	}

	members := slices.Clone(g.Members())
	slices.SortStableFunc(members, func(a, b decl.NodeID) int {
		return cmp.Or(cmp.Compare(res.arena.MustNode(a).Ordinal, res.arena.MustNode(b).Ordinal), cmp.Compare(a, b))
	})

	res.mergeTypedefs(members)
	entities := res.collect(members)

	for _, e := range entities {
		if prev, ok := opts.Previous[e.key]; ok && res.free(prev) && res.valid(prev) {
			res.claim(e, prev)
		}
	}
	for _, e := range entities {
		if res.assigned(e) {
			continue
		}
		base := res.base(e)
		name := res.unique(e, base)
		res.claim(e, name)
	}
	for typedef, agg := range res.table.merged {
		res.table.names[typedef] = res.table.names[agg]
		res.table.keys[typedef] = res.table.keys[agg]
	}

	for _, id := range members {
		switch res.arena.MustNode(id).Kind {
		case decl.KindStruct, decl.KindUnion:
			res.nameFields(id)
		case decl.KindFunction:
			res.nameParams(id)
		}
	}
	return res.table
}

// mergeTypedefs finds typedefs that share their name with the aggregate
// they name.
func (res *resolver) mergeTypedefs(members []decl.NodeID) {
	for _, id := range members {
		n := res.arena.MustNode(id)
		if n.Kind != decl.KindTypedef {
			continue
		}
		target, ok := res.arena.Node(n.Elem)
		if !ok || !target.Kind.IsTag() {
			continue
		}
		if _, done := res.table.merged[id]; done {
			continue
		}
		identity := target.Name == n.Name
		namedBy := target.Name == "" && target.Parent == id
		if identity || namedBy {
			res.table.merged[id] = n.Elem
		}
	}
}

func (res *resolver) namedBy(agg decl.NodeID) (decl.NodeID, bool) {
	n := res.arena.MustNode(agg)
	if n.Name != "" || n.Parent == decl.NoNode {
		return decl.NoNode, false
	}
	if to, ok := res.table.merged[n.Parent]; ok && to == agg {
		return n.Parent, true
	}
	return decl.NoNode, false
}

func (res *resolver) collect(members []decl.NodeID) []entity {
	var out []entity
	for _, id := range members {
		n := res.arena.MustNode(id)
		if _, ok := res.table.merged[id]; ok {
			continue
		}
		switch n.Kind {
		case decl.KindMacro:
			if !res.arena.Macro(id).Resolved() {
				continue
			}
		case decl.KindStruct, decl.KindUnion, decl.KindEnum, decl.KindTypedef, decl.KindFunction, decl.KindVariable:
		default:
			continue
		}
		e := entity{node: id, index: -1, key: res.keyOf(id), source: n.Name}
		if td, ok := res.namedBy(id); ok {
			e.source = res.arena.MustNode(td).Name
		} else if n.IsAnonymous() {
			e.anon = true
		}
		out = append(out, e)
		switch n.Kind {
		case decl.KindEnum:
			for i, v := range res.arena.Enum(id).Values {
				out = append(out, entity{node: id, index: i, key: "ord:" + v.Name, source: v.Name})
			}
		case decl.KindVariable:
			if res.arena.Variable(id).Value != nil {
				out = append(out, entity{node: id, index: -1, key: "init:" + n.Name, source: n.Name, init: true})
			}
		}
	}
	return out
}

// keyOf builds the persistent key of a node: tags and ordinary names keep
// their C namespace, anonymous types are keyed by their position.
func (res *resolver) keyOf(id decl.NodeID) string {
	if id == decl.NoNode {
		return ""
	}
	if k, ok := res.table.keys[id]; ok {
		return k
	}
	n := res.arena.MustNode(id)
	var key string
	switch {
	case n.Kind == decl.KindMacro:
		key = "macro:" + n.Name
	case n.Name != "" && n.Kind.IsTag():
		key = "tag:" + n.Name
	case n.Name != "":
		key = "ord:" + n.Name
	default:
		if td, ok := res.namedBy(id); ok {
			key = "ord:" + res.arena.MustNode(td).Name
		} else {
			key = "anon:" + res.keyOf(n.Parent) + "#" + strconv.Itoa(n.Position)
		}
	}
	res.table.keys[id] = key
	return key
}

func (res *resolver) assigned(e entity) bool {
	if e.init {
		_, ok := res.table.inits[e.node]
		return ok
	}
	if e.index >= 0 {
		names := res.table.enumerators[e.node]
		return e.index < len(names) && names[e.index] != ""
	}
	_, ok := res.table.names[e.node]
	return ok
}

func (res *resolver) claim(e entity, name string) {
	res.taken[name] = e.key
	res.table.snapshot[e.key] = name
	if e.init {
		res.table.inits[e.node] = name
		return
	}
	if e.index >= 0 {
		names := res.table.enumerators[e.node]
		if len(names) == 0 {
			names = make([]string, len(res.arena.Enum(e.node).Values))
		}
		names[e.index] = name
		res.table.enumerators[e.node] = names
		return
	}
	res.table.names[e.node] = name
}

func (res *resolver) base(e entity) string {
	if e.anon {
		n := res.arena.MustNode(e.node)
		parent := "Anon"
		if n.Parent != decl.NoNode {
			parent = res.nameOfParent(n.Parent) + "_anon"
		}
		if res.opts.Style == StyleVerbatim && n.Parent == decl.NoNode {
			parent = "anon"
		}
		return parent + strconv.Itoa(n.Position)
	}
	if e.init {
		if res.opts.Style == StyleVerbatim {
			return Normalize(e.source+"_init", StyleVerbatim)
		}
		return Normalize(e.source, res.opts.Style) + "Init"
	}
	return Normalize(e.source, res.opts.Style)
}

// nameOfParent resolves the name of an enclosing declaration, naming it
// first when it comes later in the processing order.
func (res *resolver) nameOfParent(id decl.NodeID) string {
	if to, ok := res.table.merged[id]; ok {
		id = to
	}
	if name, ok := res.table.names[id]; ok {
		return name
	}
	n := res.arena.MustNode(id)
	e := entity{node: id, index: -1, key: res.keyOf(id), source: n.Name, anon: n.IsAnonymous()}
	if td, ok := res.namedBy(id); ok {
		e.source, e.anon = res.arena.MustNode(td).Name, false
	}
	name := res.unique(e, res.base(e))
	res.claim(e, name)
	return name
}

func (res *resolver) free(name string) bool {
	_, taken := res.taken[name]
	return !taken && !res.isReserved(name)
}

func (res *resolver) valid(name string) bool {
	for i, r := range name {
		if !(unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return name != "" && name != "_"
}

func (res *resolver) isReserved(name string) bool {
	if res.reserved[name] || IsGoReserved(name) {
		return true
	}
	for _, p := range res.opts.ReservedPrefixes {
		rest, ok := strings.CutPrefix(name, p)
		if !ok || rest == "" {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// unique appends the smallest free _N suffix. A reserved base keeps its
// spelling with a trailing underscore.
func (res *resolver) unique(e entity, base string) string {
	n := res.arena.MustNode(e.node)
	available := res.free
	if res.isReserved(base) {
		diag.ReportInfo(res.r, diag.NameReserved, n.Loc,
			fmt.Sprintf("%s is reserved, using %s_", base, base)).Emit()
		base += "_"
		available = func(name string) bool {
			_, taken := res.taken[name]
			return !taken && !res.reserved[name]
		}
	}
	if available(base) {
		return base
	}
	owner := res.taken[base]
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if available(candidate) {
			diag.ReportInfo(res.r, diag.NameCollision, n.Loc,
				fmt.Sprintf("%s (%s) collides with %s, renamed to %s", base, e.key, owner, candidate)).Emit()
			return candidate
		}
	}
}

// scope resolves names inside one record or parameter list.
type scope struct {
	reserved map[string]bool
	taken    map[string]bool
}

func newScope(reserved ...[]string) *scope {
	s := &scope{reserved: make(map[string]bool), taken: make(map[string]bool)}
	for _, list := range reserved {
		for _, name := range list {
			s.reserved[name] = true
		}
	}
	return s
}

func (s *scope) unique(base string) string {
	if s.reserved[base] || IsGoReserved(base) {
		base += "_"
	}
	name := base
	for i := 1; s.taken[name] || s.reserved[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	s.taken[name] = true
	return name
}

func (res *resolver) nameFields(id decl.NodeID) {
	rec := res.arena.Record(id)
	if rec == nil {
		return
	}
	sc := newScope(res.opts.MemberReserved)
	names := make([]string, len(rec.Fields))
	for i, f := range rec.Fields {
		if f.Name == "" {
			continue
		}
		names[i] = sc.unique(Normalize(f.Name, res.opts.Style))
	}
	res.table.fields[id] = names
}

func (res *resolver) nameParams(id decl.NodeID) {
	sig := res.arena.Signature(id)
	if sig == nil {
		return
	}
	sc := newScope(res.opts.LocalReserved)
	names := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		base := "arg" + strconv.Itoa(i)
		if p.Name != "" {
			base = LowerCamel(p.Name)
			if res.opts.Style == StyleVerbatim {
				base = Normalize(p.Name, StyleVerbatim)
			}
		}
		names[i] = sc.unique(base)
	}
	res.table.params[id] = names
}
