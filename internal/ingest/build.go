package ingest

import (
	"fmt"
	"slices"
	"strings"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/stream"
)

// builder creates the nodes of one entry. Nodes are registered with the
// graph once the entry is complete so edges see the finished definitions.
type builder struct {
	in      *Ingester
	ordinal int
	loc     diag.Loc
	pending []decl.NodeID
}

func (b *builder) flush(id decl.NodeID) {
	for _, p := range b.pending {
		b.in.g.Add(p)
	}
	b.pending = b.pending[:0]
	b.in.g.Add(id)
}

func optInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func (b *builder) node(kind decl.Kind, name, doc string, size, align *int) decl.Node {
	return decl.Node{
		Kind:    kind,
		Name:    name,
		Ordinal: b.ordinal,
		Loc:     b.loc,
		Doc:     doc,
		Size:    optInt(size, decl.Unknown),
		Align:   optInt(align, decl.Unknown),
	}
}

// scopeOf returns the nearest named declaration enclosing id.
func (b *builder) scopeOf(id decl.NodeID) decl.NodeID {
	n := b.in.arena.MustNode(id)
	if n.Name != "" {
		return id
	}
	return n.Parent
}

func (b *builder) nextPosition(scope decl.NodeID) int {
	pos := b.in.anon[scope]
	b.in.anon[scope] = pos + 1
	return pos
}

// tagDef describes a struct, union or enum body, from a top-level entry or
// an inline descriptor.
type tagDef struct {
	kind     decl.Kind
	name     string
	doc      string
	opaque   bool
	fields   []stream.Field
	values   []stream.EnumValue
	packed   bool
	signed   *bool
	size     *int
	align    *int
	complete bool
}

func (d tagDef) shape() string {
	return fingerprint(recordShape{Kind: d.kind.String(), Fields: d.fields, Values: d.values, Packed: d.packed, Size: d.size, Align: d.align})
}

func entryTag(kind decl.Kind, e *stream.Entry) tagDef {
	d := tagDef{
		kind: kind, name: e.Name, doc: e.Doc, opaque: e.Opaque,
		fields: e.Fields, values: e.Values, packed: e.Packed,
		signed: e.Signed, size: e.Size, align: e.Align,
	}
	d.complete = !e.Opaque && (e.Fields != nil || e.Values != nil || e.Size != nil)
	return d
}

func inlineTag(kind decl.Kind, t *stream.Type) tagDef {
	return tagDef{
		kind: kind, name: t.Name,
		fields: t.Fields, values: t.Values, packed: t.Packed,
		signed: t.Signed, size: t.Size, align: t.Align,
		complete: true,
	}
}

func (b *builder) record(kind decl.Kind, e *stream.Entry) *Error {
	_, err := b.defineTag(entryTag(kind, e), decl.NoNode)
	return err
}

func (b *builder) enum(e *stream.Entry) *Error {
	_, err := b.defineTag(entryTag(decl.KindEnum, e), decl.NoNode)
	return err
}

// defineTag declares or defines a tag. Named tags merge with earlier
// declarations; anonymous ones always get a fresh node under scope.
func (b *builder) defineTag(d tagDef, scope decl.NodeID) (decl.NodeID, *Error) {
	in := b.in
	if d.name != "" {
		if prev, ok := in.tags[d.name]; ok {
			if pk := in.arena.MustNode(prev).Kind; pk != d.kind {
				return prev, skip(diag.IngIncompatibleDefinition, "%s %s was declared as %s", d.kind, d.name, pk)
			}
			complete := b.isComplete(prev)
			switch {
			case !d.complete:
				return prev, nil
			case complete && in.defs[prev] == d.shape():
				return prev, nil
			case complete:
				return prev, skip(diag.IngIncompatibleDefinition, "incompatible redefinition of %s %s", d.kind, d.name)
			}
			in.arena.Update(prev, func(n *decl.Node) {
				n.Ordinal, n.Loc = b.ordinal, b.loc
				n.Size, n.Align = optInt(d.size, decl.Unknown), optInt(d.align, decl.Unknown)
				if d.doc != "" {
					n.Doc = d.doc
				}
			})
			b.fill(prev, d)
			b.flush(prev)
			return prev, nil
		}
	}

	n := b.node(d.kind, d.name, d.doc, d.size, d.align)
	if d.name == "" {
		n.Parent = scope
		n.Position = b.nextPosition(scope)
	}
	var id decl.NodeID
	if d.kind == decl.KindEnum {
		n.Scalar = enumScalar(d.size, d.signed)
		id = in.arena.AddEnum(n, decl.Enum{})
	} else {
		id = in.arena.AddRecord(n, decl.Record{Packed: d.packed})
	}
	if d.name != "" {
		in.tags[d.name] = id
	}
	if d.complete {
		b.fill(id, d)
	}
	b.flush(id)
	return id, nil
}

func (b *builder) isComplete(id decl.NodeID) bool {
	if rec := b.in.arena.Record(id); rec != nil {
		return rec.Complete
	}
	if en := b.in.arena.Enum(id); en != nil {
		return en.Complete
	}
	return false
}

// fill attaches the body of d to id. Member types are built before the
// side table entry is touched because building may grow the arena.
func (b *builder) fill(id decl.NodeID, d tagDef) {
	in := b.in
	in.defs[id] = d.shape()
	if d.kind == decl.KindEnum {
		values := make([]decl.Enumerator, 0, len(d.values))
		for _, v := range d.values {
			values = append(values, decl.Enumerator{Name: v.Name, Value: v.Value})
		}
		in.arena.Update(id, func(n *decl.Node) { n.Scalar = enumScalar(d.size, d.signed) })
		en := in.arena.Enum(id)
		en.Values, en.Complete = values, true
		return
	}

	scope := b.scopeOf(id)
	fields := make([]decl.Field, 0, len(d.fields))
	for _, f := range d.fields {
		fields = append(fields, decl.Field{
			Name:      f.Name,
			Type:      b.typeOf(f.Type, scope),
			BitWidth:  optInt(f.BitWidth, decl.NoBits),
			BitOffset: optInt(f.BitOffset, decl.Unknown),
		})
	}
	rec := in.arena.Record(id)
	rec.Fields, rec.Packed, rec.Complete = fields, d.packed, true
}

func enumScalar(size *int, signed *bool) decl.Scalar {
	if size == nil {
		return decl.ScalarInvalid
	}
	var s decl.Scalar
	switch *size {
	case 1:
		s = decl.ScalarSChar
	case 2:
		s = decl.ScalarShort
	case 4:
		s = decl.ScalarInt
	case 8:
		s = decl.ScalarLongLong
	default:
		return decl.ScalarInvalid
	}
	if signed != nil && !*signed {
		s = s.ToUnsigned()
	}
	return s
}

// typeOf builds the node for a nested descriptor. scope is the nearest
// named declaration, used to place anonymous definitions.
func (b *builder) typeOf(t *stream.Type, scope decl.NodeID) decl.NodeID {
	a := b.in.arena
	if t == nil {
		return a.Fundamental(decl.ScalarVoid, decl.Unknown, decl.Unknown)
	}
	switch t.Kind {
	case "fundamental":
		s, err := decl.ParseScalar(t.Name)
		if err != nil {
			s = decl.ScalarInvalid
		}
		return a.Fundamental(s, optInt(t.Size, decl.Unknown), optInt(t.Align, decl.Unknown))
	case "pointer":
		return a.Pointer(b.typeOf(t.Elem, scope), t.Elem != nil && t.Elem.Const)
	case "array":
		return a.Array(b.typeOf(t.Elem, scope), optInt(t.Count, decl.CountIncomplete))
	case "function_pointer":
		return a.FunctionPointer(b.signature(t.Result, t.Params, t.Variadic, t.CallConv, scope))
	case "struct", "union", "enum":
		kind, _ := decl.ParseKind(t.Kind)
		if !t.HasBody() {
			return b.tagRef(kind, t.Name)
		}
		id, err := b.defineTag(inlineTag(kind, t), scope)
		if err != nil {
			diag.ReportWarning(b.in.r, err.Code, b.loc, err.Reason).
				WithNote(b.loc, "using the earlier definition").
				Emit()
		}
		return id
	case "typedef":
		return b.in.typedefs[t.Name]
	}
	return decl.NoNode
}

// tagRef resolves a reference to a tag, creating a forward-only node when
// the tag was never seen.
func (b *builder) tagRef(kind decl.Kind, name string) decl.NodeID {
	in := b.in
	if id, ok := in.tags[name]; ok {
		return id
	}
	n := b.node(kind, name, "", nil, nil)
	var id decl.NodeID
	if kind == decl.KindEnum {
		id = in.arena.AddEnum(n, decl.Enum{})
	} else {
		id = in.arena.AddRecord(n, decl.Record{})
	}
	in.tags[name] = id
	b.pending = append(b.pending, id)
	return id
}

func (b *builder) signature(result *stream.Type, params []stream.Param, variadic bool, cc string, scope decl.NodeID) decl.Signature {
	sig := decl.Signature{
		Result:   b.typeOf(result, scope),
		Variadic: variadic,
		CallConv: parseCallConv(cc),
	}
	for _, p := range params {
		sig.Params = append(sig.Params, decl.Param{Name: p.Name, Type: b.typeOf(p.Type, scope)})
	}
	return sig
}

func parseCallConv(s string) decl.CallConv {
	switch strings.Trim(strings.ToLower(s), "_") {
	case "cdecl":
		return decl.CallCdecl
	case "stdcall":
		return decl.CallStdcall
	case "fastcall":
		return decl.CallFastcall
	}
	return decl.CallDefault
}

func (b *builder) typedef(e *stream.Entry) *Error {
	in := b.in
	shape := fingerprint(typedefShape{Type: e.Type})
	if prev, ok := in.typedefs[e.Name]; ok {
		if in.defs[prev] == shape {
			return nil
		}
		return skip(diag.IngIncompatibleDefinition, "conflicting types for typedef %s", e.Name)
	}
	id := in.arena.AddTypedef(b.node(decl.KindTypedef, e.Name, e.Doc, nil, nil), decl.NoNode)
	target := b.typeOf(e.Type, id)
	in.arena.Update(id, func(n *decl.Node) { n.Elem = target })
	in.typedefs[e.Name] = id
	in.defs[id] = shape
	b.flush(id)
	return nil
}

func (b *builder) function(e *stream.Entry) *Error {
	in := b.in
	shape := fingerprint(protoShape(e))
	if prev, ok := in.ordinary[e.Name]; ok {
		if in.arena.MustNode(prev).Kind == decl.KindFunction && in.defs[prev] == shape {
			return nil
		}
		return skip(diag.IngIncompatibleDefinition, "conflicting declaration of %s", e.Name)
	}
	id := in.arena.AddFunction(b.node(decl.KindFunction, e.Name, e.Doc, nil, nil), decl.Signature{})
	sig := b.signature(e.Result, e.Params, e.Variadic, e.CallConv, id)
	*in.arena.Signature(id) = sig
	in.ordinary[e.Name] = id
	in.defs[id] = shape
	b.flush(id)
	return nil
}

func (b *builder) variable(e *stream.Entry) *Error {
	in := b.in
	shape := fingerprint(typedefShape{Type: e.Type})
	if prev, ok := in.ordinary[e.Name]; ok {
		if in.arena.MustNode(prev).Kind == decl.KindVariable && in.defs[prev] == shape {
			return nil
		}
		return skip(diag.IngIncompatibleDefinition, "conflicting declaration of %s", e.Name)
	}
	id := in.arena.AddVariable(b.node(decl.KindVariable, e.Name, e.Doc, nil, nil), decl.NoNode, decl.Variable{Init: e.Init})
	target := b.typeOf(e.Type, id)
	in.arena.Update(id, func(n *decl.Node) { n.Elem = target })
	in.ordinary[e.Name] = id
	in.defs[id] = shape
	b.flush(id)
	return nil
}

// macro declares a macro. A later definition with a different body
// replaces the earlier one, as #undef followed by #define would.
func (b *builder) macro(e *stream.Entry) *Error {
	in := b.in
	def := decl.Macro{Params: e.MacroParams, FuncLike: e.FunctionLike || e.MacroParams != nil, Body: e.Body}
	if prev, ok := in.macros[e.Name]; ok {
		m := in.arena.Macro(prev)
		if m.Body == def.Body && m.FuncLike == def.FuncLike && slices.Equal(m.Params, def.Params) {
			return nil
		}
		*m = def
		in.arena.Update(prev, func(n *decl.Node) { n.Ordinal, n.Loc = b.ordinal, b.loc })
		diag.ReportInfo(in.r, diag.IngInfo, b.loc, fmt.Sprintf("macro %s redefined", e.Name)).Emit()
		return nil
	}
	id := in.arena.AddMacro(b.node(decl.KindMacro, e.Name, e.Doc, nil, nil), def)
	in.macros[e.Name] = id
	b.flush(id)
	return nil
}
