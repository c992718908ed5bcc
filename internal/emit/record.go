package emit

import (
	"fmt"
	"strconv"
	"strings"

	"cbind/internal/decl"
)

type slotKind uint8

const (
	slotField slotKind = iota // typed Go field
	slotEmbed                 // anonymous member embedded by type name
	slotPad                   // blank padding
	slotBlob                  // misaligned member kept as bytes
	slotBits                  // storage of a run of bitfields
)

type slot struct {
	kind   slotKind
	name   string
	goType string
	offset int // bytes
	size   int
	field  int // index into Record.Fields, -1 for padding and bit runs
	typ    decl.NodeID
	bits   []bitAccessor
}

type bitAccessor struct {
	field  int
	get    string
	set    string
	offset int // bits from the start of the storage
	width  int
	typ    decl.NodeID
}

type accessor struct {
	field  int
	name   string
	set    string
	typ    decl.NodeID
	offset int // bytes
}

// recordPlan maps a C record layout onto Go storage.
type recordPlan struct {
	id      decl.NodeID
	name    string
	union   bool
	size    int
	align   int
	goAlign int

	slots   []slot
	members map[string]bool

	// unions
	storage   string
	unitType  string
	unitCount int
	pointers  []accessor
	unionBits []bitAccessor

	flexible *accessor
	blobs    []accessor
}

func (p *recordPlan) member(base string) string {
	name := base
	for i := 1; p.members[name]; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	p.members[name] = true
	return name
}

func (e *Emitter) planRecord(id decl.NodeID) *recordPlan {
	if plan, ok := e.plans[id]; ok {
		return plan
	}
	n := e.arena.MustNode(id)
	rec := e.arena.Record(id)
	plan := &recordPlan{
		id:      id,
		name:    e.names.Name(id),
		union:   n.Kind == decl.KindUnion,
		goAlign: 1,
		members: make(map[string]bool),
	}
	e.plans[id] = plan
	if rec == nil || rec.Layout == nil {
		e.recordAlign[id] = 1
		return plan
	}
	plan.size, plan.align = rec.Layout.Size, rec.Layout.Align
	fields := e.names.Fields(id)
	for _, name := range fields {
		if name != "" {
			plan.members[name] = true
		}
	}
	if plan.union {
		e.planUnion(plan, rec, fields)
	} else {
		e.planStruct(plan, rec, fields)
	}
	e.recordAlign[id] = plan.goAlign
	return plan
}

func (e *Emitter) planStruct(plan *recordPlan, rec *decl.Record, fields []string) {
	l := rec.Layout
	cursor := 0
	pad := func(to int) {
		if to > cursor {
			plan.slots = append(plan.slots, slot{kind: slotPad, goType: byteArray(to - cursor), offset: cursor, size: to - cursor, field: -1})
			cursor = to
		}
	}
	runs := 0
	for i := 0; i < len(rec.Fields); i++ {
		f := rec.Fields[i]
		if f.IsBitfield() {
			j, start, end := i, max(l.Offsets[i]/8, cursor), cursor
			for ; j < len(rec.Fields) && rec.Fields[j].IsBitfield(); j++ {
				end = max(end, (l.Offsets[j]+rec.Fields[j].BitWidth+7)/8)
			}
			if end > start {
				pad(start)
				run := slot{kind: slotBits, name: plan.member("bits" + strconv.Itoa(runs)), offset: start, size: end - start, field: -1, typ: f.Type}
				run.goType = byteArray(run.size)
				for k := i; k < j; k++ {
					if fields[k] == "" || rec.Fields[k].BitWidth == 0 {
						continue
					}
					run.bits = append(run.bits, bitAccessor{
						field:  k,
						offset: l.Offsets[k] - start*8,
						width:  rec.Fields[k].BitWidth,
						typ:    rec.Fields[k].Type,
					})
				}
				plan.slots = append(plan.slots, run)
				cursor = end
				runs++
			}
			i = j - 1
			continue
		}

		off := l.Offsets[i] / 8
		size := e.sizeOf(f.Type)
		if i == len(rec.Fields)-1 && l.Flexible && e.isArray(f.Type) && fields[i] != "" {
			plan.flexible = &accessor{field: i, name: fields[i], set: plan.member(fields[i] + "Slice"), typ: e.arrayElem(f.Type), offset: off}
			continue
		}
		if size == 0 || off < cursor {
			continue
		}
		pad(off)
		ga := e.goAlignOf(f.Type)
		aligned := off%ga == 0 && ga <= max(plan.align, 1)
		switch {
		case fields[i] == "" && e.isRecord(f.Type) && aligned:
			plan.slots = append(plan.slots, slot{kind: slotEmbed, goType: e.goType(f.Type), offset: off, size: size, field: i, typ: f.Type})
			plan.goAlign = max(plan.goAlign, ga)
		case fields[i] == "":
			plan.slots = append(plan.slots, slot{kind: slotPad, goType: byteArray(size), offset: off, size: size, field: -1})
		case aligned:
			plan.slots = append(plan.slots, slot{kind: slotField, name: fields[i], goType: e.goType(f.Type), offset: off, size: size, field: i, typ: f.Type})
			plan.goAlign = max(plan.goAlign, ga)
		default:
			plan.slots = append(plan.slots, slot{kind: slotBlob, goType: byteArray(size), offset: off, size: size, field: i, typ: f.Type})
		}
		cursor = off + size
	}
	pad(plan.size)

	// members first claimed by field names; storage and accessors follow
	for i := range plan.slots {
		s := &plan.slots[i]
		switch s.kind {
		case slotBlob:
			base := fields[s.field]
			delete(plan.members, base)
			get := plan.member(base)
			set := plan.member("Set" + base)
			s.name = plan.member("raw" + base)
			plan.blobs = append(plan.blobs, accessor{field: s.field, name: get, set: set, typ: s.typ})
		case slotBits:
			for k := range s.bits {
				base := fields[s.bits[k].field]
				delete(plan.members, base)
				s.bits[k].get = plan.member(base)
				s.bits[k].set = plan.member("Set" + base)
			}
		}
	}
}

func (e *Emitter) planUnion(plan *recordPlan, rec *decl.Record, fields []string) {
	for i := range fields {
		if fields[i] != "" {
			delete(plan.members, fields[i])
		}
	}
	for i, f := range rec.Fields {
		name := fields[i]
		if name == "" && e.isRecord(f.Type) {
			name = e.goType(f.Type)
		}
		if name == "" || (f.IsBitfield() && f.BitWidth == 0) {
			continue
		}
		if f.IsBitfield() {
			plan.unionBits = append(plan.unionBits, bitAccessor{
				field: i,
				get:   plan.member(name),
				set:   plan.member("Set" + name),
				width: f.BitWidth,
				typ:   f.Type,
			})
			continue
		}
		if e.goType(f.Type) == "" {
			continue
		}
		plan.pointers = append(plan.pointers, accessor{field: i, name: plan.member(name), typ: f.Type})
	}
	unit, _, unitSize := e.unitType(plan.align)
	if plan.size%unitSize != 0 {
		unit, unitSize = "uint8", 1
	}
	plan.unitType, plan.unitCount = unit, plan.size/unitSize
	plan.storage = plan.member("data")
	plan.goAlign = min(e.goAlign(unitSize), max(plan.align, 1))
}

func (e *Emitter) isRecord(id decl.NodeID) bool {
	_, n := e.resolve(id)
	return n.Kind.IsAggregate()
}

func (e *Emitter) isArray(id decl.NodeID) bool {
	_, n := e.resolve(id)
	return n.Kind == decl.KindArray
}

func (e *Emitter) arrayElem(id decl.NodeID) decl.NodeID {
	_, n := e.resolve(id)
	return n.Elem
}

// emitOpaque renders a record without a definition.
func (e *Emitter) emitOpaque(w *strings.Builder, id decl.NodeID) {
	name := e.names.Name(id)
	e.doc(w, id, name+" is an incomplete C type, used through pointers only.")
	fmt.Fprintf(w, "type %s struct{}\n", name)
}

// emitForward declares the libffi descriptor of a record defined later.
func (e *Emitter) emitForward(w *strings.Builder, id decl.NodeID) {
	name := e.names.Name(id)
	e.forwarded[id] = true
	e.use("ffi")
	fmt.Fprintf(w, "// %s is completed by the definition of %s below.\nvar %s ffi.Type\n", ffiTypeName(name), name, ffiTypeName(name))
}

func (e *Emitter) emitRecord(w *strings.Builder, id decl.NodeID) {
	plan := e.planRecord(id)
	if plan.union {
		e.emitUnion(w, plan)
	} else {
		e.emitStruct(w, plan)
	}
	e.emitDescriptor(w, plan)
	if e.opts.Assertions {
		e.assertRecord(plan)
	}
}

func (e *Emitter) emitStruct(w *strings.Builder, plan *recordPlan) {
	e.doc(w, plan.id, "")
	if len(plan.slots) == 0 {
		fmt.Fprintf(w, "type %s struct{}\n", plan.name)
	} else {
		fmt.Fprintf(w, "type %s struct {\n", plan.name)
		for _, s := range plan.slots {
			switch s.kind {
			case slotField:
				fmt.Fprintf(w, "\t%s %s\n", s.name, s.goType)
			case slotEmbed:
				fmt.Fprintf(w, "\t%s\n", s.goType)
			case slotPad:
				fmt.Fprintf(w, "\t_ %s\n", s.goType)
			case slotBlob, slotBits:
				fmt.Fprintf(w, "\t%s %s\n", s.name, s.goType)
			}
		}
		w.WriteString("}\n")
	}

	for _, s := range plan.slots {
		switch s.kind {
		case slotBlob:
			for _, a := range plan.blobs {
				if a.field == s.field {
					e.emitBlobAccessors(w, plan, s, a)
				}
			}
		case slotBits:
			for _, b := range s.bits {
				e.emitBitAccessors(w, plan, b, "r."+s.name+"[:]")
			}
		}
	}
	if f := plan.flexible; f != nil {
		e.use("unsafe")
		elem := e.goType(f.typ)
		fmt.Fprintf(w, "\n// %s returns element i of the trailing array. The caller owns the bounds.\n", f.name)
		fmt.Fprintf(w, "func (r *%s) %s(i int) *%s {\n", plan.name, f.name, elem)
		fmt.Fprintf(w, "\treturn (*%s)(unsafe.Add(unsafe.Pointer(r), %d+i*%d))\n}\n", elem, f.offset, e.sizeOf(f.typ))
		fmt.Fprintf(w, "\n// %s views the first n elements of the trailing array.\n", f.set)
		fmt.Fprintf(w, "func (r *%s) %s(n int) []%s {\n", plan.name, f.set, elem)
		fmt.Fprintf(w, "\treturn unsafe.Slice(r.%s(0), n)\n}\n", f.name)
	}
}

func (e *Emitter) emitBlobAccessors(w *strings.Builder, plan *recordPlan, s slot, a accessor) {
	e.use("unsafe")
	typ := e.goType(a.typ)
	fmt.Fprintf(w, "\nfunc (r *%s) %s() (v %s) {\n", plan.name, a.name, typ)
	fmt.Fprintf(w, "\tcopy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v)), r.%s[:])\n\treturn v\n}\n", s.name)
	fmt.Fprintf(w, "\nfunc (r *%s) %s(v %s) {\n", plan.name, a.set, typ)
	fmt.Fprintf(w, "\tcopy(r.%s[:], unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v)))\n}\n", s.name)
}

func (e *Emitter) emitBitAccessors(w *strings.Builder, plan *recordPlan, b bitAccessor, storage string) {
	e.helper(helperBits)
	typ := e.goType(b.typ)
	sc, signed := e.bitScalar(b.typ)
	get := fmt.Sprintf("getBits(%s, %d, %d)", storage, b.offset, b.width)
	isBool := sc.goType == "bool"
	switch {
	case isBool:
		get += " != 0"
	case signed:
		e.helper(helperSignExtend)
		get = fmt.Sprintf("%s(signExtend(%s, %d))", typ, get, b.width)
	default:
		get = fmt.Sprintf("%s(%s)", typ, get)
	}
	fmt.Fprintf(w, "\nfunc (r *%s) %s() %s {\n\treturn %s\n}\n", plan.name, b.get, typ, get)

	val := "uint64(v)"
	switch {
	case isBool:
		e.helper(helperBoolBits)
		val = "boolBits(v)"
	case sc.goType != typ:
		val = fmt.Sprintf("uint64(%s(v))", sc.goType)
	}
	fmt.Fprintf(w, "\nfunc (r *%s) %s(v %s) {\n\tsetBits(%s, %d, %d, %s)\n}\n", plan.name, b.set, typ, storage, b.offset, b.width, val)
}

// bitScalar returns the integer behind a bitfield type.
func (e *Emitter) bitScalar(id decl.NodeID) (scalar, bool) {
	id, n := e.resolve(id)
	var s scalar
	if n.Kind == decl.KindEnum {
		s = e.enumScalar(id)
	} else {
		s = e.scalarOf(id)
	}
	return s, s.signed && s.goType != "bool"
}

func (e *Emitter) emitUnion(w *strings.Builder, plan *recordPlan) {
	e.doc(w, plan.id, "")
	fmt.Fprintf(w, "type %s struct {\n\t%s [%d]%s\n}\n", plan.name, plan.storage, plan.unitCount, plan.unitType)
	if len(plan.pointers)+len(plan.unionBits) > 0 {
		e.use("unsafe")
	}
	for _, a := range plan.pointers {
		typ := e.goType(a.typ)
		fmt.Fprintf(w, "\nfunc (r *%s) %s() *%s {\n\treturn (*%s)(unsafe.Pointer(&r.%s))\n}\n", plan.name, a.name, typ, typ, plan.storage)
	}
	for _, b := range plan.unionBits {
		storage := fmt.Sprintf("unsafe.Slice((*byte)(unsafe.Pointer(&r.%s)), %d)", plan.storage, plan.size)
		e.emitBitAccessors(w, plan, b, storage)
	}
}

// ffiElem is one libffi element repeated n times.
type ffiElem struct {
	expr string
	n    int
}

func (e *Emitter) descriptorElems(plan *recordPlan) []ffiElem {
	rec := e.arena.Record(plan.id)
	if rec.Packed && plan.size > 0 {
		return []ffiElem{{"&ffi.TypeUint8", plan.size}}
	}
	if plan.union {
		_, expr, unit := e.unitType(plan.align)
		if plan.size%unit != 0 {
			return []ffiElem{{"&ffi.TypeUint8", plan.size}}
		}
		if plan.size == 0 {
			return nil
		}
		return []ffiElem{{expr, plan.size / unit}}
	}
	var out []ffiElem
	for _, s := range plan.slots {
		switch s.kind {
		case slotField, slotEmbed:
			out = append(out, e.valueElems(s.typ)...)
		case slotBlob:
			out = append(out, ffiElem{"&ffi.TypeUint8", s.size})
		case slotBits:
			sc, _ := e.bitScalar(s.typ)
			if sc.size > 0 && s.size%sc.size == 0 && s.offset%sc.size == 0 && sc.ffiType != "" {
				out = append(out, ffiElem{sc.ffiType, s.size / sc.size})
			} else {
				out = append(out, ffiElem{"&ffi.TypeUint8", s.size})
			}
		}
	}
	return out
}

// valueElems flattens a by-value member: arrays repeat their element.
func (e *Emitter) valueElems(id decl.NodeID) []ffiElem {
	_, n := e.resolve(id)
	if n.Kind == decl.KindArray {
		inner := e.valueElems(n.Elem)
		if len(inner) == 1 {
			return []ffiElem{{inner[0].expr, inner[0].n * max(n.Count, 0)}}
		}
		var out []ffiElem
		for range max(n.Count, 0) {
			out = append(out, inner...)
		}
		return out
	}
	expr, ok := e.ffiType(id)
	if !ok {
		return []ffiElem{{"&ffi.TypeUint8", e.sizeOf(id)}}
	}
	if expr == "" {
		return []ffiElem{{"&ffi.TypeUint8", e.sizeOf(id)}}
	}
	return []ffiElem{{expr, 1}}
}

// emitDescriptor writes the libffi type of a record. Records of size 0
// get none: they cannot be passed by value.
func (e *Emitter) emitDescriptor(w *strings.Builder, plan *recordPlan) {
	if plan.size == 0 {
		return
	}
	e.use("ffi")
	elems := e.descriptorElems(plan)
	var args string
	flat := 0
	long := false
	for _, el := range elems {
		flat += el.n
		long = long || el.n > 8
	}
	if long {
		e.helper(helperFFIElems)
		var b strings.Builder
		b.WriteString("ffiElems(\n")
		for _, el := range elems {
			fmt.Fprintf(&b, "\tffiRepeat(%s, %d),\n", el.expr, el.n)
		}
		b.WriteString(")...")
		args = b.String()
	} else {
		parts := make([]string, 0, flat)
		for _, el := range elems {
			for range el.n {
				parts = append(parts, el.expr)
			}
		}
		args = strings.Join(parts, ", ")
	}
	name := ffiTypeName(plan.name)
	if e.forwarded[plan.id] {
		fmt.Fprintf(w, "\nfunc init() {\n\t%s = ffi.NewType(%s)\n}\n", name, args)
		return
	}
	fmt.Fprintf(w, "\nvar %s = ffi.NewType(%s)\n", name, args)
}

func (e *Emitter) assertRecord(plan *recordPlan) {
	e.use("unsafe")
	e.assertions = append(e.assertions, fmt.Sprintf("_ = x[unsafe.Sizeof(%s{})-%d]", plan.name, plan.size))
	for _, s := range plan.slots {
		switch s.kind {
		case slotField:
			e.assertions = append(e.assertions, fmt.Sprintf("_ = x[unsafe.Offsetof(%s{}.%s)-%d]", plan.name, s.name, s.offset))
		case slotEmbed:
			e.assertions = append(e.assertions, fmt.Sprintf("_ = x[unsafe.Offsetof(%s{}.%s)-%d]", plan.name, s.goType, s.offset))
		}
	}
}
