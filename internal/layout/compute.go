package layout

import (
	"cbind/internal/decl"
)

func (e *Engine) computeLayout(id decl.NodeID, state *layoutState) (TypeLayout, *LayoutError) {
	n, ok := e.Arena.Node(id)
	if !ok {
		return TypeLayout{Size: 0, Align: 1}, nil
	}

	switch n.Kind {
	case decl.KindFundamental:
		return e.fundamentalLayout(id, n), nil

	case decl.KindPointer, decl.KindFunctionPointer:
		return e.ptrLayout(), nil

	case decl.KindArray:
		elem, err := e.layoutOf(n.Elem, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		return arrayFixedLayout(elem, n.Count), nil

	case decl.KindTypedef, decl.KindVariable:
		return e.layoutOf(n.Elem, state)

	case decl.KindEnum:
		l := e.Target.ScalarLayout(decl.ScalarInt)
		if n.Scalar != decl.ScalarInvalid {
			l = e.Target.ScalarLayout(n.Scalar)
		}
		return preferKnown(l, n), nil

	case decl.KindStruct, decl.KindUnion:
		rec := e.Arena.Record(id)
		if rec == nil || !rec.Complete {
			return TypeLayout{Size: 0, Align: 1}, &LayoutError{Kind: LayoutErrIncomplete, Type: id}
		}
		computed, err := e.recordLayout(id, n, rec, state)
		if err != nil {
			return computed, err
		}
		return e.reconcile(id, n, rec, computed), nil

	default:
		return TypeLayout{Size: 0, Align: 1}, nil
	}
}

func (e *Engine) fundamentalLayout(id decl.NodeID, n decl.Node) TypeLayout {
	if n.Scalar == decl.ScalarInvalid && (n.Size == decl.Unknown || n.Align == decl.Unknown) {
		e.issues = append(e.issues, Issue{Kind: IssueUnknownScalar, Node: id, Field: -1})
	}
	return preferKnown(e.Target.ScalarLayout(n.Scalar), n)
}

func preferKnown(l TypeLayout, n decl.Node) TypeLayout {
	if n.Size != decl.Unknown {
		l.Size = n.Size
	}
	if n.Align > 0 {
		l.Align = n.Align
	}
	return l
}

// fieldLayout returns the layout of a member type. By-value members of
// incomplete records are recorded as issues and contribute nothing.
func (e *Engine) fieldLayout(rec decl.NodeID, idx int, f decl.Field, state *layoutState) (TypeLayout, *LayoutError) {
	fl, err := e.layoutOf(f.Type, state)
	if err == nil {
		return fl, nil
	}
	if err.Kind == LayoutErrIncomplete {
		e.issues = append(e.issues, Issue{Kind: IssueIncompleteField, Node: rec, Field: idx})
		return TypeLayout{Size: 0, Align: 1}, nil
	}
	return fl, err
}

func (e *Engine) recordLayout(id decl.NodeID, n decl.Node, rec *decl.Record, state *layoutState) (TypeLayout, *LayoutError) {
	if n.Kind == decl.KindUnion {
		return e.unionLayout(id, rec, state)
	}
	return e.structLayout(id, rec, state)
}

func (e *Engine) structLayout(id decl.NodeID, rec *decl.Record, state *layoutState) (TypeLayout, *LayoutError) {
	out := TypeLayout{Align: 1, Offsets: make([]int, len(rec.Fields))}
	bit := 0
	for i, f := range rec.Fields {
		fl, err := e.fieldLayout(id, i, f, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		align := fl.Align
		if rec.Packed {
			align = 1
		}

		if f.IsBitfield() {
			unit := fl.Size * 8
			if f.BitWidth > unit {
				e.issues = append(e.issues, Issue{Kind: IssueBitfieldTooWide, Node: id, Field: i, Width: f.BitWidth})
			}
			if f.BitWidth == 0 {
				if !rec.Packed {
					bit = roundUp(bit, fl.Align*8)
				}
				out.Offsets[i] = bit
				continue
			}
			if !rec.Packed && unit > 0 && f.BitWidth <= unit && bit/unit != (bit+f.BitWidth-1)/unit {
				bit = roundUp(bit, unit)
			}
			out.Offsets[i] = bit
			bit += f.BitWidth
			if f.Name != "" {
				out.Align = maxInt(out.Align, align)
			}
			continue
		}

		bit = roundUp(bit, align*8)
		out.Offsets[i] = bit
		bit += fl.Size * 8
		out.Align = maxInt(out.Align, align)
		if i == len(rec.Fields)-1 && e.isFlexibleArray(f.Type) {
			out.Flexible = true
		}
	}
	out.Size = roundUp((bit+7)/8, out.Align)
	return out, nil
}

func (e *Engine) unionLayout(id decl.NodeID, rec *decl.Record, state *layoutState) (TypeLayout, *LayoutError) {
	out := TypeLayout{Align: 1, Offsets: make([]int, len(rec.Fields))}
	size := 0
	for i, f := range rec.Fields {
		fl, err := e.fieldLayout(id, i, f, state)
		if err != nil {
			return TypeLayout{Size: 0, Align: 1}, err
		}
		if f.IsBitfield() && f.BitWidth == 0 {
			continue
		}
		align := fl.Align
		if rec.Packed {
			align = 1
		}
		if f.IsBitfield() {
			size = maxInt(size, (f.BitWidth+7)/8)
			if f.Name != "" {
				out.Align = maxInt(out.Align, align)
			}
			continue
		}
		size = maxInt(size, fl.Size)
		out.Align = maxInt(out.Align, align)
	}
	out.Size = roundUp(size, out.Align)
	return out, nil
}

func (e *Engine) isFlexibleArray(id decl.NodeID) bool {
	n, ok := e.Arena.Node(e.Arena.Underlying(id))
	return ok && n.Kind == decl.KindArray && n.Count <= 0
}

// reconcile applies front-end numbers over the computed layout and records
// every disagreement.
func (e *Engine) reconcile(id decl.NodeID, n decl.Node, rec *decl.Record, computed TypeLayout) TypeLayout {
	out := computed
	out.Offsets = append([]int(nil), computed.Offsets...)
	mismatch := func(field int, what string, c, fe int) {
		e.issues = append(e.issues, Issue{
			Kind:     IssueMismatch,
			Node:     id,
			Field:    field,
			Mismatch: Mismatch{Node: id, Field: field, What: what, Computed: c, FrontEnd: fe},
		})
	}
	if n.Size != decl.Unknown && n.Size != computed.Size {
		mismatch(-1, "size", computed.Size, n.Size)
		out.Size = n.Size
	}
	if n.Align > 0 && n.Align != computed.Align {
		mismatch(-1, "align", computed.Align, n.Align)
		out.Align = n.Align
	}
	for i, f := range rec.Fields {
		if f.BitOffset == decl.Unknown || i >= len(out.Offsets) {
			continue
		}
		if f.BitOffset != computed.Offsets[i] {
			mismatch(i, "offset", computed.Offsets[i], f.BitOffset)
			out.Offsets[i] = f.BitOffset
		}
	}
	return out
}

func (e *Engine) ptrLayout() TypeLayout {
	return TypeLayout{Size: e.Target.PtrSize, Align: e.Target.PtrAlign}
}

func scalarLayoutBytes(sizeBytes int) TypeLayout {
	if sizeBytes <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	return TypeLayout{Size: sizeBytes, Align: sizeBytes}
}

func arrayFixedLayout(elem TypeLayout, count int) TypeLayout {
	if count <= 0 {
		return TypeLayout{Size: 0, Align: maxInt(1, elem.Align)}
	}
	stride := roundUp(elem.Size, elem.Align)
	return TypeLayout{Size: stride * count, Align: maxInt(1, elem.Align)}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
