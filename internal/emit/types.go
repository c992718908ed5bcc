package emit

import (
	"fmt"
	"strconv"

	"cbind/internal/decl"
)

// scalar is the Go and libffi spelling of a fundamental type.
type scalar struct {
	goType  string
	ffiType string
	size    int
	goAlign int
	signed  bool
	small   bool // returned through an ffi.Arg slot
	opaque  bool // no libffi equivalent for by-value calls
}

func (e *Emitter) scalarOf(id decl.NodeID) scalar {
	n := e.arena.MustNode(id)
	return e.scalar(n.Scalar, n.Size)
}

func (e *Emitter) scalar(s decl.Scalar, size int) scalar {
	if size <= 0 {
		size = e.opts.Target.ScalarLayout(s).Size
	}
	signed := e.opts.Target.IsSigned(s)
	switch s {
	case decl.ScalarVoid:
		return scalar{goAlign: 1}
	case decl.ScalarBool:
		return scalar{goType: "bool", ffiType: "&ffi.TypeUint8", size: 1, goAlign: 1, small: true}
	case decl.ScalarFloat:
		return scalar{goType: "float32", ffiType: "&ffi.TypeFloat", size: 4, goAlign: 4, signed: true}
	case decl.ScalarDouble:
		return scalar{goType: "float64", ffiType: "&ffi.TypeDouble", size: 8, goAlign: e.goAlign(8), signed: true}
	case decl.ScalarLongDouble:
		if size == 8 {
			return scalar{goType: "float64", ffiType: "&ffi.TypeDouble", size: 8, goAlign: e.goAlign(8), signed: true}
		}
		return scalar{goType: byteArray(size), ffiType: "&ffi.TypeLongdouble", size: size, goAlign: 1, signed: true}
	case decl.ScalarInt128, decl.ScalarUInt128, decl.ScalarFloat128:
		return scalar{goType: byteArray(size), size: size, goAlign: 1, signed: signed, opaque: true}
	}
	out := scalar{size: size, goAlign: e.goAlign(size), signed: signed, small: size < 8}
	switch size {
	case 1, 2, 4, 8:
		bits := strconv.Itoa(size * 8)
		if signed {
			out.goType, out.ffiType = "int"+bits, "&ffi.TypeSint"+bits
		} else {
			out.goType, out.ffiType = "uint"+bits, "&ffi.TypeUint"+bits
		}
	default:
		out.goType, out.goAlign, out.opaque = byteArray(size), 1, true
	}
	return out
}

// goAlign is the alignment Go gives a scalar of the given size on the
// target: 64-bit values are only word aligned on 32-bit targets.
func (e *Emitter) goAlign(size int) int {
	if size > e.opts.Target.PtrSize {
		return e.opts.Target.PtrSize
	}
	return max(size, 1)
}

func byteArray(n int) string { return fmt.Sprintf("[%d]byte", n) }

// unitType is the unsigned integer used for aligned raw storage.
func (e *Emitter) unitType(align int) (string, string, int) {
	unit := min(max(align, 1), 8)
	switch {
	case unit >= 8:
		return "uint64", "&ffi.TypeUint64", 8
	case unit >= 4:
		return "uint32", "&ffi.TypeUint32", 4
	case unit >= 2:
		return "uint16", "&ffi.TypeUint16", 2
	}
	return "uint8", "&ffi.TypeUint8", 1
}

// resolve skips typedefs.
func (e *Emitter) resolve(id decl.NodeID) (decl.NodeID, decl.Node) {
	id = e.arena.Underlying(id)
	return id, e.arena.MustNode(id)
}

func (e *Emitter) isVoid(id decl.NodeID) bool {
	_, n := e.resolve(id)
	return n.Kind == decl.KindFundamental && n.Scalar == decl.ScalarVoid
}

func (e *Emitter) isChar(id decl.NodeID) bool {
	_, n := e.resolve(id)
	if n.Kind != decl.KindFundamental {
		return false
	}
	switch n.Scalar {
	case decl.ScalarChar, decl.ScalarSChar, decl.ScalarUChar:
		return true
	}
	return false
}

// isCString reports "const char *".
func (e *Emitter) isCString(id decl.NodeID) bool {
	_, n := e.resolve(id)
	return n.Kind == decl.KindPointer && n.Const && e.isChar(n.Elem)
}

// goType spells the Go type of a C type used as a field, variable or
// typedef target.
func (e *Emitter) goType(id decl.NodeID) string {
	n := e.arena.MustNode(id)
	switch n.Kind {
	case decl.KindFundamental:
		return e.scalarOf(id).goType
	case decl.KindPointer:
		return e.pointerType(n.Elem)
	case decl.KindArray:
		count := max(n.Count, 0)
		return "[" + strconv.Itoa(count) + "]" + e.goType(n.Elem)
	case decl.KindFunctionPointer:
		return "uintptr"
	case decl.KindStruct, decl.KindUnion, decl.KindEnum, decl.KindTypedef:
		if name := e.names.Name(id); name != "" {
			return name
		}
	}
	return "uintptr"
}

func (e *Emitter) pointerType(elem decl.NodeID) string {
	_, target := e.resolve(elem)
	switch {
	case target.Kind == decl.KindFundamental && target.Scalar == decl.ScalarVoid:
		e.use("unsafe")
		return "unsafe.Pointer"
	case target.Kind == decl.KindFunctionPointer || target.Kind == decl.KindFunction:
		return "uintptr"
	case e.isChar(elem):
		return "*byte"
	}
	elemType := e.goType(elem)
	if elemType == "" {
		e.use("unsafe")
		return "unsafe.Pointer"
	}
	return "*" + elemType
}

// ffiType spells the libffi descriptor of a by-value use. ok is false for
// types libffi cannot pass.
func (e *Emitter) ffiType(id decl.NodeID) (string, bool) {
	id, n := e.resolve(id)
	switch n.Kind {
	case decl.KindFundamental:
		s := e.scalarOf(id)
		if n.Scalar == decl.ScalarVoid {
			return "&ffi.TypeVoid", true
		}
		return s.ffiType, !s.opaque
	case decl.KindPointer, decl.KindFunctionPointer, decl.KindArray:
		return "&ffi.TypePointer", true
	case decl.KindEnum:
		return e.enumScalar(id).ffiType, true
	case decl.KindStruct, decl.KindUnion:
		rec := e.arena.Record(id)
		if rec == nil || rec.Layout == nil || rec.Layout.Size == 0 {
			// libffi rejects struct types without elements
			return "", false
		}
		return "&" + ffiTypeName(e.names.Name(id)), true
	}
	return "", false
}

func ffiTypeName(name string) string { return "FFIType" + name }

// enumScalar is the underlying integer of an enum.
func (e *Emitter) enumScalar(id decl.NodeID) scalar {
	n := e.arena.MustNode(id)
	if n.Scalar == decl.ScalarInvalid {
		return e.scalar(decl.ScalarInt, n.Size)
	}
	return e.scalar(n.Scalar, n.Size)
}

// sizeOf returns the C size of a type, 0 when unknown.
func (e *Emitter) sizeOf(id decl.NodeID) int {
	size, err := e.layout.SizeOf(id)
	if err != nil {
		return 0
	}
	return size
}

// goAlignOf is the alignment of the Go spelling of a type.
func (e *Emitter) goAlignOf(id decl.NodeID) int {
	id, n := e.resolve(id)
	switch n.Kind {
	case decl.KindFundamental:
		return e.scalarOf(id).goAlign
	case decl.KindEnum:
		return e.enumScalar(id).goAlign
	case decl.KindPointer, decl.KindFunctionPointer:
		return e.opts.Target.PtrSize
	case decl.KindArray:
		return e.goAlignOf(n.Elem)
	case decl.KindStruct, decl.KindUnion:
		if a, ok := e.recordAlign[id]; ok {
			return a
		}
		plan := e.planRecord(id)
		return plan.goAlign
	}
	return 1
}
