package decl

import (
	"math/big"

	"cbind/internal/diag"
)

const (
	// Unknown marks a size, alignment or offset the front end did not supply.
	Unknown = -1
	// CountIncomplete marks an array declared without a length ("T x[]").
	CountIncomplete = -1
	// NoBits marks a field that is not a bitfield.
	NoBits = -1
)

// Node is the compact descriptor stored in the Arena. Variant-specific data
// lives in side tables addressed by Payload.
type Node struct {
	Kind    Kind
	Name    string // source name; empty for anonymous and derived nodes
	Ordinal int    // stream ordinal of the defining entry, -1 for derived nodes
	Loc     diag.Loc
	Doc     string // front-end supplied documentation

	Elem   NodeID // pointer pointee, array element, typedef target, variable type
	Count  int    // array length or CountIncomplete
	Scalar Scalar // fundamental kind, enum underlying integer
	Const  bool   // pointee is const-qualified

	Size  int // bytes as reported by the front end, or Unknown
	Align int // bytes as reported by the front end, or Unknown

	Payload uint32 // index into the side table of the kind

	// Anonymous aggregates and enums remember the nearest enclosing named
	// declaration and their position among its anonymous members.
	Parent   NodeID
	Position int
}

// IsAnonymous reports declaration nodes without a source name.
func (n Node) IsAnonymous() bool {
	return n.Name == "" && !n.Kind.IsDerived()
}

// Field is a struct or union member.
type Field struct {
	Name      string // empty for unnamed bitfields and anonymous members
	Type      NodeID
	BitWidth  int // NoBits unless the member is a bitfield
	BitOffset int // front-end bit offset, or Unknown
}

// IsBitfield reports whether the member has an explicit bit width.
func (f Field) IsBitfield() bool { return f.BitWidth != NoBits }

// Record holds struct and union members.
type Record struct {
	Fields   []Field
	Packed   bool
	Complete bool // false for forward-only declarations

	Layout *RecordLayout // attached by the layout pass
}

// LayoutSource says which side produced the numbers in a RecordLayout.
type LayoutSource uint8

const (
	LayoutComputed LayoutSource = iota
	LayoutFrontEnd
)

// RecordLayout is the resolved layout of a struct or union.
type RecordLayout struct {
	Size     int   // bytes
	Align    int   // bytes
	Offsets  []int // bit offset per field
	Flexible bool  // last member is a zero-length or incomplete array
	Source   LayoutSource
}

// Param is a function or function pointer parameter.
type Param struct {
	Name string
	Type NodeID
}

// CallConv tags the calling convention of a function.
type CallConv string

const (
	CallDefault  CallConv = ""
	CallCdecl    CallConv = "cdecl"
	CallStdcall  CallConv = "stdcall"
	CallFastcall CallConv = "fastcall"
)

// Signature describes functions and function pointers.
type Signature struct {
	Result   NodeID
	Params   []Param
	Variadic bool
	CallConv CallConv
}

// Enumerator is a single enum constant.
type Enumerator struct {
	Name  string
	Value int64
}

// Enum holds enum constants.
type Enum struct {
	Values   []Enumerator
	Complete bool
}

// Variable holds global variable facts.
type Variable struct {
	Init string // raw initializer text

	Value      *Literal // folded initializer, converted to the variable type
	Unresolved string   // reason when the initializer could not be folded
}

// LiteralKind classifies a folded constant.
type LiteralKind uint8

const (
	LitInt LiteralKind = iota + 1
	LitFloat
	LitString
	LitChar
)

func (k LiteralKind) String() string {
	switch k {
	case LitInt:
		return "int"
	case LitFloat:
		return "float"
	case LitString:
		return "string"
	case LitChar:
		return "char"
	}
	return "unknown"
}

// Literal is the typed result of folding a macro body.
type Literal struct {
	Kind  LiteralKind
	Int   *big.Int // LitInt and LitChar (code point)
	Float float64
	Str   string
	Wide  bool   // L"" or L'' literal
	Type  Scalar // closest C type
}

// Macro holds a preprocessor definition and its resolution.
type Macro struct {
	Params   []string
	FuncLike bool
	Body     string

	Value      *Literal // attached by the constant pass
	Unresolved string   // reason when the constant pass gave up
}

// Resolved reports whether the constant pass produced a value.
func (m *Macro) Resolved() bool { return m != nil && m.Value != nil }
