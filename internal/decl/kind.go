package decl

import "fmt"

// NodeID identifies a node inside an Arena.
type NodeID uint32

// NoNode marks the absence of a node.
const NoNode NodeID = 0

// Kind enumerates node variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindFundamental
	KindPointer
	KindArray
	KindFunctionPointer
	KindStruct
	KindUnion
	KindEnum
	KindTypedef
	KindFunction
	KindVariable
	KindMacro
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindFundamental:
		return "fundamental"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindFunctionPointer:
		return "function pointer"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindTypedef:
		return "typedef"
	case KindFunction:
		return "function"
	case KindVariable:
		return "variable"
	case KindMacro:
		return "macro"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// IsAggregate reports struct and union kinds.
func (k Kind) IsAggregate() bool {
	return k == KindStruct || k == KindUnion
}

// IsTag reports kinds living in the C tag namespace.
func (k Kind) IsTag() bool {
	return k.IsAggregate() || k == KindEnum
}

// IsDerived reports structural kinds that are interned rather than declared.
func (k Kind) IsDerived() bool {
	switch k {
	case KindFundamental, KindPointer, KindArray, KindFunctionPointer:
		return true
	}
	return false
}

// ParseKind maps a declaration stream kind to Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "fundamental":
		return KindFundamental, true
	case "pointer":
		return KindPointer, true
	case "array":
		return KindArray, true
	case "function_pointer":
		return KindFunctionPointer, true
	case "struct":
		return KindStruct, true
	case "union":
		return KindUnion, true
	case "enum":
		return KindEnum, true
	case "typedef":
		return KindTypedef, true
	case "function":
		return KindFunction, true
	case "variable":
		return KindVariable, true
	case "macro":
		return KindMacro, true
	}
	return KindInvalid, false
}
