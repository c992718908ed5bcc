package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Ingestion
	IngInfo                   Code = 1000
	IngSkipped                Code = 1001
	IngMalformedEntry         Code = 1002
	IngUnknownKind            Code = 1003
	IngIncompatibleDefinition Code = 1004
	IngUnknownTypeName        Code = 1005
	IngMissingName            Code = 1006

	// Type graph
	GraphInfo         Code = 2000
	GraphValueCycle   Code = 2001
	GraphForwardDecl  Code = 2002
	GraphOpaqueTarget Code = 2003

	// Layout
	LayoutInfo            Code = 3000
	LayoutSizeMismatch    Code = 3001
	LayoutAlignMismatch   Code = 3002
	LayoutOffsetMismatch  Code = 3003
	LayoutUnknownScalar   Code = 3004
	LayoutIncompleteField Code = 3005
	LayoutBitfieldTooWide Code = 3006

	// Constants
	ConstInfo       Code = 4000
	ConstUnresolved Code = 4001
	ConstTruncated  Code = 4002

	// Naming
	NameInfo      Code = 5000
	NameCollision Code = 5001
	NameReserved  Code = 5002
	NameInvalid   Code = 5003

	// Emission
	EmitInfo        Code = 6000
	EmitFormat      Code = 6001
	EmitDropped     Code = 6002
	EmitNoDocstring Code = 6003
	EmitVariadic    Code = 6004

	// IO
	IOInfo         Code = 7000
	IOReadFailed   Code = 7001
	IOWriteFailed  Code = 7002
	IOStoreFailed  Code = 7003
	IOLoadFailed   Code = 7004
	IOCompileError Code = 7005
)

var codeDescription = map[Code]string{
	UnknownCode:               "Unknown error",
	IngInfo:                   "Ingestion information",
	IngSkipped:                "Declaration skipped",
	IngMalformedEntry:         "Malformed stream entry",
	IngUnknownKind:            "Unsupported declaration kind",
	IngIncompatibleDefinition: "Incompatible redefinition",
	IngUnknownTypeName:        "Unknown type name",
	IngMissingName:            "Declaration without a name",
	GraphInfo:                 "Type graph information",
	GraphValueCycle:           "Cycle through by-value containment",
	GraphForwardDecl:          "Forward declaration inserted",
	GraphOpaqueTarget:         "Reference to an opaque type",
	LayoutInfo:                "Layout information",
	LayoutSizeMismatch:        "Size mismatch",
	LayoutAlignMismatch:       "Alignment mismatch",
	LayoutOffsetMismatch:      "Field offset mismatch",
	LayoutUnknownScalar:       "Unknown fundamental type",
	LayoutIncompleteField:     "Field of incomplete type",
	LayoutBitfieldTooWide:     "Bitfield wider than its type",
	ConstInfo:                 "Constant information",
	ConstUnresolved:           "Unresolved constant",
	ConstTruncated:            "Constant truncated",
	NameInfo:                  "Naming information",
	NameCollision:             "Name collision",
	NameReserved:              "Reserved identifier",
	NameInvalid:               "Invalid identifier",
	EmitInfo:                  "Emission information",
	EmitFormat:                "Generated source does not parse",
	EmitDropped:               "Declaration dropped",
	EmitNoDocstring:           "No docstring available",
	EmitVariadic:              "Variadic function bound as symbol only",
	IOInfo:                    "IO information",
	IOReadFailed:              "Read failed",
	IOWriteFailed:             "Write failed",
	IOStoreFailed:             "Name store failure",
	IOLoadFailed:              "Library load failed",
	IOCompileError:            "Compiler error",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("ING%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("GRF%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("CST%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("NAM%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("EMT%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("IO%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
