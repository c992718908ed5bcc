package layout

import (
	"fmt"
	"strings"

	"cbind/internal/decl"
)

// LayoutErrorKind enumerates types of layout calculation errors.
type LayoutErrorKind uint8

const (
	// LayoutErrRecursiveUnsized indicates a record containing itself by value.
	LayoutErrRecursiveUnsized LayoutErrorKind = iota + 1
	// LayoutErrIncomplete indicates a by-value use of a forward-only record.
	LayoutErrIncomplete
)

// LayoutError represents an error during memory layout calculation.
type LayoutError struct {
	Kind  LayoutErrorKind
	Type  decl.NodeID
	Cycle []decl.NodeID // for LayoutErrRecursiveUnsized
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrRecursiveUnsized:
		if len(e.Cycle) == 0 {
			return fmt.Sprintf("recursive value type has infinite size (node#%d)", e.Type)
		}
		parts := make([]string, 0, len(e.Cycle))
		for _, id := range e.Cycle {
			parts = append(parts, fmt.Sprintf("node#%d", id))
		}
		return fmt.Sprintf("recursive value type has infinite size (cycle: %s)", strings.Join(parts, " -> "))
	case LayoutErrIncomplete:
		return fmt.Sprintf("incomplete type used by value (node#%d)", e.Type)
	default:
		return fmt.Sprintf("layout error kind=%d node#%d", e.Kind, e.Type)
	}
}

// Mismatch records a disagreement between the locally computed layout and
// the numbers the front end supplied. The front end wins.
type Mismatch struct {
	Node     decl.NodeID
	Field    int // -1 for record-level facts
	What     string
	Computed int
	FrontEnd int
}

func (m Mismatch) String() string {
	if m.Field >= 0 {
		return fmt.Sprintf("field %d %s: computed %d, front end %d", m.Field, m.What, m.Computed, m.FrontEnd)
	}
	return fmt.Sprintf("%s: computed %d, front end %d", m.What, m.Computed, m.FrontEnd)
}
