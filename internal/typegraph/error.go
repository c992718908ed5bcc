package typegraph

import (
	"strings"

	"cbind/internal/decl"
)

// CycleError reports declarations that contain each other by value. Such a
// cycle has no finite layout and aborts the run.
type CycleError struct {
	Cycle []decl.NodeID // closed path: first == last
	Names []string
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Names) == 0 {
		return "by-value cycle between declarations"
	}
	return "by-value cycle: " + strings.Join(e.Names, " -> ")
}

// Describe renders a node for messages, e.g. "struct foo" or "typedef bar_t".
func Describe(a *decl.Arena, id decl.NodeID) string {
	n, ok := a.Node(id)
	if !ok {
		return "<invalid>"
	}
	if n.Name != "" {
		return n.Kind.String() + " " + n.Name
	}
	if parent, ok := a.Node(n.Parent); ok && parent.Name != "" {
		return "anonymous " + n.Kind.String() + " in " + parent.Name
	}
	return "anonymous " + n.Kind.String()
}

func newCycleError(a *decl.Arena, cycle []decl.NodeID) *CycleError {
	names := make([]string, len(cycle))
	for i, id := range cycle {
		names[i] = Describe(a, id)
	}
	return &CycleError{Cycle: cycle, Names: names}
}
