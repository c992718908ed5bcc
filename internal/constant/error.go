package constant

import (
	"fmt"

	"cbind/internal/decl"
)

// Unresolved explains why a macro or variable initializer has no constant
// value. Unresolved macros are omitted from the output and listed in the
// omission report.
type Unresolved struct {
	Kind   decl.Kind // KindMacro or KindVariable; zero for free expressions
	Name   string
	Reason string
}

func (u *Unresolved) Error() string {
	if u == nil {
		return "<nil>"
	}
	if u.Name == "" {
		return u.Reason
	}
	return fmt.Sprintf("%s: %s", u.Name, u.Reason)
}

func unresolvedf(format string, args ...any) *Unresolved {
	return &Unresolved{Reason: fmt.Sprintf(format, args...)}
}
