package diag

import (
	"fmt"
	"strings"
)

// FormatShort renders diagnostics one per line in their current order,
// followed by their notes. Newlines inside messages are folded.
func FormatShort(items []Diagnostic, includeNotes bool) string {
	var b strings.Builder
	for i, d := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s %s", d.Severity.Label(), d.Code.ID(), d.Primary, foldMessage(d.Message))
		if !includeNotes {
			continue
		}
		for _, n := range d.Notes {
			fmt.Fprintf(&b, "\nnote %s %s %s", d.Code.ID(), n.Loc, foldMessage(n.Msg))
		}
	}
	return b.String()
}

func foldMessage(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}
