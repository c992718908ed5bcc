package ingest

import (
	"fmt"

	"cbind/internal/diag"
)

// Error records a stream entry that was skipped. Skipping one entry never
// stops ingestion of the rest.
type Error struct {
	Entry  int // stream ordinal
	Kind   string
	Name   string
	Reason string
	Code   diag.Code
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	subject := e.Kind
	if e.Name != "" {
		subject = fmt.Sprintf("%s %s", e.Kind, e.Name)
	}
	if subject == "" {
		subject = "entry"
	}
	return fmt.Sprintf("entry #%d: %s skipped: %s", e.Entry, subject, e.Reason)
}

func skip(code diag.Code, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}
