package layout

import (
	"errors"
	"fmt"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/typegraph"
)

// Resolve attaches a RecordLayout to every complete struct and union of the
// graph. Disagreements with the front end are reported as warnings and the
// front-end numbers are kept.
func Resolve(g *typegraph.Graph, target Target, r diag.Reporter) ([]Mismatch, error) {
	if r == nil {
		r = diag.NopReporter{}
	}
	arena := g.Arena()
	e := New(target, arena)
	var errs []error

	for _, id := range g.Members() {
		n := arena.MustNode(id)
		if !n.Kind.IsAggregate() {
			continue
		}
		rec := arena.Record(id)
		if rec == nil || !rec.Complete {
			continue
		}
		l, err := e.LayoutOf(id)
		if err != nil {
			var le *LayoutError
			if errors.As(err, &le) && le.Kind == LayoutErrRecursiveUnsized {
				errs = append(errs, err)
			}
			continue
		}
		source := decl.LayoutComputed
		if n.Size != decl.Unknown || n.Align > 0 || hasFrontEndOffsets(rec) {
			source = decl.LayoutFrontEnd
		}
		rec.Layout = &decl.RecordLayout{
			Size:     l.Size,
			Align:    l.Align,
			Offsets:  l.Offsets,
			Flexible: l.Flexible,
			Source:   source,
		}
	}

	var mismatches []Mismatch
	for _, is := range e.Issues() {
		n := arena.MustNode(is.Node)
		switch is.Kind {
		case IssueMismatch:
			mismatches = append(mismatches, is.Mismatch)
			code := diag.LayoutOffsetMismatch
			switch is.What {
			case "size":
				code = diag.LayoutSizeMismatch
			case "align":
				code = diag.LayoutAlignMismatch
			}
			diag.ReportWarning(r, code, n.Loc, fmt.Sprintf("%s: %s", describe(arena, is.Node, is.Field), is.Mismatch.String())).
				WithNote(n.Loc, "using the front-end value").
				Emit()
		case IssueIncompleteField:
			diag.ReportWarning(r, diag.LayoutIncompleteField, n.Loc,
				fmt.Sprintf("%s has incomplete type; treated as size 0", describe(arena, is.Node, is.Field))).Emit()
		case IssueUnknownScalar:
			diag.ReportWarning(r, diag.LayoutUnknownScalar, n.Loc, "fundamental type without size; assuming 0").Emit()
		case IssueBitfieldTooWide:
			diag.ReportWarning(r, diag.LayoutBitfieldTooWide, n.Loc,
				fmt.Sprintf("%s is %d bits wide", describe(arena, is.Node, is.Field), is.Width)).Emit()
		}
	}
	return mismatches, errors.Join(errs...)
}

func hasFrontEndOffsets(rec *decl.Record) bool {
	for _, f := range rec.Fields {
		if f.BitOffset != decl.Unknown {
			return true
		}
	}
	return false
}

func describe(arena *decl.Arena, id decl.NodeID, field int) string {
	name := typegraph.Describe(arena, id)
	if field < 0 {
		return name
	}
	rec := arena.Record(id)
	if rec == nil || field >= len(rec.Fields) || rec.Fields[field].Name == "" {
		return fmt.Sprintf("%s field #%d", name, field)
	}
	return name + "." + rec.Fields[field].Name
}
