package constant

import (
	"cmp"
	"errors"
	"slices"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/layout"
	"cbind/internal/typegraph"
)

// Resolve folds every macro and variable initializer of the graph and
// attaches the result to its node. Those without a value keep the reason
// and are returned in stream order, macros first.
func Resolve(g *typegraph.Graph, target layout.Target, r diag.Reporter) []*Unresolved {
	if r == nil {
		r = diag.NopReporter{}
	}
	arena := g.Arena()
	ev := NewEvaluator(target)

	members := slices.Clone(g.Members())
	slices.SortStableFunc(members, func(a, b decl.NodeID) int {
		return cmp.Compare(arena.MustNode(a).Ordinal, arena.MustNode(b).Ordinal)
	})

	var macros, vars []decl.NodeID
	for _, id := range members {
		n := arena.MustNode(id)
		switch n.Kind {
		case decl.KindMacro:
			m := arena.Macro(id)
			ev.DefineMacro(n.Name, m.Params, m.FuncLike, m.Body)
			macros = append(macros, id)
		case decl.KindVariable:
			if arena.Variable(id).Init != "" {
				vars = append(vars, id)
			}
		case decl.KindEnum:
			for _, v := range arena.Enum(id).Values {
				ev.DefineEnum(v.Name, v.Value, n.Scalar)
			}
		case decl.KindTypedef:
			target := arena.MustNode(arena.Underlying(id))
			switch target.Kind {
			case decl.KindFundamental:
				ev.DefineTypedef(n.Name, target.Scalar)
			case decl.KindEnum:
				ev.DefineTypedef(n.Name, decl.ScalarInt)
			}
		}
	}

	var out []*Unresolved
	for _, id := range macros {
		n := arena.MustNode(id)
		m := arena.Macro(id)
		lit, err := ev.Macro(n.Name)
		if err == nil {
			m.Value, m.Unresolved = lit, ""
			continue
		}
		u := unresolvedOf(decl.KindMacro, n.Name, err)
		m.Value, m.Unresolved = nil, u.Reason
		out = append(out, u)
		diag.ReportInfo(r, diag.ConstUnresolved, n.Loc, u.Error()).Emit()
	}

	for _, id := range vars {
		n := arena.MustNode(id)
		v := arena.Variable(id)
		lit, err := initializer(ev, arena, n.Elem, v.Init)
		if err == nil {
			v.Value, v.Unresolved = lit, ""
			continue
		}
		u := unresolvedOf(decl.KindVariable, n.Name, err)
		v.Value, v.Unresolved = nil, u.Reason
		out = append(out, u)
		diag.ReportInfo(r, diag.ConstUnresolved, n.Loc, "initializer of "+u.Error()).Emit()
	}
	return out
}

func unresolvedOf(kind decl.Kind, name string, err error) *Unresolved {
	u := &Unresolved{Kind: kind, Name: name, Reason: err.Error()}
	var src *Unresolved
	if errors.As(err, &src) {
		u.Reason = src.Reason
	}
	return u
}

// initializer folds text for a variable of type typ. Only arithmetic
// variables and character pointers or arrays have foldable initializers.
func initializer(ev *Evaluator, arena *decl.Arena, typ decl.NodeID, text string) (*decl.Literal, error) {
	t, ok := arena.Node(arena.Underlying(typ))
	if !ok {
		return nil, unresolvedf("variable has no type")
	}
	switch t.Kind {
	case decl.KindFundamental:
		return ev.Initializer(text, t.Scalar)
	case decl.KindEnum:
		s := t.Scalar
		if s == decl.ScalarInvalid {
			s = decl.ScalarInt
		}
		return ev.Initializer(text, s)
	case decl.KindPointer, decl.KindArray:
		elem, ok := arena.Node(arena.Underlying(t.Elem))
		if ok && elem.Kind == decl.KindFundamental && isCharType(elem.Scalar) {
			return ev.Initializer(text, decl.ScalarInvalid)
		}
	}
	return nil, unresolvedf("initializer of a %s is not a constant", t.Kind)
}
