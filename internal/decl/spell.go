package decl

import (
	"strconv"
	"strings"
)

// Spell renders id as C source text around an optional declarator.
func (a *Arena) Spell(id NodeID, declarator string) string {
	return strings.TrimSpace(a.spell(id, declarator))
}

// Prototype renders a function declaration, e.g. "void *malloc(size_t size)".
func (a *Arena) Prototype(fn NodeID) string {
	n, ok := a.Node(fn)
	sig := a.Signature(fn)
	if !ok || sig == nil {
		return ""
	}
	return a.Spell(sig.Result, n.Name+"("+a.paramList(sig)+")")
}

func (a *Arena) spell(id NodeID, inner string) string {
	n, ok := a.Node(id)
	if !ok {
		return join("<invalid>", inner)
	}
	switch n.Kind {
	case KindFundamental:
		return join(n.Scalar.String(), inner)
	case KindStruct, KindUnion, KindEnum:
		name := n.Name
		if name == "" {
			name = "<anonymous>"
		}
		return join(n.Kind.String()+" "+name, inner)
	case KindTypedef:
		return join(n.Name, inner)
	case KindPointer:
		ptr := "*" + inner
		if a.needsParens(n.Elem) {
			ptr = "(" + ptr + ")"
		}
		base := a.spell(n.Elem, ptr)
		if n.Const {
			base = "const " + base
		}
		return base
	case KindArray:
		dim := "[]"
		if n.Count >= 0 {
			dim = "[" + strconv.Itoa(n.Count) + "]"
		}
		return a.spell(n.Elem, inner+dim)
	case KindFunctionPointer:
		sig := a.Signature(id)
		return a.spell(sig.Result, "(*"+inner+")("+a.paramList(sig)+")")
	}
	return join(n.Name, inner)
}

func (a *Arena) needsParens(elem NodeID) bool {
	n, ok := a.Node(elem)
	return ok && n.Kind == KindArray
}

func (a *Arena) paramList(sig *Signature) string {
	parts := make([]string, 0, len(sig.Params)+1)
	for _, p := range sig.Params {
		parts = append(parts, a.Spell(p.Type, p.Name))
	}
	if sig.Variadic {
		parts = append(parts, "...")
	}
	if len(parts) == 0 {
		return "void"
	}
	return strings.Join(parts, ", ")
}

func join(base, inner string) string {
	switch {
	case inner == "":
		return base
	case strings.HasPrefix(inner, "*") || strings.HasPrefix(inner, "(*"):
		return base + " " + inner
	case strings.HasPrefix(inner, "["):
		return base + inner
	}
	return base + " " + inner
}
