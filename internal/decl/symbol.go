package decl

import "cbind/internal/diag"

// Symbol identifies a declaration to documentation collaborators.
type Symbol struct {
	Kind      Kind
	Name      string
	Prototype string // C spelling of functions and variables
	Doc       string // front-end documentation, if any
	Loc       diag.Loc
}

// Symbol describes a declaration node.
func (a *Arena) Symbol(id NodeID) Symbol {
	n, ok := a.Node(id)
	if !ok {
		return Symbol{}
	}
	sym := Symbol{Kind: n.Kind, Name: n.Name, Doc: n.Doc, Loc: n.Loc}
	switch n.Kind {
	case KindFunction:
		sym.Prototype = a.Prototype(id)
	case KindVariable:
		sym.Prototype = a.Spell(n.Elem, n.Name)
	}
	return sym
}
