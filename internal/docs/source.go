// Package docs supplies documentation strings for emitted declarations.
// Every source is best effort: a miss is never an error.
package docs

import (
	"strings"

	"cbind/internal/decl"
)

// Source is the DocstringSource collaborator of the emitter.
type Source interface {
	Docstring(sym decl.Symbol) (string, bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(sym decl.Symbol) (string, bool)

func (f SourceFunc) Docstring(sym decl.Symbol) (string, bool) { return f(sym) }

// None never has documentation.
var None Source = SourceFunc(func(decl.Symbol) (string, bool) { return "", false })

// Prototypes documents functions and variables with their C declaration
// followed by the header location, e.g. "void *malloc(size_t size)\nmalloc.h:38".
type Prototypes struct{}

func (Prototypes) Docstring(sym decl.Symbol) (string, bool) {
	if sym.Prototype == "" {
		return "", false
	}
	if sym.Loc.File == "" {
		return sym.Prototype, true
	}
	return sym.Prototype + "\n" + sym.Loc.String(), true
}

// FrontEnd returns the documentation carried by the declaration stream.
type FrontEnd struct{}

func (FrontEnd) Docstring(sym decl.Symbol) (string, bool) {
	doc := strings.TrimSpace(sym.Doc)
	return doc, doc != ""
}

// Chain joins the answers of several sources with a blank line.
type Chain []Source

func (c Chain) Docstring(sym decl.Symbol) (string, bool) {
	var parts []string
	seen := make(map[string]bool)
	for _, src := range c {
		if src == nil {
			continue
		}
		doc, ok := src.Docstring(sym)
		if !ok || doc == "" || seen[doc] {
			continue
		}
		seen[doc] = true
		parts = append(parts, doc)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n\n"), true
}
