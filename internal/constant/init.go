package constant

import (
	"math/big"

	"cbind/internal/decl"
)

// Initializer folds the initializer of a variable declared with type typ
// and converts the result as an assignment would: "unsigned int x = -1"
// holds 4294967295. ScalarInvalid stands for a character pointer or
// array, which only takes a string literal.
func (e *Evaluator) Initializer(text string, typ decl.Scalar) (*decl.Literal, error) {
	x, u := parse(text, e.typedef)
	if u != nil {
		return nil, u
	}
	v, u := e.eval(x)
	if u != nil {
		return nil, u
	}
	if typ == decl.ScalarInvalid {
		if v.kind != decl.LitString {
			return nil, unresolvedf("initializer of a character array is not a string literal")
		}
		return &decl.Literal{Kind: decl.LitString, Str: v.s, Wide: v.wide, Type: v.typ}, nil
	}
	if !v.isArith() {
		return nil, unresolvedf("%s initialized with a string literal", typ)
	}
	switch {
	case typ == decl.ScalarBool:
		b := int64(0)
		if v.truth() {
			b = 1
		}
		return &decl.Literal{Kind: decl.LitInt, Int: big.NewInt(b), Type: typ}, nil
	case typ.IsFloat():
		cv := e.model.convert(v, typ)
		return &decl.Literal{Kind: decl.LitFloat, Float: cv.f, Type: typ}, nil
	case typ.IsInteger():
		cv := e.model.convert(v, typ)
		lit := &decl.Literal{Kind: decl.LitInt, Int: cv.i, Type: typ}
		if isCharType(typ) {
			lit.Kind, lit.Wide = decl.LitChar, typ >= decl.ScalarWChar
		}
		return lit, nil
	}
	return nil, unresolvedf("cannot initialize %s", typ)
}

func isCharType(s decl.Scalar) bool {
	switch s {
	case decl.ScalarChar, decl.ScalarSChar, decl.ScalarUChar, decl.ScalarWChar, decl.ScalarChar16, decl.ScalarChar32:
		return true
	}
	return false
}
