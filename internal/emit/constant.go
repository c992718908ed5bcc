package emit

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"cbind/internal/decl"
)

func (e *Emitter) emitEnum(w *strings.Builder, id decl.NodeID) {
	name := e.names.Name(id)
	sc := e.enumScalar(id)
	e.doc(w, id, "")
	fmt.Fprintf(w, "type %s %s\n", name, sc.goType)

	en := e.arena.Enum(id)
	if en == nil || len(en.Values) == 0 {
		return
	}
	consts := e.names.Enumerators(id)
	w.WriteString("\nconst (\n")
	for i, v := range en.Values {
		fmt.Fprintf(w, "\t%s %s = %s\n", consts[i], name, enumValue(v.Value, sc))
	}
	w.WriteString(")\n")
}

// enumValue reinterprets negative values of unsigned enums.
func enumValue(v int64, sc scalar) string {
	if sc.signed || v >= 0 {
		return strconv.FormatInt(v, 10)
	}
	u := uint64(v)
	if sc.size < 8 {
		u &= 1<<(8*sc.size) - 1
	}
	return strconv.FormatUint(u, 10)
}

func (e *Emitter) emitTypedef(w *strings.Builder, id decl.NodeID) {
	if _, merged := e.names.MergedInto(id); merged {
		return
	}
	n := e.arena.MustNode(id)
	target := e.goType(n.Elem)
	if e.isVoid(n.Elem) || target == "" {
		e.drop(id, "typedef of void has no Go equivalent")
		return
	}
	e.doc(w, id, "")
	fmt.Fprintf(w, "type %s = %s\n", e.names.Name(id), target)
}

func (e *Emitter) emitMacro(w *strings.Builder, id decl.NodeID) {
	m := e.arena.Macro(id)
	if !m.Resolved() {
		return
	}
	typ, value, reason := e.literal(m.Value)
	if reason != "" {
		e.drop(id, reason)
		return
	}
	if value == "" {
		return
	}
	e.doc(w, id, "")
	writeConst(w, e.names.Name(id), typ, value)
}

// literal spells a folded constant as a Go type and value. An empty type
// leaves the constant untyped.
func (e *Emitter) literal(lit *decl.Literal) (typ, value, reason string) {
	switch lit.Kind {
	case decl.LitInt, decl.LitChar:
		sc := e.scalar(lit.Type, 0)
		if sc.opaque {
			return "", "", fmt.Sprintf("%s constant has no Go integer type", lit.Type)
		}
		typ, value = sc.goType, intLiteral(lit.Int)
		if lit.Type == decl.ScalarBool {
			value = strconv.FormatBool(lit.Int != nil && lit.Int.Sign() != 0)
		}
		if lit.Kind == decl.LitChar {
			if lit.Wide {
				typ = "rune"
			}
			if c := lit.Int; c != nil && c.IsInt64() && c.Int64() >= 0x20 && c.Int64() < 0x7f {
				value = strconv.QuoteRune(rune(c.Int64()))
			}
		}
	case decl.LitFloat:
		if math.IsInf(lit.Float, 0) || math.IsNaN(lit.Float) {
			return "", "", "value is not a finite number"
		}
		typ = "float64"
		if lit.Type == decl.ScalarFloat {
			typ = "float32"
		}
		value = strconv.FormatFloat(lit.Float, 'g', -1, 64)
		if !strings.ContainsAny(value, ".e") {
			value += ".0"
		}
	case decl.LitString:
		value = strconv.Quote(lit.Str)
	}
	return typ, value, ""
}

func writeConst(w *strings.Builder, name, typ, value string) {
	if typ != "" {
		fmt.Fprintf(w, "const %s %s = %s\n", name, typ, value)
	} else {
		fmt.Fprintf(w, "const %s = %s\n", name, value)
	}
}

func intLiteral(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
