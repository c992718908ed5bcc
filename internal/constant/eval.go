package constant

import (
	"math/big"

	"cbind/internal/decl"
	"cbind/internal/layout"
)

type evalState uint8

const (
	stateUnvisited evalState = iota
	stateVisiting
	stateDone
)

type macroDef struct {
	params   []string
	funcLike bool
	body     string

	state evalState
	val   value
	err   *Unresolved
}

// Evaluator folds macro bodies into typed constants. Macros referenced from
// other macros are resolved on demand and memoized.
type Evaluator struct {
	model    model
	macros   map[string]*macroDef
	enums    map[string]value
	typedefs map[string]decl.Scalar
}

// NewEvaluator creates an evaluator using the integer widths of target.
func NewEvaluator(target layout.Target) *Evaluator {
	return &Evaluator{
		model:    model{target: target},
		macros:   make(map[string]*macroDef),
		enums:    make(map[string]value),
		typedefs: make(map[string]decl.Scalar),
	}
}

// DefineMacro registers or replaces a macro definition.
func (e *Evaluator) DefineMacro(name string, params []string, funcLike bool, body string) {
	e.macros[name] = &macroDef{params: params, funcLike: funcLike, body: body}
}

// DefineEnum registers an enumeration constant usable from macro bodies.
// Constants that fit in int have type int, others keep the underlying type
// of their enum.
func (e *Evaluator) DefineEnum(name string, v int64, underlying decl.Scalar) {
	iv := big.NewInt(v)
	typ := decl.ScalarInt
	if !e.model.fits(iv, typ) && underlying != decl.ScalarInvalid {
		typ = underlying
	}
	if !e.model.fits(iv, typ) {
		typ = decl.ScalarLongLong
	}
	e.enums[name] = intValue(iv, typ)
}

// DefineTypedef registers a typedef name usable in casts.
func (e *Evaluator) DefineTypedef(name string, s decl.Scalar) {
	e.typedefs[name] = s
}

func (e *Evaluator) typedef(name string) (decl.Scalar, bool) {
	s, ok := e.typedefs[name]
	return s, ok
}

// Macro returns the constant value of a defined macro. The error is always
// an *Unresolved.
func (e *Evaluator) Macro(name string) (*decl.Literal, error) {
	v, u := e.macro(name)
	if u != nil {
		return nil, u
	}
	lit, u := e.literal(v)
	if u != nil {
		u.Name = name
		return nil, u
	}
	return lit, nil
}

// Eval folds free-standing expression text.
func (e *Evaluator) Eval(text string) (*decl.Literal, error) {
	x, u := parse(text, e.typedef)
	if u != nil {
		return nil, u
	}
	v, u := e.eval(x)
	if u != nil {
		return nil, u
	}
	lit, u := e.literal(v)
	if u != nil {
		return nil, u
	}
	return lit, nil
}

func (e *Evaluator) macro(name string) (value, *Unresolved) {
	def, ok := e.macros[name]
	if !ok {
		return value{}, &Unresolved{Name: name, Reason: "not defined"}
	}
	switch def.state {
	case stateDone:
		return def.val, def.err
	case stateVisiting:
		return value{}, &Unresolved{Name: name, Reason: "defined in terms of itself"}
	}
	if def.funcLike {
		def.state = stateDone
		def.err = &Unresolved{Name: name, Reason: "function-like macro"}
		return value{}, def.err
	}

	def.state = stateVisiting
	x, u := parse(def.body, e.typedef)
	var v value
	if u == nil {
		v, u = e.eval(x)
	}
	def.state = stateDone
	if u != nil {
		u.Name = name
		def.err = u
		return value{}, u
	}
	def.val = v
	return v, nil
}

func (e *Evaluator) ident(name string) (value, *Unresolved) {
	if v, ok := e.enums[name]; ok {
		return v, nil
	}
	def, ok := e.macros[name]
	if !ok {
		return value{}, unresolvedf("unknown identifier %s", name)
	}
	if def.funcLike {
		return value{}, unresolvedf("function-like macro %s used without arguments", name)
	}
	if def.state == stateVisiting {
		return value{}, unresolvedf("%s is defined in terms of itself", name)
	}
	v, u := e.macro(name)
	if u != nil {
		return value{}, unresolvedf("depends on unresolved macro %s (%s)", name, u.Reason)
	}
	return v, nil
}

func (e *Evaluator) eval(x expr) (value, *Unresolved) {
	m := e.model
	switch x := x.(type) {
	case litExpr:
		var (
			v   value
			err error
		)
		switch x.tok.Kind {
		case tokInt:
			v, err = m.parseInt(x.tok.Text)
		case tokFloat:
			v, err = parseFloat(x.tok.Text)
		default:
			v, err = m.parseChar(x.tok.Text)
		}
		if err != nil {
			return value{}, unresolvedf("%v", err)
		}
		return v, nil

	case strExpr:
		var out value
		for i, tok := range x.toks {
			v, err := parseString(tok.Text)
			if err != nil {
				return value{}, unresolvedf("%v", err)
			}
			if i == 0 {
				out = v
				continue
			}
			out.s += v.s
			if v.wide || v.typ != decl.ScalarChar {
				out.wide, out.typ = v.wide, v.typ
			}
		}
		return out, nil

	case identExpr:
		return e.ident(x.name)

	case unaryExpr:
		v, u := e.eval(x.x)
		if u != nil {
			return value{}, u
		}
		return e.unary(x.op, v)

	case binaryExpr:
		return e.binary(x)

	case condExpr:
		return e.conditional(x)

	case castExpr:
		v, u := e.eval(x.x)
		if u != nil {
			return value{}, u
		}
		if !v.isArith() {
			return value{}, unresolvedf("cast of a string literal")
		}
		return m.convert(v, x.to), nil
	}
	return value{}, unresolvedf("unsupported expression")
}

func (e *Evaluator) unary(op string, v value) (value, *Unresolved) {
	m := e.model
	if !v.isArith() {
		return value{}, unresolvedf("invalid operand to unary %s", op)
	}
	if op == "!" {
		return boolValue(!v.truth()), nil
	}
	if v.kind == decl.LitFloat {
		switch op {
		case "+":
			return v, nil
		case "-":
			return floatValue(-v.f, v.typ), nil
		}
		return value{}, unresolvedf("invalid operand to unary %s", op)
	}
	t := m.promote(v.typ)
	a := m.wrap(v.i, t)
	switch op {
	case "+":
		return intValue(a, t), nil
	case "-":
		return intValue(m.wrap(new(big.Int).Neg(a), t), t), nil
	case "~":
		return intValue(m.wrap(new(big.Int).Not(a), t), t), nil
	}
	return value{}, unresolvedf("unknown operator %s", op)
}

func (e *Evaluator) binary(x binaryExpr) (value, *Unresolved) {
	a, u := e.eval(x.x)
	if u != nil {
		return value{}, u
	}
	switch x.op {
	case ",":
		return e.eval(x.y)
	case "&&", "||":
		if !a.isArith() {
			return value{}, unresolvedf("invalid operand to %s", x.op)
		}
		if x.op == "&&" && !a.truth() {
			return boolValue(false), nil
		}
		if x.op == "||" && a.truth() {
			return boolValue(true), nil
		}
		b, u := e.eval(x.y)
		if u != nil {
			return value{}, u
		}
		if !b.isArith() {
			return value{}, unresolvedf("invalid operand to %s", x.op)
		}
		return boolValue(b.truth()), nil
	}

	b, u := e.eval(x.y)
	if u != nil {
		return value{}, u
	}
	if !a.isArith() || !b.isArith() {
		return value{}, unresolvedf("invalid operands to binary %s", x.op)
	}
	if a.kind == decl.LitFloat || b.kind == decl.LitFloat {
		return floatBinary(x.op, a, b)
	}
	return e.intBinary(x.op, a, b)
}

func floatBinary(op string, a, b value) (value, *Unresolved) {
	t := commonFloat(a, b)
	fa, fb := a.asFloat(), b.asFloat()
	var r float64
	switch op {
	case "+":
		r = fa + fb
	case "-":
		r = fa - fb
	case "*":
		r = fa * fb
	case "/":
		if fb == 0 {
			return value{}, unresolvedf("division by zero")
		}
		r = fa / fb
	case "<":
		return boolValue(fa < fb), nil
	case ">":
		return boolValue(fa > fb), nil
	case "<=":
		return boolValue(fa <= fb), nil
	case ">=":
		return boolValue(fa >= fb), nil
	case "==":
		return boolValue(fa == fb), nil
	case "!=":
		return boolValue(fa != fb), nil
	default:
		return value{}, unresolvedf("invalid operands to binary %s", op)
	}
	if t == decl.ScalarFloat {
		r = float64(float32(r))
	}
	return floatValue(r, t), nil
}

func (e *Evaluator) intBinary(op string, a, b value) (value, *Unresolved) {
	m := e.model
	if op == "<<" || op == ">>" {
		t := m.promote(a.typ)
		n := b.i
		if n.Sign() < 0 || n.Cmp(big.NewInt(int64(m.bits(t)))) >= 0 {
			return value{}, unresolvedf("shift count %s out of range", n.String())
		}
		av := m.wrap(a.i, t)
		shift := uint(n.Uint64())
		if op == "<<" {
			return intValue(m.wrap(new(big.Int).Lsh(av, shift), t), t), nil
		}
		return intValue(new(big.Int).Rsh(av, shift), t), nil
	}

	t := m.common(a.typ, b.typ)
	av, bv := m.wrap(a.i, t), m.wrap(b.i, t)
	r := new(big.Int)
	switch op {
	case "+":
		r.Add(av, bv)
	case "-":
		r.Sub(av, bv)
	case "*":
		r.Mul(av, bv)
	case "/", "%":
		if bv.Sign() == 0 {
			return value{}, unresolvedf("division by zero")
		}
		if op == "/" {
			r.Quo(av, bv)
		} else {
			r.Rem(av, bv)
		}
	case "&":
		r.And(av, bv)
	case "|":
		r.Or(av, bv)
	case "^":
		r.Xor(av, bv)
	case "<":
		return boolValue(av.Cmp(bv) < 0), nil
	case ">":
		return boolValue(av.Cmp(bv) > 0), nil
	case "<=":
		return boolValue(av.Cmp(bv) <= 0), nil
	case ">=":
		return boolValue(av.Cmp(bv) >= 0), nil
	case "==":
		return boolValue(av.Cmp(bv) == 0), nil
	case "!=":
		return boolValue(av.Cmp(bv) != 0), nil
	default:
		return value{}, unresolvedf("unknown operator %s", op)
	}
	return intValue(m.wrap(r, t), t), nil
}

func (e *Evaluator) conditional(x condExpr) (value, *Unresolved) {
	c, u := e.eval(x.cond)
	if u != nil {
		return value{}, u
	}
	if !c.isArith() {
		return value{}, unresolvedf("invalid condition in ?:")
	}
	chosen, other := x.then, x.els
	if !c.truth() {
		chosen, other = x.els, x.then
	}
	v, u := e.eval(chosen)
	if u != nil {
		return value{}, u
	}
	w, ou := e.eval(other)
	if ou != nil || !v.isArith() || !w.isArith() {
		return v, nil
	}
	if v.kind == decl.LitFloat || w.kind == decl.LitFloat {
		return e.model.convert(v, commonFloat(v, w)), nil
	}
	return e.model.convert(v, e.model.common(v.typ, w.typ)), nil
}

// literal classifies a folded value into its final typed form.
func (e *Evaluator) literal(v value) (*decl.Literal, *Unresolved) {
	switch v.kind {
	case decl.LitInt:
		typ, ok := e.model.classify(v.i, v.typ)
		if !ok {
			return nil, unresolvedf("value %s does not fit in a 64-bit integer", v.i.String())
		}
		return &decl.Literal{Kind: decl.LitInt, Int: v.i, Type: typ}, nil
	case decl.LitChar:
		return &decl.Literal{Kind: decl.LitChar, Int: v.i, Wide: v.wide, Type: v.typ}, nil
	case decl.LitFloat:
		return &decl.Literal{Kind: decl.LitFloat, Float: v.f, Type: v.typ}, nil
	case decl.LitString:
		return &decl.Literal{Kind: decl.LitString, Str: v.s, Wide: v.wide, Type: v.typ}, nil
	}
	return nil, unresolvedf("no value")
}
