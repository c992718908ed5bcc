package constant

import (
	"math"
	"math/big"

	"cbind/internal/decl"
	"cbind/internal/layout"
)

// value is an intermediate folding result carrying its C type.
type value struct {
	kind decl.LiteralKind
	i    *big.Int
	f    float64
	s    string
	wide bool
	typ  decl.Scalar
}

func intValue(v *big.Int, typ decl.Scalar) value {
	return value{kind: decl.LitInt, i: v, typ: typ}
}

func floatValue(f float64, typ decl.Scalar) value {
	return value{kind: decl.LitFloat, f: f, typ: typ}
}

func boolValue(b bool) value {
	if b {
		return intValue(big.NewInt(1), decl.ScalarInt)
	}
	return intValue(big.NewInt(0), decl.ScalarInt)
}

func (v value) isArith() bool {
	return v.kind == decl.LitInt || v.kind == decl.LitFloat || v.kind == decl.LitChar
}

func (v value) isInteger() bool {
	return v.kind == decl.LitInt || v.kind == decl.LitChar
}

func (v value) truth() bool {
	if v.kind == decl.LitFloat {
		return v.f != 0
	}
	return v.i.Sign() != 0
}

func (v value) asFloat() float64 {
	if v.kind == decl.LitFloat {
		return v.f
	}
	f, _ := new(big.Float).SetInt(v.i).Float64()
	return f
}

// model answers width and signedness questions for a target.
type model struct {
	target layout.Target
}

func (m model) bits(s decl.Scalar) int {
	if s == decl.ScalarBool {
		return 1
	}
	return m.target.ScalarLayout(s).Size * 8
}

func (m model) signed(s decl.Scalar) bool {
	return m.target.IsSigned(s)
}

// rank orders integer types for the usual arithmetic conversions.
func rank(s decl.Scalar) int {
	switch s {
	case decl.ScalarBool:
		return 1
	case decl.ScalarChar, decl.ScalarSChar, decl.ScalarUChar:
		return 2
	case decl.ScalarShort, decl.ScalarUShort, decl.ScalarChar16:
		return 3
	case decl.ScalarInt, decl.ScalarUInt, decl.ScalarChar32, decl.ScalarWChar:
		return 4
	case decl.ScalarLong, decl.ScalarULong:
		return 5
	case decl.ScalarLongLong, decl.ScalarULongLong:
		return 6
	case decl.ScalarInt128, decl.ScalarUInt128:
		return 7
	}
	return 0
}

// promote applies the integer promotions.
func (m model) promote(s decl.Scalar) decl.Scalar {
	if rank(s) >= rank(decl.ScalarInt) && s != decl.ScalarWChar && s != decl.ScalarChar32 {
		return s
	}
	if m.bits(s) < m.bits(decl.ScalarInt) || (m.bits(s) == m.bits(decl.ScalarInt) && m.signed(s)) {
		return decl.ScalarInt
	}
	return decl.ScalarUInt
}

// common returns the type both integer operands convert to.
func (m model) common(a, b decl.Scalar) decl.Scalar {
	a, b = m.promote(a), m.promote(b)
	if a == b {
		return a
	}
	sa, sb := m.signed(a), m.signed(b)
	if sa == sb {
		if rank(a) >= rank(b) {
			return a
		}
		return b
	}
	u, s := a, b
	if sa {
		u, s = b, a
	}
	if rank(u) >= rank(s) {
		return u
	}
	if m.bits(s) > m.bits(u) {
		return s
	}
	return s.ToUnsigned()
}

// commonFloat returns the floating type of a mixed arithmetic operation.
func commonFloat(a, b value) decl.Scalar {
	switch {
	case a.typ == decl.ScalarLongDouble || b.typ == decl.ScalarLongDouble:
		return decl.ScalarLongDouble
	case a.kind == decl.LitFloat && b.kind == decl.LitFloat && a.typ == decl.ScalarFloat && b.typ == decl.ScalarFloat:
		return decl.ScalarFloat
	case a.kind != decl.LitFloat && b.typ == decl.ScalarFloat, b.kind != decl.LitFloat && a.typ == decl.ScalarFloat:
		return decl.ScalarFloat
	}
	return decl.ScalarDouble
}

// wrap reduces v modulo 2^bits of typ and reinterprets it with the
// signedness of typ.
func (m model) wrap(v *big.Int, typ decl.Scalar) *big.Int {
	if typ == decl.ScalarBool {
		if v.Sign() != 0 {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	}
	n := m.bits(typ)
	if n <= 0 {
		return new(big.Int).Set(v)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(n))
	out := new(big.Int).Mod(v, mod)
	if m.signed(typ) {
		half := new(big.Int).Rsh(mod, 1)
		if out.Cmp(half) >= 0 {
			out.Sub(out, mod)
		}
	}
	return out
}

// fits reports whether v is representable in typ.
func (m model) fits(v *big.Int, typ decl.Scalar) bool {
	n := m.bits(typ)
	if m.signed(typ) {
		lo := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), uint(n-1)))
		hi := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(n-1)), big.NewInt(1))
		return v.Cmp(lo) >= 0 && v.Cmp(hi) <= 0
	}
	hi := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(n)), big.NewInt(1))
	return v.Sign() >= 0 && v.Cmp(hi) <= 0
}

var classifyOrder = []decl.Scalar{
	decl.ScalarInt, decl.ScalarUInt,
	decl.ScalarLong, decl.ScalarULong,
	decl.ScalarLongLong, decl.ScalarULongLong,
}

// classify picks the narrowest standard integer type holding v. Signed
// candidates come before unsigned ones of the same width; an unsigned
// result only considers unsigned candidates.
func (m model) classify(v *big.Int, typ decl.Scalar) (decl.Scalar, bool) {
	unsignedOnly := !m.signed(m.promote(typ))
	for _, c := range classifyOrder {
		if unsignedOnly && m.signed(c) {
			continue
		}
		if m.fits(v, c) {
			return c, true
		}
	}
	return typ, false
}

// convert casts v to the fundamental type typ.
func (m model) convert(v value, typ decl.Scalar) value {
	if typ.IsFloat() {
		f := v.asFloat()
		if typ == decl.ScalarFloat {
			f = float64(float32(f))
		}
		return floatValue(f, typ)
	}
	if v.kind == decl.LitFloat {
		f := v.f
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return intValue(big.NewInt(0), typ)
		}
		bf := big.NewFloat(math.Trunc(f))
		i, _ := bf.Int(nil)
		return intValue(m.wrap(i, typ), typ)
	}
	return intValue(m.wrap(v.i, typ), typ)
}
