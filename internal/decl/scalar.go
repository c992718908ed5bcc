package decl

import (
	"fmt"
	"strings"
)

// Scalar enumerates C fundamental types.
type Scalar uint8

const (
	ScalarInvalid Scalar = iota
	ScalarVoid
	ScalarBool
	ScalarChar
	ScalarSChar
	ScalarUChar
	ScalarShort
	ScalarUShort
	ScalarInt
	ScalarUInt
	ScalarLong
	ScalarULong
	ScalarLongLong
	ScalarULongLong
	ScalarInt128
	ScalarUInt128
	ScalarFloat
	ScalarDouble
	ScalarLongDouble
	ScalarFloat128
	ScalarWChar
	ScalarChar16
	ScalarChar32
)

var scalarNames = [...]string{
	ScalarInvalid:    "<invalid>",
	ScalarVoid:       "void",
	ScalarBool:       "_Bool",
	ScalarChar:       "char",
	ScalarSChar:      "signed char",
	ScalarUChar:      "unsigned char",
	ScalarShort:      "short",
	ScalarUShort:     "unsigned short",
	ScalarInt:        "int",
	ScalarUInt:       "unsigned int",
	ScalarLong:       "long",
	ScalarULong:      "unsigned long",
	ScalarLongLong:   "long long",
	ScalarULongLong:  "unsigned long long",
	ScalarInt128:     "__int128",
	ScalarUInt128:    "unsigned __int128",
	ScalarFloat:      "float",
	ScalarDouble:     "double",
	ScalarLongDouble: "long double",
	ScalarFloat128:   "__float128",
	ScalarWChar:      "wchar_t",
	ScalarChar16:     "char16_t",
	ScalarChar32:     "char32_t",
}

func (s Scalar) String() string {
	if int(s) < len(scalarNames) {
		return scalarNames[s]
	}
	return fmt.Sprintf("Scalar(%d)", s)
}

// IsInteger reports integer scalars, including character types and _Bool.
func (s Scalar) IsInteger() bool {
	return s >= ScalarBool && s <= ScalarUInt128 || s >= ScalarWChar
}

func (s Scalar) IsFloat() bool {
	return s >= ScalarFloat && s <= ScalarFloat128
}

// IsUnsigned reports scalars that are unsigned regardless of target.
// Plain char and wchar_t signedness is target dependent and reported false.
func (s Scalar) IsUnsigned() bool {
	switch s {
	case ScalarBool, ScalarUChar, ScalarUShort, ScalarUInt, ScalarULong, ScalarULongLong, ScalarUInt128, ScalarChar16, ScalarChar32:
		return true
	}
	return false
}

// ToUnsigned returns the unsigned counterpart of a signed integer scalar.
func (s Scalar) ToUnsigned() Scalar {
	switch s {
	case ScalarChar, ScalarSChar:
		return ScalarUChar
	case ScalarShort:
		return ScalarUShort
	case ScalarInt:
		return ScalarUInt
	case ScalarLong:
		return ScalarULong
	case ScalarLongLong:
		return ScalarULongLong
	case ScalarInt128:
		return ScalarUInt128
	}
	return s
}

// ParseScalar accepts C spellings in any specifier order, as emitted by
// compilers ("long unsigned int", "unsigned long", "short int", "_Bool").
func ParseScalar(name string) (Scalar, error) {
	var (
		signed, unsigned bool
		longs, shorts    int
		sawInt, sawChar  bool
		sawDouble, other bool
		result           = ScalarInvalid
		setOther         = func(s Scalar) { result, other = s, true }
		fields           = strings.Fields(strings.NewReplacer("(", " ", ")", " ").Replace(name))
	)
	if len(fields) == 0 {
		return ScalarInvalid, fmt.Errorf("empty fundamental type name")
	}
	for _, f := range fields {
		switch f {
		case "signed", "__signed__", "__signed":
			signed = true
		case "unsigned":
			unsigned = true
		case "long":
			longs++
		case "short":
			shorts++
		case "int":
			sawInt = true
		case "char":
			sawChar = true
		case "double":
			sawDouble = true
		case "const", "volatile", "restrict", "__restrict", "__extension__":
		case "void":
			setOther(ScalarVoid)
		case "_Bool", "bool":
			setOther(ScalarBool)
		case "float":
			setOther(ScalarFloat)
		case "__int128", "__int128_t":
			setOther(ScalarInt128)
		case "__uint128_t":
			setOther(ScalarUInt128)
		case "__float128", "_Float128":
			setOther(ScalarFloat128)
		case "wchar_t":
			setOther(ScalarWChar)
		case "char16_t":
			setOther(ScalarChar16)
		case "char32_t":
			setOther(ScalarChar32)
		default:
			return ScalarInvalid, fmt.Errorf("unknown fundamental type %q", name)
		}
	}
	switch {
	case other:
		if result == ScalarInt128 && unsigned {
			return ScalarUInt128, nil
		}
		return result, nil
	case sawDouble:
		if longs > 0 {
			return ScalarLongDouble, nil
		}
		return ScalarDouble, nil
	case sawChar:
		switch {
		case unsigned:
			return ScalarUChar, nil
		case signed:
			return ScalarSChar, nil
		}
		return ScalarChar, nil
	case shorts > 0:
		result = ScalarShort
	case longs == 1:
		result = ScalarLong
	case longs >= 2:
		result = ScalarLongLong
	case sawInt || signed || unsigned:
		result = ScalarInt
	default:
		return ScalarInvalid, fmt.Errorf("unknown fundamental type %q", name)
	}
	if unsigned {
		result = result.ToUnsigned()
	}
	return result, nil
}
