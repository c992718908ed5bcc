package constant

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"cbind/internal/decl"
)

type intSuffix struct {
	unsigned bool
	longs    int // 0, 1 (l) or 2 (ll / i64)
	fixed    decl.Scalar
}

func parseIntSuffix(s string) (intSuffix, bool) {
	var out intSuffix
	lower := strings.ToLower(s)
	switch lower {
	case "i8", "ui8", "i16", "ui16", "i32", "ui32", "i64", "ui64":
		out.unsigned = strings.HasPrefix(lower, "u")
		switch strings.TrimLeft(lower, "ui") {
		case "8":
			out.fixed = decl.ScalarSChar
		case "16":
			out.fixed = decl.ScalarShort
		case "32":
			out.fixed = decl.ScalarInt
		default:
			out.longs = 2
		}
		if out.fixed != decl.ScalarInvalid && out.unsigned {
			out.fixed = out.fixed.ToUnsigned()
		}
		return out, true
	}
	rest := s
	for rest != "" {
		switch {
		case (rest[0] == 'u' || rest[0] == 'U') && !out.unsigned:
			out.unsigned = true
			rest = rest[1:]
		case out.longs == 0 && (strings.HasPrefix(rest, "ll") || strings.HasPrefix(rest, "LL")):
			out.longs = 2
			rest = rest[2:]
		case out.longs == 0 && (rest[0] == 'l' || rest[0] == 'L'):
			out.longs = 1
			rest = rest[1:]
		default:
			return out, false
		}
	}
	return out, true
}

// parseInt types an integer literal the way a C compiler does: the first
// type of the candidate list that holds the value.
func (m model) parseInt(text string) (value, error) {
	digits, base := text, 10
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		digits, base = text[2:], 16
	case strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B"):
		digits, base = text[2:], 2
	case len(text) > 1 && text[0] == '0':
		digits, base = text[1:], 8
	}
	end := 0
	for end < len(digits) && isDigitOf(digits[end], base) {
		end++
	}
	if end == 0 && base != 8 {
		return value{}, fmt.Errorf("invalid integer literal %q", text)
	}
	suffix, ok := parseIntSuffix(digits[end:])
	if !ok {
		return value{}, fmt.Errorf("invalid suffix %q on integer literal %q", digits[end:], text)
	}
	v := new(big.Int)
	if end > 0 {
		if _, ok := v.SetString(digits[:end], base); !ok {
			return value{}, fmt.Errorf("invalid integer literal %q", text)
		}
	}
	if suffix.fixed != decl.ScalarInvalid {
		return intValue(m.wrap(v, suffix.fixed), suffix.fixed), nil
	}

	var candidates []decl.Scalar
	switch suffix.longs {
	case 0:
		candidates = []decl.Scalar{decl.ScalarInt, decl.ScalarLong, decl.ScalarLongLong}
	case 1:
		candidates = []decl.Scalar{decl.ScalarLong, decl.ScalarLongLong}
	default:
		candidates = []decl.Scalar{decl.ScalarLongLong}
	}
	var list []decl.Scalar
	for _, c := range candidates {
		switch {
		case suffix.unsigned:
			list = append(list, c.ToUnsigned())
		case base == 10:
			list = append(list, c)
		default:
			list = append(list, c, c.ToUnsigned())
		}
	}
	for _, c := range list {
		if m.fits(v, c) {
			return intValue(v, c), nil
		}
	}
	if m.fits(v, decl.ScalarULongLong) {
		return intValue(v, decl.ScalarULongLong), nil
	}
	return value{}, fmt.Errorf("integer literal %q is too large", text)
}

func isDigitOf(c byte, base int) bool {
	switch base {
	case 2:
		return c == '0' || c == '1'
	case 8:
		return c >= '0' && c <= '7'
	case 16:
		return isDec(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	}
	return isDec(c)
}

func parseFloat(text string) (value, error) {
	body, typ := text, decl.ScalarDouble
	if n := len(body); n > 0 {
		switch body[n-1] {
		case 'f', 'F':
			body, typ = body[:n-1], decl.ScalarFloat
		case 'l', 'L':
			body, typ = body[:n-1], decl.ScalarLongDouble
		}
	}
	f, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return value{}, fmt.Errorf("invalid floating literal %q", text)
	}
	if typ == decl.ScalarFloat {
		f = float64(float32(f))
	}
	return floatValue(f, typ), nil
}

// quotePrefix splits the encoding prefix of a char or string literal.
func quotePrefix(text string) (prefix, body string) {
	i := strings.IndexAny(text, "\"'")
	return text[:i], text[i+1 : len(text)-1]
}

func (m model) parseChar(text string) (value, error) {
	prefix, body := quotePrefix(text)
	runes, err := unescape(body, prefix == "" || prefix == "u8")
	if err != nil {
		return value{}, err
	}
	if len(runes) != 1 {
		return value{}, fmt.Errorf("multi-character constant %s", text)
	}
	r := int64(runes[0])
	v := value{kind: decl.LitChar, typ: decl.ScalarChar}
	switch prefix {
	case "L":
		v.typ, v.wide = decl.ScalarWChar, true
	case "u":
		v.typ = decl.ScalarChar16
	case "U":
		v.typ = decl.ScalarChar32
	case "u8":
		v.typ = decl.ScalarUChar
	}
	v.i = m.wrap(big.NewInt(r), v.typ)
	return v, nil
}

func parseString(text string) (value, error) {
	prefix, body := quotePrefix(text)
	narrow := prefix == "" || prefix == "u8"
	runes, err := unescape(body, narrow)
	if err != nil {
		return value{}, err
	}
	var s string
	if narrow {
		buf := make([]byte, len(runes))
		for i, r := range runes {
			buf[i] = byte(r)
		}
		s = string(buf)
	} else {
		s = string(runes)
	}
	v := value{kind: decl.LitString, s: s, typ: decl.ScalarChar}
	switch prefix {
	case "L":
		v.typ, v.wide = decl.ScalarWChar, true
	case "u":
		v.typ = decl.ScalarChar16
	case "U":
		v.typ = decl.ScalarChar32
	}
	return v, nil
}

// unescape decodes C escape sequences. In narrow mode every element is a
// byte: raw UTF-8 stays split into its bytes and escapes are truncated to 8
// bits.
func unescape(s string, narrow bool) ([]rune, error) {
	var out []rune
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			if narrow {
				out = append(out, rune(c))
				i++
				continue
			}
			r, size := utf8.DecodeRuneInString(s[i:])
			out = append(out, r)
			i += size
			continue
		}
		i++
		if i >= len(s) {
			return nil, fmt.Errorf("trailing backslash in literal")
		}
		c = s[i]
		i++
		switch c {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'v':
			out = append(out, '\v')
		case 'e':
			out = append(out, 0x1b)
		case '\\', '\'', '"', '?':
			out = append(out, rune(c))
		case 'x':
			j := i
			for j < len(s) && isDigitOf(s[j], 16) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("\\x used with no following hex digits")
			}
			n, err := strconv.ParseUint(s[i:j], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("hex escape out of range")
			}
			out = append(out, rune(n))
			i = j
		case 'u', 'U':
			width := 4
			if c == 'U' {
				width = 8
			}
			if i+width > len(s) {
				return nil, fmt.Errorf("incomplete universal character name")
			}
			n, err := strconv.ParseUint(s[i:i+width], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid universal character name")
			}
			if narrow {
				for _, b := range []byte(string(rune(n))) {
					out = append(out, rune(b))
				}
			} else {
				out = append(out, rune(n))
			}
			i += width
		default:
			if c >= '0' && c <= '7' {
				j := i - 1
				for j < len(s) && j < i+2 && s[j] >= '0' && s[j] <= '7' {
					j++
				}
				n, _ := strconv.ParseUint(s[i-1:j], 8, 32)
				out = append(out, rune(n))
				i = j
				continue
			}
			return nil, fmt.Errorf("unknown escape sequence \\%c", c)
		}
	}
	if narrow {
		for i, r := range out {
			out[i] = r & 0xff
		}
	}
	return out, nil
}
