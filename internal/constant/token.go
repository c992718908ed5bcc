package constant

// tokKind represents the category of a macro body token.
type tokKind uint8

const (
	tokInvalid tokKind = iota
	tokEOF
	tokIdent
	tokInt
	tokFloat
	tokChar
	tokString
	tokPunct
)

func (k tokKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return "identifier"
	case tokInt:
		return "integer literal"
	case tokFloat:
		return "floating literal"
	case tokChar:
		return "character literal"
	case tokString:
		return "string literal"
	case tokPunct:
		return "punctuator"
	}
	return "invalid token"
}

type token struct {
	Kind tokKind
	Text string
	Pos  int // byte offset in the body
}

func (t token) is(punct string) bool {
	return t.Kind == tokPunct && t.Text == punct
}

// punctuators longest first so the scanner can match greedily.
var punctuators = []string{
	"<<=", ">>=", "...",
	"##", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "->", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"+", "-", "*", "/", "%", "<", ">", "&", "|", "^", "~", "!", "?", ":",
	"(", ")", "[", "]", "{", "}", ",", ";", ".", "#", "=",
}
