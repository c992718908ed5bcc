package constant

import (
	"fmt"
	"strings"
)

// lexer splits a macro replacement list into preprocessing tokens.
type lexer struct {
	src  string
	pos  int
	look *token
}

func newLexer(src string) *lexer {
	return &lexer{src: src}
}

// Next returns the next significant token. After the end it keeps
// returning tokEOF.
func (lx *lexer) Next() (token, error) {
	if lx.look != nil {
		tok := *lx.look
		lx.look = nil
		return tok, nil
	}
	lx.skipTrivia()
	if lx.pos >= len(lx.src) {
		return token{Kind: tokEOF, Pos: lx.pos}, nil
	}

	start := lx.pos
	ch := lx.src[lx.pos]
	switch {
	case (ch == 'L' || ch == 'u' || ch == 'U') && lx.prefixedQuote():
		return lx.scanQuoted(start)
	case isIdentStart(ch):
		for lx.pos < len(lx.src) && isIdentContinue(lx.src[lx.pos]) {
			lx.pos++
		}
		return token{Kind: tokIdent, Text: lx.src[start:lx.pos], Pos: start}, nil
	case isDec(ch) || (ch == '.' && lx.pos+1 < len(lx.src) && isDec(lx.src[lx.pos+1])):
		return lx.scanNumber(start), nil
	case ch == '"' || ch == '\'':
		return lx.scanQuoted(start)
	}

	for _, p := range punctuators {
		if strings.HasPrefix(lx.src[lx.pos:], p) {
			lx.pos += len(p)
			return token{Kind: tokPunct, Text: p, Pos: start}, nil
		}
	}
	lx.pos++
	return token{Kind: tokInvalid, Text: lx.src[start:lx.pos], Pos: start},
		fmt.Errorf("unexpected character %q at %d", ch, start)
}

// Peek returns the next token without consuming it.
func (lx *lexer) Peek() (token, error) {
	if lx.look != nil {
		return *lx.look, nil
	}
	tok, err := lx.Next()
	if err != nil {
		return tok, err
	}
	lx.look = &tok
	return tok, nil
}

func (lx *lexer) skipTrivia() {
	for lx.pos < len(lx.src) {
		switch {
		case isSpace(lx.src[lx.pos]):
			lx.pos++
		case strings.HasPrefix(lx.src[lx.pos:], "/*"):
			end := strings.Index(lx.src[lx.pos+2:], "*/")
			if end < 0 {
				lx.pos = len(lx.src)
				return
			}
			lx.pos += end + 4
		case strings.HasPrefix(lx.src[lx.pos:], "//"):
			lx.pos = len(lx.src)
		default:
			return
		}
	}
}

func (lx *lexer) prefixedQuote() bool {
	rest := lx.src[lx.pos:]
	for _, p := range []string{"u8\"", "u8'", "L\"", "L'", "u\"", "u'", "U\"", "U'"} {
		if strings.HasPrefix(rest, p) {
			return true
		}
	}
	return false
}

// scanNumber consumes a pp-number: digits, letters, dots and exponent signs.
func (lx *lexer) scanNumber(start int) token {
	kind := tokInt
	isHexNum := strings.HasPrefix(lx.src[start:], "0x") || strings.HasPrefix(lx.src[start:], "0X")
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case isIdentContinue(c):
			if !isHexNum && (c == 'e' || c == 'E') {
				kind = tokFloat
			}
			if isHexNum && (c == 'p' || c == 'P') {
				kind = tokFloat
			}
			lx.pos++
		case c == '.':
			kind = tokFloat
			lx.pos++
		case (c == '+' || c == '-') && lx.pos > start:
			prev := lx.src[lx.pos-1]
			exp := (prev == 'e' || prev == 'E') && !isHexNum || (prev == 'p' || prev == 'P') && isHexNum
			if !exp {
				return token{Kind: kind, Text: lx.src[start:lx.pos], Pos: start}
			}
			lx.pos++
		default:
			return token{Kind: kind, Text: lx.src[start:lx.pos], Pos: start}
		}
	}
	return token{Kind: kind, Text: lx.src[start:lx.pos], Pos: start}
}

func (lx *lexer) scanQuoted(start int) (token, error) {
	for lx.src[lx.pos] != '"' && lx.src[lx.pos] != '\'' {
		lx.pos++
	}
	quote := lx.src[lx.pos]
	lx.pos++
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch c {
		case '\\':
			lx.pos += 2
			continue
		case quote:
			lx.pos++
			kind := tokString
			if quote == '\'' {
				kind = tokChar
			}
			return token{Kind: kind, Text: lx.src[start:lx.pos], Pos: start}, nil
		}
		lx.pos++
	}
	lx.pos = len(lx.src)
	return token{Kind: tokInvalid, Text: lx.src[start:], Pos: start}, fmt.Errorf("unterminated literal at %d", start)
}

// tokenize returns every token of src, stopping at the first lexical error.
func tokenize(src string) ([]token, error) {
	lx := newLexer(src)
	var out []token
	for {
		tok, err := lx.Next()
		if err != nil {
			return out, err
		}
		if tok.Kind == tokEOF {
			return out, nil
		}
		out = append(out, tok)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isDec(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentContinue(c byte) bool { return isIdentStart(c) || isDec(c) }
