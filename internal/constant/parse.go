package constant

import (
	"strings"

	"cbind/internal/decl"
)

type expr interface {
	exprNode()
}

type (
	litExpr struct {
		tok token
	}
	// strExpr is a run of adjacent string literals.
	strExpr struct {
		toks []token
	}
	identExpr struct {
		name string
	}
	unaryExpr struct {
		op string
		x  expr
	}
	binaryExpr struct {
		op   string
		x, y expr
	}
	condExpr struct {
		cond, then, els expr
	}
	castExpr struct {
		to decl.Scalar
		x  expr
	}
)

func (litExpr) exprNode()    {}
func (strExpr) exprNode()    {}
func (identExpr) exprNode()  {}
func (unaryExpr) exprNode()  {}
func (binaryExpr) exprNode() {}
func (condExpr) exprNode()   {}
func (castExpr) exprNode()   {}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

var typeKeywords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "bool": true, "const": true, "volatile": true,
	"__int128": true, "wchar_t": true, "char16_t": true, "char32_t": true,
	"__signed__": true,
}

// parser is a precedence-climbing parser over a token slice.
type parser struct {
	toks     []token
	pos      int
	typedefs func(name string) (decl.Scalar, bool)
}

func parse(body string, typedefs func(string) (decl.Scalar, bool)) (expr, *Unresolved) {
	toks, err := tokenize(body)
	if err != nil {
		return nil, unresolvedf("syntax error: %v", err)
	}
	if len(toks) == 0 {
		return nil, unresolvedf("empty definition")
	}
	for _, t := range toks {
		if t.is("#") || t.is("##") {
			return nil, unresolvedf("stringification or token pasting")
		}
	}
	p := &parser{toks: toks, typedefs: typedefs}
	x, u := p.parseComma()
	if u != nil {
		return nil, u
	}
	if tok := p.peek(); tok.Kind != tokEOF {
		return nil, unresolvedf("syntax error: unexpected %s %q", tok.Kind, tok.Text)
	}
	return x, nil
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{Kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return token{Kind: tokEOF}
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

func (p *parser) expect(punct string) *Unresolved {
	tok := p.next()
	if !tok.is(punct) {
		if tok.Kind == tokEOF {
			return unresolvedf("syntax error: expected %q at end of expression", punct)
		}
		return unresolvedf("syntax error: expected %q, found %q", punct, tok.Text)
	}
	return nil
}

func (p *parser) parseComma() (expr, *Unresolved) {
	x, u := p.parseConditional()
	for u == nil && p.peek().is(",") {
		p.next()
		var y expr
		y, u = p.parseConditional()
		x = binaryExpr{op: ",", x: x, y: y}
	}
	return x, u
}

func (p *parser) parseConditional() (expr, *Unresolved) {
	cond, u := p.parseBinary(1)
	if u != nil || !p.peek().is("?") {
		return cond, u
	}
	p.next()
	then, u := p.parseComma()
	if u != nil {
		return nil, u
	}
	if u := p.expect(":"); u != nil {
		return nil, u
	}
	els, u := p.parseConditional()
	if u != nil {
		return nil, u
	}
	return condExpr{cond: cond, then: then, els: els}, nil
}

func (p *parser) parseBinary(minPrec int) (expr, *Unresolved) {
	x, u := p.parseUnary()
	if u != nil {
		return nil, u
	}
	for {
		tok := p.peek()
		prec, ok := binaryPrec[tok.Text]
		if tok.Kind != tokPunct || !ok || prec < minPrec {
			return x, nil
		}
		p.next()
		y, u := p.parseBinary(prec + 1)
		if u != nil {
			return nil, u
		}
		x = binaryExpr{op: tok.Text, x: x, y: y}
	}
}

func (p *parser) parseUnary() (expr, *Unresolved) {
	tok := p.peek()
	if tok.Kind == tokPunct {
		switch tok.Text {
		case "+", "-", "~", "!":
			p.next()
			x, u := p.parseUnary()
			if u != nil {
				return nil, u
			}
			return unaryExpr{op: tok.Text, x: x}, nil
		case "++", "--":
			return nil, unresolvedf("%s is not allowed in a constant expression", tok.Text)
		case "*", "&":
			return nil, unresolvedf("address or dereference operator")
		case "(":
			if p.startsTypeName(p.peekAt(1)) {
				return p.parseCast()
			}
		}
	}
	return p.parsePrimary()
}

func (p *parser) startsTypeName(tok token) bool {
	if tok.Kind != tokIdent {
		return false
	}
	if typeKeywords[tok.Text] || tok.Text == "struct" || tok.Text == "union" || tok.Text == "enum" {
		return true
	}
	if p.typedefs != nil {
		_, ok := p.typedefs(tok.Text)
		return ok
	}
	return false
}

func (p *parser) parseCast() (expr, *Unresolved) {
	p.next() // (
	var words []string
	for p.peek().Kind == tokIdent {
		words = append(words, p.next().Text)
	}
	if p.peek().is("*") {
		return nil, unresolvedf("cast to pointer type")
	}
	if u := p.expect(")"); u != nil {
		return nil, u
	}
	to, u := p.castTarget(words)
	if u != nil {
		return nil, u
	}
	x, u := p.parseUnary()
	if u != nil {
		return nil, u
	}
	return castExpr{to: to, x: x}, nil
}

func (p *parser) castTarget(words []string) (decl.Scalar, *Unresolved) {
	if len(words) > 0 && (words[0] == "struct" || words[0] == "union" || words[0] == "enum") {
		return decl.ScalarInvalid, unresolvedf("cast to %s type", words[0])
	}
	var plain []string
	for _, w := range words {
		if w == "const" || w == "volatile" {
			continue
		}
		plain = append(plain, w)
	}
	if len(plain) == 1 && p.typedefs != nil {
		if s, ok := p.typedefs(plain[0]); ok {
			return s, nil
		}
	}
	s, err := decl.ParseScalar(strings.Join(plain, " "))
	if err != nil {
		return decl.ScalarInvalid, unresolvedf("cast to unknown type %q", strings.Join(words, " "))
	}
	if s == decl.ScalarVoid {
		return decl.ScalarInvalid, unresolvedf("cast to void")
	}
	return s, nil
}

func (p *parser) parsePrimary() (expr, *Unresolved) {
	tok := p.next()
	switch tok.Kind {
	case tokInt, tokFloat, tokChar:
		return litExpr{tok: tok}, nil
	case tokString:
		toks := []token{tok}
		for p.peek().Kind == tokString {
			toks = append(toks, p.next())
		}
		return strExpr{toks: toks}, nil
	case tokIdent:
		switch tok.Text {
		case "sizeof", "_Alignof", "alignof", "__alignof__":
			return nil, unresolvedf("%s is not evaluated", tok.Text)
		case "defined":
			return nil, unresolvedf("defined operator outside #if")
		}
		if p.peek().is("(") {
			return nil, unresolvedf("invocation of %s", tok.Text)
		}
		return identExpr{name: tok.Text}, nil
	case tokPunct:
		if tok.Text == "(" {
			x, u := p.parseComma()
			if u != nil {
				return nil, u
			}
			if u := p.expect(")"); u != nil {
				return nil, u
			}
			return x, nil
		}
		return nil, unresolvedf("syntax error: unexpected %q", tok.Text)
	case tokEOF:
		return nil, unresolvedf("syntax error: unexpected end of expression")
	}
	return nil, unresolvedf("syntax error: unexpected %q", tok.Text)
}
