package naming

import (
	"go/token"
	"go/types"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Style selects how C identifiers are spelled in Go.
type Style uint8

const (
	// StyleExported converts snake_case to exported CamelCase.
	StyleExported Style = iota
	// StyleVerbatim keeps the C spelling, fixing only invalid characters.
	StyleVerbatim
)

func (s Style) String() string {
	switch s {
	case StyleExported:
		return "exported"
	case StyleVerbatim:
		return "verbatim"
	}
	return "unknown"
}

// ParseStyle accepts "exported" (default) and "verbatim".
func ParseStyle(s string) (Style, bool) {
	switch strings.ToLower(s) {
	case "", "exported", "camel":
		return StyleExported, true
	case "verbatim", "c":
		return StyleVerbatim, true
	}
	return StyleExported, false
}

var acronyms = map[string]bool{
	"id": true, "url": true, "api": true, "http": true, "json": true, "xml": true,
	"sql": true, "io": true, "ip": true, "tcp": true, "udp": true, "cpu": true,
	"gpu": true, "uid": true, "gid": true, "utf": true, "ascii": true, "fd": true,
}

var titler = cases.Title(language.Und, cases.NoLower)

// Normalize maps a C identifier to a Go identifier in the given style.
func Normalize(name string, style Style) string {
	name = norm.NFC.String(name)
	if style == StyleVerbatim {
		return verbatim(name)
	}
	return exported(name)
}

func exported(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' })
	var b strings.Builder
	for _, part := range parts {
		part = sanitize(part, false)
		if part == "" {
			continue
		}
		if acronyms[strings.ToLower(part)] {
			b.WriteString(strings.ToUpper(part))
			continue
		}
		b.WriteString(titler.String(part))
	}
	out := b.String()
	if out == "" {
		return "X"
	}
	first := []rune(out)[0]
	if !unicode.IsUpper(first) {
		out = "X" + out
	}
	return out
}

func verbatim(name string) string {
	out := sanitize(name, true)
	if out == "" {
		return "_"
	}
	if unicode.IsDigit([]rune(out)[0]) {
		out = "_" + out
	}
	return out
}

// sanitize drops or replaces runes that cannot appear in a Go identifier.
func sanitize(s string, keepUnderscore bool) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '_' && keepUnderscore:
			b.WriteRune(r)
		case keepUnderscore:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// LowerCamel spells a local identifier such as a parameter name.
func LowerCamel(name string) string {
	s := exported(norm.NFC.String(name))
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' })
	if len(parts) > 0 && acronyms[strings.ToLower(parts[0])] {
		n := len(parts[0])
		if n <= len(s) {
			return strings.ToLower(s[:n]) + s[n:]
		}
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// IsGoReserved reports keywords and predeclared identifiers.
func IsGoReserved(name string) bool {
	return token.IsKeyword(name) || types.Universe.Lookup(name) != nil
}
