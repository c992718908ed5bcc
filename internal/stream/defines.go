package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadDefines turns "#define NAME body" lines, as printed by "cc -dM -E",
// into macro entries. Other lines are ignored; backslash continuations are
// joined and comments outside literals are removed.
func ReadDefines(r io.Reader, file string) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	var (
		out     []Entry
		pending strings.Builder
		lineNo  int
		startNo int
	)
	for sc.Scan() {
		lineNo++
		text := sc.Text()
		if pending.Len() == 0 {
			startNo = lineNo
		} else {
			text = strings.TrimLeft(text, " \t")
		}
		if strings.HasSuffix(text, "\\") {
			pending.WriteString(strings.TrimRight(strings.TrimSuffix(text, "\\"), " \t"))
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(text)
		line := pending.String()
		pending.Reset()

		e, ok := parseDefine(line)
		if !ok {
			continue
		}
		if file != "" {
			e.Location = fmt.Sprintf("%s:%d", file, startNo)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read defines: %w", err)
	}
	return out, nil
}

func parseDefine(line string) (Entry, bool) {
	rest := strings.TrimSpace(stripComments(line))
	if !strings.HasPrefix(rest, "#") {
		return Entry{}, false
	}
	rest = strings.TrimSpace(rest[1:])
	if !strings.HasPrefix(rest, "define") {
		return Entry{}, false
	}
	rest = rest[len("define"):]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return Entry{}, false
	}
	rest = strings.TrimLeft(rest, " \t")

	end := 0
	for end < len(rest) && isIdentByte(rest[end], end == 0) {
		end++
	}
	if end == 0 {
		return Entry{}, false
	}
	e := Entry{Kind: "macro", Name: rest[:end]}
	rest = rest[end:]
	// A parenthesis glued to the name makes the macro function-like.
	if strings.HasPrefix(rest, "(") {
		closeIdx := strings.IndexByte(rest, ')')
		if closeIdx < 0 {
			e.Malformed = "unterminated macro parameter list"
			return e, true
		}
		e.FunctionLike = true
		e.MacroParams = []string{}
		for _, p := range strings.Split(rest[1:closeIdx], ",") {
			if p = strings.TrimSpace(p); p != "" {
				e.MacroParams = append(e.MacroParams, p)
			}
		}
		rest = rest[closeIdx+1:]
	}
	e.Body = strings.TrimSpace(rest)
	return e, true
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

func stripComments(line string) string {
	var (
		b     strings.Builder
		quote byte
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(line) {
				i++
				b.WriteByte(line[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return b.String()
		case c == '/' && i+1 < len(line) && line[i+1] == '*':
			end := strings.Index(line[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			b.WriteByte(' ')
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
