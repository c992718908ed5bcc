package docs

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"

	"cbind/internal/decl"
)

// Headers documents declarations with the comment block written directly
// above them in the C headers.
type Headers struct {
	comments map[string]string
}

// NewHeaders returns an empty comment index.
func NewHeaders() *Headers {
	return &Headers{comments: make(map[string]string)}
}

// ParseHeaders indexes the comments of every header in paths.
func ParseHeaders(ctx context.Context, paths ...string) (*Headers, error) {
	h := NewHeaders()
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if err := h.Add(ctx, src); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return h, nil
}

// Add indexes one header. Later headers do not override earlier comments.
func (h *Headers) Add(ctx context.Context, src []byte) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return err
	}
	defer tree.Close()

	h.scan(tree.RootNode(), src)
	return nil
}

// Len reports how many declarations have a comment.
func (h *Headers) Len() int { return len(h.comments) }

func (h *Headers) Docstring(sym decl.Symbol) (string, bool) {
	if sym.Name == "" {
		return "", false
	}
	doc, ok := h.comments[commentKey(sym.Kind.IsTag(), sym.Name)]
	return doc, ok
}

func commentKey(tag bool, name string) string {
	if tag {
		return "tag:" + name
	}
	return "ord:" + name
}

// containers hold top-level declarations: include guards, conditional
// blocks and extern "C" bodies.
var containers = map[string]bool{
	"translation_unit":      true,
	"preproc_ifdef":         true,
	"preproc_if":            true,
	"preproc_else":          true,
	"preproc_elif":          true,
	"linkage_specification": true,
	"declaration_list":      true,
}

func (h *Headers) scan(node *sitter.Node, src []byte) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if containers[child.Type()] {
			h.scan(child, src)
			continue
		}
		keys := declKeys(child, src)
		if len(keys) == 0 {
			continue
		}
		doc := precedingComment(child, src)
		if doc == "" {
			continue
		}
		for _, key := range keys {
			if _, ok := h.comments[key]; !ok {
				h.comments[key] = doc
			}
		}
	}
}

// declKeys lists the names a top-level node declares.
func declKeys(node *sitter.Node, src []byte) []string {
	var keys []string
	switch node.Type() {
	case "preproc_def", "preproc_function_def":
		if name := node.ChildByFieldName("name"); name != nil {
			keys = append(keys, commentKey(false, name.Content(src)))
		}
	case "struct_specifier", "union_specifier", "enum_specifier":
		keys = append(keys, tagKeys(node, src)...)
	case "declaration", "type_definition", "function_definition":
		typ := node.ChildByFieldName("type")
		if typ != nil {
			keys = append(keys, tagKeys(typ, src)...)
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if typ != nil && child.StartByte() == typ.StartByte() {
				continue
			}
			if name := declaratorName(child, src); name != "" {
				keys = append(keys, commentKey(false, name))
			}
		}
	}
	return keys
}

func tagKeys(node *sitter.Node, src []byte) []string {
	switch node.Type() {
	case "struct_specifier", "union_specifier", "enum_specifier":
	default:
		return nil
	}
	if node.ChildByFieldName("body") == nil {
		return nil
	}
	var keys []string
	if name := node.ChildByFieldName("name"); name != nil {
		keys = append(keys, commentKey(true, name.Content(src)))
	}
	return keys
}

// declaratorName digs through pointer, array, function and parenthesized
// declarators down to the declared identifier.
func declaratorName(node *sitter.Node, src []byte) string {
	for node != nil {
		switch node.Type() {
		case "identifier", "type_identifier", "field_identifier":
			return node.Content(src)
		case "init_declarator", "pointer_declarator", "array_declarator", "function_declarator",
			"attributed_declarator":
			node = node.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			node = node.NamedChild(0)
		default:
			return ""
		}
	}
	return ""
}

// precedingComment collects the comments directly above node with no blank
// line in between.
func precedingComment(node *sitter.Node, src []byte) string {
	var comments []string
	line := node.StartPoint().Row
	for prev := node.PrevSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevSibling() {
		if prev.EndPoint().Row+1 < line {
			break
		}
		comments = append([]string{cleanComment(prev.Content(src))}, comments...)
		line = prev.StartPoint().Row
	}
	return strings.TrimSpace(strings.Join(comments, "\n"))
}

func cleanComment(text string) string {
	if rest, ok := strings.CutPrefix(text, "//"); ok {
		return strings.TrimSpace(strings.TrimLeft(rest, "/!"))
	}
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	text = strings.TrimLeft(text, "*!")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimSpace(strings.TrimPrefix(l, "*"))
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
