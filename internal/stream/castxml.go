package stream

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// xmlElem is one element of a castxml / gccxml document.
type xmlElem struct {
	Tag      string
	Attrs    map[string]string
	Children []*xmlElem
}

func (e *xmlElem) attr(name string) string { return e.Attrs[name] }

type castDoc struct {
	order      []*xmlElem
	byID       map[string]*xmlElem
	files      map[string]string
	referenced map[string]bool
}

// ReadCastXML converts castxml (or gccxml) output into declaration entries.
// Compiler builtins are dropped; anonymous aggregates are inlined at their
// use site.
func ReadCastXML(r io.Reader) ([]Entry, error) {
	doc, err := parseCastDoc(r)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, el := range doc.order {
		if doc.isBuiltin(el) {
			continue
		}
		var (
			e   Entry
			ok  bool
			err error
		)
		switch el.Tag {
		case "Typedef":
			e, ok, err = doc.typedefEntry(el)
		case "Struct", "Union":
			e, ok, err = doc.recordEntry(el)
		case "Enumeration":
			e, ok, err = doc.enumEntry(el)
		case "Function":
			e, ok, err = doc.functionEntry(el)
		case "Variable":
			e, ok, err = doc.variableEntry(el)
		}
		if err != nil {
			out = append(out, Entry{Kind: strings.ToLower(el.Tag), Name: el.attr("name"), Malformed: err.Error()})
			continue
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func parseCastDoc(r io.Reader) (*castDoc, error) {
	doc := &castDoc{
		byID:       make(map[string]*xmlElem),
		files:      make(map[string]string),
		referenced: make(map[string]bool),
	}
	dec := xml.NewDecoder(r)
	var stack []*xmlElem
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("castxml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlElem{Tag: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				el.Attrs[a.Name.Local] = a.Value
			}
			switch len(stack) {
			case 0:
			case 1:
				doc.order = append(doc.order, el)
			default:
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			if id := el.attr("id"); id != "" {
				doc.byID[id] = el
			}
			if ref := el.attr("type"); ref != "" {
				doc.referenced[ref] = true
			}
			if el.Tag == "File" {
				doc.files[el.attr("id")] = el.attr("name")
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return doc, nil
}

func (d *castDoc) isBuiltin(el *xmlElem) bool {
	if strings.HasPrefix(el.attr("name"), "__builtin") {
		return true
	}
	file := el.attr("file")
	return file != "" && strings.HasPrefix(d.files[file], "<")
}

func (d *castDoc) location(el *xmlElem) string {
	loc := el.attr("location")
	idx := strings.IndexByte(loc, ':')
	if idx < 0 {
		return loc
	}
	if name, ok := d.files[loc[:idx]]; ok {
		return name + loc[idx:]
	}
	return loc
}

// nested reports aggregates declared inside another aggregate without a name;
// those are emitted inline where they are used.
func (d *castDoc) nested(el *xmlElem) bool {
	return el.attr("name") == ""
}

func (d *castDoc) typedefEntry(el *xmlElem) (Entry, bool, error) {
	typ, err := d.typeOf(el.attr("type"), 0)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Kind: "typedef", Name: el.attr("name"), ID: el.attr("id"), Location: d.location(el), Type: typ}, true, nil
}

func (d *castDoc) recordEntry(el *xmlElem) (Entry, bool, error) {
	if d.nested(el) {
		return Entry{}, false, nil
	}
	e := Entry{
		Kind:     strings.ToLower(el.Tag),
		Name:     el.attr("name"),
		ID:       el.attr("id"),
		Location: d.location(el),
		Opaque:   el.attr("incomplete") == "1",
	}
	if e.Opaque {
		return e, true, nil
	}
	body, err := d.recordBody(el, 0)
	if err != nil {
		return Entry{}, false, err
	}
	e.Size, e.Align, e.Fields, e.Packed = body.Size, body.Align, body.Fields, body.Packed
	if e.Fields == nil {
		e.Fields = []Field{}
	}
	return e, true, nil
}

func (d *castDoc) enumEntry(el *xmlElem) (Entry, bool, error) {
	if d.nested(el) && d.referenced[el.attr("id")] {
		return Entry{}, false, nil
	}
	body := d.enumBody(el)
	return Entry{
		Kind:     "enum",
		Name:     el.attr("name"),
		ID:       el.attr("id"),
		Location: d.location(el),
		Size:     body.Size,
		Align:    body.Align,
		Values:   body.Values,
		Signed:   body.Signed,
	}, true, nil
}

func (d *castDoc) functionEntry(el *xmlElem) (Entry, bool, error) {
	sig, err := d.signature(el, 0)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{
		Kind:     "function",
		Name:     el.attr("name"),
		ID:       el.attr("id"),
		Location: d.location(el),
		Result:   sig.Result,
		Params:   sig.Params,
		Variadic: sig.Variadic,
		CallConv: sig.CallConv,
	}, true, nil
}

func (d *castDoc) variableEntry(el *xmlElem) (Entry, bool, error) {
	typ, err := d.typeOf(el.attr("type"), 0)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Kind: "variable", Name: el.attr("name"), ID: el.attr("id"), Location: d.location(el), Type: typ, Init: el.attr("init")}, true, nil
}

const maxTypeDepth = 64

func (d *castDoc) typeOf(id string, depth int) (*Type, error) {
	if depth > maxTypeDepth {
		return nil, fmt.Errorf("castxml: type %s nests too deeply", id)
	}
	el, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("castxml: unknown type id %q", id)
	}
	switch el.Tag {
	case "FundamentalType":
		return &Type{Kind: "fundamental", Name: el.attr("name"), Size: bitsToBytes(el.attr("size")), Align: bitsToBytes(el.attr("align"))}, nil
	case "CvQualifiedType":
		t, err := d.typeOf(el.attr("type"), depth+1)
		if err != nil {
			return nil, err
		}
		cp := *t
		cp.Const = cp.Const || el.attr("const") == "1"
		return &cp, nil
	case "ElaboratedType":
		return d.typeOf(el.attr("type"), depth+1)
	case "PointerType":
		target := d.unqualified(el.attr("type"))
		if target != nil && target.Tag == "FunctionType" {
			sig, err := d.signature(target, depth+1)
			if err != nil {
				return nil, err
			}
			sig.Kind = "function_pointer"
			return sig, nil
		}
		elem, err := d.typeOf(el.attr("type"), depth+1)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: "pointer", Elem: elem, Size: bitsToBytes(el.attr("size")), Align: bitsToBytes(el.attr("align"))}, nil
	case "ArrayType":
		elem, err := d.typeOf(el.attr("type"), depth+1)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: "array", Elem: elem, Count: arrayCount(el.attr("min"), el.attr("max"))}, nil
	case "FunctionType":
		sig, err := d.signature(el, depth+1)
		if err != nil {
			return nil, err
		}
		sig.Kind = "function_pointer"
		return sig, nil
	case "Typedef":
		return &Type{Kind: "typedef", Name: el.attr("name")}, nil
	case "Struct", "Union":
		kind := strings.ToLower(el.Tag)
		if !d.nested(el) {
			return &Type{Kind: kind, Name: el.attr("name")}, nil
		}
		body, err := d.recordBody(el, depth+1)
		if err != nil {
			return nil, err
		}
		body.Kind = kind
		return body, nil
	case "Enumeration":
		if el.attr("name") != "" {
			return &Type{Kind: "enum", Name: el.attr("name")}, nil
		}
		return d.enumBody(el), nil
	}
	return nil, fmt.Errorf("castxml: unsupported type element %s", el.Tag)
}

func (d *castDoc) unqualified(id string) *xmlElem {
	for range maxTypeDepth {
		el, ok := d.byID[id]
		if !ok {
			return nil
		}
		if el.Tag != "CvQualifiedType" && el.Tag != "ElaboratedType" {
			return el
		}
		id = el.attr("type")
	}
	return nil
}

func (d *castDoc) recordBody(el *xmlElem, depth int) (*Type, error) {
	body := &Type{
		Kind:    strings.ToLower(el.Tag),
		Defined: true,
		Size:    bitsToBytes(el.attr("size")),
		Align:   bitsToBytes(el.attr("align")),
		Packed:  strings.Contains(el.attr("attributes"), "packed"),
		Fields:  []Field{},
	}
	for _, id := range strings.Fields(el.attr("members")) {
		m, ok := d.byID[id]
		if !ok || m.Tag != "Field" {
			continue
		}
		typ, err := d.typeOf(m.attr("type"), depth+1)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", m.attr("name"), err)
		}
		f := Field{Name: m.attr("name"), Type: typ}
		if off, err := strconv.Atoi(m.attr("offset")); err == nil {
			f.BitOffset = Int(off)
		}
		if bits, err := strconv.Atoi(m.attr("bits")); err == nil {
			f.BitWidth = Int(bits)
		}
		body.Fields = append(body.Fields, f)
	}
	return body, nil
}

func (d *castDoc) enumBody(el *xmlElem) *Type {
	body := &Type{
		Kind:    "enum",
		Defined: true,
		Size:    bitsToBytes(el.attr("size")),
		Align:   bitsToBytes(el.attr("align")),
		Values:  []EnumValue{},
	}
	if under := d.unqualified(el.attr("type")); under != nil {
		signed := !strings.Contains(under.attr("name"), "unsigned")
		body.Signed = &signed
	}
	for _, c := range el.Children {
		if c.Tag != "EnumValue" {
			continue
		}
		v, err := strconv.ParseInt(c.attr("init"), 0, 64)
		if err != nil {
			if u, uerr := strconv.ParseUint(c.attr("init"), 0, 64); uerr == nil {
				v = int64(u) //nolint:gosec // wraps like the C value
			}
		}
		body.Values = append(body.Values, EnumValue{Name: c.attr("name"), Value: v})
	}
	return body
}

func (d *castDoc) signature(el *xmlElem, depth int) (*Type, error) {
	result, err := d.typeOf(el.attr("returns"), depth+1)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	sig := &Type{Kind: "function", Result: result, CallConv: callConv(el.attr("attributes"))}
	for _, c := range el.Children {
		switch c.Tag {
		case "Argument":
			typ, err := d.typeOf(c.attr("type"), depth+1)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", c.attr("name"), err)
			}
			sig.Params = append(sig.Params, Param{Name: c.attr("name"), Type: typ})
		case "Ellipsis":
			sig.Variadic = true
		}
	}
	return sig, nil
}

func callConv(attrs string) string {
	for _, cc := range []string{"stdcall", "fastcall", "cdecl"} {
		if strings.Contains(attrs, "__"+cc+"__") {
			return cc
		}
	}
	return ""
}

func bitsToBytes(s string) *int {
	bits, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return Int(bits / 8)
}

// arrayCount follows the castxml convention: max="" is an incomplete array,
// max="-1" (or the all-ones value) a declared zero-length array.
func arrayCount(minS, maxS string) *int {
	if maxS == "" {
		return Int(-1)
	}
	lo, _ := strconv.ParseInt(minS, 0, 64) //nolint:errcheck // missing min means 0
	hi, err := strconv.ParseInt(maxS, 0, 64)
	if err != nil {
		if u, uerr := strconv.ParseUint(maxS, 0, 64); uerr == nil && u == math.MaxUint64 {
			return Int(0)
		}
		return Int(-1)
	}
	return Int(int(hi - lo + 1))
}
